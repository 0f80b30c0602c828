package metricspush

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/coursepay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coursepay_worker_job_runs_total",
		Help: "test",
	}, []string{"job"})
	runs.WithLabelValues("revalidate_pending").Add(3)
	lag := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "coursepay_worker_lag_seconds", Help: "test"})
	lag.Observe(1)
	reg.MustRegister(runs, lag)
	return reg
}

func TestRemoteWritePusherSendsCounters(t *testing.T) {
	var (
		mu  sync.Mutex
		got prompb.WriteRequest
		hdr http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		raw, err := snappy.Decode(nil, body)
		assert.NoError(t, err)

		mu.Lock()
		defer mu.Unlock()
		hdr = r.Header.Clone()
		assert.NoError(t, got.Unmarshal(raw))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewRemoteWritePusher(srv.URL, "token-1")
	p.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	require.NoError(t, p.Push(context.Background(), testRegistry(t)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "snappy", hdr.Get("Content-Encoding"))
	assert.Equal(t, "Bearer token-1", hdr.Get("Authorization"))

	require.Len(t, got.Timeseries, 1)
	series := got.Timeseries[0]
	require.Len(t, series.Labels, 2)
	assert.Equal(t, "__name__", series.Labels[0].Name)
	assert.Equal(t, "coursepay_worker_job_runs_total", series.Labels[0].Value)
	assert.Equal(t, "job", series.Labels[1].Name)
	assert.Equal(t, "revalidate_pending", series.Labels[1].Value)
	require.Len(t, series.Samples, 1)
	assert.Equal(t, 3.0, series.Samples[0].Value)
	assert.Equal(t, int64(1_700_000_000_000), series.Samples[0].Timestamp)
}

func TestRemoteWritePusherReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewRemoteWritePusher(srv.URL, "").Push(context.Background(), testRegistry(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestPushgatewayPusherUsesJobAndGrouping(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		path = r.URL.Path
		body = string(raw)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewPushgatewayPusher(srv.URL, "coursepay", map[string]string{"environment": "test", "empty": " "})
	require.NoError(t, p.Push(context.Background(), testRegistry(t)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/metrics/job/coursepay/environment/test", path)
	assert.NotEmpty(t, body)
}

func TestNewPusherSelectsExporter(t *testing.T) {
	log := zap.NewNop()

	assert.Nil(t, NewPusher(config.Config{}, log))

	cfg := config.Config{AppName: "coursepay", MetricsPush: config.MetricsPushConfig{Enabled: true}}
	assert.Nil(t, NewPusher(cfg, log))

	cfg.MetricsPush.Endpoint = "http://collector:9091"
	cfg.MetricsPush.Exporter = ExporterPushgateway
	assert.IsType(t, &PushgatewayPusher{}, NewPusher(cfg, log))

	cfg.MetricsPush.Exporter = ExporterRemoteWrite
	assert.IsType(t, &RemoteWritePusher{}, NewPusher(cfg, log))

	cfg.MetricsPush.Exporter = "statsd"
	assert.Nil(t, NewPusher(cfg, log))
}
