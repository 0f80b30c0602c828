package gatewayclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/coursepay/internal/config"
	paymentdomain "github.com/smallbiznis/coursepay/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(config.Config{Gateway: config.GatewayConfig{
		BaseURL: srv.URL,
		APIKey:  "key-1",
		Timeout: timeout,
	}}, nil, zap.NewNop())
	c.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return c
}

func TestValidateReturnsPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/TXN-1/validate", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transactionId":"TXN-1","userId":"u-1","courseId":"c-1","amount":500,"currency":"IDR","status":"valid"}`))
	}, time.Second)

	res, err := c.Validate(context.Background(), "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, "TXN-1", res.TransactionID)
	assert.Equal(t, "valid", res.RawStatus)
	assert.Contains(t, string(res.Payload), `"amount":500`)
}

func TestValidateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"transactionId":"TXN-2","status":"pending"}`))
	}, time.Second)

	res, err := c.Validate(context.Background(), "TXN-2")
	require.NoError(t, err)
	assert.Equal(t, "pending", res.RawStatus)
	assert.Equal(t, int32(3), calls.Load())
}

func TestValidateGivesUpAsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, time.Second)

	_, err := c.Validate(context.Background(), "TXN-3")
	assert.ErrorIs(t, err, paymentdomain.ErrTransientIO)
}

func TestValidateTimeoutIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	started := time.Now()
	_, err := c.Validate(context.Background(), "TXN-4")
	assert.ErrorIs(t, err, paymentdomain.ErrTransientIO)
	assert.Less(t, time.Since(started), time.Second)
}

func TestValidateFollowsReloadedTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(150 * time.Millisecond):
		}
		_, _ = w.Write([]byte(`{"transactionId":"TXN-R","status":"valid"}`))
	}))
	t.Cleanup(srv.Close)

	tunables := config.DefaultReconcilerConfig()
	tunables.GatewayTimeout = 50 * time.Millisecond
	holder := config.NewStaticReconcilerConfigHolder(tunables)

	c := New(config.Config{Gateway: config.GatewayConfig{BaseURL: srv.URL}}, holder, zap.NewNop())
	c.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }

	_, err := c.Validate(context.Background(), "TXN-R")
	assert.ErrorIs(t, err, paymentdomain.ErrTransientIO)

	tunables.GatewayTimeout = 2 * time.Second
	holder.Set(tunables)

	res, err := c.Validate(context.Background(), "TXN-R")
	require.NoError(t, err)
	assert.Equal(t, "valid", res.RawStatus)
}

func TestValidateNotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}, time.Second)

	_, err := c.Validate(context.Background(), "TXN-5")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestValidateRejectsMismatchedTransaction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"transactionId":"OTHER","status":"valid"}`))
	}, time.Second)

	_, err := c.Validate(context.Background(), "TXN-6")
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestValidateNotConfigured(t *testing.T) {
	c := New(config.Config{}, nil, zap.NewNop())
	assert.False(t, c.Configured())
	_, err := c.Validate(context.Background(), "TXN-1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
