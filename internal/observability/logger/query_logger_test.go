package logger

import (
	"context"
	"testing"
	"time"

	obscontext "github.com/smallbiznis/coursepay/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseStatement(t *testing.T) {
	cases := map[string]statement{
		"":                                          {operation: "UNKNOWN"},
		"select * from invoices":                    {operation: "SELECT", table: "invoices"},
		"  UPDATE payment_records SET status = ?":   {operation: "UPDATE", table: "payment_records"},
		"WITH x AS (SELECT 1) SELECT * FROM x":      {operation: "SELECT", table: "x"},
		"INSERT INTO entitlements (id) VALUES (?)":  {operation: "INSERT", table: "entitlements"},
		"(DELETE FROM operator_reviews WHERE id=?)": {operation: "DELETE", table: "operator_reviews"},
	}
	for sql, want := range cases {
		assert.Equal(t, want, parseStatement(sql), sql)
	}
}

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestTraceUsesTighterThresholdOnClaimWrites(t *testing.T) {
	logs := observe(t)
	l := NewQueryLogger(QueryLoggerConfig{
		Level:              gormlogger.Warn,
		SlowThreshold:      time.Second,
		ClaimSlowThreshold: 10 * time.Millisecond,
	})
	ctx := obscontext.WithNaturalKey(context.Background(), "gw:TXN-1")
	begin := time.Now().Add(-50 * time.Millisecond)

	l.Trace(ctx, begin, func() (string, int64) {
		return "SELECT * FROM payment_records WHERE natural_key = ?", 1
	}, nil)
	assert.Equal(t, 0, logs.Len())

	l.Trace(ctx, begin, func() (string, int64) {
		return "UPDATE payment_records SET claim_state = ? WHERE natural_key = ?", 0
	}, nil)
	require.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "payment_records", fields["table"])
	assert.Equal(t, "UPDATE", fields["operation"])
	assert.Equal(t, "gw:TXN-1", fields["natural_key"])
}

func TestTraceSkipsRecordNotFound(t *testing.T) {
	logs := observe(t)
	l := NewQueryLogger(DefaultQueryLoggerConfig())

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT * FROM invoices WHERE invoice_number = ?", 0
	}, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	l.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT 1", 0
	}, assert.AnError)
	assert.Equal(t, 0, logs.Len())
}
