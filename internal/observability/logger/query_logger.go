package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// Tables whose conditional updates carry settlement claims.
var claimTables = map[string]bool{
	"payment_records": true,
	"entitlements":    true,
	"invoices":        true,
}

type QueryLoggerConfig struct {
	Level gormlogger.LogLevel
	// SlowThreshold applies to reads and to tables outside the claim path.
	SlowThreshold time.Duration
	// ClaimSlowThreshold applies to writes on claimTables.
	ClaimSlowThreshold time.Duration
}

func DefaultQueryLoggerConfig() QueryLoggerConfig {
	return QueryLoggerConfig{
		Level:              gormlogger.Warn,
		SlowThreshold:      200 * time.Millisecond,
		ClaimSlowThreshold: 50 * time.Millisecond,
	}
}

// QueryLogger sends gorm output to the context logger. Bound parameters are
// never logged, so payment references and access codes stay out of logs.
type QueryLogger struct {
	cfg QueryLoggerConfig
}

func NewQueryLogger(cfg QueryLoggerConfig) *QueryLogger {
	return &QueryLogger{cfg: cfg}
}

func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zap.InfoLevel, msg, data)
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zap.WarnLevel, msg, data)
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zap.ErrorLevel, msg, data)
}

func (l *QueryLogger) message(ctx context.Context, min gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.cfg.Level < min {
		return
	}
	fields := []zap.Field{zap.String("component", "store")}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	if ce := FromContext(ctx).Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Trace logs failed statements, slow statements and, at Info, everything.
// Record-not-found is expected on lookups by natural key and is not an error.
func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	stmt := parseStatement(sql)

	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && l.cfg.Level >= gormlogger.Error:
		l.write(ctx, zap.ErrorLevel, stmt, sql, rows, elapsed, err)
	case l.isSlow(stmt, elapsed) && l.cfg.Level >= gormlogger.Warn:
		l.write(ctx, zap.WarnLevel, stmt, sql, rows, elapsed, nil)
	case l.cfg.Level >= gormlogger.Info:
		l.write(ctx, zap.DebugLevel, stmt, sql, rows, elapsed, nil)
	}
}

func (l *QueryLogger) isSlow(stmt statement, elapsed time.Duration) bool {
	threshold := l.cfg.SlowThreshold
	if stmt.claimPath() && l.cfg.ClaimSlowThreshold > 0 {
		threshold = l.cfg.ClaimSlowThreshold
	}
	return threshold > 0 && elapsed > threshold
}

// ParamsFilter drops bound values before gorm renders the statement.
func (l *QueryLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *QueryLogger) write(ctx context.Context, level zapcore.Level, stmt statement, sql string, rows int64, elapsed time.Duration, err error) {
	ce := FromContext(ctx).Check(level, "store.query")
	if ce == nil {
		return
	}
	fields := []zap.Field{
		zap.String("component", "store"),
		zap.String("operation", stmt.operation),
		zap.String("table", stmt.table),
		zap.String("sql", strings.Join(strings.Fields(sql), " ")),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

type statement struct {
	operation string
	table     string
}

func (s statement) claimPath() bool {
	return s.operation != "SELECT" && claimTables[s.table]
}

// parseStatement finds the verb and the first table it targets.
func parseStatement(sql string) statement {
	stmt := statement{operation: "UNKNOWN"}
	tokens := strings.Fields(strings.ToUpper(sql))
	raw := strings.Fields(sql)

	for i := 0; i < len(tokens); i++ {
		token := strings.Trim(tokens[i], "();")
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			if stmt.operation == "UNKNOWN" {
				stmt.operation = token
			}
		}
		var next bool
		switch {
		case token == "FROM" && stmt.operation != "INSERT":
			next = true
		case token == "INTO" && stmt.operation == "INSERT":
			next = true
		case token == "UPDATE" && stmt.operation == "UPDATE":
			next = true
		}
		if next && stmt.table == "" && i+1 < len(raw) {
			stmt.table = strings.ToLower(strings.Trim(raw[i+1], `"();`))
		}
	}
	return stmt
}

var _ gormlogger.Interface = (*QueryLogger)(nil)
