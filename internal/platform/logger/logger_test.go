// Package logger_test contains tests for the logger package
package logger_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/phrazzld/enroll-api/internal/config"
	"github.com/phrazzld/enroll-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreDefault(t *testing.T) {
	t.Helper()
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		want  slog.Level
		valid bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := logger.ParseLevel(tt.name)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.valid, ok)
		})
	}
}

func TestSetupWithWriter_JSON(t *testing.T) {
	restoreDefault(t)
	buf := &logger.TestLogBuffer{}

	log, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "info", LogFormat: "json"}, buf)
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Same(t, log, slog.Default())

	log.Debug("hidden")
	log.Info("account registered", "email", "jane@x.com", "national_id", "11144477735")

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1, "debug entries are filtered at info level")
	assert.Equal(t, "account registered", entries[0]["msg"])
	assert.Equal(t, "j***@x.com", entries[0]["email"])
	assert.Equal(t, "[REDACTED]", entries[0]["national_id"])
}

func TestSetupWithWriter_Text(t *testing.T) {
	restoreDefault(t)
	buf := &logger.TestLogBuffer{}

	log, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "debug", LogFormat: "text"}, buf)
	require.NoError(t, err)

	log.Debug("code issued", "code", "123456")
	out := buf.String()
	assert.True(t, strings.Contains(out, "msg=\"code issued\""), out)
	assert.NotContains(t, out, "123456")
}

func TestSetupWithWriter_InvalidLevelWarns(t *testing.T) {
	restoreDefault(t)
	buf := &logger.TestLogBuffer{}

	_, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "invalid_level"}, buf)
	require.NoError(t, err)

	logger.AssertLogContains(t, buf, "invalid log level configured")
	logger.AssertLogContains(t, buf, "invalid_level")
}

func TestFromContextOrDefault(t *testing.T) {
	defaultLogger := slog.Default()
	customLogger := slog.New(slog.NewTextHandler(nil, nil))

	tests := []struct {
		name     string
		ctx      context.Context
		expected *slog.Logger
	}{
		{
			name:     "nil_context_returns_default",
			ctx:      nil,
			expected: defaultLogger,
		},
		{
			name:     "context_without_logger_returns_default",
			ctx:      context.Background(),
			expected: defaultLogger,
		},
		{
			name:     "context_with_logger_returns_context_logger",
			ctx:      logger.WithLogger(context.Background(), customLogger),
			expected: customLogger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := logger.FromContextOrDefault(tt.ctx, defaultLogger)
			assert.Same(t, tt.expected, result)
		})
	}
}

func TestWithLogger(t *testing.T) {
	t.Run("valid_logger", func(t *testing.T) {
		customLogger := slog.New(slog.NewTextHandler(nil, nil))
		ctx := logger.WithLogger(context.Background(), customLogger)
		assert.Same(t, customLogger, logger.FromContext(ctx))
	})

	t.Run("nil_logger_panics", func(t *testing.T) {
		assert.Panics(t, func() {
			logger.WithLogger(context.Background(), nil)
		})
	})
}

func TestRequestIDIsAttached(t *testing.T) {
	capture := logger.NewLogCaptureContext(t)
	ctx := logger.WithRequestID(capture.Context, "req-42")

	assert.Equal(t, "req-42", logger.RequestIDFromContext(ctx))
	logger.FromContext(ctx).Info("handled")

	entries, err := capture.Buffer.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0]["request_id"])
}
