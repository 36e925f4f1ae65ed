package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birabittoh/pr-manager/internal/config"
	"github.com/birabittoh/pr-manager/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.File = filepath.Join(t.TempDir(), "logs", "prmanager.log")
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg)
	require.NoError(t, err)
	logger.Debug("debug message")

	content, err := os.ReadFile(cfg.Logging.File)
	require.NoError(t, err)
	assert.Contains(t, string(content), "debug message")
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	require.NoError(t, err)

	logging.NewComponentLogger(logger, "pager").Info("window loaded",
		logging.Int(logging.FieldPage, 2),
		logging.String(logging.FieldSearch, "daily times"),
		logging.Int("entries", 10),
	)

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	line := string(content)
	assert.Contains(t, line, `INFO  pager: [page 2 · search "daily times"] window loaded entries=10`)
	assert.NotContains(t, line, "page=2")
	assert.NotContains(t, line, ".go:", "info logs should not carry caller information")
}

func TestConsoleLoggerTrailsErrorAndShortRequestID(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	require.NoError(t, err)

	ctx := logging.WithRequestID(context.Background(), "0123456789abcdef")
	logger = logging.NewComponentLogger(logging.WithContext(ctx, logger), "workflow")
	logger.Warn("load failed", logging.Args(
		logging.Error(errors.New("connection refused")),
		logging.Publication("daily-times"),
		logging.Duration("elapsed", 1500*time.Millisecond),
	)...)

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	line := strings.TrimSpace(string(content))
	assert.Contains(t, line, "WARN  workflow: [daily-times] load failed elapsed=1.5s")
	assert.True(t, strings.HasSuffix(line, `error="connection refused" req=01234567`), line)
}

func TestJSONLoggerIncludesCorrelationID(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	require.NoError(t, err)

	ctx := logging.WithRequestID(context.Background(), "req-42")
	logging.WithContext(ctx, logger).Warn("poll failed", logging.Publication("daily-times"))

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(content))), &payload))
	assert.Equal(t, "warn", payload["level"])
	assert.Equal(t, "poll failed", payload["msg"])
	assert.Equal(t, "req-42", payload[logging.FieldCorrelationID])
	assert.Equal(t, "daily-times", payload[logging.FieldPublication])
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := logging.New(logging.Options{Format: "xml"})
	require.Error(t, err)
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	assert.False(t, logger.Enabled(context.Background(), 0))
	logger.Error("ignored")
}
