package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWritesEventAndErrorLogs(t *testing.T) {
	dir := t.TempDir()

	log, err := New(Config{Dir: dir, Level: "debug"})
	require.NoError(t, err)

	log.Debug("GET URL", zap.String("url", "https://example.com"))
	log.Error("MAIN ERROR", zap.String("reason", "boom"))
	require.NoError(t, log.Close())

	events, err := os.ReadFile(filepath.Join(dir, "event.log"))
	require.NoError(t, err)
	assert.Contains(t, string(events), "GET URL")
	assert.Contains(t, string(events), "MAIN ERROR")

	errs, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(errs), "GET URL")
	assert.Contains(t, string(errs), "MAIN ERROR")
}

func TestLevelFiltersEventLog(t *testing.T) {
	dir := t.TempDir()

	log, err := New(Config{Dir: dir, Level: "warn"})
	require.NoError(t, err)
	log.Info("START PARSING")
	log.Warn("BAD TRY 1")
	require.NoError(t, log.Close())

	events, err := os.ReadFile(filepath.Join(dir, "event.log"))
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(events), "START PARSING"))
	assert.Contains(t, string(events), "BAD TRY 1")
}

func TestWithAttachesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).With(zap.String("run_id", "r1"))

	log.Info("START CATEGORY")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "START CATEGORY", entry.Message)
	assert.Equal(t, "r1", entry.ContextMap()["run_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("INFO"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
}

func TestNoOp(t *testing.T) {
	var log Interface = NewNoOp()
	log.Info("ignored")
	assert.Same(t, log, log.With(zap.String("k", "v")))
	assert.NoError(t, log.Sync())
}
