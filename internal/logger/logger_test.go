package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ssis.log")
	log, err := NewLogger(LoggerConfig{Level: "debug", FilePath: path, MaxSize: 1})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	WithRequest(log, "scan", "req-1").Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "scan", entry["operation"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := NewLogger(LoggerConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestWithRequestOmitsEmptyID(t *testing.T) {
	log := logrus.New()
	entry := WithRequest(log, "check", "")
	assert.Equal(t, "check", entry.Data["operation"])
	assert.NotContains(t, entry.Data, "request_id")
}

func TestNewLoggerTextFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssis.log")
	log, err := NewLogger(LoggerConfig{Level: "info", Format: "text", FilePath: path})
	require.NoError(t, err)

	WithOperation(log, "check").Info("plain")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `msg=plain`)
	assert.Contains(t, string(data), `operation=check`)
}

func TestNewLoggerRejectsBadFormat(t *testing.T) {
	_, err := NewLogger(LoggerConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
