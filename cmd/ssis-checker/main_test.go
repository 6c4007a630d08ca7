package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"ssis-checker/internal/statistics"
)

func TestPrintStats(t *testing.T) {
	stats := statistics.NewStatistics()
	stats.AddError("req-9", "extract", "model unavailable")

	var plain bytes.Buffer
	printStats(&plain, stats, false)
	assert.Contains(t, plain.String(), "SSIS Checker Statistics Summary:")
	assert.NotContains(t, plain.String(), "model unavailable")

	var withErrors bytes.Buffer
	printStats(&withErrors, stats, true)
	assert.Contains(t, withErrors.String(), "Errors (1 recent):")
	assert.Contains(t, withErrors.String(), "req-9")
	assert.Contains(t, withErrors.String(), "model unavailable")
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "4.00 MB", formatSize(4<<20))
}
