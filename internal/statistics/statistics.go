package statistics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const maxRecentErrors = 50

// Statistics contains counters for images compressed, labels extracted and
// verdicts produced since StartTime. Safe for concurrent use.
type Statistics struct {
	ImagesReceived        int64
	CompressionsSucceeded int64
	CompressionsFailed    int64
	DecodeErrors          int64
	CompressionAttempts   int64
	BytesIn               int64
	BytesOut              int64

	ExtractionsSucceeded int64
	ExtractionsFailed    int64

	Evaluations          int64
	CompliantProducts    int64
	NonCompliantProducts int64

	StartTime time.Time

	mutex        sync.RWMutex
	ruleFailures map[string]int64
	errors       []StatError
}

// StatError represents an error that occurred during processing.
type StatError struct {
	RequestID string    `json:"requestId"`
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is a point-in-time copy of the counters, suitable for JSON.
type Snapshot struct {
	ImagesReceived        int64            `json:"imagesReceived"`
	CompressionsSucceeded int64            `json:"compressionsSucceeded"`
	CompressionsFailed    int64            `json:"compressionsFailed"`
	DecodeErrors          int64            `json:"decodeErrors"`
	CompressionAttempts   int64            `json:"compressionAttempts"`
	BytesIn               int64            `json:"bytesIn"`
	BytesOut              int64            `json:"bytesOut"`
	ExtractionsSucceeded  int64            `json:"extractionsSucceeded"`
	ExtractionsFailed     int64            `json:"extractionsFailed"`
	Evaluations           int64            `json:"evaluations"`
	CompliantProducts     int64            `json:"compliantProducts"`
	NonCompliantProducts  int64            `json:"nonCompliantProducts"`
	RuleFailures          map[string]int64 `json:"ruleFailures"`
	RecentErrors          []StatError      `json:"recentErrors"`
	Uptime                string           `json:"uptime"`
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:    time.Now(),
		ruleFailures: make(map[string]int64),
		errors:       make([]StatError, 0),
	}
}

// RecordImage counts a received image of the given size.
func (s *Statistics) RecordImage(bytes int64) {
	atomic.AddInt64(&s.ImagesReceived, 1)
	atomic.AddInt64(&s.BytesIn, bytes)
}

// RecordCompression counts one finished compression run.
func (s *Statistics) RecordCompression(success bool, attempts int, outBytes int64) {
	atomic.AddInt64(&s.CompressionAttempts, int64(attempts))
	if success {
		atomic.AddInt64(&s.CompressionsSucceeded, 1)
		atomic.AddInt64(&s.BytesOut, outBytes)
		return
	}
	atomic.AddInt64(&s.CompressionsFailed, 1)
}

// IncrementDecodeErrors increases the count of unreadable images by 1.
func (s *Statistics) IncrementDecodeErrors() {
	atomic.AddInt64(&s.DecodeErrors, 1)
}

// RecordExtraction counts one call to the extraction service.
func (s *Statistics) RecordExtraction(success bool) {
	if success {
		atomic.AddInt64(&s.ExtractionsSucceeded, 1)
		return
	}
	atomic.AddInt64(&s.ExtractionsFailed, 1)
}

// RecordVerdict counts a compliance evaluation and the rules it failed.
func (s *Statistics) RecordVerdict(compliant bool, failedRules []string) {
	atomic.AddInt64(&s.Evaluations, 1)
	if compliant {
		atomic.AddInt64(&s.CompliantProducts, 1)
	} else {
		atomic.AddInt64(&s.NonCompliantProducts, 1)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, name := range failedRules {
		s.ruleFailures[name]++
	}
}

// AddError records an error, keeping only the most recent ones.
func (s *Statistics) AddError(requestID, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.errors = append(s.errors, StatError{
		RequestID: requestID,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
	if len(s.errors) > maxRecentErrors {
		s.errors = s.errors[len(s.errors)-maxRecentErrors:]
	}
}

// Snapshot returns a consistent copy of all counters.
func (s *Statistics) Snapshot() Snapshot {
	s.mutex.RLock()
	failures := make(map[string]int64, len(s.ruleFailures))
	for k, v := range s.ruleFailures {
		failures[k] = v
	}
	errs := append([]StatError(nil), s.errors...)
	s.mutex.RUnlock()

	return Snapshot{
		ImagesReceived:        atomic.LoadInt64(&s.ImagesReceived),
		CompressionsSucceeded: atomic.LoadInt64(&s.CompressionsSucceeded),
		CompressionsFailed:    atomic.LoadInt64(&s.CompressionsFailed),
		DecodeErrors:          atomic.LoadInt64(&s.DecodeErrors),
		CompressionAttempts:   atomic.LoadInt64(&s.CompressionAttempts),
		BytesIn:               atomic.LoadInt64(&s.BytesIn),
		BytesOut:              atomic.LoadInt64(&s.BytesOut),
		ExtractionsSucceeded:  atomic.LoadInt64(&s.ExtractionsSucceeded),
		ExtractionsFailed:     atomic.LoadInt64(&s.ExtractionsFailed),
		Evaluations:           atomic.LoadInt64(&s.Evaluations),
		CompliantProducts:     atomic.LoadInt64(&s.CompliantProducts),
		NonCompliantProducts:  atomic.LoadInt64(&s.NonCompliantProducts),
		RuleFailures:          failures,
		RecentErrors:          errs,
		Uptime:                time.Since(s.StartTime).Round(time.Second).String(),
	}
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	snap := s.Snapshot()

	compressions := snap.CompressionsSucceeded + snap.CompressionsFailed
	avgAttempts := 0.0
	if compressions > 0 {
		avgAttempts = float64(snap.CompressionAttempts) / float64(compressions)
	}

	summary := fmt.Sprintf(`SSIS Checker Statistics Summary:

Images:
		Received: %d
		Decode Errors: %d
		Bytes In: %s
		Bytes Out: %s

Compression:
		Succeeded: %d
		Failed: %d
		Average Attempts: %.2f

Extraction:
		Succeeded: %d
		Failed: %d

Compliance:
		Evaluations: %d
		Compliant: %d
		Non-compliant: %d

Uptime: %s`,
		snap.ImagesReceived,
		snap.DecodeErrors,
		formatBytes(snap.BytesIn),
		formatBytes(snap.BytesOut),
		snap.CompressionsSucceeded,
		snap.CompressionsFailed,
		avgAttempts,
		snap.ExtractionsSucceeded,
		snap.ExtractionsFailed,
		snap.Evaluations,
		snap.CompliantProducts,
		snap.NonCompliantProducts,
		snap.Uptime)

	if len(snap.RuleFailures) > 0 {
		summary += "\n\n" + formatRuleFailures(snap.RuleFailures)
	}
	return summary
}

// GetErrorSummary returns a summary of recent errors.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.errors) == 0 {
		return "No errors occurred during processing"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Errors (%d recent):\n", len(s.errors))
	for i, err := range s.errors {
		if i >= 10 {
			fmt.Fprintf(&b, "  ... and %d more errors\n", len(s.errors)-10)
			break
		}
		fmt.Fprintf(&b, "  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.RequestID,
			err.Error)
	}
	return b.String()
}

func formatRuleFailures(failures map[string]int64) string {
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Rule Failures:")
	for _, name := range names {
		fmt.Fprintf(&b, "\n\t\t%s: %d", name, failures[name])
	}
	return b.String()
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
