package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ssis-checker/internal/nutrition"
)

var (
	// ErrEmptyResponse is returned when the model reply carries no text.
	ErrEmptyResponse = errors.New("empty response from vision model")
	// ErrUnsupportedProvider is returned for an unknown extractor type.
	ErrUnsupportedProvider = errors.New("unsupported extractor type")
	// ErrNoImage is returned when Extract is called without image bytes.
	ErrNoImage = errors.New("image data is required")
)

// Extraction is the structured result of reading a label.
type Extraction struct {
	Record  nutrition.Record `json:"data"`
	RawText string           `json:"rawText"`
}

// Clone returns a copy that shares no memory with e.
func (e *Extraction) Clone() *Extraction {
	if e == nil {
		return nil
	}
	return &Extraction{Record: e.Record.Clone(), RawText: e.RawText}
}

// Extractor reads nutrition fields from a label image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (*Extraction, error)
}

// CachedExtractor extends Extractor with caching capabilities.
type CachedExtractor interface {
	Extractor
	ClearCache()
	GetCacheStats() CacheStats
}

// CacheStats contains statistics about cache performance.
type CacheStats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Size         int     `json:"size"`
	HitRate      float64 `json:"hitRate"`
	TotalQueries int64   `json:"totalQueries"`
	Evictions    int64   `json:"evictions"`
}

// ProviderType names an extractor implementation.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderStatic ProviderType = "static"
)

// ParseProviderType validates a configured extractor type.
func ParseProviderType(s string) (ProviderType, error) {
	switch ProviderType(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderStatic:
		return ProviderStatic, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, s)
	}
}

// Config selects and configures an extractor.
type Config struct {
	Type      string
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	// Sample names the demo record returned by the static extractor.
	Sample string
	// CacheSize bounds the number of cached extractions.
	CacheSize int
}
