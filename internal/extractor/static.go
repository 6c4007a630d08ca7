package extractor

import (
	"context"
	"encoding/json"

	"ssis-checker/internal/nutrition"
)

// StaticExtractor returns the same record for every image. It stands in
// for the vision model in demos and tests.
type StaticExtractor struct {
	Record nutrition.Record
}

// Extract returns the configured record.
func (s *StaticExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, ErrNoImage
	}
	raw, err := json.Marshal(s.Record)
	if err != nil {
		return nil, err
	}
	return &Extraction{Record: s.Record.Clone(), RawText: string(raw)}, nil
}
