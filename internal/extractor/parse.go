package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	"ssis-checker/internal/nutrition"
)

// ParseError reports a model reply that is not the expected JSON object.
type ParseError struct {
	RawText string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse nutritional data from image: %v", e.Err)
}

// Unwrap returns the underlying JSON error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseReply decodes the model's answer into a record. Markdown code
// fences and any prose around the outermost JSON object are ignored.
func ParseReply(text string) (*Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	body := jsonObject(text)
	var record nutrition.Record
	if err := json.Unmarshal([]byte(body), &record); err != nil {
		return nil, &ParseError{RawText: text, Err: err}
	}
	return &Extraction{Record: record, RawText: text}, nil
}

// jsonObject returns the span from the first '{' to the last '}', or the
// trimmed text when no braces are present.
func jsonObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return strings.TrimSpace(text)
	}
	return text[start : end+1]
}
