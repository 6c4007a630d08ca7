// Package pipeline chains compression, extraction and compliance checking
// for one label photo.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"ssis-checker/internal/compliance"
	"ssis-checker/internal/compressor"
	"ssis-checker/internal/extractor"
	"ssis-checker/internal/logger"
	"ssis-checker/internal/nutrition"
	"ssis-checker/internal/statistics"
)

// Stage names used in StageError.
const (
	StageCompress = "compress"
	StageExtract  = "extract"
)

// StageError tells the caller which step of a scan failed.
type StageError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Options configures a Pipeline.
type Options struct {
	Params         compressor.Params
	TransportLimit int64
}

// Evaluation bundles a verdict with its presentation.
type Evaluation struct {
	Verdict      *compliance.Verdict    `json:"verdict"`
	Summary      compliance.Summary     `json:"summary"`
	Details      []compliance.Detail    `json:"details"`
	Issues       []string               `json:"issues"`
	Completeness nutrition.Completeness `json:"completeness"`
}

// Result is everything produced by a full scan.
type Result struct {
	RequestID   string                `json:"requestId"`
	ProductName string                `json:"productName"`
	Compression *compressor.Outcome   `json:"compression"`
	Extraction  *extractor.Extraction `json:"extraction"`
	Evaluation
}

// Pipeline runs scans. All collaborators are safe for concurrent use, so
// one Pipeline serves every request.
type Pipeline struct {
	compressor compressor.Compressor
	extractor  extractor.Extractor
	engine     *compliance.Engine
	stats      *statistics.Statistics
	log        *logrus.Logger
	opts       Options
}

// New returns a Pipeline. stats may be nil.
func New(c compressor.Compressor, e extractor.Extractor, engine *compliance.Engine,
	stats *statistics.Statistics, log *logrus.Logger, opts Options) *Pipeline {
	if stats == nil {
		stats = statistics.NewStatistics()
	}
	if log == nil {
		log = logrus.New()
	}
	if opts.TransportLimit <= 0 {
		opts.TransportLimit = compressor.DefaultTransportLimit
	}
	return &Pipeline{
		compressor: c,
		extractor:  e,
		engine:     engine,
		stats:      stats,
		log:        log,
		opts:       opts,
	}
}

// Stats returns the counters the pipeline updates.
func (p *Pipeline) Stats() *statistics.Statistics {
	return p.stats
}

// Extractor returns the extraction service in use.
func (p *Pipeline) Extractor() extractor.Extractor {
	return p.extractor
}

// Compress shrinks an uploaded image and applies the transport limit.
// A result that is still too large is final; compression is not retried.
func (p *Pipeline) Compress(requestID string, data []byte, mimeType string) (*compressor.Outcome, error) {
	log := logger.WithRequest(p.log, StageCompress, requestID)
	p.stats.RecordImage(int64(len(data)))

	outcome, err := p.compressor.CompressBytes(data, mimeType, p.opts.Params)
	if err != nil {
		var decodeErr *compressor.DecodeError
		if errors.As(err, &decodeErr) {
			p.stats.IncrementDecodeErrors()
		}
		p.stats.AddError(requestID, StageCompress, err.Error())
		log.WithError(err).Warn("Image could not be compressed")
		return nil, &StageError{Stage: StageCompress, Err: err}
	}

	p.stats.RecordCompression(outcome.Success, len(outcome.Attempts), outcome.Size)
	if err := compressor.CheckTransportLimit(outcome, p.opts.TransportLimit); err != nil {
		p.stats.AddError(requestID, StageCompress, err.Error())
		log.WithError(err).Warn("Image too large after compression")
		return outcome, &StageError{Stage: StageCompress, Err: err}
	}

	log.WithFields(logrus.Fields{
		"original_size": outcome.OriginalSize,
		"final_size":    outcome.Size,
		"attempts":      len(outcome.Attempts),
	}).Info("Image ready for extraction")
	return outcome, nil
}

// Extract sends a compressed image to the extraction service.
func (p *Pipeline) Extract(ctx context.Context, requestID string, data []byte, mimeType string) (*extractor.Extraction, error) {
	extraction, err := p.extractor.Extract(ctx, data, mimeType)
	p.stats.RecordExtraction(err == nil)
	if err != nil {
		p.stats.AddError(requestID, StageExtract, err.Error())
		logger.WithRequest(p.log, StageExtract, requestID).WithError(err).Error("Extraction failed")
		return nil, &StageError{Stage: StageExtract, Err: err}
	}
	return extraction, nil
}

// Evaluate checks a record and prepares its presentation.
func (p *Pipeline) Evaluate(record nutrition.Record) Evaluation {
	verdict := p.engine.Evaluate(record)
	p.stats.RecordVerdict(verdict.IsCompliant, verdict.FailedNames())
	return Evaluation{
		Verdict:      verdict,
		Summary:      compliance.Summarize(verdict),
		Details:      compliance.Details(verdict),
		Issues:       compliance.Issues(verdict),
		Completeness: record.Validate(),
	}
}

// Run performs a full scan: compress, extract, evaluate.
func (p *Pipeline) Run(ctx context.Context, requestID string, data []byte, mimeType string) (*Result, error) {
	outcome, err := p.Compress(requestID, data, mimeType)
	if err != nil {
		return nil, err
	}

	extraction, err := p.Extract(ctx, requestID, outcome.Data, outcome.MimeType)
	if err != nil {
		return nil, err
	}

	return &Result{
		RequestID:   requestID,
		ProductName: extraction.Record.Name(),
		Compression: outcome,
		Extraction:  extraction,
		Evaluation:  p.Evaluate(extraction.Record),
	}, nil
}
