package compressor

import (
	"errors"
	"fmt"
	"image"
)

// Defaults used when Params leaves a field at zero.
const (
	DefaultTargetBytes    int64 = 4 * 1024 * 1024
	DefaultMaxAttempts          = 5
	DefaultMaxDimension         = 2048
	DefaultTransportLimit int64 = 5 * 1024 * 1024
)

var (
	// ErrSizeCeilingExceeded is reported when every attempt stayed above the target.
	ErrSizeCeilingExceeded = errors.New("image could not be compressed under the size limit, please use a smaller image")
	// ErrTransportLimit is reported when a compressed image is still too large to send.
	ErrTransportLimit = errors.New("compressed image exceeds the transport limit, please use a smaller image")
	// ErrUnsupportedFormat is wrapped by DecodeError for mime types the codec cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrInvalidParams is returned for negative limits or an empty image.
	ErrInvalidParams = errors.New("invalid compression parameters")
)

// DecodeError reports source bytes that could not be read as an image.
type DecodeError struct {
	MimeType string
	Err      error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s image: %v", e.MimeType, e.Err)
}

// Unwrap returns the underlying decoder error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// RasterImage is a decoded bitmap owned by one compression call.
type RasterImage struct {
	Image      image.Image
	Width      int
	Height     int
	MimeType   string
	SourceSize int64
}

// Attempt records the parameters and result of one encode pass.
type Attempt struct {
	Number  int     `json:"number"`
	Quality float64 `json:"quality"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Size    int64   `json:"size"`
}

// Outcome is the terminal result of a compression run. Success and
// AttemptsExhausted are mutually exclusive.
type Outcome struct {
	Success           bool      `json:"success"`
	Data              []byte    `json:"-"`
	Size              int64     `json:"size"`
	MimeType          string    `json:"mimeType"`
	OriginalSize      int64     `json:"originalSize"`
	Reason            string    `json:"reason,omitempty"`
	AttemptsExhausted bool      `json:"attemptsExhausted"`
	Attempts          []Attempt `json:"attempts"`
}

// Err returns ErrSizeCeilingExceeded for a failed outcome and nil otherwise.
func (o *Outcome) Err() error {
	if o == nil || o.Success {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrSizeCeilingExceeded, o.Reason)
}

// Params bounds a compression run.
type Params struct {
	TargetBytes  int64
	MaxAttempts  int
	MaxDimension int
}

// DefaultParams returns the parameters used by the CLI and the server.
func DefaultParams() Params {
	return Params{
		TargetBytes:  DefaultTargetBytes,
		MaxAttempts:  DefaultMaxAttempts,
		MaxDimension: DefaultMaxDimension,
	}
}

func (p Params) normalized() (Params, error) {
	if p.TargetBytes < 0 || p.MaxAttempts < 0 || p.MaxDimension < 0 {
		return p, fmt.Errorf("%w: target=%d attempts=%d max_dimension=%d",
			ErrInvalidParams, p.TargetBytes, p.MaxAttempts, p.MaxDimension)
	}
	if p.TargetBytes == 0 {
		p.TargetBytes = DefaultTargetBytes
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.MaxDimension == 0 {
		p.MaxDimension = DefaultMaxDimension
	}
	return p, nil
}

// Codec decodes source bytes and re-encodes images at a given size and
// quality in [0,1].
type Codec interface {
	Decode(data []byte, mimeType string) (*RasterImage, error)
	Encode(img *RasterImage, width, height int, quality float64) ([]byte, error)
}

// Compressor shrinks images until they fit under a byte ceiling.
type Compressor interface {
	// Compress re-encodes an already decoded image.
	Compress(img *RasterImage, params Params) (*Outcome, error)
	// CompressBytes decodes data and compresses it. Undecodable input is
	// returned as a *DecodeError, not as a failed Outcome.
	CompressBytes(data []byte, mimeType string, params Params) (*Outcome, error)
}

// CheckTransportLimit applies the caller-side hard ceiling to an outcome.
// A result above the limit is final; the compressor is not re-run.
func CheckTransportLimit(o *Outcome, limit int64) error {
	if err := o.Err(); err != nil {
		return err
	}
	if limit > 0 && o.Size > limit {
		return fmt.Errorf("%w: %d bytes > %d bytes", ErrTransportLimit, o.Size, limit)
	}
	return nil
}
