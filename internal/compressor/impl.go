package compressor

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

const (
	initialQuality = 0.9
	qualityStep    = 0.15
	qualityFloor   = 0.3
	resetQuality   = 0.7
)

// ImageCompressor implements Compressor on top of a Codec. It keeps no
// state between calls, so one instance may serve concurrent requests.
type ImageCompressor struct {
	codec  Codec
	logger *logrus.Logger
}

// NewImageCompressor returns a compressor using codec. logger may be nil.
func NewImageCompressor(codec Codec, logger *logrus.Logger) *ImageCompressor {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &ImageCompressor{codec: codec, logger: logger}
}

// NewDefaultCompressor returns a compressor backed by ImagingCodec.
func NewDefaultCompressor(logger *logrus.Logger) *ImageCompressor {
	return NewImageCompressor(NewImagingCodec(), logger)
}

// CompressBytes decodes data and compresses the result.
func (c *ImageCompressor) CompressBytes(data []byte, mimeType string, params Params) (*Outcome, error) {
	img, err := c.codec.Decode(data, mimeType)
	if err != nil {
		return nil, err
	}
	return c.Compress(img, params)
}

// Compress downscales img to fit MaxDimension, then re-encodes it with a
// falling quality, shrinking dimensions by a fifth whenever quality is
// already at its floor. It stops at the first encode under TargetBytes.
func (c *ImageCompressor) Compress(img *RasterImage, params Params) (*Outcome, error) {
	params, err := params.normalized()
	if err != nil {
		return nil, err
	}
	if img == nil || img.Image == nil || img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidParams)
	}

	log := c.logger.WithFields(logrus.Fields{
		"operation":    "compress",
		"mime_type":    img.MimeType,
		"source_size":  img.SourceSize,
		"target_bytes": params.TargetBytes,
	})

	width, height := fitWithin(img.Width, img.Height, params.MaxDimension)
	quality := initialQuality

	out := &Outcome{
		MimeType:     img.MimeType,
		OriginalSize: img.SourceSize,
		Attempts:     make([]Attempt, 0, params.MaxAttempts),
	}

	for n := 1; n <= params.MaxAttempts; n++ {
		data, err := c.codec.Encode(img, width, height, quality)
		if err != nil {
			return nil, fmt.Errorf("encode attempt %d: %w", n, err)
		}

		attempt := Attempt{
			Number:  n,
			Quality: quality,
			Width:   width,
			Height:  height,
			Size:    int64(len(data)),
		}
		out.Attempts = append(out.Attempts, attempt)
		log.WithFields(logrus.Fields{
			"attempt": n,
			"quality": quality,
			"width":   width,
			"height":  height,
			"size":    attempt.Size,
		}).Debug("Compression attempt")

		if attempt.Size <= params.TargetBytes {
			out.Success = true
			out.Data = data
			out.Size = attempt.Size
			log.WithField("attempts", n).Infof("Image compressed to %d bytes", out.Size)
			return out, nil
		}

		width, height, quality = nextStep(width, height, quality)
	}

	last := out.Attempts[len(out.Attempts)-1]
	out.AttemptsExhausted = true
	out.Reason = fmt.Sprintf("smallest encoding after %d attempts was %d bytes, limit is %d bytes",
		params.MaxAttempts, last.Size, params.TargetBytes)
	log.Warn(out.Reason)
	return out, nil
}

// fitWithin scales (w, h) so the larger side equals maxDim when either side
// exceeds it, preserving aspect ratio and flooring the smaller side.
func fitWithin(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	if w >= h {
		return maxDim, max(h*maxDim/w, 1)
	}
	return max(w*maxDim/h, 1), maxDim
}

// nextStep lowers quality toward the floor; once at the floor it shrinks
// both sides to 80% and restarts at resetQuality.
func nextStep(w, h int, quality float64) (int, int, float64) {
	if quality > qualityFloor {
		return w, h, math.Max(roundQuality(quality-qualityStep), qualityFloor)
	}
	return max(w*4/5, 1), max(h*4/5, 1), resetQuality
}

// roundQuality keeps the schedule on exact hundredths.
func roundQuality(q float64) float64 {
	return math.Round(q*100) / 100
}
