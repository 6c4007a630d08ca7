package compressor

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// ImagingCodec decodes and encodes images with the imaging package.
// Quality applies to JPEG; lossless formats are written at best compression.
type ImagingCodec struct {
	filter imaging.ResampleFilter
}

// NewImagingCodec returns a codec that resamples with Lanczos, which keeps
// small printed digits readable.
func NewImagingCodec() *ImagingCodec {
	return &ImagingCodec{filter: imaging.Lanczos}
}

var mimeFormats = map[string]imaging.Format{
	"image/jpeg": imaging.JPEG,
	"image/png":  imaging.PNG,
	"image/gif":  imaging.GIF,
	"image/tiff": imaging.TIFF,
	"image/bmp":  imaging.BMP,
}

// NormalizeMimeType lower-cases a mime type, drops parameters and maps
// common aliases.
func NormalizeMimeType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch mimeType {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/x-png":
		return "image/png"
	case "image/x-ms-bmp":
		return "image/bmp"
	}
	return mimeType
}

// SupportedMimeType reports whether the codec can re-encode mimeType.
func SupportedMimeType(mimeType string) bool {
	_, ok := mimeFormats[NormalizeMimeType(mimeType)]
	return ok
}

// DetectMimeType identifies data by its header. Formats registered with the
// image package win over http.DetectContentType, which does not know TIFF.
func DetectMimeType(data []byte) string {
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		if mimeType := "image/" + format; SupportedMimeType(mimeType) {
			return mimeType
		}
	}
	return NormalizeMimeType(http.DetectContentType(data))
}

// Decode reads data into a RasterImage, applying EXIF orientation so that
// phone photos come out upright. An empty or generic mimeType is sniffed
// from data.
func (c *ImagingCodec) Decode(data []byte, mimeType string) (*RasterImage, error) {
	mimeType = NormalizeMimeType(mimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = DetectMimeType(data)
	}
	if _, ok := mimeFormats[mimeType]; !ok {
		return nil, &DecodeError{MimeType: mimeType, Err: ErrUnsupportedFormat}
	}
	if len(data) == 0 {
		return nil, &DecodeError{MimeType: mimeType, Err: fmt.Errorf("empty input")}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{MimeType: mimeType, Err: err}
	}
	if mimeType == "image/jpeg" {
		img = applyOrientation(img, readOrientation(data))
	}

	b := img.Bounds()
	return &RasterImage{
		Image:      img,
		Width:      b.Dx(),
		Height:     b.Dy(),
		MimeType:   mimeType,
		SourceSize: int64(len(data)),
	}, nil
}

// Encode renders img at width x height and encodes it in its own format.
func (c *ImagingCodec) Encode(img *RasterImage, width, height int, quality float64) ([]byte, error) {
	format, ok := mimeFormats[img.MimeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, img.MimeType)
	}

	src := img.Image
	if width != img.Width || height != img.Height {
		src = imaging.Resize(img.Image, width, height, c.filter)
	}

	var opts []imaging.EncodeOption
	switch format {
	case imaging.JPEG:
		opts = append(opts, imaging.JPEGQuality(jpegQuality(quality)))
	case imaging.PNG:
		opts = append(opts, imaging.PNGCompressionLevel(png.BestCompression))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, format, opts...); err != nil {
		return nil, fmt.Errorf("encode %s: %w", img.MimeType, err)
	}
	return buf.Bytes(), nil
}

// jpegQuality maps [0,1] onto the encoder's 1-100 scale.
func jpegQuality(q float64) int {
	return min(max(int(math.Round(q*100)), 1), 100)
}

// readOrientation returns the EXIF orientation tag, or 1 when absent.
func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// applyOrientation undoes the camera rotation described by an EXIF
// orientation value.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
