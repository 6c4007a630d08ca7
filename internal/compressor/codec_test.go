package compressor

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noisyImage(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))
	return buf.Bytes()
}

func TestImagingCodecRoundTrip(t *testing.T) {
	data := encodeJPEG(t, noisyImage(120, 80))
	codec := NewImagingCodec()

	img, err := codec.Decode(data, "image/jpg")
	require.NoError(t, err)
	assert.Equal(t, 120, img.Width)
	assert.Equal(t, 80, img.Height)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, int64(len(data)), img.SourceSize)

	out, err := codec.Encode(img, 60, 40, 0.5)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 60, cfg.Width)
	assert.Equal(t, 40, cfg.Height)
}

func TestImagingCodecLowerQualityIsSmaller(t *testing.T) {
	codec := NewImagingCodec()
	img, err := codec.Decode(encodeJPEG(t, noisyImage(200, 200)), "image/jpeg")
	require.NoError(t, err)

	high, err := codec.Encode(img, 200, 200, 0.9)
	require.NoError(t, err)
	low, err := codec.Encode(img, 200, 200, 0.3)
	require.NoError(t, err)
	assert.Less(t, len(low), len(high))
}

func TestImagingCodecSniffsPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, noisyImage(16, 16)))

	img, err := NewImagingCodec().Decode(buf.Bytes(), "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)

	out, err := NewImagingCodec().Encode(img, 8, 8, 0.3)
	require.NoError(t, err)
	_, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestImagingCodecDecodeErrors(t *testing.T) {
	codec := NewImagingCodec()
	var decodeErr *DecodeError

	_, err := codec.Decode([]byte("definitely not a jpeg"), "image/jpeg")
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "image/jpeg", decodeErr.MimeType)

	_, err = codec.Decode([]byte{1, 2, 3}, "image/webp")
	require.ErrorAs(t, err, &decodeErr)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = codec.Decode(nil, "image/png")
	assert.ErrorAs(t, err, &decodeErr)
}

func TestDetectMimeType(t *testing.T) {
	var tiff bytes.Buffer
	require.NoError(t, imaging.Encode(&tiff, noisyImage(12, 10), imaging.TIFF))
	var bmp bytes.Buffer
	require.NoError(t, imaging.Encode(&bmp, noisyImage(12, 10), imaging.BMP))
	webp := append([]byte("RIFF\x24\x00\x00\x00WEBPVP8 "), make([]byte, 24)...)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", encodeJPEG(t, noisyImage(8, 8)), "image/jpeg"},
		{"tiff", tiff.Bytes(), "image/tiff"},
		{"bmp", bmp.Bytes(), "image/bmp"},
		{"webp", webp, "image/webp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMimeType(tt.data))
		})
	}
}

func TestImagingCodecSniffsGenericMimeType(t *testing.T) {
	var tiff bytes.Buffer
	require.NoError(t, imaging.Encode(&tiff, noisyImage(12, 10), imaging.TIFF))

	for _, mimeType := range []string{"", "application/octet-stream"} {
		img, err := NewImagingCodec().Decode(tiff.Bytes(), mimeType)
		require.NoError(t, err, mimeType)
		assert.Equal(t, "image/tiff", img.MimeType)
		assert.Equal(t, 12, img.Width)
	}
}

func TestImagingCodecRejectsWebP(t *testing.T) {
	webp := append([]byte("RIFF\x24\x00\x00\x00WEBPVP8 "), make([]byte, 24)...)

	_, err := NewImagingCodec().Decode(webp, "application/octet-stream")

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "image/webp", decodeErr.MimeType)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.False(t, SupportedMimeType("image/webp"))
	assert.True(t, SupportedMimeType("image/JPG"))
}

func TestDefaultCompressorEndToEnd(t *testing.T) {
	c := NewDefaultCompressor(nil)
	big := imaging.New(3000, 1000, color.NRGBA{200, 200, 200, 255})
	data := encodeJPEG(t, big)

	out, err := c.CompressBytes(data, "image/jpeg", Params{TargetBytes: 1 << 30, MaxAttempts: 2})
	require.NoError(t, err)
	require.True(t, out.Success)
	require.NoError(t, CheckTransportLimit(out, DefaultTransportLimit))

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Width)
	assert.Equal(t, 682, cfg.Height)
}

func TestDefaultCompressorExhausts(t *testing.T) {
	c := NewDefaultCompressor(nil)
	data := encodeJPEG(t, noisyImage(100, 100))

	out, err := c.CompressBytes(data, "image/jpeg", Params{TargetBytes: 50, MaxAttempts: 3})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Len(t, out.Attempts, 3)
	assert.ErrorIs(t, out.Err(), ErrSizeCeilingExceeded)
}

func TestApplyOrientation(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 2))

	for _, o := range []int{1, 2, 3, 4} {
		b := applyOrientation(src, o).Bounds()
		assert.Equal(t, 4, b.Dx(), "orientation %d", o)
	}
	for _, o := range []int{5, 6, 7, 8} {
		b := applyOrientation(src, o).Bounds()
		assert.Equal(t, 2, b.Dx(), "orientation %d", o)
		assert.Equal(t, 4, b.Dy(), "orientation %d", o)
	}
}

func TestReadOrientationWithoutExif(t *testing.T) {
	assert.Equal(t, 1, readOrientation(encodeJPEG(t, noisyImage(4, 4))))
}

func TestJPEGQuality(t *testing.T) {
	assert.Equal(t, 90, jpegQuality(0.9))
	assert.Equal(t, 30, jpegQuality(0.3))
	assert.Equal(t, 1, jpegQuality(0))
	assert.Equal(t, 100, jpegQuality(2))
}
