package imaging_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"go-dishlens-backend/pkg/imaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestValidatePhoto(t *testing.T) {
	t.Run("good png", func(t *testing.T) {
		result, err := imaging.ValidatePhoto("dish.png", encodePNG(t, 800, 600))
		require.NoError(t, err)
		assert.Equal(t, ".png", result.Extension)
		assert.Equal(t, "png", result.Format)
		assert.Equal(t, 800, result.Width)
		assert.Equal(t, 600, result.Height)
	})

	t.Run("good jpeg with uppercase extension", func(t *testing.T) {
		result, err := imaging.ValidatePhoto("DISH.JPG", encodeJPEG(t, 500, 500))
		require.NoError(t, err)
		assert.Equal(t, ".jpg", result.Extension)
		assert.Equal(t, "jpeg", result.Format)
	})

	t.Run("undersized", func(t *testing.T) {
		_, err := imaging.ValidatePhoto("small.png", encodePNG(t, 100, 100))
		assert.ErrorIs(t, err, imaging.ErrTooSmall)
	})

	t.Run("one undersized dimension fails", func(t *testing.T) {
		_, err := imaging.ValidatePhoto("narrow.png", encodePNG(t, 1200, 300))
		assert.ErrorIs(t, err, imaging.ErrTooSmall)
	})

	t.Run("disallowed extension", func(t *testing.T) {
		_, err := imaging.ValidatePhoto("menu.pdf", encodePNG(t, 800, 600))
		assert.ErrorIs(t, err, imaging.ErrUnsupportedType)
	})

	t.Run("no extension", func(t *testing.T) {
		_, err := imaging.ValidatePhoto("photo", encodePNG(t, 800, 600))
		assert.ErrorIs(t, err, imaging.ErrUnsupportedType)
	})

	t.Run("spoofed extension", func(t *testing.T) {
		// JPEG bytes behind a .png name must not pass.
		_, err := imaging.ValidatePhoto("fake.png", encodeJPEG(t, 800, 600))
		assert.ErrorIs(t, err, imaging.ErrCorrupt)
	})

	t.Run("junk with a png signature", func(t *testing.T) {
		junk := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("not a real image")...)
		_, err := imaging.ValidatePhoto("junk.png", junk)
		assert.ErrorIs(t, err, imaging.ErrCorrupt)
	})

	t.Run("oversized payload", func(t *testing.T) {
		huge := make([]byte, imaging.MaxPhotoBytes+1)
		_, err := imaging.ValidatePhoto("huge.jpg", huge)
		assert.ErrorIs(t, err, imaging.ErrTooLarge)
	})
}

func TestThumbnail(t *testing.T) {
	decodeSize := func(t *testing.T, data []byte) (int, int) {
		t.Helper()
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		require.Equal(t, "jpeg", format, "thumbnails are always jpeg")
		return cfg.Width, cfg.Height
	}

	t.Run("landscape is scaled to the max edge", func(t *testing.T) {
		thumb, err := imaging.Thumbnail(encodePNG(t, 1600, 800))
		require.NoError(t, err)
		w, h := decodeSize(t, thumb)
		assert.Equal(t, 400, w)
		assert.Equal(t, 200, h, "aspect ratio is preserved")
	})

	t.Run("portrait is scaled by height", func(t *testing.T) {
		thumb, err := imaging.Thumbnail(encodePNG(t, 600, 1200))
		require.NoError(t, err)
		w, h := decodeSize(t, thumb)
		assert.Equal(t, 200, w)
		assert.Equal(t, 400, h)
	})

	t.Run("small images are not upscaled", func(t *testing.T) {
		thumb, err := imaging.Thumbnail(encodePNG(t, 320, 240))
		require.NoError(t, err)
		w, h := decodeSize(t, thumb)
		assert.Equal(t, 320, w)
		assert.Equal(t, 240, h)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := imaging.Thumbnail([]byte("definitely not an image"))
		assert.ErrorIs(t, err, imaging.ErrCorrupt)
	})
}
