package imaging

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// thumbnailMaxEdge bounds the longest edge of generated thumbnails.
const thumbnailMaxEdge = 400

// Thumbnail downscales a photo for dashboard listings. Output is always
// JPEG regardless of the source format. Images already within bounds
// are re-encoded but not scaled.
func Thumbnail(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrCorrupt
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width > thumbnailMaxEdge || height > thumbnailMaxEdge {
		if width >= height {
			height = height * thumbnailMaxEdge / width
			width = thumbnailMaxEdge
		} else {
			width = width * thumbnailMaxEdge / height
			height = thumbnailMaxEdge
		}
		resized := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		img = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
