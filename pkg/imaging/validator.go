package imaging

import (
	"bytes"
	"errors"
	"image"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Dish photos are the only uploads this service accepts, so the
// whitelist is images-only and deliberately strict.

var magicBytes = map[string][][]byte{
	".jpg":  {{0xFF, 0xD8, 0xFF}},
	".jpeg": {{0xFF, 0xD8, 0xFF}},
	".png":  {{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	".webp": {{0x52, 0x49, 0x46, 0x46}}, // RIFF header
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

const (
	// MaxPhotoBytes caps an upload at 10 MiB.
	MaxPhotoBytes = 10 << 20
	// Minimum usable dimensions for the photography pipeline.
	minWidth  = 480
	minHeight = 480
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image exceeds size limit")
	ErrTooSmall        = errors.New("image dimensions too small")
	ErrCorrupt         = errors.New("image data is corrupt or mislabeled")
)

// ValidationResult describes an accepted photo.
type ValidationResult struct {
	Extension string
	Format    string // decoded format name: jpeg, png, webp
	Width     int
	Height    int
}

// ValidatePhoto checks extension, magic bytes and a full header decode.
// Extension spoofing (a .png that is really something else) fails the
// magic-byte or decode step.
func ValidatePhoto(filename string, data []byte) (*ValidationResult, error) {
	if len(data) > MaxPhotoBytes {
		return nil, ErrTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, ErrUnsupportedType
	}

	sigs := magicBytes[ext]
	matched := false
	for _, sig := range sigs {
		if bytes.HasPrefix(data, sig) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrCorrupt
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrCorrupt
	}
	if cfg.Width < minWidth || cfg.Height < minHeight {
		return nil, ErrTooSmall
	}

	return &ValidationResult{
		Extension: ext,
		Format:    format,
		Width:     cfg.Width,
		Height:    cfg.Height,
	}, nil
}
