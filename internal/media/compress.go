// Package media stores entity images: it recompresses them, uploads them to
// the media bucket with escalating compression between retries and records
// their metadata rows.
package media

import (
	"fmt"

	"github.com/h2non/bimg"
)

// Step is the encoder setting used by one upload attempt
type Step struct {
	Quality      int
	MaxDimension int
}

// DefaultSteps are used for attempts 1..3. Both fields strictly decrease.
var DefaultSteps = []Step{
	{Quality: 85, MaxDimension: 1920},
	{Quality: 70, MaxDimension: 1440},
	{Quality: 55, MaxDimension: 1024},
}

// Compressor re-encodes an image for one attempt
type Compressor interface {
	Compress(data []byte, step Step) ([]byte, error)
}

// BimgCompressor re-encodes to JPEG with libvips, strips metadata and bounds
// the longest side to the step's MaxDimension.
type BimgCompressor struct{}

// NewBimgCompressor creates a libvips-backed compressor
func NewBimgCompressor() *BimgCompressor {
	return &BimgCompressor{}
}

// Compress re-encodes data using step
func (BimgCompressor) Compress(data []byte, step Step) ([]byte, error) {
	img := bimg.NewImage(data)
	size, err := img.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to read image size: %w", err)
	}

	width, height := fitWithin(size.Width, size.Height, step.MaxDimension)
	options := bimg.Options{
		Quality:       step.Quality,
		Type:          bimg.JPEG,
		StripMetadata: true,
		Width:         width,
		Height:        height,
	}

	out, err := img.Process(options)
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}
	return out, nil
}

// fitWithin returns the resize target for an image whose longest side must not
// exceed limit. Only one dimension is set so the aspect ratio is kept; (0, 0)
// means no resize.
func fitWithin(width, height, limit int) (w, h int) {
	if limit <= 0 || (width <= limit && height <= limit) {
		return 0, 0
	}
	if width >= height {
		return limit, 0
	}
	return 0, limit
}
