package service

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
)

// DecodeImage decodes any registered format. Failures wrap ErrInvalidImage.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return img, format, nil
}

// Preprocess converts img to grayscale, resizes it to 28x28 and scales
// intensities into [0, 1], laid out as (1, 28, 28, 1).
func Preprocess(img image.Image) (*Tensor, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrInvalidImage, b.Dx(), b.Dy())
	}

	gray := imaging.Grayscale(img)
	// alpha must not weight the resampling
	for i := 3; i < len(gray.Pix); i += 4 {
		gray.Pix[i] = 0xff
	}
	small := imaging.Resize(gray, ImageSize, ImageSize, imaging.CatmullRom)

	t := NewTensor()
	for y := range ImageSize {
		row := small.Pix[y*small.Stride:]
		for x := range ImageSize {
			t.Data[y*ImageSize+x] = float32(row[x*4]) / 255
		}
	}
	return t, nil
}

// ArgMax returns the index of the largest score, the lowest index on ties.
// NaN scores are skipped and never selected, even when one comes first;
// -1 means no usable score.
func ArgMax(scores []float32) int {
	best := -1
	for i, v := range scores {
		if math.IsNaN(float64(v)) {
			continue
		}
		if best < 0 || v > scores[best] {
			best = i
		}
	}
	return best
}
