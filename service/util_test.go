package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func uniform(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func noise(w, h int, seed uint64) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.IntN(256))
	}
	return img
}

func assertShapeAndRange(t *testing.T, tensor *Tensor) {
	t.Helper()
	assert.Equal(t, [4]int64{1, 28, 28, 1}, tensor.Shape)
	require.Len(t, tensor.Data, 28*28)
	for i, v := range tensor.Data {
		if v < 0 || v > 1 || math.IsNaN(float64(v)) {
			t.Fatalf("value %d out of range: %v", i, v)
		}
	}
}

func TestPreprocessShapeAndRange(t *testing.T) {
	cases := map[string]image.Image{
		"noise 300x200":   noise(300, 200, 1),
		"noise 17x91":     noise(17, 91, 2),
		"single pixel":    uniform(1, 1, color.White),
		"already 28x28":   noise(28, 28, 3),
		"gray16":          image.NewGray16(image.Rect(0, 0, 40, 40)),
		"paletted":        image.NewPaletted(image.Rect(0, 0, 12, 12), color.Palette{color.Black, color.White}),
		"offset subimage": noise(100, 100, 4).SubImage(image.Rect(30, 40, 90, 95)),
	}
	for name, img := range cases {
		t.Run(name, func(t *testing.T) {
			tensor, err := Preprocess(img)
			require.NoError(t, err)
			assertShapeAndRange(t, tensor)
		})
	}
}

func TestPreprocessDeterministic(t *testing.T) {
	img := noise(123, 77, 42)
	a, err := Preprocess(img)
	require.NoError(t, err)
	b, err := Preprocess(img)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestPreprocessUniformColors(t *testing.T) {
	cases := []struct {
		name string
		c    color.Color
		want float32
	}{
		{"white", color.White, 1},
		{"black", color.Black, 0},
		{"red uses luminance", color.RGBA{R: 255, A: 255}, 76.0 / 255},
		{"transparent", color.RGBA{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tensor, err := Preprocess(uniform(50, 30, tc.c))
			require.NoError(t, err)
			for _, v := range tensor.Data {
				assert.InDelta(t, tc.want, v, 1.0/255)
			}
		})
	}
}

func TestPreprocessKeepsLayout(t *testing.T) {
	img := uniform(56, 28, color.Black)
	for y := range 28 {
		for x := 28; x < 56; x++ {
			img.Set(x, y, color.White)
		}
	}
	tensor, err := Preprocess(img)
	require.NoError(t, err)

	assert.Less(t, tensor.At(0, 14, 0, 0), float32(0.1))
	assert.Greater(t, tensor.At(0, 14, 27, 0), float32(0.9))
}

func TestPreprocessEmptyImage(t *testing.T) {
	_, err := Preprocess(image.NewRGBA(image.Rectangle{}))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestDecodeImage(t *testing.T) {
	img := noise(10, 10, 7)

	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))
	decoded, format, err := DecodeImage(&pngBuf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, img))
	_, format, err = DecodeImage(&bmpBuf)
	require.NoError(t, err)
	assert.Equal(t, "bmp", format)
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	_, _, err := DecodeImage(bytes.NewReader([]byte("definitely not an image")))
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, _, err = DecodeImage(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestArgMax(t *testing.T) {
	nan := float32(math.NaN())
	cases := []struct {
		name   string
		scores []float32
		want   int
	}{
		{"single max", []float32{0.1, 0.7, 0.2}, 1},
		{"tie picks lowest", []float32{0.2, 0.4, 0.4, 0.1}, 1},
		{"all equal", []float32{0.5, 0.5, 0.5}, 0},
		{"negative logits", []float32{-3, -1, -2}, 1},
		{"last wins", []float32{0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, 9},
		{"nan skipped", []float32{nan, 0.1, 0.3}, 2},
		{"all nan", []float32{nan, nan}, -1},
		{"empty", nil, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ArgMax(tc.scores))
		})
	}
}
