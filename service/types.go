package service

import "context"

const (
	ImageSize  = 28
	Channels   = 1
	NumClasses = 10
)

// InputShape is the NHWC layout the classifier consumes.
var InputShape = [4]int64{1, ImageSize, ImageSize, Channels}

type Tensor struct {
	Shape [4]int64
	Data  []float32
}

func NewTensor() *Tensor {
	return &Tensor{
		Shape: InputShape,
		Data:  make([]float32, ImageSize*ImageSize*Channels),
	}
}

// At returns the value at (batch, y, x, channel).
func (t *Tensor) At(n, y, x, c int) float32 {
	h, w, ch := int(t.Shape[1]), int(t.Shape[2]), int(t.Shape[3])
	return t.Data[((n*h+y)*w+x)*ch+c]
}

type Prediction struct {
	PredictedDigit int `json:"predicted_digit"`
}

// Predictor scores a normalized tensor, one score per class.
type Predictor interface {
	Predict(ctx context.Context, t *Tensor) ([]float32, error)
}
