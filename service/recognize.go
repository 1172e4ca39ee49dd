package service

import (
	"context"
	"fmt"
	"image"
)

// Recognize runs the full pipeline on a decoded image.
func Recognize(ctx context.Context, p Predictor, img image.Image) (*Prediction, error) {
	t, err := Preprocess(img)
	if err != nil {
		return nil, err
	}
	scores, err := p.Predict(ctx, t)
	if err != nil {
		return nil, err
	}
	if len(scores) != NumClasses {
		return nil, fmt.Errorf("%w: got %d scores, want %d", ErrInference, len(scores), NumClasses)
	}
	digit := ArgMax(scores)
	if digit < 0 {
		return nil, fmt.Errorf("%w: no finite scores", ErrInference)
	}
	return &Prediction{PredictedDigit: digit}, nil
}
