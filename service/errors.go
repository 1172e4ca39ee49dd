package service

import "errors"

var (
	ErrMissingImage   = errors.New("no image provided")
	ErrInvalidImage   = errors.New("invalid image")
	ErrInference      = errors.New("inference failed")
	ErrModelSignature = errors.New("unexpected model signature")
	ErrShapeMismatch  = errors.New("tensor shape does not match model input")
)
