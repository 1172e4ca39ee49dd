package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

type ClassifierOptions struct {
	ModelPath      string
	PoolSize       int
	IntraOpThreads int
}

type session struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *session) destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// Classifier is the loaded model. ONNX Runtime sessions with bound tensors
// cannot Run concurrently, so requests borrow one from a fixed pool.
type Classifier struct {
	pool       chan *session
	sessions   []*session
	inputName  string
	outputName string
	closeOnce  sync.Once
}

// NewClassifier loads the model at opts.ModelPath. The ONNX Runtime
// environment must already be initialized.
func NewClassifier(opts ClassifierOptions) (*Classifier, error) {
	if opts.PoolSize < 1 {
		opts.PoolSize = 1
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("failed to stat model: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	outShape, err := checkSignature(inputs, outputs)
	if err != nil {
		return nil, err
	}

	c := &Classifier{
		pool:       make(chan *session, opts.PoolSize),
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
	}
	for range opts.PoolSize {
		s, err := c.newSession(opts, outShape)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.sessions = append(c.sessions, s)
		c.pool <- s
	}

	slog.Info("Model loaded",
		slog.String("path", opts.ModelPath),
		slog.String("input", c.inputName),
		slog.String("output", c.outputName),
		slog.Int("sessions", opts.PoolSize))
	return c, nil
}

func (c *Classifier) newSession(opts ClassifierOptions, outShape ort.Shape) (*session, error) {
	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer sessOpts.Destroy()
	if opts.IntraOpThreads > 0 {
		if err := sessOpts.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	s := &session{}
	s.input, err = ort.NewEmptyTensor[float32](ort.NewShape(InputShape[:]...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	s.output, err = ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	s.session, err = ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{c.inputName},
		[]string{c.outputName},
		[]ort.Value{s.input},
		[]ort.Value{s.output},
		sessOpts,
	)
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create ONNX Runtime session: %w", err)
	}
	return s, nil
}

// checkSignature verifies the model takes one float32 (N, 28, 28, 1) input,
// N fixed at 1 or dynamic, and yields NumClasses scores. It returns the
// concrete output shape to allocate.
func checkSignature(inputs, outputs []ort.InputOutputInfo) (ort.Shape, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%w: want 1 input, got %d", ErrModelSignature, len(inputs))
	}
	if len(outputs) < 1 {
		return nil, fmt.Errorf("%w: model has no outputs", ErrModelSignature)
	}

	in := inputs[0]
	if in.DataType != ort.TensorElementDataTypeFloat {
		return nil, fmt.Errorf("%w: input %q is %v, want float32", ErrModelSignature, in.Name, in.DataType)
	}
	if len(in.Dimensions) != len(InputShape) {
		return nil, fmt.Errorf("%w: input %q has shape %v, want %v", ErrModelSignature, in.Name, in.Dimensions, InputShape)
	}
	for i, d := range in.Dimensions {
		if d == InputShape[i] || (i == 0 && d < 0) {
			continue
		}
		return nil, fmt.Errorf("%w: input %q has shape %v, want %v", ErrModelSignature, in.Name, in.Dimensions, InputShape)
	}

	out := outputs[0]
	if out.DataType != ort.TensorElementDataTypeFloat {
		return nil, fmt.Errorf("%w: output %q is %v, want float32", ErrModelSignature, out.Name, out.DataType)
	}
	shape := make(ort.Shape, len(out.Dimensions))
	for i, d := range out.Dimensions {
		if d < 0 {
			d = 1
		}
		shape[i] = d
	}
	if len(shape) == 0 || shape.FlattenedSize() != NumClasses {
		return nil, fmt.Errorf("%w: output %q has shape %v, want %d classes", ErrModelSignature, out.Name, out.Dimensions, NumClasses)
	}
	return shape, nil
}

func (c *Classifier) Predict(ctx context.Context, t *Tensor) ([]float32, error) {
	if t.Shape != InputShape || len(t.Data) != ImageSize*ImageSize*Channels {
		return nil, fmt.Errorf("%w: got %v", ErrShapeMismatch, t.Shape)
	}

	var s *session
	select {
	case s = <-c.pool:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrInference, ctx.Err())
	}
	defer func() { c.pool <- s }()

	copy(s.input.GetData(), t.Data)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}

	logits := s.output.GetData()
	scores := make([]float32, len(logits))
	copy(scores, logits)
	return scores, nil
}

// Close waits for every borrowed session to come back to the pool, then
// destroys them all.
func (c *Classifier) Close() {
	c.closeOnce.Do(func() {
		for range c.sessions {
			s := <-c.pool
			s.destroy()
		}
		c.sessions = nil
	})
}
