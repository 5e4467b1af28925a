package layer

import (
	"fmt"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Input1D is the entry point for feature vectors of a fixed length.
type Input1D struct {
	base
	out *tensor.Tensor
}

// NewInput1D creates an input layer for vectors of length n.
func NewInput1D(n int, opts ...Option) (*Input1D, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: input length %d", ErrInvalidArgument, n)
	}
	return &Input1D{
		base: newBase("input", opts),
		out:  tensor.New(tensor.Shape{n}),
	}, nil
}

// Set copies t into the layer's output buffer.
//
// Panics if t is not a vector of the configured length.
func (l *Input1D) Set(t *tensor.Tensor) {
	if t.Rank() != 1 || t.Len() != l.out.Len() {
		panic(fmt.Sprintf("Input1D.Set: expected vector %v, got shape %v", l.out.Shape(), t.Shape()))
	}
	l.out.CopyFrom(t)
}

func (l *Input1D) Kind() Kind                     { return KindInput1D }
func (l *Input1D) Init(Layer) error               { return nil }
func (l *Input1D) Forward(Layer)                  {}
func (l *Input1D) Backward(Layer, *tensor.Tensor) {}
func (l *Input1D) Update(float64)                 {}
func (l *Input1D) Output() *tensor.Tensor         { return l.out }
func (l *Input1D) Gradient() *tensor.Tensor       { return nil }
func (l *Input1D) OutputShape() tensor.Shape      { return l.out.Shape() }
func (l *Input1D) Parameters() []*Parameter       { return nil }

// Info implements Layer.
func (l *Input1D) Info() string {
	return fmt.Sprintf("%s: Input1D%v", l.name, l.out.Shape())
}

// Clone implements Layer.
func (l *Input1D) Clone() Layer {
	return &Input1D{base: l.base.clone(), out: l.out.Clone()}
}

// Input3D is the entry point for (height, width, channels) volumes.
type Input3D struct {
	base
	out *tensor.Tensor
}

// NewInput3D creates an input layer for volumes of the given dimensions.
func NewInput3D(height, width, channels int, opts ...Option) (*Input3D, error) {
	shape := tensor.Shape{height, width, channels}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("%w: input shape %v: %v", ErrInvalidArgument, shape, err)
	}
	return &Input3D{
		base: newBase("input", opts),
		out:  tensor.New(shape),
	}, nil
}

// Set copies t into the layer's output buffer.
//
// Panics if t's shape differs from the configured volume.
func (l *Input3D) Set(t *tensor.Tensor) {
	if !t.Shape().Equal(l.out.Shape()) {
		panic(fmt.Sprintf("Input3D.Set: expected volume %v, got shape %v", l.out.Shape(), t.Shape()))
	}
	l.out.CopyFrom(t)
}

func (l *Input3D) Kind() Kind                     { return KindInput3D }
func (l *Input3D) Init(Layer) error               { return nil }
func (l *Input3D) Forward(Layer)                  {}
func (l *Input3D) Backward(Layer, *tensor.Tensor) {}
func (l *Input3D) Update(float64)                 {}
func (l *Input3D) Output() *tensor.Tensor         { return l.out }
func (l *Input3D) Gradient() *tensor.Tensor       { return nil }
func (l *Input3D) OutputShape() tensor.Shape      { return l.out.Shape() }
func (l *Input3D) Parameters() []*Parameter       { return nil }

// Info implements Layer.
func (l *Input3D) Info() string {
	return fmt.Sprintf("%s: Input3D%v", l.name, l.out.Shape())
}

// Clone implements Layer.
func (l *Input3D) Clone() Layer {
	return &Input3D{base: l.base.clone(), out: l.out.Clone()}
}
