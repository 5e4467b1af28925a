package layer

import (
	"fmt"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Flatten reshapes its predecessor's output into a vector in row-major
// (height, width, channels) order. It has no parameters.
type Flatten struct {
	base
	out  *tensor.Tensor
	grad *tensor.Tensor
}

// NewFlatten creates a Flatten layer.
func NewFlatten(opts ...Option) *Flatten {
	return &Flatten{base: newBase("flatten", opts)}
}

// Kind implements Layer.
func (l *Flatten) Kind() Kind { return KindFlatten }

// Init implements Layer.
func (l *Flatten) Init(prev Layer) error {
	shape := prev.OutputShape()
	if shape.Rank() == 0 {
		return fmt.Errorf("%w: %s cannot flatten a scalar", ErrShapeMismatch, l.name)
	}
	l.out = tensor.New(tensor.Shape{shape.NumElements()})
	l.grad = tensor.New(shape)
	return nil
}

// Forward implements Layer.
func (l *Flatten) Forward(prev Layer) {
	l.out.CopyFrom(prev.Output())
}

// Backward reshapes grad back to the predecessor's shape.
func (l *Flatten) Backward(_ Layer, grad *tensor.Tensor) {
	l.grad.CopyFrom(grad)
}

// Update implements Layer. Flatten has nothing to update.
func (l *Flatten) Update(float64) {}

// Output implements Layer.
func (l *Flatten) Output() *tensor.Tensor { return l.out }

// Gradient implements Layer.
func (l *Flatten) Gradient() *tensor.Tensor { return l.grad }

// OutputShape implements Layer.
func (l *Flatten) OutputShape() tensor.Shape {
	if l.out == nil {
		return nil
	}
	return l.out.Shape()
}

// Parameters implements Layer.
func (l *Flatten) Parameters() []*Parameter { return nil }

// Info implements Layer.
func (l *Flatten) Info() string {
	if l.grad == nil {
		return fmt.Sprintf("%s: Flatten", l.name)
	}
	return fmt.Sprintf("%s: Flatten(%v -> %v)", l.name, l.grad.Shape(), l.out.Shape())
}

// Clone implements Layer.
func (l *Flatten) Clone() Layer {
	c := &Flatten{base: l.base.clone()}
	if l.out != nil {
		c.out = l.out.Clone()
		c.grad = l.grad.Clone()
	}
	return c
}
