package layer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Parameter represents a trainable parameter of a layer.
//
// Parameters pair a value matrix with a gradient matrix of the same
// dimensions. Backward passes add into the gradient; Step consumes it.
//
// Example:
//
//	w := layer.NewParameter("kernel", mat.NewDense(4, 3, nil))
//	w.Grad().Set(0, 0, 1)
//	w.Step(0.1) // w[0,0] -= 0.1, gradient cleared
type Parameter struct {
	name  string     // Parameter name (e.g., "kernel", "bias")
	value *mat.Dense // The parameter matrix
	grad  *mat.Dense // Accumulated gradient, same dims as value
}

// NewParameter creates a new trainable parameter with a zero gradient.
//
// The value matrix is owned by the parameter from now on.
func NewParameter(name string, value *mat.Dense) *Parameter {
	r, c := value.Dims()
	return &Parameter{
		name:  name,
		value: value,
		grad:  mat.NewDense(r, c, nil),
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Value returns the parameter matrix.
func (p *Parameter) Value() *mat.Dense {
	return p.value
}

// Grad returns the accumulated gradient matrix.
func (p *Parameter) Grad() *mat.Dense {
	return p.grad
}

// Dims returns the parameter dimensions.
func (p *Parameter) Dims() (r, c int) {
	return p.value.Dims()
}

// Data returns the contiguous row-major storage of the value.
func (p *Parameter) Data() []float64 {
	return p.value.RawMatrix().Data
}

// GradData returns the contiguous row-major storage of the gradient.
func (p *Parameter) GradData() []float64 {
	return p.grad.RawMatrix().Data
}

// Load copies src into the value. Dimensions must match.
func (p *Parameter) Load(src mat.Matrix) error {
	r, c := p.value.Dims()
	sr, sc := src.Dims()
	if r != sr || c != sc {
		return fmt.Errorf("%w: parameter %q is %dx%d, got %dx%d", ErrShapeMismatch, p.name, r, c, sr, sc)
	}
	p.value.Copy(src)
	return nil
}

// Step performs value -= lr * grad and clears the gradient.
func (p *Parameter) Step(lr float64) {
	floats.AddScaled(p.Data(), -lr, p.GradData())
	p.ZeroGrad()
}

// ZeroGrad clears the accumulated gradient.
func (p *Parameter) ZeroGrad() {
	p.grad.Zero()
}

// clone returns a deep copy of value and gradient.
func (p *Parameter) clone() *Parameter {
	return &Parameter{
		name:  p.name,
		value: mat.DenseCopyOf(p.value),
		grad:  mat.DenseCopyOf(p.grad),
	}
}

func stepAll(params []*Parameter, lr float64) {
	for _, p := range params {
		p.Step(lr)
	}
}
