package layer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Dense implements a fully connected layer.
//
// Performs the transformation: a = act(W x + b)
// where:
//   - x is the predecessor's output vector with length in
//   - W is the kernel matrix with shape [units, in]
//   - b is the bias vector with shape [units, 1]
//   - a is the output vector with length units
//
// The kernel is created by Init, once the predecessor's output length is
// known, with Xavier/Glorot uniform values. Biases start at zero.
type Dense struct {
	base
	units int
	act   Activation

	kernel *Parameter // [units, in]
	bias   *Parameter // [units, 1]

	z     []float64      // pre-activation of the last Forward
	delta []float64      // dL/dz of the last Backward
	out   *tensor.Tensor // (units,)
	grad  *tensor.Tensor // (in,)
}

// NewDense creates a Dense layer with the given unit count and activation name.
func NewDense(units int, activation string, opts ...Option) (*Dense, error) {
	if units <= 0 {
		return nil, fmt.Errorf("%w: dense units %d", ErrInvalidArgument, units)
	}
	act, err := ParseActivation(activation)
	if err != nil {
		return nil, err
	}
	return &Dense{
		base:  newBase("dense", opts),
		units: units,
		act:   act,
		z:     make([]float64, units),
		delta: make([]float64, units),
		out:   tensor.New(tensor.Shape{units}),
	}, nil
}

// Kind implements Layer.
func (l *Dense) Kind() Kind { return KindDense }

// Units returns the output length.
func (l *Dense) Units() int { return l.units }

// Activation returns the activation applied after the affine step.
func (l *Dense) Activation() Activation { return l.act }

// Kernel returns the [units, in] weight parameter. Nil before Init.
func (l *Dense) Kernel() *Parameter { return l.kernel }

// Bias returns the [units, 1] bias parameter. Nil before Init.
func (l *Dense) Bias() *Parameter { return l.bias }

// Init allocates the kernel against prev's output length.
func (l *Dense) Init(prev Layer) error {
	shape := prev.OutputShape()
	if shape.Rank() != 1 {
		return fmt.Errorf("%w: %s expects a vector input, %s produces %v", ErrShapeMismatch, l.name, prev.Name(), shape)
	}
	in := shape[0]
	l.kernel = NewParameter("kernel", l.xavier(l.units, in, in, l.units))
	l.bias = NewParameter("bias", mat.NewDense(l.units, 1, nil))
	l.grad = tensor.New(tensor.Shape{in})
	return nil
}

// Forward computes act(W x + b) from prev's output.
//
// Panics if prev's output length differs from the length seen by Init.
func (l *Dense) Forward(prev Layer) {
	x := prev.Output()
	if x.Len() != l.grad.Len() {
		panic(fmt.Sprintf("Dense.Forward: expected input with %d features, got %d", l.grad.Len(), x.Len()))
	}

	z := mat.NewVecDense(l.units, l.z)
	z.MulVec(l.kernel.Value(), x.AsVec())
	floats.Add(l.z, l.bias.Data())

	l.act.Apply(l.z, l.out.Data())
}

// Backward accumulates dW += delta x^T and db += delta, and caches W^T delta
// as the input gradient, where delta = dL/dz.
func (l *Dense) Backward(prev Layer, grad *tensor.Tensor) {
	if grad.Len() != l.units {
		panic(fmt.Sprintf("Dense.Backward: expected gradient with %d elements, got %d", l.units, grad.Len()))
	}
	l.act.Backprop(l.z, l.out.Data(), grad.Data(), l.delta)

	delta := mat.NewVecDense(l.units, l.delta)
	x := prev.Output().AsVec()

	kg := l.kernel.Grad()
	kg.RankOne(kg, 1, delta, x)
	floats.Add(l.bias.GradData(), l.delta)

	l.grad.AsVec().MulVec(l.kernel.Value().T(), delta)
}

// Update implements Layer.
func (l *Dense) Update(learningRate float64) {
	stepAll(l.Parameters(), learningRate)
}

// Output implements Layer.
func (l *Dense) Output() *tensor.Tensor { return l.out }

// Gradient implements Layer.
func (l *Dense) Gradient() *tensor.Tensor { return l.grad }

// OutputShape implements Layer.
func (l *Dense) OutputShape() tensor.Shape { return l.out.Shape() }

// Parameters returns [kernel, bias], or nil before Init.
func (l *Dense) Parameters() []*Parameter {
	if l.kernel == nil {
		return nil
	}
	return []*Parameter{l.kernel, l.bias}
}

// Info implements Layer.
func (l *Dense) Info() string {
	in := 0
	if l.grad != nil {
		in = l.grad.Len()
	}
	return fmt.Sprintf("%s: Dense(%d -> %d, activation=%s, params=%d)",
		l.name, in, l.units, l.act.Name(), in*l.units+l.units)
}

// Clone implements Layer.
func (l *Dense) Clone() Layer {
	c := &Dense{
		base:  l.base.clone(),
		units: l.units,
		act:   l.act,
		z:     append([]float64(nil), l.z...),
		delta: append([]float64(nil), l.delta...),
		out:   l.out.Clone(),
	}
	if l.kernel != nil {
		c.kernel = l.kernel.clone()
		c.bias = l.bias.clone()
		c.grad = l.grad.Clone()
	}
	return c
}
