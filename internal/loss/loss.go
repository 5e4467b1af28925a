// Package loss provides the loss functions a network backpropagates from.
package loss

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Loss scores a prediction against a target and seeds the backward pass.
type Loss interface {
	// Value returns the scalar loss of output against target.
	Value(target, output *tensor.Tensor) float64

	// Derivative returns dLoss/dOutput evaluated at (target, output).
	Derivative(target, output *tensor.Tensor) *tensor.Tensor
}

// Quadratic is the squared-error loss L = 1/2 * sum((output - target)^2).
//
// Its derivative with respect to the output is simply (output - target).
type Quadratic struct{}

// Value implements Loss.
func (Quadratic) Value(target, output *tensor.Tensor) float64 {
	checkLen(target, output)
	d := floats.Distance(output.Data(), target.Data(), 2)
	return 0.5 * d * d
}

// Derivative implements Loss.
func (Quadratic) Derivative(target, output *tensor.Tensor) *tensor.Tensor {
	checkLen(target, output)
	g := output.Clone()
	floats.Sub(g.Data(), target.Data())
	return g
}

func checkLen(target, output *tensor.Tensor) {
	if target.Len() != output.Len() {
		panic(fmt.Sprintf("loss: target has %d elements, output has %d", target.Len(), output.Len()))
	}
}
