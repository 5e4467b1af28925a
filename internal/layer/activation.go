package layer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Activation is an element-wise (or, for softmax, vector-wise) nonlinearity
// applied after a layer's affine step.
type Activation struct {
	name string
	fn   func(z float64) float64
	// dfn returns d a / d z given the pre-activation z and activation a.
	dfn func(z, a float64) float64
}

// Activation names understood by ParseActivation.
const (
	Linear  = "linear"
	ReLU    = "relu"
	Sigmoid = "sigmoid"
	Tanh    = "tanh"
	Softmax = "softmax"
)

// ParseActivation resolves an activation by name. The empty string means linear.
func ParseActivation(name string) (Activation, error) {
	switch name {
	case "", Linear:
		return Activation{
			name: Linear,
			fn:   func(z float64) float64 { return z },
			dfn:  func(_, _ float64) float64 { return 1 },
		}, nil
	case ReLU:
		return Activation{
			name: ReLU,
			fn:   func(z float64) float64 { return math.Max(0, z) },
			dfn: func(z, _ float64) float64 {
				if z > 0 {
					return 1
				}
				return 0
			},
		}, nil
	case Sigmoid:
		return Activation{
			name: Sigmoid,
			fn:   func(z float64) float64 { return 1 / (1 + math.Exp(-z)) },
			dfn:  func(_, a float64) float64 { return a * (1 - a) },
		}, nil
	case Tanh:
		return Activation{
			name: Tanh,
			fn:   math.Tanh,
			dfn:  func(_, a float64) float64 { return 1 - a*a },
		}, nil
	case Softmax:
		return Activation{name: Softmax}, nil
	default:
		return Activation{}, fmt.Errorf("%w: %q", ErrUnknownActivation, name)
	}
}

// Name returns the canonical activation name.
func (a Activation) Name() string {
	return a.name
}

// ElementWise reports whether the activation acts on each element
// independently. Only softmax does not.
func (a Activation) ElementWise() bool {
	return a.name != Softmax
}

// Apply writes act(z) into out.
func (a Activation) Apply(z, out []float64) {
	if a.name == Softmax {
		softmax(z, out)
		return
	}
	for i, v := range z {
		out[i] = a.fn(v)
	}
}

// Backprop writes dL/dz into delta given dL/da in grad.
// z and out are the values cached by the matching Apply call.
func (a Activation) Backprop(z, out, grad, delta []float64) {
	if a.name == Softmax {
		// Jacobian-vector product: delta_i = s_i * (g_i - sum_j g_j s_j).
		dot := floats.Dot(grad, out)
		for i, s := range out {
			delta[i] = s * (grad[i] - dot)
		}
		return
	}
	for i := range z {
		delta[i] = grad[i] * a.dfn(z[i], out[i])
	}
}

func softmax(z, out []float64) {
	m := floats.Max(z)
	var sum float64
	for i, v := range z {
		e := math.Exp(v - m)
		out[i] = e
		sum += e
	}
	floats.Scale(1/sum, out)
}
