// Package layer implements the closed set of layer variants a network is
// assembled from.
//
// A network is an ordered stack of layers. Every variant implements the same
// capability set:
//   - Init: allocate and shape parameters from the predecessor's output shape
//   - Forward: compute this layer's output from the predecessor's output
//   - Backward: compute this layer's input gradient and accumulate parameter gradients
//   - Update: apply one descent step with the given learning rate
//   - Info: describe the layer in one line
//
// The variant set is fixed: Input1D, Input3D, Dense, Flatten, Conv2D and
// MaxPool2D. Layer is sealed, so no other package can add a variant, and
// Kind is the discriminator callers switch on.
//
// Buffers:
//
// Each layer owns its last output and (for layers with a predecessor) its last
// input gradient. Both are overwritten by every pass. Parameter gradients are
// different: Backward adds into them and Update consumes and zeroes them, so a
// batch of samples can be pushed through Forward/Backward before one Update.
//
// A single layer instance must not run two passes concurrently. Parallel
// training works on replicas (see Clone).
package layer

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Errors returned by layer constructors and Init.
var (
	ErrShapeMismatch     = errors.New("layer: incompatible input shape")
	ErrUnknownActivation = errors.New("layer: unknown activation")
	ErrInvalidArgument   = errors.New("layer: invalid argument")
)

// Kind discriminates the layer variants.
type Kind uint8

// Layer variants.
const (
	KindInput1D Kind = iota + 1
	KindInput3D
	KindDense
	KindFlatten
	KindConv2D
	KindMaxPool2D
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindInput1D:
		return "Input1D"
	case KindInput3D:
		return "Input3D"
	case KindDense:
		return "Dense"
	case KindFlatten:
		return "Flatten"
	case KindConv2D:
		return "Conv2D"
	case KindMaxPool2D:
		return "MaxPool2D"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// IsInput reports whether k is one of the input variants.
func (k Kind) IsInput() bool {
	return k == KindInput1D || k == KindInput3D
}

// Layer is the capability set shared by every variant.
type Layer interface {
	// Kind returns the variant discriminator.
	Kind() Kind

	// Name returns the layer's name (e.g. "dense_1").
	Name() string

	// Init shapes the layer against its predecessor. It is called exactly
	// once, when the layer is placed into a network.
	Init(prev Layer) error

	// Forward recomputes Output from prev.Output().
	Forward(prev Layer)

	// Backward consumes the gradient of the loss with respect to this
	// layer's output, caches the gradient with respect to its input (see
	// Gradient) and accumulates parameter gradients.
	Backward(prev Layer, grad *tensor.Tensor)

	// Update applies one descent step to the parameters using the
	// accumulated gradients, then clears them.
	Update(learningRate float64)

	// Info returns a one-line description.
	Info() string

	// Output returns the buffer written by the last Forward.
	Output() *tensor.Tensor

	// Gradient returns the input gradient written by the last Backward,
	// or nil for input layers.
	Gradient() *tensor.Tensor

	// OutputShape returns the shape of Output. Valid after Init.
	OutputShape() tensor.Shape

	// Parameters returns the trainable parameters, nil if there are none.
	Parameters() []*Parameter

	// Clone returns a deep copy including parameters and buffers.
	Clone() Layer

	sealed()
}

// Input is implemented by the input variants.
type Input interface {
	Layer

	// Set loads a sample. The tensor's rank and size must match the
	// layer; a mismatch panics.
	Set(t *tensor.Tensor)
}

// Option configures a layer at construction.
type Option func(*base)

// Named sets the layer name.
func Named(name string) Option {
	return func(b *base) {
		b.name = name
	}
}

// WithSeed makes parameter initialization deterministic.
func WithSeed(seed int64) Option {
	return func(b *base) {
		//nolint:gosec // weight initialization is not security sensitive
		b.rng = rand.New(rand.NewSource(seed))
	}
}

// base holds what every variant shares.
type base struct {
	name string
	rng  *rand.Rand
}

func newBase(defaultName string, opts []Option) base {
	b := base{name: defaultName}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) Name() string {
	return b.name
}

func (b *base) uniform() float64 {
	if b.rng != nil {
		return b.rng.Float64()
	}
	//nolint:gosec // weight initialization is not security sensitive
	return rand.Float64()
}

func (b *base) sealed() {}

func (b base) clone() base {
	// Replicas are already initialized, they never draw from the source again.
	return base{name: b.name}
}
