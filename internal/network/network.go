// Package network assembles layers into a trainable feed-forward network.
//
// A Network is an ordered stack of at least two layers whose first element is
// an input layer. Construction validates the stack against a fixed adjacency
// table and then initializes every layer against its predecessor, fixing all
// parameter shapes in one pass.
//
// Passes:
//
//	net.Forward(x)     // every layer recomputes its output, input to output
//	net.Backward(y)    // every layer but the input computes its gradient, output to input
//	net.Update(lr)     // every layer applies its accumulated parameter gradients
//
// Backward is only meaningful right after a Forward on the same sample.
// A Network is not safe for concurrent use; parallel training uses one Clone
// per worker.
package network

import (
	"fmt"
	"io"
	"strings"

	"github.com/born-ml/seqnet/internal/layer"
	"github.com/born-ml/seqnet/internal/loss"
	"github.com/born-ml/seqnet/internal/tensor"
)

// Network owns an ordered sequence of layers.
type Network struct {
	layers []layer.Layer
	input  layer.Input
	loss   loss.Loss
}

// Option configures a Network at construction.
type Option func(*Network)

// WithLoss replaces the default quadratic loss used to seed Backward.
func WithLoss(l loss.Loss) Option {
	return func(n *Network) {
		n.loss = l
	}
}

// FromLayers builds a network from an ordered layer sequence.
//
// The sequence must hold at least two layers, start with an input layer,
// respect the adjacency table (see CanFollow) and end in a Dense or Flatten
// layer; otherwise ErrInvalidTopology is returned. Layers 1..n-1 are then
// initialized against their predecessor in order. Any failure aborts the
// construction and no network is returned.
//
// The network takes ownership of the layers.
func FromLayers(layers []layer.Layer, opts ...Option) (*Network, error) {
	if err := validate(layers); err != nil {
		return nil, err
	}
	input, ok := layers[0].(layer.Input)
	if !ok {
		return nil, fmt.Errorf("%w: first layer %q cannot accept samples", ErrInvalidTopology, layers[0].Name())
	}

	n := &Network{
		layers: append([]layer.Layer(nil), layers...),
		input:  input,
		loss:   loss.Quadratic{},
	}
	for _, opt := range opts {
		opt(n)
	}

	for i := 1; i < len(n.layers); i++ {
		if err := n.layers[i].Init(n.layers[i-1]); err != nil {
			return nil, fmt.Errorf("init layer %d (%s): %w", i, n.layers[i].Name(), err)
		}
	}
	return n, nil
}

// Len returns the number of layers.
func (n *Network) Len() int {
	return len(n.layers)
}

// Layer returns the layer at index i.
//
// Panics if index is out of bounds.
func (n *Network) Layer(i int) layer.Layer {
	if i < 0 || i >= len(n.layers) {
		panic(fmt.Sprintf("Network.Layer: index %d out of bounds [0, %d)", i, len(n.layers)))
	}
	return n.layers[i]
}

// Layers returns the layer sequence. The slice must not be modified.
func (n *Network) Layers() []layer.Layer {
	return n.layers
}

// Loss returns the loss function that seeds Backward.
func (n *Network) Loss() loss.Loss {
	return n.loss
}

// InputShape returns the shape samples passed to Forward must have.
func (n *Network) InputShape() tensor.Shape {
	return n.input.OutputShape()
}

// OutputShape returns the shape of the terminal layer's output.
func (n *Network) OutputShape() tensor.Shape {
	return n.layers[len(n.layers)-1].OutputShape()
}

// Forward loads input into the input layer and recomputes every layer's
// output in order.
//
// Panics if input's shape does not match the input layer.
func (n *Network) Forward(input *tensor.Tensor) {
	n.input.Set(input)
	for i := 1; i < len(n.layers); i++ {
		n.layers[i].Forward(n.layers[i-1])
	}
}

// Backward propagates the loss gradient for target from the terminal layer
// down to layer 1, accumulating parameter gradients on the way.
//
// The terminal layer is seeded with the loss derivative at (target, output);
// every earlier layer consumes the input gradient cached by its successor.
// Call Backward once per Forward.
func (n *Network) Backward(target *tensor.Tensor) {
	last := len(n.layers) - 1
	for i := last; i >= 1; i-- {
		var grad *tensor.Tensor
		if i == last {
			grad = n.loss.Derivative(target, n.layers[i].Output())
		} else {
			grad = n.layers[i+1].Gradient()
		}
		n.layers[i].Backward(n.layers[i-1], grad)
	}
}

// Output runs a forward pass and returns a copy of the terminal layer's
// output.
func (n *Network) Output(input *tensor.Tensor) *tensor.Tensor {
	n.Forward(input)
	return n.layers[len(n.layers)-1].Output().Clone()
}

// LossValue runs a forward pass and returns the loss against target.
func (n *Network) LossValue(input, target *tensor.Tensor) float64 {
	n.Forward(input)
	return n.loss.Value(target, n.layers[len(n.layers)-1].Output())
}

// Accumulate runs Forward on input and Backward against target, adding the
// sample's parameter gradients to those already accumulated. It returns the
// sample's loss as seen by the forward pass.
func (n *Network) Accumulate(input, target *tensor.Tensor) float64 {
	n.Forward(input)
	v := n.loss.Value(target, n.layers[len(n.layers)-1].Output())
	n.Backward(target)
	return v
}

// ZeroGrad discards accumulated parameter gradients without updating.
func (n *Network) ZeroGrad() {
	for _, p := range n.Parameters() {
		p.ZeroGrad()
	}
}

// Update passes learningRate to every layer's Update.
func (n *Network) Update(learningRate float64) {
	for _, l := range n.layers {
		l.Update(learningRate)
	}
}

// Parameters returns the trainable parameters of every layer, in layer order.
func (n *Network) Parameters() []*layer.Parameter {
	var params []*layer.Parameter
	for _, l := range n.layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// NumParameters returns the total number of trainable scalars.
func (n *Network) NumParameters() int {
	total := 0
	for _, p := range n.Parameters() {
		r, c := p.Dims()
		total += r * c
	}
	return total
}

// Clone returns a deep copy sharing no state with n.
func (n *Network) Clone() *Network {
	layers := make([]layer.Layer, len(n.layers))
	for i, l := range n.layers {
		layers[i] = l.Clone()
	}
	return &Network{
		layers: layers,
		input:  layers[0].(layer.Input),
		loss:   n.loss,
	}
}

// CopyParameters overwrites n's parameter values with src's. Both networks
// must have the same architecture.
func (n *Network) CopyParameters(src *Network) error {
	dst, from := n.Parameters(), src.Parameters()
	if len(dst) != len(from) {
		return fmt.Errorf("%w: %d parameters vs %d", ErrInternalMismatch, len(dst), len(from))
	}
	for i, p := range dst {
		if err := p.Load(from[i].Value()); err != nil {
			return fmt.Errorf("parameter %d: %w", i, err)
		}
	}
	return nil
}

// Info writes one line per layer, followed by the parameter total.
func (n *Network) Info(w io.Writer) error {
	for i, l := range n.layers {
		if _, err := fmt.Fprintf(w, "[%d] %s\n", i, l.Info()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "trainable parameters: %d\n", n.NumParameters())
	return err
}

// String implements fmt.Stringer.
func (n *Network) String() string {
	var sb strings.Builder
	_ = n.Info(&sb)
	return sb.String()
}
