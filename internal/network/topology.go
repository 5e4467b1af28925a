package network

import (
	"fmt"

	"github.com/born-ml/seqnet/internal/layer"
)

type edge struct {
	from, to layer.Kind
}

// adjacency lists every legal (predecessor, successor) pair.
var adjacency = map[edge]bool{
	{layer.KindInput1D, layer.KindDense}:   true,
	{layer.KindInput1D, layer.KindFlatten}: true,

	{layer.KindInput3D, layer.KindConv2D}:    true,
	{layer.KindInput3D, layer.KindMaxPool2D}: true,
	{layer.KindInput3D, layer.KindFlatten}:   true,

	{layer.KindDense, layer.KindDense}: true,

	{layer.KindFlatten, layer.KindDense}: true,

	{layer.KindConv2D, layer.KindConv2D}:    true,
	{layer.KindConv2D, layer.KindMaxPool2D}: true,
	{layer.KindConv2D, layer.KindFlatten}:   true,

	{layer.KindMaxPool2D, layer.KindConv2D}:    true,
	{layer.KindMaxPool2D, layer.KindMaxPool2D}: true,
	{layer.KindMaxPool2D, layer.KindFlatten}:   true,
}

// CanFollow reports whether a layer of kind next may directly follow a
// layer of kind prev.
func CanFollow(prev, next layer.Kind) bool {
	return adjacency[edge{prev, next}]
}

// validate checks the layer sequence grammar without touching any layer
// state.
func validate(layers []layer.Layer) error {
	if len(layers) < 2 {
		return fmt.Errorf("%w: need at least 2 layers, got %d", ErrInvalidTopology, len(layers))
	}
	for i, l := range layers {
		if l == nil {
			return fmt.Errorf("%w: layer %d is nil", ErrInvalidTopology, i)
		}
	}
	if !layers[0].Kind().IsInput() {
		return fmt.Errorf("%w: first layer %q is %s, want an input layer",
			ErrInvalidTopology, layers[0].Name(), layers[0].Kind())
	}
	for i := 1; i < len(layers); i++ {
		prev, next := layers[i-1].Kind(), layers[i].Kind()
		if !CanFollow(prev, next) {
			return fmt.Errorf("%w: %s (%q) cannot follow %s (%q) at position %d",
				ErrInvalidTopology, next, layers[i].Name(), prev, layers[i-1].Name(), i)
		}
	}
	switch last := layers[len(layers)-1]; last.Kind() {
	case layer.KindDense, layer.KindFlatten:
	default:
		return fmt.Errorf("%w: terminal layer %q is %s, want Dense or Flatten",
			ErrInvalidTopology, last.Name(), last.Kind())
	}
	return nil
}
