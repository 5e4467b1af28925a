package network

import "errors"

// Errors returned while building or importing a network. All of them are
// fatal: no partially built network is ever returned alongside one.
var (
	// ErrInvalidTopology reports a layer sequence that cannot form a
	// network: fewer than two layers, no leading input layer, an illegal
	// adjacent pair or an unsupported terminal layer.
	ErrInvalidTopology = errors.New("network: invalid topology")

	// ErrUnsupportedShape reports a non-square kernel or pool window, or
	// unequal strides.
	ErrUnsupportedShape = errors.New("network: unsupported shape")

	// ErrUnsupportedLayerClass reports an imported layer class with no
	// matching variant.
	ErrUnsupportedLayerClass = errors.New("network: unsupported layer class")

	// ErrInternalMismatch reports disagreement between an imported layer
	// description and the layer constructed for it.
	ErrInternalMismatch = errors.New("network: internal layer mismatch")
)
