// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/seqnet/internal/layer"
	"github.com/born-ml/seqnet/internal/loss"
	"github.com/born-ml/seqnet/internal/network"
)

// Layer is one stage of a network. The set of implementations is closed.
type Layer = layer.Layer

// Input is a layer that accepts samples.
type Input = layer.Input

// Kind identifies a layer variant.
type Kind = layer.Kind

// Layer kinds.
const (
	KindInput1D   = layer.KindInput1D
	KindInput3D   = layer.KindInput3D
	KindDense     = layer.KindDense
	KindFlatten   = layer.KindFlatten
	KindConv2D    = layer.KindConv2D
	KindMaxPool2D = layer.KindMaxPool2D
)

// Activation names.
const (
	Linear  = layer.Linear
	ReLU    = layer.ReLU
	Sigmoid = layer.Sigmoid
	Tanh    = layer.Tanh
	Softmax = layer.Softmax
)

// Layer variants.
type (
	Input1D   = layer.Input1D
	Input3D   = layer.Input3D
	Dense     = layer.Dense
	Flatten   = layer.Flatten
	Conv2D    = layer.Conv2D
	MaxPool2D = layer.MaxPool2D
)

// Parameter is a trainable matrix with its accumulated gradient.
type Parameter = layer.Parameter

// Option configures a layer at construction.
type Option = layer.Option

// Named sets a layer's name.
func Named(name string) Option { return layer.Named(name) }

// WithSeed makes a layer's weight initialization deterministic.
func WithSeed(seed int64) Option { return layer.WithSeed(seed) }

// NewInput1D creates an input layer for vectors of length n.
func NewInput1D(n int, opts ...Option) (*Input1D, error) {
	return layer.NewInput1D(n, opts...)
}

// NewInput3D creates an input layer for (height, width, channels) volumes.
func NewInput3D(height, width, channels int, opts ...Option) (*Input3D, error) {
	return layer.NewInput3D(height, width, channels, opts...)
}

// NewDense creates a fully connected layer.
func NewDense(units int, activation string, opts ...Option) (*Dense, error) {
	return layer.NewDense(units, activation, opts...)
}

// NewFlatten creates a layer that flattens a volume into a vector.
func NewFlatten(opts ...Option) *Flatten {
	return layer.NewFlatten(opts...)
}

// NewConv2D creates a square-kernel, stride-1, valid-padding convolution.
func NewConv2D(filters, kernelSize int, activation string, opts ...Option) (*Conv2D, error) {
	return layer.NewConv2D(filters, kernelSize, activation, opts...)
}

// NewMaxPool2D creates a square max-pooling layer.
func NewMaxPool2D(poolSize, stride int, opts ...Option) (*MaxPool2D, error) {
	return layer.NewMaxPool2D(poolSize, stride, opts...)
}

// Network is an ordered, validated stack of layers.
type Network = network.Network

// NetworkOption configures a Network at construction.
type NetworkOption = network.Option

// Loss seeds the backward pass.
type Loss = loss.Loss

// Quadratic is the default loss, 0.5 * ||output - target||^2.
type Quadratic = loss.Quadratic

// Construction and import errors.
var (
	ErrInvalidTopology       = network.ErrInvalidTopology
	ErrUnsupportedShape      = network.ErrUnsupportedShape
	ErrUnsupportedLayerClass = network.ErrUnsupportedLayerClass
	ErrInternalMismatch      = network.ErrInternalMismatch
	ErrShapeMismatch         = layer.ErrShapeMismatch
	ErrUnknownActivation     = layer.ErrUnknownActivation
)

// FromLayers validates layers and initializes each against its predecessor.
func FromLayers(layers []Layer, opts ...NetworkOption) (*Network, error) {
	return network.FromLayers(layers, opts...)
}

// WithLoss replaces the default quadratic loss.
func WithLoss(l Loss) NetworkOption {
	return network.WithLoss(l)
}

// CanFollow reports whether a layer of kind next may follow one of kind prev.
func CanFollow(prev, next Kind) bool {
	return network.CanFollow(prev, next)
}
