// Package importer builds networks from external model descriptions and
// writes them back.
//
// A model file lists its layers as descriptors. Each descriptor is turned
// into the matching layer, the layers are assembled with network.FromLayers,
// and the stored kernels and biases are loaded into the trainable layers.
// Kernels are stored input-major ([in, units] for Dense, [k, k, channels,
// filters] for Conv2D) and are transposed on load into the output-major
// layout the layers use.
package importer

import (
	"fmt"

	"github.com/born-ml/seqnet/internal/layer"
	"github.com/born-ml/seqnet/internal/modelfile"
	"github.com/born-ml/seqnet/internal/network"
)

// Descriptor describes one layer of an external model.
type Descriptor struct {
	Class      string
	Name       string
	Units      int
	Shape      []int
	Activation string
	KernelSize []int
	Filters    int
	PoolSize   []int
	Strides    []int
	Padding    string
}

// Class tags accepted by Build. Aliases map to the same variant.
const (
	classInput        = "InputLayer"
	classInputAlias   = "Input"
	classDense        = "Dense"
	classFlatten      = "Flatten"
	classConv2D       = "Conv2D"
	classMaxPool      = "MaxPooling2D"
	classMaxPoolAlias = "MaxPool2D"
)

// paddingValid is the only padding mode the spatial layers implement.
const paddingValid = "valid"

// Build constructs the layer variant matching d's class tag.
func Build(d Descriptor) (layer.Layer, error) {
	var opts []layer.Option
	if d.Name != "" {
		opts = append(opts, layer.Named(d.Name))
	}

	switch d.Class {
	case classInput, classInputAlias:
		switch len(d.Shape) {
		case 1:
			return built(layer.NewInput1D(d.Shape[0], opts...))
		case 3:
			return built(layer.NewInput3D(d.Shape[0], d.Shape[1], d.Shape[2], opts...))
		default:
			return nil, fmt.Errorf("%w: input %q has shape %v, want 1 or 3 dimensions",
				network.ErrUnsupportedShape, d.Name, d.Shape)
		}

	case classDense:
		return built(layer.NewDense(d.Units, d.Activation, opts...))

	case classFlatten:
		return layer.NewFlatten(opts...), nil

	case classConv2D:
		k, ok := square(d.KernelSize)
		if !ok {
			return nil, fmt.Errorf("%w: conv %q kernel %v is not square", network.ErrUnsupportedShape, d.Name, d.KernelSize)
		}
		if d.Padding != "" && d.Padding != paddingValid {
			return nil, fmt.Errorf("%w: conv %q padding %q, only %q is supported", network.ErrUnsupportedShape, d.Name, d.Padding, paddingValid)
		}
		if s, ok := square(d.Strides); len(d.Strides) > 0 && (!ok || s != 1) {
			return nil, fmt.Errorf("%w: conv %q strides %v, only 1 is supported", network.ErrUnsupportedShape, d.Name, d.Strides)
		}
		return built(layer.NewConv2D(d.Filters, k, d.Activation, opts...))

	case classMaxPool, classMaxPoolAlias:
		p, ok := square(d.PoolSize)
		if !ok {
			return nil, fmt.Errorf("%w: pool %q size %v is not square", network.ErrUnsupportedShape, d.Name, d.PoolSize)
		}
		if d.Padding != "" && d.Padding != paddingValid {
			return nil, fmt.Errorf("%w: pool %q padding %q, only %q is supported", network.ErrUnsupportedShape, d.Name, d.Padding, paddingValid)
		}
		stride := p
		if len(d.Strides) > 0 {
			if stride, ok = square(d.Strides); !ok {
				return nil, fmt.Errorf("%w: pool %q strides %v differ", network.ErrUnsupportedShape, d.Name, d.Strides)
			}
		}
		return built(layer.NewMaxPool2D(p, stride, opts...))

	default:
		return nil, fmt.Errorf("%w: %q (layer %q)", network.ErrUnsupportedLayerClass, d.Class, d.Name)
	}
}

// built drops the typed nil a failed constructor returns.
func built(l layer.Layer, err error) (layer.Layer, error) {
	if err != nil {
		return nil, err
	}
	return l, nil
}

// square returns the common value of a one- or two-element size tuple.
func square(dims []int) (int, bool) {
	switch len(dims) {
	case 1:
		return dims[0], true
	case 2:
		return dims[0], dims[0] == dims[1]
	default:
		return 0, false
	}
}

// Descriptors converts a stored model config into descriptors.
//
// A first layer that is not an input layer but declares an input shape gets
// an implicit input descriptor in front of it.
func Descriptors(mc *modelfile.ModelConfig) ([]Descriptor, error) {
	descs := make([]Descriptor, 0, len(mc.Config.Layers)+1)
	for i, lc := range mc.Config.Layers {
		p := lc.Config
		shape, err := p.InputShape()
		if err != nil {
			return nil, err
		}
		isInput := lc.ClassName == classInput || lc.ClassName == classInputAlias
		if i == 0 && !isInput && shape != nil {
			descs = append(descs, Descriptor{Class: classInput, Name: p.Name + "_input", Shape: shape})
		}

		d := Descriptor{
			Class:      lc.ClassName,
			Name:       p.Name,
			Units:      p.Units,
			Activation: p.Activation,
			KernelSize: p.KernelSize,
			Filters:    p.Filters,
			PoolSize:   p.PoolSize,
			Strides:    p.Strides,
			Padding:    p.Padding,
		}
		if isInput {
			d.Shape = shape
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// Describe returns the descriptor that rebuilds l.
func Describe(l layer.Layer) Descriptor {
	d := Descriptor{Name: l.Name()}
	switch v := l.(type) {
	case *layer.Input1D, *layer.Input3D:
		d.Class = classInput
		d.Shape = append([]int(nil), v.OutputShape()...)
	case *layer.Dense:
		d.Class = classDense
		d.Units = v.Units()
		d.Activation = v.Activation().Name()
	case *layer.Flatten:
		d.Class = classFlatten
	case *layer.Conv2D:
		d.Class = classConv2D
		d.Filters = v.Filters()
		d.KernelSize = []int{v.KernelSize(), v.KernelSize()}
		d.Strides = []int{1, 1}
		d.Padding = paddingValid
		d.Activation = v.Activation().Name()
	case *layer.MaxPool2D:
		d.Class = classMaxPool
		d.PoolSize = []int{v.PoolSize(), v.PoolSize()}
		d.Strides = []int{v.Stride(), v.Stride()}
		d.Padding = paddingValid
	}
	return d
}

// config converts descriptors back into a stored model config.
func config(name string, descs []Descriptor) *modelfile.ModelConfig {
	mc := &modelfile.ModelConfig{
		ClassName: modelfile.ClassSequential,
		Config:    modelfile.SequentialConfig{Name: name},
	}
	for _, d := range descs {
		p := modelfile.LayerParams{
			Name:       d.Name,
			Units:      d.Units,
			Activation: d.Activation,
			Filters:    d.Filters,
			KernelSize: d.KernelSize,
			PoolSize:   d.PoolSize,
			Strides:    d.Strides,
			Padding:    d.Padding,
		}
		if d.Shape != nil {
			p.SetInputShape(d.Shape)
		}
		mc.Config.Layers = append(mc.Config.Layers, modelfile.LayerConfig{ClassName: d.Class, Config: p})
	}
	return mc
}
