package importer

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/seqnet/internal/layer"
	"github.com/born-ml/seqnet/internal/modelfile"
	"github.com/born-ml/seqnet/internal/network"
)

// WeightSource looks up stored tensors by dataset path.
// *modelfile.Reader implements it.
type WeightSource interface {
	Tensor(name string) (modelfile.Tensor, error)
}

// Tensors is an in-memory WeightSource.
type Tensors map[string]modelfile.Tensor

// Tensor implements WeightSource.
func (t Tensors) Tensor(name string) (modelfile.Tensor, error) {
	v, ok := t[name]
	if !ok {
		return modelfile.Tensor{}, fmt.Errorf("%w: %s", modelfile.ErrTensorNotFound, name)
	}
	return v, nil
}

// FromFile reads a model file and returns the network it describes, with
// the stored weights loaded.
func FromFile(path string, opts ...network.Option) (*network.Network, error) {
	r, err := modelfile.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	mc, err := r.ModelConfig()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	descs, err := Descriptors(mc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return FromDescriptors(descs, r, opts...)
}

// FromDescriptors builds a network from descs and loads weights from src.
//
// Every Dense layer must have "<name>/<name>/kernel" ([in, units]) and
// "<name>/<name>/bias" ([units]) in src. Conv2D kernels ([k, k, channels,
// filters]) and biases are loaded when present; otherwise the layer keeps its
// initial values. A nil src skips weight loading entirely.
//
// Any failure aborts the import and no network is returned.
func FromDescriptors(descs []Descriptor, src WeightSource, opts ...network.Option) (*network.Network, error) {
	layers := make([]layer.Layer, len(descs))
	for i, d := range descs {
		l, err := Build(d)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layers[i] = l
	}

	net, err := network.FromLayers(layers, opts...)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return net, nil
	}

	for i := 1; i < len(descs); i++ {
		if err := loadWeights(descs[i], net.Layer(i), src); err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, descs[i].Name, err)
		}
	}
	return net, nil
}

func loadWeights(d Descriptor, l layer.Layer, src WeightSource) error {
	switch d.Class {
	case classDense:
		dense, ok := l.(*layer.Dense)
		if !ok {
			return fmt.Errorf("%w: descriptor is %s, network layer is %s", network.ErrInternalMismatch, d.Class, l.Kind())
		}
		out, in := dense.Kernel().Dims()
		return loadAffine(d.Name, dense.Kernel(), dense.Bias(), []int{in, out}, src, true)

	case classConv2D:
		conv, ok := l.(*layer.Conv2D)
		if !ok {
			return fmt.Errorf("%w: descriptor is %s, network layer is %s", network.ErrInternalMismatch, d.Class, l.Kind())
		}
		f, in := conv.Kernel().Dims()
		k := conv.KernelSize()
		return loadAffine(d.Name, conv.Kernel(), conv.Bias(), []int{k, k, in / (k * k), f}, src, false)
	}
	return nil
}

// loadAffine loads a stored kernel and bias into kernel [out, in] and
// bias [out, 1]. The stored kernel must have exactly the given shape; it
// flattens to [in, out] and is transposed.
func loadAffine(name string, kernel, bias *layer.Parameter, shape []int, src WeightSource, required bool) error {
	k, err := src.Tensor(modelfile.KernelPath(name))
	if errors.Is(err, modelfile.ErrTensorNotFound) && !required {
		return nil
	}
	if err != nil {
		return err
	}
	b, err := src.Tensor(modelfile.BiasPath(name))
	if err != nil {
		return err
	}

	out, in := kernel.Dims()
	if !slices.Equal(k.Shape, shape) || len(k.Data) != out*in {
		return fmt.Errorf("%w: kernel %v, want %v", layer.ErrShapeMismatch, k.Shape, shape)
	}
	if len(b.Data) != out {
		return fmt.Errorf("%w: bias %v does not fit [%d]", layer.ErrShapeMismatch, b.Shape, out)
	}

	if err := kernel.Load(mat.NewDense(in, out, k.Data).T()); err != nil {
		return err
	}
	return bias.Load(mat.NewDense(out, 1, b.Data))
}
