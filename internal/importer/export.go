package importer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/seqnet/internal/layer"
	"github.com/born-ml/seqnet/internal/modelfile"
	"github.com/born-ml/seqnet/internal/network"
)

// Export writes net to path in the format FromFile reads. Layer names are
// made unique by suffixing "_1", "_2", ... to repeats. Entries in meta are
// added to the file metadata.
func Export(net *network.Network, path string, meta map[string]string) error {
	descs := make([]Descriptor, net.Len())
	tensors := make(map[string]modelfile.Tensor)
	used := make(map[string]bool)

	for i, l := range net.Layers() {
		d := Describe(l)
		for n := 1; used[d.Name]; n++ {
			d.Name = fmt.Sprintf("%s_%d", l.Name(), n)
		}
		used[d.Name] = true
		descs[i] = d

		switch v := l.(type) {
		case *layer.Dense:
			_, in := v.Kernel().Dims()
			storeAffine(tensors, d.Name, v.Kernel(), v.Bias(), []int{in, v.Units()})
		case *layer.Conv2D:
			_, cols := v.Kernel().Dims()
			k := v.KernelSize()
			storeAffine(tensors, d.Name, v.Kernel(), v.Bias(), []int{k, k, cols / (k * k), v.Filters()})
		}
	}

	raw, err := config("sequential", descs).Marshal()
	if err != nil {
		return err
	}
	metadata := map[string]string{
		modelfile.MetaFormat:      "seqnet",
		modelfile.MetaModelConfig: raw,
	}
	for k, v := range meta {
		metadata[k] = v
	}
	return modelfile.WriteFile(path, tensors, metadata, modelfile.F64)
}

// storeAffine records kernel [out, in] transposed to input-major order.
func storeAffine(tensors map[string]modelfile.Tensor, name string, kernel, bias *layer.Parameter, shape []int) {
	t := mat.DenseCopyOf(kernel.Value().T())
	tensors[modelfile.KernelPath(name)] = modelfile.Tensor{Shape: shape, Data: t.RawMatrix().Data}
	tensors[modelfile.BiasPath(name)] = modelfile.Tensor{
		Shape: []int{len(bias.Data())},
		Data:  append([]float64(nil), bias.Data()...),
	}
}
