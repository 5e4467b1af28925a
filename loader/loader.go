// Package loader reads and writes model files.
//
// A model file is a SafeTensors container whose metadata holds a Keras-style
// sequential layer description; Dense and Conv2D weights are stored under
// "<layer>/<layer>/kernel" and "<layer>/<layer>/bias".
//
// Example usage:
//
//	net, err := loader.Load("model.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(net)
//
//	if err := loader.Save(net, "trained.safetensors", nil); err != nil {
//	    log.Fatal(err)
//	}
package loader

import (
	"github.com/born-ml/seqnet/internal/importer"
	"github.com/born-ml/seqnet/internal/modelfile"
	"github.com/born-ml/seqnet/internal/network"
)

// Descriptor describes one layer of an external model.
type Descriptor = importer.Descriptor

// WeightSource looks up stored tensors by dataset path.
type WeightSource = importer.WeightSource

// ModelReader gives direct access to a model file's tensors and metadata.
type ModelReader = modelfile.Reader

// Load builds the network stored at path, with its weights.
func Load(path string, opts ...network.Option) (*network.Network, error) {
	return importer.FromFile(path, opts...)
}

// FromDescriptors builds a network from descriptors and loads weights from
// src. A nil src keeps the initial weights.
func FromDescriptors(descs []Descriptor, src WeightSource, opts ...network.Option) (*network.Network, error) {
	return importer.FromDescriptors(descs, src, opts...)
}

// Save writes net to path. Entries in meta are added to the file metadata.
func Save(net *network.Network, path string, meta map[string]string) error {
	return importer.Export(net, path, meta)
}

// OpenModel opens a model file for tensor-level access.
func OpenModel(path string) (*ModelReader, error) {
	return modelfile.Open(path)
}
