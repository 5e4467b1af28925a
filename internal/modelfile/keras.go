package modelfile

import (
	"encoding/json"
	"fmt"
)

// Layer class names written by this package. Readers also accept the
// aliases handled by the importer.
const (
	ClassSequential = "Sequential"
	ClassInput      = "InputLayer"
	ClassDense      = "Dense"
	ClassFlatten    = "Flatten"
	ClassConv2D     = "Conv2D"
	ClassMaxPool2D  = "MaxPooling2D"
)

// ModelConfig is a Keras-style sequential model description.
type ModelConfig struct {
	ClassName string           `json:"class_name"`
	Config    SequentialConfig `json:"config"`
}

// SequentialConfig lists the layers of a sequential model in order.
type SequentialConfig struct {
	Name   string        `json:"name,omitempty"`
	Layers []LayerConfig `json:"layers"`
}

// LayerConfig is one layer entry.
type LayerConfig struct {
	ClassName string      `json:"class_name"`
	Config    LayerParams `json:"config"`
}

// LayerParams holds the per-class settings. Unused fields are omitted.
type LayerParams struct {
	Name       string `json:"name"`
	Units      int    `json:"units,omitempty"`
	Activation string `json:"activation,omitempty"`
	Filters    int    `json:"filters,omitempty"`
	KernelSize []int  `json:"kernel_size,omitempty"`
	PoolSize   []int  `json:"pool_size,omitempty"`
	Strides    []int  `json:"strides,omitempty"`
	Padding    string `json:"padding,omitempty"`

	// Input shapes carry a leading batch dimension, null when unbounded.
	// Older files use batch_input_shape, newer ones batch_shape.
	BatchInputShape []*int `json:"batch_input_shape,omitempty"`
	BatchShape      []*int `json:"batch_shape,omitempty"`
}

// InputShape returns the per-sample input shape (the batch shape without
// its leading dimension), or nil if the layer declares none.
func (p LayerParams) InputShape() ([]int, error) {
	batch := p.BatchShape
	if batch == nil {
		batch = p.BatchInputShape
	}
	if len(batch) == 0 {
		return nil, nil
	}
	shape := make([]int, 0, len(batch)-1)
	for i, d := range batch[1:] {
		if d == nil {
			return nil, fmt.Errorf("layer %q: input dimension %d is unbounded", p.Name, i+1)
		}
		shape = append(shape, *d)
	}
	return shape, nil
}

// SetInputShape stores shape with an unbounded batch dimension.
func (p *LayerParams) SetInputShape(shape []int) {
	p.BatchInputShape = make([]*int, len(shape)+1)
	for i := range shape {
		d := shape[i]
		p.BatchInputShape[i+1] = &d
	}
	p.BatchShape = nil
}

// ParseModelConfig decodes a model_config JSON document.
func ParseModelConfig(data []byte) (*ModelConfig, error) {
	var mc ModelConfig
	if err := json.Unmarshal(data, &mc); err != nil {
		return nil, fmt.Errorf("failed to parse model config: %w", err)
	}
	if mc.ClassName != "" && mc.ClassName != ClassSequential {
		return nil, fmt.Errorf("model class %q is not %s", mc.ClassName, ClassSequential)
	}
	return &mc, nil
}

// Marshal encodes mc as JSON for the model_config metadata entry.
func (mc *ModelConfig) Marshal() (string, error) {
	data, err := json.Marshal(mc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal model config: %w", err)
	}
	return string(data), nil
}
