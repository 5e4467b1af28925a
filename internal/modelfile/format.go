// Package modelfile reads and writes the on-disk model container.
//
// The container is a SafeTensors file:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw little-endian bytes]
//
// The header's "__metadata__" object carries the layer description under
// the "model_config" key as Keras-style JSON. Weight tensors are stored under
// hierarchical dataset paths, "<layer>/<layer>/kernel" and
// "<layer>/<layer>/bias" (see KernelPath and BiasPath).
package modelfile

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Limits applied when reading a header.
const (
	MaxHeaderSize  = 100 * 1024 * 1024
	MaxTensorCount = 100_000
)

// Metadata keys written by Writer.
const (
	MetaModelConfig = "model_config"
	MetaFormat      = "format"
	MetaRunID       = "run_id"
)

const metadataKey = "__metadata__"

// DType is a SafeTensors element type.
type DType string

// Supported element types.
const (
	F32 DType = "F32"
	F64 DType = "F64"
)

// Size returns the element size in bytes, or 0 for an unsupported dtype.
func (d DType) Size() int {
	switch d {
	case F32:
		return 4
	case F64:
		return 8
	default:
		return 0
	}
}

// TensorInfo describes a tensor in the header.
type TensorInfo struct {
	DType       DType    `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end) relative to the data section
}

// NumElements returns the product of the shape.
func (ti TensorInfo) NumElements() int {
	n := 1
	for _, d := range ti.Shape {
		n *= d
	}
	return n
}

// Header is the decoded JSON header.
type Header struct {
	Metadata map[string]string
	Tensors  map[string]TensorInfo
}

// UnmarshalJSON splits the flat header object into metadata and tensors.
func (h *Header) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if meta, ok := raw[metadataKey]; ok {
		if err := json.Unmarshal(meta, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]TensorInfo, len(raw))
	for key, value := range raw {
		if key == metadataKey {
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// Validate checks dtypes, shapes and offsets against a data section of
// dataSize bytes. Tensor regions must lie inside the data section and must
// not overlap.
func (h *Header) Validate(dataSize int64) error {
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}

	names := make([]string, 0, len(h.Tensors))
	for name := range h.Tensors {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return h.Tensors[names[i]].DataOffsets[0] < h.Tensors[names[j]].DataOffsets[0]
	})

	for i, name := range names {
		info := h.Tensors[name]
		if info.DType.Size() == 0 {
			return fmt.Errorf("%w: tensor %q has dtype %q", ErrUnsupportedDType, name, info.DType)
		}
		start, end := info.DataOffsets[0], info.DataOffsets[1]
		if start < 0 || end < start {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  name,
				Details: fmt.Sprintf("offsets [%d, %d]", start, end),
			}
		}
		if end > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  name,
				Details: fmt.Sprintf("end %d > data_size %d", end, dataSize),
			}
		}
		if want := int64(info.NumElements() * info.DType.Size()); end-start != want {
			return &ValidationError{
				Type:    "size_mismatch",
				Tensor:  name,
				Details: fmt.Sprintf("shape %v needs %d bytes, region holds %d", info.Shape, want, end-start),
			}
		}
		if i < len(names)-1 {
			next := names[i+1]
			if end > h.Tensors[next].DataOffsets[0] {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  name,
					Tensor2: next,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						start, end, h.Tensors[next].DataOffsets[0], h.Tensors[next].DataOffsets[1]),
				}
			}
		}
	}
	return nil
}

// KernelPath returns the dataset path of a layer's kernel.
func KernelPath(layer string) string {
	return layer + "/" + layer + "/kernel"
}

// BiasPath returns the dataset path of a layer's bias.
func BiasPath(layer string) string {
	return layer + "/" + layer + "/bias"
}
