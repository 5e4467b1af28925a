// Package tensor provides the dense float64 tensors that flow between layers.
//
// Two ranks are used by the network:
//   - rank 1: feature vectors, shape (n,)
//   - rank 3: image volumes, shape (height, width, channels), channels-last
//
// Storage is a single contiguous row-major slice, so a rank-3 volume and its
// flattened vector share the same element order.
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a dense float64 tensor with row-major storage.
type Tensor struct {
	shape Shape
	data  []float64
}

// New creates a zero-filled tensor with the given shape.
//
// Panics if any dimension is not positive.
func New(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor.New: %v", err))
	}
	return &Tensor{
		shape: shape.Clone(),
		data:  make([]float64, shape.NumElements()),
	}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t := New(shape)
	copy(t.data, data)
	return t, nil
}

// Vector creates a rank-1 tensor holding a copy of values.
func Vector(values ...float64) *Tensor {
	t := New(Shape{len(values)})
	copy(t.data, values)
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Len returns the total number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Data returns the underlying storage. Writes are visible to the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// At3 returns the element at (y, x, c) of a rank-3 tensor.
func (t *Tensor) At3(y, x, c int) float64 {
	return t.data[(y*t.shape[1]+x)*t.shape[2]+c]
}

// Set3 stores v at (y, x, c) of a rank-3 tensor.
func (t *Tensor) Set3(y, x, c int, v float64) {
	t.data[(y*t.shape[1]+x)*t.shape[2]+c] = v
}

// Add3 adds v to the element at (y, x, c) of a rank-3 tensor.
func (t *Tensor) Add3(y, x, c int, v float64) {
	t.data[(y*t.shape[1]+x)*t.shape[2]+c] += v
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{
		shape: t.shape.Clone(),
		data:  make([]float64, len(t.data)),
	}
	copy(c.data, t.data)
	return c
}

// CopyFrom overwrites t's elements with src's. Shapes must hold the same
// number of elements.
func (t *Tensor) CopyFrom(src *Tensor) {
	if len(t.data) != len(src.data) {
		panic(fmt.Sprintf("tensor.CopyFrom: size mismatch %v vs %v", t.shape, src.shape))
	}
	copy(t.data, src.data)
}

// Reshape returns a tensor sharing t's storage with a new shape.
//
// Panics if the element counts differ.
func (t *Tensor) Reshape(shape Shape) *Tensor {
	if shape.NumElements() != len(t.data) {
		panic(fmt.Sprintf("tensor.Reshape: cannot reshape %v to %v", t.shape, shape))
	}
	return &Tensor{shape: shape.Clone(), data: t.data}
}

// Zero sets every element to 0.
func (t *Tensor) Zero() {
	clear(t.data)
}

// AsVec returns a gonum vector view over the tensor's storage.
func (t *Tensor) AsVec() *mat.VecDense {
	return mat.NewVecDense(len(t.data), t.data)
}

// Equal reports whether both tensors have the same shape and elements.
func (t *Tensor) Equal(other *Tensor) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	for i, v := range t.data {
		if other.data[i] != v {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v%v", t.shape, t.data)
}
