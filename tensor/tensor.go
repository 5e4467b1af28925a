// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/seqnet/internal/tensor"
)

// Shape is a tensor's dimensions.
type Shape = tensor.Shape

// Tensor is a shape plus contiguous float64 storage.
type Tensor = tensor.Tensor

// New returns a zero tensor of the given shape.
func New(shape Shape) *Tensor {
	return tensor.New(shape)
}

// FromSlice wraps data, which must hold exactly shape.NumElements() values.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// Vector returns a rank-1 tensor holding values.
func Vector(values ...float64) *Tensor {
	return tensor.Vector(values...)
}
