// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float64 tensors layers exchange.
//
// A Tensor is either a vector (rank 1) or a (height, width, channels)
// volume (rank 3) stored row-major with channels innermost.
//
//	x := tensor.Vector(1, 2, 3)
//	img := tensor.New(tensor.Shape{28, 28, 1})
//	img.Set3(0, 0, 0, 0.5)
package tensor
