// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers and the network that chains them.
//
// # Overview
//
// This package contains:
//   - Layers: Input1D, Input3D, Dense, Flatten, Conv2D, MaxPool2D
//   - Activations by name: linear, relu, sigmoid, tanh, softmax
//   - Network: construction, Forward, Backward, Output, Update
//   - Loss: Quadratic (the default)
//
// # Basic Usage
//
//	in, _ := nn.NewInput1D(3)
//	hidden, _ := nn.NewDense(4, nn.ReLU)
//	out, _ := nn.NewDense(2, nn.Sigmoid)
//
//	net, err := nn.FromLayers([]nn.Layer{in, hidden, out})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	y := net.Output(tensor.Vector(0.1, 0.2, 0.3))
//
// # Topology
//
// A network needs at least two layers, starts with an input layer and ends
// with a Dense or Flatten layer. Each adjacent pair must be legal:
//
//	Input1D   -> Dense, Flatten
//	Input3D   -> Conv2D, MaxPool2D, Flatten
//	Dense     -> Dense
//	Flatten   -> Dense
//	Conv2D    -> Conv2D, MaxPool2D, Flatten
//	MaxPool2D -> Conv2D, MaxPool2D, Flatten
//
// Violations fail with ErrInvalidTopology before any layer is initialized.
//
// # Gradients
//
// Backward adds to each parameter's gradient; Update applies and clears it.
// Several Forward/Backward pairs followed by one Update therefore sum the
// per-sample gradients.
package nn
