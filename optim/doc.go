// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizer that feeds learning rates to a
// network's Update.
//
// # Basic Usage
//
//	sgd := optim.NewSGD(optim.Config{LearningRate: 0.05})
//
//	for _, i := range batch {
//	    net.Forward(inputs[i])
//	    net.Backward(targets[i])
//	}
//	sgd.Step(net, len(batch)) // averages the summed gradients
package optim
