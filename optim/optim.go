// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/seqnet/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Updater applies one descent step with a learning rate.
type Updater = optim.Updater

// Config represents the base configuration for optimizers.
type Config = optim.Config

// SGD represents plain stochastic gradient descent.
type SGD = optim.SGD

// ErrInvalidLearningRate is returned by Config.Validate.
var ErrInvalidLearningRate = optim.ErrInvalidLearningRate

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	optimizer := optim.NewSGD(optim.Config{LearningRate: 0.01})
//	optimizer.Step(net, batchSize)
func NewSGD(config Config) *SGD {
	return optim.NewSGD(config)
}
