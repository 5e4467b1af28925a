// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train runs mini-batch SGD over a network with replicated workers.
//
// Example:
//
//	report, err := train.Train(ctx, net, samples, train.Config{
//	    BatchSize: 32,
//	    Epochs:    10,
//	    Optimizer: optim.Config{LearningRate: 0.1},
//	})
package train

import (
	"context"

	"github.com/born-ml/seqnet/internal/dataset"
	"github.com/born-ml/seqnet/internal/network"
	"github.com/born-ml/seqnet/internal/train"
)

// Config holds the training loop settings.
type Config = train.Config

// Accumulation selects how per-sample gradients turn into updates.
type Accumulation = train.Accumulation

// Accumulation strategies.
const (
	Averaged  = train.Averaged
	Summed    = train.Summed
	PerSample = train.PerSample
)

// Samples is an indexed training set.
type Samples = dataset.Samples

// Report summarizes a run.
type Report = train.Report

// Trainer trains one network.
type Trainer = train.Trainer

// ErrInvalidConfig is returned for unusable settings or data.
var ErrInvalidConfig = train.ErrInvalidConfig

// New validates cfg and prepares a trainer for net.
func New(net *network.Network, cfg Config) (*Trainer, error) {
	return train.New(net, cfg)
}

// Train trains net on samples.
func Train(ctx context.Context, net *network.Network, samples Samples, cfg Config) (Report, error) {
	return train.Train(ctx, net, samples, cfg)
}
