// Package optim holds the optimizer settings the training loop feeds to the
// network.
//
// The descent arithmetic itself lives in each layer's Update; an optimizer
// decides which learning rate every Update call receives.
//
// Example usage:
//
//	sgd := optim.NewSGD(optim.Config{LearningRate: 0.05})
//
//	for _, sample := range batch {
//	    net.Forward(sample.Input)
//	    net.Backward(sample.Target)
//	}
//	sgd.Step(net, len(batch)) // lr / len(batch), averaging the batch
package optim

import (
	"errors"
	"fmt"
)

// ErrInvalidLearningRate is returned by Config.Validate.
var ErrInvalidLearningRate = errors.New("optim: learning rate must be positive")

// Updater is anything that applies one descent step with a learning rate,
// typically a network.
type Updater interface {
	Update(learningRate float64)
}

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies one update to u, scaling the learning rate by
	// 1/samples so that summed per-sample gradients are averaged.
	Step(u Updater, samples int)

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Config is the base configuration for all optimizers.
type Config struct {
	LearningRate float64 `yaml:"learning_rate"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("%w (got %g)", ErrInvalidLearningRate, c.LearningRate)
	}
	return nil
}
