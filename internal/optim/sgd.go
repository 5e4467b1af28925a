package optim

// SGD implements plain stochastic gradient descent.
//
// Update rule:
//
//	param = param - (lr / samples) * accumulated_gradient
//
// With samples == 1 this is the textbook per-sample step; with samples equal
// to the batch size it averages the gradients summed over the batch.
type SGD struct {
	lr float64
}

var _ Optimizer = (*SGD)(nil)

// NewSGD creates a new SGD optimizer. The learning rate is used as given;
// check it with Config.Validate first.
func NewSGD(config Config) *SGD {
	return &SGD{lr: config.LearningRate}
}

// Step implements Optimizer.
//
// samples < 1 is treated as 1.
func (s *SGD) Step(u Updater, samples int) {
	if samples < 1 {
		samples = 1
	}
	u.Update(s.lr / float64(samples))
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}
