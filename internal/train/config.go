package train

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/born-ml/seqnet/internal/optim"
)

// ErrInvalidConfig is returned for unusable training settings or data.
var ErrInvalidConfig = errors.New("invalid training config")

// Accumulation selects how per-sample gradients turn into updates.
type Accumulation int

const (
	// Averaged sums gradients over the whole batch, across workers, and
	// applies one update with learning_rate / batch_size. It is the default.
	Averaged Accumulation = iota
	// Summed sums gradients over the batch and applies one update with the
	// full learning rate.
	Summed
	// PerSample applies an update with the full learning rate after every
	// sample. It runs on a single worker.
	PerSample
)

var accumulationNames = map[Accumulation]string{
	Averaged:  "averaged",
	Summed:    "summed",
	PerSample: "per-sample",
}

// String implements fmt.Stringer.
func (a Accumulation) String() string {
	if s, ok := accumulationNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Accumulation(%d)", int(a))
}

// ParseAccumulation resolves a strategy name. The empty string selects
// Averaged.
func ParseAccumulation(s string) (Accumulation, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return Averaged, nil
	}
	for a, n := range accumulationNames {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown accumulation %q", ErrInvalidConfig, s)
}

// Config holds the training loop settings.
type Config struct {
	BatchSize    int
	Epochs       int
	Optimizer    optim.Config
	Accumulation Accumulation

	// Workers is the number of replicas. Zero picks one per physical core.
	// It is capped at BatchSize, and PerSample always uses one.
	Workers int

	// Seed drives batch window selection.
	Seed int64

	// Logger receives per-epoch progress. Nil discards it.
	Logger *slog.Logger
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive (got %d)", ErrInvalidConfig, c.BatchSize)
	}
	if c.Epochs < 0 {
		return fmt.Errorf("%w: epochs must be non-negative (got %d)", ErrInvalidConfig, c.Epochs)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative (got %d)", ErrInvalidConfig, c.Workers)
	}
	if _, ok := accumulationNames[c.Accumulation]; !ok {
		return fmt.Errorf("%w: unknown accumulation %v", ErrInvalidConfig, c.Accumulation)
	}
	if err := c.Optimizer.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
