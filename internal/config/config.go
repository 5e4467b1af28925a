// Package config loads the YAML run configuration used by the CLI.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/seqnet/internal/importer"
	"github.com/born-ml/seqnet/internal/optim"
	"github.com/born-ml/seqnet/internal/train"
)

// Dataset kinds.
const (
	DatasetLinear = "synthetic-linear"
	DatasetIDX    = "idx"
)

// Config captures the knobs of a training run.
type Config struct {
	// Model is a model file to start from. When empty the network is built
	// from Layers with fresh weights.
	Model  string      `yaml:"model"`
	Layers []LayerSpec `yaml:"layers"`

	Dataset Dataset `yaml:"dataset"`

	BatchSize    int     `yaml:"batch_size"`
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	Workers      int     `yaml:"workers"`
	Accumulation string  `yaml:"accumulation"`
	Seed         int64   `yaml:"seed"`

	LogLevel string `yaml:"log_level"`
	Output   string `yaml:"output"`
}

// LayerSpec declares one layer inline. Type takes the same class names as
// model files ("InputLayer", "Dense", "Flatten", "Conv2D", "MaxPooling2D").
type LayerSpec struct {
	Type       string `yaml:"type"`
	Name       string `yaml:"name"`
	Shape      []int  `yaml:"shape"`
	Units      int    `yaml:"units"`
	Activation string `yaml:"activation"`
	Filters    int    `yaml:"filters"`
	KernelSize int    `yaml:"kernel_size"`
	PoolSize   int    `yaml:"pool_size"`
	Stride     int    `yaml:"stride"`
}

// Dataset selects and sizes the training data.
type Dataset struct {
	Kind string `yaml:"kind"`

	// synthetic-linear
	Samples  int     `yaml:"samples"`
	Features int     `yaml:"features"`
	Outputs  int     `yaml:"outputs"`
	Noise    float64 `yaml:"noise"`

	// idx
	Images     string `yaml:"images"`
	Labels     string `yaml:"labels"`
	Classes    int    `yaml:"classes"`
	MaxSamples int    `yaml:"max_samples"`
}

// Overrides captures CLI supplied values. Nil fields are left alone.
type Overrides struct {
	Epochs       *int
	BatchSize    *int
	LearningRate *float64
	Workers      *int
	Seed         *int64
	Output       *string
}

// Default returns the values Load starts from before decoding.
func Default() *Config {
	return &Config{
		BatchSize:    32,
		Epochs:       1,
		LearningRate: 0.01,
		Accumulation: train.Averaged.String(),
		LogLevel:     "info",
		Dataset: Dataset{
			Kind:     DatasetLinear,
			Samples:  256,
			Features: 1,
			Outputs:  1,
			Classes:  10,
		},
	}
}

// Load reads a Config from YAML. Unknown keys are rejected. Callers apply
// overrides and then call Validate.
func Load(path string) (*Config, error) {
	//nolint:gosec // G304: config paths come from the user.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyOverrides updates c with every override that is set.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Epochs != nil {
		c.Epochs = *o.Epochs
	}
	if o.BatchSize != nil {
		c.BatchSize = *o.BatchSize
	}
	if o.LearningRate != nil {
		c.LearningRate = *o.LearningRate
	}
	if o.Workers != nil {
		c.Workers = *o.Workers
	}
	if o.Seed != nil {
		c.Seed = *o.Seed
	}
	if o.Output != nil {
		c.Output = *o.Output
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Model == "" && len(c.Layers) == 0 {
		return errors.New("either model or layers must be set")
	}
	if c.Model != "" && len(c.Layers) > 0 {
		return errors.New("model and layers are mutually exclusive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.Epochs < 0 {
		return fmt.Errorf("epochs must be >= 0 (got %d)", c.Epochs)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0 (got %d)", c.Workers)
	}
	if _, err := train.ParseAccumulation(c.Accumulation); err != nil {
		return fmt.Errorf("accumulation: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return c.Dataset.validate()
}

func (d Dataset) validate() error {
	switch d.Kind {
	case DatasetLinear:
		if d.Samples <= 0 || d.Features <= 0 || d.Outputs <= 0 {
			return fmt.Errorf("dataset: samples, features and outputs must be > 0 (got %d, %d, %d)",
				d.Samples, d.Features, d.Outputs)
		}
		if d.Noise < 0 {
			return fmt.Errorf("dataset: noise must be >= 0 (got %g)", d.Noise)
		}
	case DatasetIDX:
		if d.Images == "" || d.Labels == "" {
			return errors.New("dataset: idx needs images and labels")
		}
		if d.Classes <= 0 {
			return fmt.Errorf("dataset: classes must be > 0 (got %d)", d.Classes)
		}
	default:
		return fmt.Errorf("dataset: unknown kind %q", d.Kind)
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Descriptors converts the inline layers into import descriptors.
func (c *Config) Descriptors() []importer.Descriptor {
	descs := make([]importer.Descriptor, len(c.Layers))
	for i, l := range c.Layers {
		descs[i] = l.Descriptor()
	}
	return descs
}

// Descriptor converts l into an import descriptor.
func (l LayerSpec) Descriptor() importer.Descriptor {
	d := importer.Descriptor{
		Class:      l.Type,
		Name:       l.Name,
		Units:      l.Units,
		Shape:      l.Shape,
		Activation: l.Activation,
		Filters:    l.Filters,
	}
	if l.KernelSize > 0 {
		d.KernelSize = []int{l.KernelSize, l.KernelSize}
	}
	if l.PoolSize > 0 {
		d.PoolSize = []int{l.PoolSize, l.PoolSize}
	}
	if l.Stride > 0 {
		d.Strides = []int{l.Stride, l.Stride}
	}
	return d
}

// TrainConfig returns the training loop settings.
func (c *Config) TrainConfig(logger *slog.Logger) (train.Config, error) {
	acc, err := train.ParseAccumulation(c.Accumulation)
	if err != nil {
		return train.Config{}, err
	}
	return train.Config{
		BatchSize:    c.BatchSize,
		Epochs:       c.Epochs,
		Optimizer:    optim.Config{LearningRate: c.LearningRate},
		Accumulation: acc,
		Workers:      c.Workers,
		Seed:         c.Seed,
		Logger:       logger,
	}, nil
}
