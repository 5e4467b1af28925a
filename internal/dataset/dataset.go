// Package dataset provides training sets as indexed (input, target) pairs.
package dataset

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/seqnet/internal/tensor"
)

// ErrSampleCount is returned when inputs and targets disagree on the number
// of samples or a sample has the wrong size.
var ErrSampleCount = errors.New("sample count mismatch")

// Samples is a read-only indexed training set. Implementations must be safe
// for concurrent reads.
type Samples interface {
	Len() int
	Input(i int) *tensor.Tensor
	Target(i int) *tensor.Tensor
}

// Set is an in-memory Samples.
type Set struct {
	inputs  []*tensor.Tensor
	targets []*tensor.Tensor
}

// New pairs inputs with targets by index.
func New(inputs, targets []*tensor.Tensor) (*Set, error) {
	if len(inputs) != len(targets) {
		return nil, fmt.Errorf("%w: %d inputs, %d targets", ErrSampleCount, len(inputs), len(targets))
	}
	return &Set{inputs: inputs, targets: targets}, nil
}

// FromColumns splits feature-by-sample matrices into samples: column j of
// inputs and of targets form sample j. Each input column is shaped as
// inputShape, or as a vector when inputShape is nil.
func FromColumns(inputs, targets mat.Matrix, inputShape tensor.Shape) (*Set, error) {
	fin, n := inputs.Dims()
	fout, nt := targets.Dims()
	if n != nt {
		return nil, fmt.Errorf("%w: %d input columns, %d target columns", ErrSampleCount, n, nt)
	}
	if inputShape == nil {
		inputShape = tensor.Shape{fin}
	}
	if inputShape.NumElements() != fin {
		return nil, fmt.Errorf("%w: input shape %v needs %d features, matrix has %d",
			ErrSampleCount, inputShape, inputShape.NumElements(), fin)
	}

	s := &Set{
		inputs:  make([]*tensor.Tensor, n),
		targets: make([]*tensor.Tensor, n),
	}
	for j := 0; j < n; j++ {
		in := tensor.New(inputShape)
		mat.Col(in.Data(), j, inputs)
		s.inputs[j] = in

		out := tensor.New(tensor.Shape{fout})
		mat.Col(out.Data(), j, targets)
		s.targets[j] = out
	}
	return s, nil
}

// Len implements Samples.
func (s *Set) Len() int { return len(s.inputs) }

// Input implements Samples.
func (s *Set) Input(i int) *tensor.Tensor { return s.inputs[i] }

// Target implements Samples.
func (s *Set) Target(i int) *tensor.Tensor { return s.targets[i] }

// Linear generates n samples of y = W x + b with x uniform in [-1, 1),
// W and b drawn uniformly from [-1, 1) and Gaussian noise of the given
// standard deviation added to y. It returns the set together with W and b.
func Linear(n, features, outputs int, noise float64, seed int64) (*Set, *mat.Dense, *mat.VecDense) {
	rng := rand.New(rand.NewSource(seed))
	uniform := func() float64 { return rng.Float64()*2 - 1 }

	w := mat.NewDense(outputs, features, nil)
	b := mat.NewVecDense(outputs, nil)
	for i := 0; i < outputs; i++ {
		for j := 0; j < features; j++ {
			w.Set(i, j, uniform())
		}
		b.SetVec(i, uniform())
	}

	s := &Set{
		inputs:  make([]*tensor.Tensor, n),
		targets: make([]*tensor.Tensor, n),
	}
	for k := 0; k < n; k++ {
		x := tensor.New(tensor.Shape{features})
		for j := range x.Data() {
			x.Data()[j] = uniform()
		}
		y := tensor.New(tensor.Shape{outputs})
		yv := y.AsVec()
		yv.MulVec(w, x.AsVec())
		yv.AddVec(yv, b)
		if noise > 0 {
			for i := range y.Data() {
				y.Data()[i] += rng.NormFloat64() * noise
			}
		}
		s.inputs[k], s.targets[k] = x, y
	}
	return s, w, b
}
