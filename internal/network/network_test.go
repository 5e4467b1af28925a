package network

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/seqnet/internal/layer"
	"github.com/born-ml/seqnet/internal/tensor"
)

func input1D(t *testing.T, n int) *layer.Input1D {
	t.Helper()
	l, err := layer.NewInput1D(n)
	require.NoError(t, err)
	return l
}

func input3D(t *testing.T, h, w, c int) *layer.Input3D {
	t.Helper()
	l, err := layer.NewInput3D(h, w, c)
	require.NoError(t, err)
	return l
}

func dense(t *testing.T, units int, act string, seed int64) *layer.Dense {
	t.Helper()
	l, err := layer.NewDense(units, act, layer.WithSeed(seed))
	require.NoError(t, err)
	return l
}

func conv(t *testing.T, filters, k int, seed int64) *layer.Conv2D {
	t.Helper()
	l, err := layer.NewConv2D(filters, k, layer.ReLU, layer.WithSeed(seed))
	require.NoError(t, err)
	return l
}

func pool(t *testing.T, size, stride int) *layer.MaxPool2D {
	t.Helper()
	l, err := layer.NewMaxPool2D(size, stride)
	require.NoError(t, err)
	return l
}

func TestFromLayers_InvalidTopology(t *testing.T) {
	tests := []struct {
		name   string
		layers func(t *testing.T) []layer.Layer
	}{
		{"empty", func(*testing.T) []layer.Layer { return nil }},
		{"single input", func(t *testing.T) []layer.Layer {
			return []layer.Layer{input1D(t, 3)}
		}},
		{"first layer not input", func(t *testing.T) []layer.Layer {
			return []layer.Layer{dense(t, 3, layer.Linear, 1), dense(t, 2, layer.Linear, 2)}
		}},
		{"dense after conv", func(t *testing.T) []layer.Layer {
			return []layer.Layer{input3D(t, 6, 6, 1), conv(t, 2, 3, 1), dense(t, 2, layer.Linear, 2)}
		}},
		{"conv after dense", func(t *testing.T) []layer.Layer {
			return []layer.Layer{input1D(t, 4), dense(t, 4, layer.Linear, 1), conv(t, 2, 3, 1)}
		}},
		{"input in the middle", func(t *testing.T) []layer.Layer {
			return []layer.Layer{input1D(t, 4), input1D(t, 4), dense(t, 2, layer.Linear, 1)}
		}},
		{"terminal pooling", func(t *testing.T) []layer.Layer {
			return []layer.Layer{input3D(t, 4, 4, 1), pool(t, 2, 2)}
		}},
		{"nil layer", func(t *testing.T) []layer.Layer {
			return []layer.Layer{input1D(t, 4), nil}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net, err := FromLayers(tt.layers(t))
			assert.ErrorIs(t, err, ErrInvalidTopology)
			assert.Nil(t, net)
		})
	}
}

func TestFromLayers_InitFailureAborts(t *testing.T) {
	net, err := FromLayers([]layer.Layer{input3D(t, 2, 2, 1), conv(t, 1, 3, 1), layer.NewFlatten()})
	assert.ErrorIs(t, err, layer.ErrShapeMismatch)
	assert.Nil(t, net)
}

func TestFromLayers_ShapesFollowPredecessor(t *testing.T) {
	net, err := FromLayers([]layer.Layer{
		input3D(t, 8, 8, 2),
		conv(t, 4, 3, 1),
		pool(t, 2, 2),
		conv(t, 3, 2, 2),
		layer.NewFlatten(),
		dense(t, 5, layer.ReLU, 3),
		dense(t, 2, layer.Softmax, 4),
	})
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{6, 6, 4}, net.Layer(1).OutputShape())
	assert.Equal(t, tensor.Shape{3, 3, 4}, net.Layer(2).OutputShape())
	assert.Equal(t, tensor.Shape{2, 2, 3}, net.Layer(3).OutputShape())
	assert.Equal(t, tensor.Shape{12}, net.Layer(4).OutputShape())

	for i := 1; i < net.Len(); i++ {
		prev := net.Layer(i - 1).OutputShape()
		switch l := net.Layer(i).(type) {
		case *layer.Dense:
			r, c := l.Kernel().Dims()
			assert.Equal(t, l.Units(), r)
			assert.Equal(t, prev.NumElements(), c)
		case *layer.Conv2D:
			r, c := l.Kernel().Dims()
			assert.Equal(t, l.Filters(), r)
			assert.Equal(t, l.KernelSize()*l.KernelSize()*prev[2], c)
		}
	}
	assert.Equal(t, tensor.Shape{2}, net.OutputShape())
	assert.Equal(t, tensor.Shape{8, 8, 2}, net.InputShape())
}

func TestCanFollow(t *testing.T) {
	assert.True(t, CanFollow(layer.KindInput1D, layer.KindDense))
	assert.True(t, CanFollow(layer.KindFlatten, layer.KindDense))
	assert.False(t, CanFollow(layer.KindConv2D, layer.KindDense))
	assert.False(t, CanFollow(layer.KindDense, layer.KindFlatten))
	assert.False(t, CanFollow(layer.KindDense, layer.KindInput1D))
}

// TestOutput_DenseComposition checks (3)->(4)->(2) against a hand-computed
// matrix-multiply-plus-activation composition.
func TestOutput_DenseComposition(t *testing.T) {
	hidden := dense(t, 4, layer.ReLU, 1)
	out := dense(t, 2, layer.Sigmoid, 2)
	net, err := FromLayers([]layer.Layer{input1D(t, 3), hidden, out})
	require.NoError(t, err)

	w1 := mat.NewDense(4, 3, []float64{
		0.1, 0.2, 0.3,
		-0.4, 0.5, -0.6,
		0.7, -0.8, 0.9,
		1.0, 1.0, -1.0,
	})
	b1 := mat.NewDense(4, 1, []float64{0.1, 0.2, -0.3, 0})
	w2 := mat.NewDense(2, 4, []float64{
		0.5, -0.5, 0.25, 1,
		-1, 0.5, 0.5, 0.1,
	})
	b2 := mat.NewDense(2, 1, []float64{0.05, -0.05})
	require.NoError(t, hidden.Kernel().Load(w1))
	require.NoError(t, hidden.Bias().Load(b1))
	require.NoError(t, out.Kernel().Load(w2))
	require.NoError(t, out.Bias().Load(b2))

	x := []float64{1, -2, 0.5}
	h := make([]float64, 4)
	for i := range h {
		s := b1.At(i, 0)
		for j := range x {
			s += w1.At(i, j) * x[j]
		}
		h[i] = math.Max(0, s)
	}
	want := make([]float64, 2)
	for i := range want {
		s := b2.At(i, 0)
		for j := range h {
			s += w2.At(i, j) * h[j]
		}
		want[i] = 1 / (1 + math.Exp(-s))
	}

	got := net.Output(tensor.Vector(x...))
	require.Equal(t, 2, got.Len())
	assert.InDeltaSlice(t, want, got.Data(), 1e-12)
}

func TestOutput_Idempotent(t *testing.T) {
	net, err := FromLayers([]layer.Layer{input1D(t, 3), dense(t, 4, layer.Tanh, 1), dense(t, 2, layer.Linear, 2)})
	require.NoError(t, err)

	x := tensor.Vector(0.2, -0.1, 0.9)
	first := net.Output(x)
	second := net.Output(x)
	assert.True(t, first.Equal(second))

	// The returned tensor is a copy, not the terminal buffer.
	first.Data()[0] = 42
	assert.NotEqual(t, 42.0, net.Layer(2).Output().Data()[0])
}

func TestForward_PanicsOnRankMismatch(t *testing.T) {
	net, err := FromLayers([]layer.Layer{input1D(t, 3), dense(t, 2, layer.Linear, 1)})
	require.NoError(t, err)
	assert.Panics(t, func() { net.Forward(tensor.New(tensor.Shape{3, 1, 1})) })
}

// TestTraining_DecreasesLoss fits y = 2a - b + 0.5 with plain per-sample
// forward/backward/update steps.
func TestTraining_DecreasesLoss(t *testing.T) {
	net, err := FromLayers([]layer.Layer{input1D(t, 2), dense(t, 1, layer.Linear, 3)})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	xs := make([]*tensor.Tensor, 32)
	ys := make([]*tensor.Tensor, 32)
	for i := range xs {
		a, b := rng.Float64()*2-1, rng.Float64()*2-1
		xs[i] = tensor.Vector(a, b)
		ys[i] = tensor.Vector(2*a - b + 0.5)
	}
	total := func() float64 {
		var s float64
		for i := range xs {
			s += net.LossValue(xs[i], ys[i])
		}
		return s
	}

	before := total()
	for epoch := 0; epoch < 200; epoch++ {
		for i := range xs {
			net.Forward(xs[i])
			net.Backward(ys[i])
			net.Update(0.05)
		}
	}
	after := total()

	assert.Less(t, after, before)
	assert.Less(t, after, 1e-6)
	k := net.Layer(1).(*layer.Dense).Kernel().Value()
	assert.InDelta(t, 2.0, k.At(0, 0), 1e-3)
	assert.InDelta(t, -1.0, k.At(0, 1), 1e-3)
}

// TestBackward_MatchesFiniteDifferences checks the chained backward pass of a
// convolutional stack against numeric derivatives of the quadratic loss.
func TestBackward_MatchesFiniteDifferences(t *testing.T) {
	c1, err := layer.NewConv2D(2, 2, layer.Tanh, layer.WithSeed(1))
	require.NoError(t, err)
	net, err := FromLayers([]layer.Layer{
		input3D(t, 5, 5, 1),
		c1,
		pool(t, 2, 1),
		layer.NewFlatten(),
		dense(t, 3, layer.Sigmoid, 2),
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	x := tensor.New(tensor.Shape{5, 5, 1})
	for i := range x.Data() {
		x.Data()[i] = rng.NormFloat64()
	}
	y := tensor.Vector(0.1, 0.9, 0.3)

	net.Forward(x)
	net.Backward(y)

	const eps = 1e-6
	for _, p := range net.Parameters() {
		data, grad := p.Data(), p.GradData()
		for i := range data {
			orig := data[i]
			data[i] = orig + eps
			up := net.LossValue(x, y)
			data[i] = orig - eps
			down := net.LossValue(x, y)
			data[i] = orig
			assert.InDelta(t, (up-down)/(2*eps), grad[i], 1e-5, "%s[%d]", p.Name(), i)
		}
	}
}

func TestUpdate_BroadcastsLearningRate(t *testing.T) {
	d1 := dense(t, 2, layer.Linear, 1)
	d2 := dense(t, 1, layer.Linear, 2)
	net, err := FromLayers([]layer.Layer{input1D(t, 2), d1, d2})
	require.NoError(t, err)

	net.Forward(tensor.Vector(1, 1))
	net.Backward(tensor.Vector(10))

	want := make([][]float64, 0)
	for _, p := range net.Parameters() {
		w := append([]float64(nil), p.Data()...)
		for i, g := range p.GradData() {
			w[i] -= 0.1 * g
		}
		want = append(want, w)
	}
	net.Update(0.1)
	for i, p := range net.Parameters() {
		assert.InDeltaSlice(t, want[i], p.Data(), 1e-12)
	}
}

func TestClone_AndCopyParameters(t *testing.T) {
	net, err := FromLayers([]layer.Layer{input1D(t, 2), dense(t, 2, layer.Tanh, 1), dense(t, 1, layer.Linear, 2)})
	require.NoError(t, err)
	x := tensor.Vector(0.3, 0.7)

	replica := net.Clone()
	assert.True(t, net.Output(x).Equal(replica.Output(x)))

	replica.Forward(x)
	replica.Backward(tensor.Vector(5))
	replica.Update(0.5)
	assert.False(t, net.Output(x).Equal(replica.Output(x)))

	require.NoError(t, net.CopyParameters(replica))
	assert.True(t, net.Output(x).Equal(replica.Output(x)))

	other, err := FromLayers([]layer.Layer{input1D(t, 2), dense(t, 1, layer.Linear, 1)})
	require.NoError(t, err)
	assert.ErrorIs(t, net.CopyParameters(other), ErrInternalMismatch)
}

func TestInfo(t *testing.T) {
	net, err := FromLayers([]layer.Layer{input1D(t, 3), dense(t, 4, layer.ReLU, 1), dense(t, 2, layer.Linear, 2)})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(net.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[0] input: Input1D(3,)", lines[0])
	assert.Contains(t, lines[1], "Dense(3 -> 4")
	assert.Equal(t, "trainable parameters: 26", lines[3])
	assert.Equal(t, 26, net.NumParameters())
}

func TestAccumulate_SumsUntilUpdate(t *testing.T) {
	net, err := FromLayers([]layer.Layer{input1D(t, 2), dense(t, 1, layer.Linear, 1)})
	require.NoError(t, err)
	x, y := tensor.Vector(1, 2), tensor.Vector(3)

	want := net.LossValue(x, y)
	got := net.Accumulate(x, y)
	assert.InDelta(t, want, got, 1e-12)
	once := append([]float64(nil), net.Parameters()[0].GradData()...)

	net.Accumulate(x, y)
	for i, g := range net.Parameters()[0].GradData() {
		assert.InDelta(t, 2*once[i], g, 1e-12)
	}

	net.ZeroGrad()
	for _, p := range net.Parameters() {
		for _, g := range p.GradData() {
			assert.Zero(t, g)
		}
	}
}
