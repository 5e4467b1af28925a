package layer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/seqnet/internal/tensor"
)

func vectorInput(t *testing.T, values ...float64) *Input1D {
	t.Helper()
	in, err := NewInput1D(len(values))
	require.NoError(t, err)
	in.Set(tensor.Vector(values...))
	return in
}

func volumeInput(t *testing.T, h, w, c int, rng *rand.Rand) *Input3D {
	t.Helper()
	in, err := NewInput3D(h, w, c)
	require.NoError(t, err)
	v := tensor.New(tensor.Shape{h, w, c})
	for i := range v.Data() {
		v.Data()[i] = rng.NormFloat64()
	}
	in.Set(v)
	return in
}

// weightedSum is L = sum_i out_i * w_i; dL/dout = w.
func weightedSum(out *tensor.Tensor, w []float64) float64 {
	return floats.Dot(out.Data(), w)
}

// checkGradients compares the analytic parameter and input gradients of l
// against central finite differences of L = sum(out * w).
func checkGradients(t *testing.T, l Layer, prev Layer) {
	t.Helper()
	const eps = 1e-6
	rng := rand.New(rand.NewSource(7))

	l.Forward(prev)
	w := make([]float64, l.Output().Len())
	for i := range w {
		w[i] = rng.NormFloat64()
	}
	g, err := tensor.FromSlice(w, l.OutputShape())
	require.NoError(t, err)
	l.Backward(prev, g)

	loss := func() float64 {
		l.Forward(prev)
		return weightedSum(l.Output(), w)
	}

	for _, p := range l.Parameters() {
		data, grad := p.Data(), p.GradData()
		for i := range data {
			orig := data[i]
			data[i] = orig + eps
			up := loss()
			data[i] = orig - eps
			down := loss()
			data[i] = orig
			assert.InDelta(t, (up-down)/(2*eps), grad[i], 1e-5, "%s %s[%d]", l.Name(), p.Name(), i)
		}
	}

	in := prev.Output().Data()
	for i := range in {
		orig := in[i]
		in[i] = orig + eps
		up := loss()
		in[i] = orig - eps
		down := loss()
		in[i] = orig
		assert.InDelta(t, (up-down)/(2*eps), l.Gradient().Data()[i], 1e-5, "%s input[%d]", l.Name(), i)
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "Dense", KindDense.String())
	assert.Equal(t, "MaxPool2D", KindMaxPool2D.String())
	assert.True(t, KindInput3D.IsInput())
	assert.False(t, KindFlatten.IsInput())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestParseActivation(t *testing.T) {
	for _, name := range []string{"", Linear, ReLU, Sigmoid, Tanh, Softmax} {
		_, err := ParseActivation(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseActivation("swish")
	assert.ErrorIs(t, err, ErrUnknownActivation)
}

func TestSoftmax_SumsToOne(t *testing.T) {
	act, err := ParseActivation(Softmax)
	require.NoError(t, err)
	out := make([]float64, 3)
	act.Apply([]float64{1000, 1001, 1002}, out)
	assert.InDelta(t, 1.0, floats.Sum(out), 1e-12)
	assert.Greater(t, out[2], out[1])
}

func TestInput1D_SetPanicsOnShape(t *testing.T) {
	in, err := NewInput1D(3)
	require.NoError(t, err)
	assert.Panics(t, func() { in.Set(tensor.Vector(1, 2)) })
	assert.Panics(t, func() { in.Set(tensor.New(tensor.Shape{3, 1, 1})) })
}

func TestDense_Forward(t *testing.T) {
	in := vectorInput(t, 1, 2, 3)
	d, err := NewDense(2, ReLU, Named("out"))
	require.NoError(t, err)
	require.NoError(t, d.Init(in))

	require.NoError(t, d.Kernel().Load(mat.NewDense(2, 3, []float64{
		1, 0, -1,
		0.5, 0.5, 0.5,
	})))
	require.NoError(t, d.Bias().Load(mat.NewDense(2, 1, []float64{0.5, -1})))

	d.Forward(in)
	// relu(1-3+0.5)=0, relu(3-1)=2
	assert.Equal(t, []float64{0, 2}, d.Output().Data())
	assert.Equal(t, "out", d.Name())
}

func TestDense_InitRejectsVolume(t *testing.T) {
	in, err := NewInput3D(2, 2, 1)
	require.NoError(t, err)
	d, err := NewDense(2, Linear)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Init(in), ErrShapeMismatch)
}

func TestDense_Gradients(t *testing.T) {
	for _, act := range []string{Linear, Sigmoid, Tanh, Softmax} {
		t.Run(act, func(t *testing.T) {
			in := vectorInput(t, 0.3, -1.2, 0.8, 2.0)
			d, err := NewDense(3, act, WithSeed(1))
			require.NoError(t, err)
			require.NoError(t, d.Init(in))
			checkGradients(t, d, in)
		})
	}
}

func TestDense_BackwardAccumulatesUntilUpdate(t *testing.T) {
	in := vectorInput(t, 1, 2)
	d, err := NewDense(1, Linear, WithSeed(3))
	require.NoError(t, err)
	require.NoError(t, d.Init(in))

	d.Forward(in)
	d.Backward(in, tensor.Vector(1))
	first := append([]float64(nil), d.Kernel().GradData()...)
	d.Forward(in)
	d.Backward(in, tensor.Vector(1))
	assert.Equal(t, []float64{2 * first[0], 2 * first[1]}, d.Kernel().GradData())

	before := append([]float64(nil), d.Kernel().Data()...)
	d.Update(0.5)
	assert.InDelta(t, before[0]-0.5*2*first[0], d.Kernel().Data()[0], 1e-12)
	assert.Equal(t, []float64{0, 0}, d.Kernel().GradData())
	assert.Equal(t, []float64{0}, d.Bias().GradData())
}

func TestConv2D_Gradients(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	in := volumeInput(t, 5, 4, 2, rng)
	c, err := NewConv2D(3, 2, Tanh, WithSeed(2))
	require.NoError(t, err)
	require.NoError(t, c.Init(in))
	assert.Equal(t, tensor.Shape{4, 3, 3}, c.OutputShape())
	checkGradients(t, c, in)
}

func TestConv2D_RejectsSoftmax(t *testing.T) {
	_, err := NewConv2D(3, 2, Softmax)
	assert.ErrorIs(t, err, ErrUnknownActivation)
}

func TestConv2D_KernelTooLarge(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	in := volumeInput(t, 2, 2, 1, rng)
	c, err := NewConv2D(1, 3, Linear)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Init(in), ErrShapeMismatch)
}

func TestMaxPool2D_ForwardBackward(t *testing.T) {
	in, err := NewInput3D(4, 4, 1)
	require.NoError(t, err)
	v, err := tensor.FromSlice([]float64{
		1, 2, 5, 0,
		3, 4, 1, 1,
		0, 0, 2, 9,
		7, 0, 3, 4,
	}, tensor.Shape{4, 4, 1})
	require.NoError(t, err)
	in.Set(v)

	p, err := NewMaxPool2D(2, 2)
	require.NoError(t, err)
	require.NoError(t, p.Init(in))
	p.Forward(in)
	assert.Equal(t, []float64{4, 5, 7, 9}, p.Output().Data())

	p.Backward(in, tensor.Vector(1, 2, 3, 4).Reshape(tensor.Shape{2, 2, 1}))
	want := []float64{
		0, 0, 2, 0,
		0, 1, 0, 0,
		0, 0, 0, 4,
		3, 0, 0, 0,
	}
	assert.Equal(t, want, p.Gradient().Data())
}

func TestMaxPool2D_Gradients(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	in := volumeInput(t, 5, 5, 2, rng)
	p, err := NewMaxPool2D(3, 2)
	require.NoError(t, err)
	require.NoError(t, p.Init(in))
	assert.Equal(t, tensor.Shape{2, 2, 2}, p.OutputShape())
	checkGradients(t, p, in)
}

func TestFlatten_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	in := volumeInput(t, 2, 3, 2, rng)
	f := NewFlatten()
	require.NoError(t, f.Init(in))
	f.Forward(in)
	assert.Equal(t, tensor.Shape{12}, f.OutputShape())
	assert.Equal(t, in.Output().Data(), f.Output().Data())

	g := tensor.New(tensor.Shape{12})
	for i := range g.Data() {
		g.Data()[i] = float64(i)
	}
	f.Backward(in, g)
	assert.Equal(t, tensor.Shape{2, 3, 2}, f.Gradient().Shape())
	assert.Equal(t, g.Data(), f.Gradient().Data())
}

func TestClone_IsIndependent(t *testing.T) {
	in := vectorInput(t, 1, -1)
	d, err := NewDense(2, Sigmoid, WithSeed(4))
	require.NoError(t, err)
	require.NoError(t, d.Init(in))

	c := d.Clone().(*Dense)
	assert.True(t, mat.Equal(d.Kernel().Value(), c.Kernel().Value()))

	c.Kernel().Value().Set(0, 0, math.Pi)
	assert.NotEqual(t, math.Pi, d.Kernel().Value().At(0, 0))

	d.Forward(in)
	c.Forward(in)
	assert.NotEqual(t, d.Output().Data(), c.Output().Data())
}

func TestParameter_LoadRejectsDims(t *testing.T) {
	p := NewParameter("kernel", mat.NewDense(2, 3, nil))
	err := p.Load(mat.NewDense(3, 2, nil))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestInfo(t *testing.T) {
	in := vectorInput(t, 1, 2, 3)
	d, err := NewDense(4, ReLU, Named("hidden"))
	require.NoError(t, err)
	require.NoError(t, d.Init(in))
	assert.Equal(t, "hidden: Dense(3 -> 4, activation=relu, params=16)", d.Info())
	assert.Equal(t, "input: Input1D(3,)", in.Info())
}
