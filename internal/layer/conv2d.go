package layer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Conv2D is a 2D convolution layer with a square kernel, stride 1 and no
// padding.
//
// Input shape:  (height, width, channels)
// Output shape: (height-k+1, width-k+1, filters)
//
// The kernel parameter has shape [filters, k*k*channels]; row f holds filter
// f with columns ordered (ky, kx, channel), the same order as an input patch
// read row by row. Softmax is not accepted as a convolution activation.
type Conv2D struct {
	base
	filters int
	size    int
	act     Activation

	kernel *Parameter // [filters, size*size*channels]
	bias   *Parameter // [filters, 1]

	inShape tensor.Shape
	z       *tensor.Tensor // pre-activation
	delta   []float64      // dL/dz of the last Backward
	out     *tensor.Tensor
	grad    *tensor.Tensor

	patch  []float64 // scratch: one input patch
	dpatch []float64 // scratch: gradient for one input patch
}

// NewConv2D creates a convolution with the given number of filters, square
// kernel size and activation name.
func NewConv2D(filters, kernelSize int, activation string, opts ...Option) (*Conv2D, error) {
	if filters <= 0 || kernelSize <= 0 {
		return nil, fmt.Errorf("%w: conv2d filters=%d kernel=%d", ErrInvalidArgument, filters, kernelSize)
	}
	act, err := ParseActivation(activation)
	if err != nil {
		return nil, err
	}
	if !act.ElementWise() {
		return nil, fmt.Errorf("%w: %q is not supported by Conv2D", ErrUnknownActivation, activation)
	}
	return &Conv2D{
		base:    newBase("conv2d", opts),
		filters: filters,
		size:    kernelSize,
		act:     act,
	}, nil
}

// Kind implements Layer.
func (l *Conv2D) Kind() Kind { return KindConv2D }

// Filters returns the number of output channels.
func (l *Conv2D) Filters() int { return l.filters }

// KernelSize returns the side of the square kernel.
func (l *Conv2D) KernelSize() int { return l.size }

// Activation returns the activation applied after the convolution.
func (l *Conv2D) Activation() Activation { return l.act }

// Kernel returns the [filters, k*k*channels] weight parameter. Nil before Init.
func (l *Conv2D) Kernel() *Parameter { return l.kernel }

// Bias returns the [filters, 1] bias parameter. Nil before Init.
func (l *Conv2D) Bias() *Parameter { return l.bias }

// Init implements Layer.
func (l *Conv2D) Init(prev Layer) error {
	shape := prev.OutputShape()
	if shape.Rank() != 3 {
		return fmt.Errorf("%w: %s expects a (height, width, channels) input, %s produces %v",
			ErrShapeMismatch, l.name, prev.Name(), shape)
	}
	h, w, c := shape[0], shape[1], shape[2]
	if h < l.size || w < l.size {
		return fmt.Errorf("%w: %s kernel %dx%d does not fit input %v", ErrShapeMismatch, l.name, l.size, l.size, shape)
	}

	fanIn := l.size * l.size * c
	fanOut := l.size * l.size * l.filters
	l.kernel = NewParameter("kernel", l.xavier(l.filters, fanIn, fanIn, fanOut))
	l.bias = NewParameter("bias", mat.NewDense(l.filters, 1, nil))

	l.inShape = shape.Clone()
	outShape := tensor.Shape{h - l.size + 1, w - l.size + 1, l.filters}
	l.z = tensor.New(outShape)
	l.out = tensor.New(outShape)
	l.delta = make([]float64, outShape.NumElements())
	l.grad = tensor.New(shape)
	l.patch = make([]float64, fanIn)
	l.dpatch = make([]float64, fanIn)
	return nil
}

// readPatch copies the k x k x channels window at (oy, ox) into l.patch.
func (l *Conv2D) readPatch(in *tensor.Tensor, oy, ox int) {
	c := l.inShape[2]
	row := l.size * c
	data := in.Data()
	for ky := 0; ky < l.size; ky++ {
		start := ((oy+ky)*l.inShape[1] + ox) * c
		copy(l.patch[ky*row:(ky+1)*row], data[start:start+row])
	}
}

// Forward implements Layer.
//
// Panics if prev's output shape differs from the shape seen by Init.
func (l *Conv2D) Forward(prev Layer) {
	in := prev.Output()
	if !in.Shape().Equal(l.inShape) {
		panic(fmt.Sprintf("Conv2D.Forward: expected input %v, got %v", l.inShape, in.Shape()))
	}
	oh, ow := l.out.Shape()[0], l.out.Shape()[1]
	kernel := l.kernel.Value()
	bias := l.bias.Data()
	z := l.z.Data()

	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			l.readPatch(in, oy, ox)
			off := (oy*ow + ox) * l.filters
			for f := 0; f < l.filters; f++ {
				z[off+f] = floats.Dot(kernel.RawRowView(f), l.patch) + bias[f]
			}
		}
	}
	l.act.Apply(z, l.out.Data())
}

// Backward implements Layer.
func (l *Conv2D) Backward(prev Layer, grad *tensor.Tensor) {
	if grad.Len() != l.out.Len() {
		panic(fmt.Sprintf("Conv2D.Backward: expected gradient with %d elements, got %d", l.out.Len(), grad.Len()))
	}
	in := prev.Output()
	oh, ow := l.out.Shape()[0], l.out.Shape()[1]
	c := l.inShape[2]
	row := l.size * c

	delta := l.delta
	l.act.Backprop(l.z.Data(), l.out.Data(), grad.Data(), delta)

	kernel := l.kernel.Value()
	kgrad := l.kernel.Grad()
	bgrad := l.bias.GradData()
	l.grad.Zero()
	gin := l.grad.Data()

	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			l.readPatch(in, oy, ox)
			clear(l.dpatch)
			off := (oy*ow + ox) * l.filters
			for f := 0; f < l.filters; f++ {
				d := delta[off+f]
				if d == 0 {
					continue
				}
				floats.AddScaled(kgrad.RawRowView(f), d, l.patch)
				floats.AddScaled(l.dpatch, d, kernel.RawRowView(f))
				bgrad[f] += d
			}
			for ky := 0; ky < l.size; ky++ {
				start := ((oy+ky)*l.inShape[1] + ox) * c
				floats.Add(gin[start:start+row], l.dpatch[ky*row:(ky+1)*row])
			}
		}
	}
}

// Update implements Layer.
func (l *Conv2D) Update(learningRate float64) {
	stepAll(l.Parameters(), learningRate)
}

// Output implements Layer.
func (l *Conv2D) Output() *tensor.Tensor { return l.out }

// Gradient implements Layer.
func (l *Conv2D) Gradient() *tensor.Tensor { return l.grad }

// OutputShape implements Layer.
func (l *Conv2D) OutputShape() tensor.Shape {
	if l.out == nil {
		return nil
	}
	return l.out.Shape()
}

// Parameters returns [kernel, bias], or nil before Init.
func (l *Conv2D) Parameters() []*Parameter {
	if l.kernel == nil {
		return nil
	}
	return []*Parameter{l.kernel, l.bias}
}

// Info implements Layer.
func (l *Conv2D) Info() string {
	if l.out == nil {
		return fmt.Sprintf("%s: Conv2D(filters=%d, kernel=%dx%d, activation=%s)",
			l.name, l.filters, l.size, l.size, l.act.Name())
	}
	r, c := l.kernel.Dims()
	return fmt.Sprintf("%s: Conv2D(%v -> %v, kernel=%dx%d, activation=%s, params=%d)",
		l.name, l.inShape, l.out.Shape(), l.size, l.size, l.act.Name(), r*c+l.filters)
}

// Clone implements Layer.
func (l *Conv2D) Clone() Layer {
	c := &Conv2D{
		base:    l.base.clone(),
		filters: l.filters,
		size:    l.size,
		act:     l.act,
	}
	if l.kernel != nil {
		c.kernel = l.kernel.clone()
		c.bias = l.bias.clone()
		c.inShape = l.inShape.Clone()
		c.z = l.z.Clone()
		c.out = l.out.Clone()
		c.delta = append([]float64(nil), l.delta...)
		c.grad = l.grad.Clone()
		c.patch = make([]float64, len(l.patch))
		c.dpatch = make([]float64, len(l.dpatch))
	}
	return c
}
