package layer

import (
	"fmt"
	"math"

	"github.com/born-ml/seqnet/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Max pooling reduces spatial dimensions by taking the maximum value
// in each window, per channel. Unlike Conv2D, MaxPool2D has no
// learnable parameters.
//
// Input shape:  (height, width, channels)
// Output shape: (out_height, out_width, channels)
//
// Where:
//
//	out_height = (height - poolSize) / stride + 1
//	out_width = (width - poolSize) / stride + 1
type MaxPool2D struct {
	base
	size   int
	stride int

	inShape tensor.Shape
	argmax  []int // input offset of the maximum, per output element
	out     *tensor.Tensor
	grad    *tensor.Tensor
}

// NewMaxPool2D creates a max pooling layer with a square window and equal
// strides in both spatial dimensions.
func NewMaxPool2D(poolSize, stride int, opts ...Option) (*MaxPool2D, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("%w: maxpool2d pool size %d", ErrInvalidArgument, poolSize)
	}
	if stride <= 0 {
		return nil, fmt.Errorf("%w: maxpool2d stride %d", ErrInvalidArgument, stride)
	}
	return &MaxPool2D{
		base:   newBase("max_pooling2d", opts),
		size:   poolSize,
		stride: stride,
	}, nil
}

// Kind implements Layer.
func (l *MaxPool2D) Kind() Kind { return KindMaxPool2D }

// PoolSize returns the side of the square pooling window.
func (l *MaxPool2D) PoolSize() int { return l.size }

// Stride returns the stride used in both spatial dimensions.
func (l *MaxPool2D) Stride() int { return l.stride }

// Init implements Layer.
func (l *MaxPool2D) Init(prev Layer) error {
	shape := prev.OutputShape()
	if shape.Rank() != 3 {
		return fmt.Errorf("%w: %s expects a (height, width, channels) input, %s produces %v",
			ErrShapeMismatch, l.name, prev.Name(), shape)
	}
	h, w, c := shape[0], shape[1], shape[2]
	if h < l.size || w < l.size {
		return fmt.Errorf("%w: %s pool %dx%d does not fit input %v", ErrShapeMismatch, l.name, l.size, l.size, shape)
	}
	outShape := tensor.Shape{(h-l.size)/l.stride + 1, (w-l.size)/l.stride + 1, c}
	l.inShape = shape.Clone()
	l.out = tensor.New(outShape)
	l.argmax = make([]int, outShape.NumElements())
	l.grad = tensor.New(shape)
	return nil
}

// Forward implements Layer.
func (l *MaxPool2D) Forward(prev Layer) {
	in := prev.Output()
	if !in.Shape().Equal(l.inShape) {
		panic(fmt.Sprintf("MaxPool2D.Forward: expected input %v, got %v", l.inShape, in.Shape()))
	}
	oh, ow, c := l.out.Shape()[0], l.out.Shape()[1], l.out.Shape()[2]
	w := l.inShape[1]
	src := in.Data()
	dst := l.out.Data()

	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			for ch := 0; ch < c; ch++ {
				best, at := math.Inf(-1), -1
				for py := 0; py < l.size; py++ {
					for px := 0; px < l.size; px++ {
						idx := ((oy*l.stride+py)*w+(ox*l.stride+px))*c + ch
						if src[idx] > best {
							best, at = src[idx], idx
						}
					}
				}
				o := (oy*ow+ox)*c + ch
				dst[o] = best
				l.argmax[o] = at
			}
		}
	}
}

// Backward routes each output gradient to the input element that won the
// maximum in the last Forward.
func (l *MaxPool2D) Backward(_ Layer, grad *tensor.Tensor) {
	if grad.Len() != l.out.Len() {
		panic(fmt.Sprintf("MaxPool2D.Backward: expected gradient with %d elements, got %d", l.out.Len(), grad.Len()))
	}
	l.grad.Zero()
	gin := l.grad.Data()
	for o, g := range grad.Data() {
		if at := l.argmax[o]; at >= 0 {
			gin[at] += g
		}
	}
}

// Update implements Layer. MaxPool2D has nothing to update.
func (l *MaxPool2D) Update(float64) {}

// Output implements Layer.
func (l *MaxPool2D) Output() *tensor.Tensor { return l.out }

// Gradient implements Layer.
func (l *MaxPool2D) Gradient() *tensor.Tensor { return l.grad }

// OutputShape implements Layer.
func (l *MaxPool2D) OutputShape() tensor.Shape {
	if l.out == nil {
		return nil
	}
	return l.out.Shape()
}

// Parameters implements Layer.
func (l *MaxPool2D) Parameters() []*Parameter { return nil }

// Info implements Layer.
func (l *MaxPool2D) Info() string {
	if l.out == nil {
		return fmt.Sprintf("%s: MaxPool2D(pool=%dx%d, stride=%d)", l.name, l.size, l.size, l.stride)
	}
	return fmt.Sprintf("%s: MaxPool2D(%v -> %v, pool=%dx%d, stride=%d)",
		l.name, l.inShape, l.out.Shape(), l.size, l.size, l.stride)
}

// Clone implements Layer.
func (l *MaxPool2D) Clone() Layer {
	c := &MaxPool2D{
		base:   l.base.clone(),
		size:   l.size,
		stride: l.stride,
	}
	if l.out != nil {
		c.inShape = l.inShape.Clone()
		c.argmax = append([]int(nil), l.argmax...)
		c.out = l.out.Clone()
		c.grad = l.grad.Clone()
	}
	return c
}
