package layer

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// xavier fills a rows x cols matrix from U(-sqrt(6/(fanIn+fanOut)), +sqrt(6/(fanIn+fanOut))).
func (b *base) xavier(rows, cols, fanIn, fanOut int) *mat.Dense {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (b.uniform()*2.0 - 1.0) * bound
	}
	return mat.NewDense(rows, cols, data)
}
