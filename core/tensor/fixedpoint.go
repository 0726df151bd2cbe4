package tensor

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/sealedml/pkg/errors"
)

// DefaultFracBits is the number of fractional bits of the FM64 encoding.
const DefaultFracBits = 18

// EncodeValue maps a real value to its two's-complement fixed-point
// representation with fracBits fractional bits.
func EncodeValue(v float64, fracBits uint) uint64 {
	return uint64(int64(math.Round(v * float64(uint64(1)<<fracBits))))
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(v uint64, fracBits uint) float64 {
	return float64(int64(v)) / float64(uint64(1)<<fracBits)
}

// Encode converts X to fixed point. Values whose magnitude does not fit in
// the integer part are rejected.
func Encode(X mat.Matrix, fracBits uint) (*Ring, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("tensor.Encode", "empty data", errors.ErrEmptyData)
	}
	limit := math.Ldexp(1, 62-int(fracBits))
	out := Zeros(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= limit {
				return nil, errors.NewValueError("tensor.Encode",
					"value out of fixed-point range or not finite")
			}
			out.data[i*c+j] = EncodeValue(v, fracBits)
		}
	}
	return out, nil
}

// Decode converts a fixed-point tensor back to a dense matrix.
func (t *Ring) Decode(fracBits uint) *mat.Dense {
	out := mat.NewDense(t.rows, t.cols, nil)
	for i := 0; i < t.rows; i++ {
		for j := 0; j < t.cols; j++ {
			out.Set(i, j, DecodeValue(t.data[i*t.cols+j], fracBits))
		}
	}
	return out
}

// FullValue creates a tensor filled with the encoding of v.
func FullValue(rows, cols int, v float64, fracBits uint) *Ring {
	return Full(rows, cols, EncodeValue(v, fracBits))
}
