// Package tensor implements 2-D tensors over the ring Z_2^64.
//
// A Ring holds uint64 elements in row-major order; all arithmetic wraps
// modulo 2^64, which is exactly the share arithmetic of the FM64 field used by
// the secret-sharing runtime. The same type carries boolean (XOR) shares, for
// which And/Xor/Not/Shl/Shr operate bitwise on each element.
//
// Real values enter and leave the ring through fixed-point encoding, see
// Encode and Decode.
package tensor

import (
	"encoding/binary"
	"fmt"

	"github.com/ezoic/sealedml/pkg/errors"
)

// Ring is a rows×cols tensor of Z_2^64 elements.
type Ring struct {
	rows, cols int
	data       []uint64
}

// New creates a tensor backed by data. A nil data allocates zeros.
func New(rows, cols int, data []uint64) (*Ring, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.NewValueError("tensor.New", "all dimensions must be positive")
	}
	if data == nil {
		data = make([]uint64, rows*cols)
	}
	if len(data) != rows*cols {
		return nil, errors.NewDimensionError("tensor.New", rows*cols, len(data), 0)
	}
	return &Ring{rows: rows, cols: cols, data: data}, nil
}

// Zeros creates a zero tensor. It panics on non-positive dimensions.
func Zeros(rows, cols int) *Ring {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("tensor: invalid shape %dx%d", rows, cols))
	}
	return &Ring{rows: rows, cols: cols, data: make([]uint64, rows*cols)}
}

// Full creates a tensor with every element set to v.
func Full(rows, cols int, v uint64) *Ring {
	t := Zeros(rows, cols)
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// Dims returns the shape.
func (t *Ring) Dims() (int, int) { return t.rows, t.cols }

// Len returns the number of elements.
func (t *Ring) Len() int { return len(t.data) }

// Data exposes the backing slice in row-major order.
func (t *Ring) Data() []uint64 { return t.data }

// At returns element (i, j).
func (t *Ring) At(i, j int) uint64 { return t.data[i*t.cols+j] }

// Set sets element (i, j).
func (t *Ring) Set(i, j int, v uint64) { t.data[i*t.cols+j] = v }

// Clone returns a deep copy.
func (t *Ring) Clone() *Ring {
	data := make([]uint64, len(t.data))
	copy(data, t.data)
	return &Ring{rows: t.rows, cols: t.cols, data: data}
}

// SameShape reports whether t and o have identical dimensions.
func (t *Ring) SameShape(o *Ring) bool {
	return t.rows == o.rows && t.cols == o.cols
}

// Equal reports whether t and o have the same shape and elements.
func (t *Ring) Equal(o *Ring) bool {
	if !t.SameShape(o) {
		return false
	}
	for i, v := range t.data {
		if o.data[i] != v {
			return false
		}
	}
	return true
}

func (t *Ring) String() string {
	return fmt.Sprintf("Ring(%dx%d)", t.rows, t.cols)
}

func (t *Ring) mustMatch(op string, o *Ring) {
	if !t.SameShape(o) {
		panic(errors.NewValueError(op, fmt.Sprintf("shape mismatch %dx%d vs %dx%d", t.rows, t.cols, o.rows, o.cols)))
	}
}

func (t *Ring) zip(op string, o *Ring, f func(a, b uint64) uint64) *Ring {
	t.mustMatch(op, o)
	out := &Ring{rows: t.rows, cols: t.cols, data: make([]uint64, len(t.data))}
	for i, v := range t.data {
		out.data[i] = f(v, o.data[i])
	}
	return out
}

func (t *Ring) each(f func(a uint64) uint64) *Ring {
	out := &Ring{rows: t.rows, cols: t.cols, data: make([]uint64, len(t.data))}
	for i, v := range t.data {
		out.data[i] = f(v)
	}
	return out
}

// Add returns t + o.
func (t *Ring) Add(o *Ring) *Ring {
	return t.zip("Ring.Add", o, func(a, b uint64) uint64 { return a + b })
}

// Sub returns t - o.
func (t *Ring) Sub(o *Ring) *Ring {
	return t.zip("Ring.Sub", o, func(a, b uint64) uint64 { return a - b })
}

// Mul returns the elementwise product.
func (t *Ring) Mul(o *Ring) *Ring {
	return t.zip("Ring.Mul", o, func(a, b uint64) uint64 { return a * b })
}

// Neg returns -t.
func (t *Ring) Neg() *Ring {
	return t.each(func(a uint64) uint64 { return -a })
}

// Scale multiplies every element by k.
func (t *Ring) Scale(k uint64) *Ring {
	return t.each(func(a uint64) uint64 { return a * k })
}

// AddScalar adds k to every element.
func (t *Ring) AddScalar(k uint64) *Ring {
	return t.each(func(a uint64) uint64 { return a + k })
}

// ShiftRightArith shifts every element right by bits, treating it as a
// two's-complement int64.
func (t *Ring) ShiftRightArith(bits uint) *Ring {
	return t.each(func(a uint64) uint64 { return uint64(int64(a) >> bits) })
}

// MatMul returns the matrix product t·o.
func (t *Ring) MatMul(o *Ring) *Ring {
	if t.cols != o.rows {
		panic(errors.NewDimensionError("Ring.MatMul", t.cols, o.rows, 0))
	}
	out := Zeros(t.rows, o.cols)
	for i := 0; i < t.rows; i++ {
		row := t.data[i*t.cols : (i+1)*t.cols]
		dst := out.data[i*o.cols : (i+1)*o.cols]
		for k, a := range row {
			if a == 0 {
				continue
			}
			src := o.data[k*o.cols : (k+1)*o.cols]
			for j, b := range src {
				dst[j] += a * b
			}
		}
	}
	return out
}

// Transpose returns tᵀ.
func (t *Ring) Transpose() *Ring {
	out := Zeros(t.cols, t.rows)
	for i := 0; i < t.rows; i++ {
		for j := 0; j < t.cols; j++ {
			out.data[j*t.rows+i] = t.data[i*t.cols+j]
		}
	}
	return out
}

// SliceRows returns a copy of rows [begin, end).
func (t *Ring) SliceRows(begin, end int) *Ring {
	if begin < 0 || end > t.rows || begin >= end {
		panic(errors.NewValueError("Ring.SliceRows", fmt.Sprintf("invalid row range [%d, %d) for %d rows", begin, end, t.rows)))
	}
	data := make([]uint64, (end-begin)*t.cols)
	copy(data, t.data[begin*t.cols:end*t.cols])
	return &Ring{rows: end - begin, cols: t.cols, data: data}
}

// HStack concatenates t and o column-wise.
func (t *Ring) HStack(o *Ring) *Ring {
	if t.rows != o.rows {
		panic(errors.NewDimensionError("Ring.HStack", t.rows, o.rows, 0))
	}
	cols := t.cols + o.cols
	out := Zeros(t.rows, cols)
	for i := 0; i < t.rows; i++ {
		copy(out.data[i*cols:], t.data[i*t.cols:(i+1)*t.cols])
		copy(out.data[i*cols+t.cols:], o.data[i*o.cols:(i+1)*o.cols])
	}
	return out
}

// VStack concatenates t and o row-wise.
func (t *Ring) VStack(o *Ring) *Ring {
	if t.cols != o.cols {
		panic(errors.NewDimensionError("Ring.VStack", t.cols, o.cols, 1))
	}
	data := make([]uint64, 0, len(t.data)+len(o.data))
	data = append(data, t.data...)
	data = append(data, o.data...)
	return &Ring{rows: t.rows + o.rows, cols: t.cols, data: data}
}

// Xor returns t ^ o.
func (t *Ring) Xor(o *Ring) *Ring {
	return t.zip("Ring.Xor", o, func(a, b uint64) uint64 { return a ^ b })
}

// And returns t & o.
func (t *Ring) And(o *Ring) *Ring {
	return t.zip("Ring.And", o, func(a, b uint64) uint64 { return a & b })
}

// Not returns ^t.
func (t *Ring) Not() *Ring {
	return t.each(func(a uint64) uint64 { return ^a })
}

// Shl shifts every element left by bits.
func (t *Ring) Shl(bits uint) *Ring {
	return t.each(func(a uint64) uint64 { return a << bits })
}

// Shr shifts every element right by bits (logical).
func (t *Ring) Shr(bits uint) *Ring {
	return t.each(func(a uint64) uint64 { return a >> bits })
}

// MarshalBinary encodes the shape followed by the elements, little endian.
func (t *Ring) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8+8*len(t.data))
	binary.LittleEndian.PutUint32(buf[0:], uint32(t.rows))
	binary.LittleEndian.PutUint32(buf[4:], uint32(t.cols))
	for i, v := range t.data {
		binary.LittleEndian.PutUint64(buf[8+8*i:], v)
	}
	return buf, nil
}

// UnmarshalBinary decodes a buffer produced by MarshalBinary.
func (t *Ring) UnmarshalBinary(buf []byte) error {
	if len(buf) < 8 {
		return errors.NewValueError("Ring.UnmarshalBinary", "buffer too short")
	}
	rows := int(binary.LittleEndian.Uint32(buf[0:]))
	cols := int(binary.LittleEndian.Uint32(buf[4:]))
	if len(buf) != 8+8*rows*cols {
		return errors.NewDimensionError("Ring.UnmarshalBinary", 8+8*rows*cols, len(buf), 0)
	}
	data := make([]uint64, rows*cols)
	for i := range data {
		data[i] = binary.LittleEndian.Uint64(buf[8+8*i:])
	}
	t.rows, t.cols, t.data = rows, cols, data
	return nil
}
