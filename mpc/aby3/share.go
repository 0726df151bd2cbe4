// Package aby3 implements 3-party replicated secret sharing over Z_2^64.
//
// A secret x is split into x = x0 + x1 + x2 and party i holds the pair
// (x_i, x_{i+1}), indices mod 3. Any two parties can reconstruct x; a single
// party learns nothing. Real values are carried in two's-complement fixed
// point (see core/tensor).
//
// Linear operations are local. Multiplication, truncation and comparison
// need one or more communication rounds and, for truncation and comparison,
// correlated randomness from a trusted Dealer. All three parties must call
// the same operations in the same order.
package aby3

import (
	"crypto/cipher"
	"encoding/binary"

	"github.com/ezoic/sealedml/core/tensor"
	"github.com/ezoic/sealedml/pkg/errors"
)

// NumParties is the number of computing parties.
const NumParties = 3

// Share is one party's view of an arithmetic sharing.
type Share struct {
	A, B *tensor.Ring
}

// BoolShare is one party's view of a boolean (XOR) sharing.
type BoolShare struct {
	A, B *tensor.Ring
}

// Dims returns the shape of the shared tensor.
func (s Share) Dims() (int, int) { return s.A.Dims() }

// Add returns s + o.
func (s Share) Add(o Share) Share { return Share{s.A.Add(o.A), s.B.Add(o.B)} }

// Sub returns s - o.
func (s Share) Sub(o Share) Share { return Share{s.A.Sub(o.A), s.B.Sub(o.B)} }

// Neg returns -s.
func (s Share) Neg() Share { return Share{s.A.Neg(), s.B.Neg()} }

// Scale multiplies by a public ring element. No truncation is applied.
func (s Share) Scale(k uint64) Share { return Share{s.A.Scale(k), s.B.Scale(k)} }

// MulPublic multiplies elementwise by a public tensor of the same shape.
func (s Share) MulPublic(c *tensor.Ring) Share { return Share{s.A.Mul(c), s.B.Mul(c)} }

// MatMulPublic returns s·c for a public right operand.
func (s Share) MatMulPublic(c *tensor.Ring) Share {
	return Share{s.A.MatMul(c), s.B.MatMul(c)}
}

// Transpose returns sᵀ.
func (s Share) Transpose() Share { return Share{s.A.Transpose(), s.B.Transpose()} }

// SliceRows returns rows [begin, end).
func (s Share) SliceRows(begin, end int) Share {
	return Share{s.A.SliceRows(begin, end), s.B.SliceRows(begin, end)}
}

// HStack concatenates column-wise.
func (s Share) HStack(o Share) Share { return Share{s.A.HStack(o.A), s.B.HStack(o.B)} }

// VStack concatenates row-wise.
func (s Share) VStack(o Share) Share { return Share{s.A.VStack(o.A), s.B.VStack(o.B)} }

// Xor returns s ^ o.
func (s BoolShare) Xor(o BoolShare) BoolShare { return BoolShare{s.A.Xor(o.A), s.B.Xor(o.B)} }

// AndPublic masks both components with a public tensor.
func (s BoolShare) AndPublic(c *tensor.Ring) BoolShare {
	return BoolShare{s.A.And(c), s.B.And(c)}
}

// Shl shifts every element left.
func (s BoolShare) Shl(bits uint) BoolShare { return BoolShare{s.A.Shl(bits), s.B.Shl(bits)} }

// Shr shifts every element right (logical).
func (s BoolShare) Shr(bits uint) BoolShare { return BoolShare{s.A.Shr(bits), s.B.Shr(bits)} }

// Split produces the three replicated arithmetic shares of x.
func Split(x *tensor.Ring, rand cipher.Stream) [NumParties]Share {
	rows, cols := x.Dims()
	var parts [NumParties]*tensor.Ring
	parts[0] = randomRing(rows, cols, rand)
	parts[1] = randomRing(rows, cols, rand)
	parts[2] = x.Sub(parts[0]).Sub(parts[1])

	var out [NumParties]Share
	for i := range out {
		out[i] = Share{A: parts[i], B: parts[(i+1)%NumParties].Clone()}
	}
	return out
}

// SplitBool produces the three replicated boolean shares of x.
func SplitBool(x *tensor.Ring, rand cipher.Stream) [NumParties]BoolShare {
	rows, cols := x.Dims()
	var parts [NumParties]*tensor.Ring
	parts[0] = randomRing(rows, cols, rand)
	parts[1] = randomRing(rows, cols, rand)
	parts[2] = x.Xor(parts[0]).Xor(parts[1])

	var out [NumParties]BoolShare
	for i := range out {
		out[i] = BoolShare{A: parts[i], B: parts[(i+1)%NumParties].Clone()}
	}
	return out
}

// Reconstruct recombines the shares of all parties. It fails with
// ErrShareMismatch when the replicated components disagree.
func Reconstruct(shares [NumParties]Share) (*tensor.Ring, error) {
	for i := range shares {
		next := shares[(i+1)%NumParties]
		if shares[i].A == nil || shares[i].B == nil {
			return nil, errors.NewValueError("aby3.Reconstruct", "missing share component")
		}
		if !shares[i].B.Equal(next.A) {
			return nil, errors.Wrapf(errors.ErrShareMismatch, "party %d second component != party %d first component",
				i, (i+1)%NumParties)
		}
	}
	return shares[0].A.Add(shares[1].A).Add(shares[2].A), nil
}

// ReconstructBool recombines boolean shares.
func ReconstructBool(shares [NumParties]BoolShare) (*tensor.Ring, error) {
	for i := range shares {
		next := shares[(i+1)%NumParties]
		if !shares[i].B.Equal(next.A) {
			return nil, errors.Wrapf(errors.ErrShareMismatch, "party %d second component != party %d first component",
				i, (i+1)%NumParties)
		}
	}
	return shares[0].A.Xor(shares[1].A).Xor(shares[2].A), nil
}

func randomRing(rows, cols int, rand cipher.Stream) *tensor.Ring {
	out := tensor.Zeros(rows, cols)
	fillRandom(out.Data(), rand)
	return out
}

func fillRandom(dst []uint64, rand cipher.Stream) {
	buf := make([]byte, 8*len(dst))
	rand.XORKeyStream(buf, buf)
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint64(buf[8*i:])
	}
}

// pack flattens several tensors into one row so that they travel in a
// single message.
func pack(rs ...*tensor.Ring) *tensor.Ring {
	n := 0
	for _, r := range rs {
		n += r.Len()
	}
	data := make([]uint64, 0, n)
	for _, r := range rs {
		data = append(data, r.Data()...)
	}
	out, _ := tensor.New(1, n, data)
	return out
}

// unpack splits a packed row back into tensors shaped like like.
func unpack(packed *tensor.Ring, like ...*tensor.Ring) []*tensor.Ring {
	out := make([]*tensor.Ring, len(like))
	data := packed.Data()
	off := 0
	for i, l := range like {
		rows, cols := l.Dims()
		chunk := make([]uint64, rows*cols)
		copy(chunk, data[off:off+rows*cols])
		off += rows * cols
		out[i], _ = tensor.New(rows, cols, chunk)
	}
	return out
}
