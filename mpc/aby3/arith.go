package aby3

import (
	"context"

	"github.com/ezoic/sealedml/core/tensor"
	"github.com/ezoic/sealedml/pkg/errors"
)

// reshare turns this party's additive part z_i into a replicated share by
// passing it to the previous party.
func (p *Party) reshare(ctx context.Context, op string, z *tensor.Ring) (Share, error) {
	in, err := p.exchange(ctx, op, z)
	if err != nil {
		return Share{}, err
	}
	return Share{A: z, B: in}, nil
}

// MulRaw multiplies elementwise without truncation. The result carries the
// sum of the operands' fractional bits.
func (p *Party) MulRaw(ctx context.Context, x, y Share) (out Share, err error) {
	defer errors.Recover(&err, "Party.MulRaw")
	if err := p.ready(); err != nil {
		return Share{}, err
	}
	rows, cols := x.Dims()
	z := x.A.Mul(y.A).Add(x.A.Mul(y.B)).Add(x.B.Mul(y.A)).Add(p.zeroShare(rows, cols))
	return p.reshare(ctx, "mul", z)
}

// MatMulRaw computes x·y without truncation.
func (p *Party) MatMulRaw(ctx context.Context, x, y Share) (out Share, err error) {
	defer errors.Recover(&err, "Party.MatMulRaw")
	if err := p.ready(); err != nil {
		return Share{}, err
	}
	_, xc := x.Dims()
	yr, _ := y.Dims()
	if xc != yr {
		return Share{}, errors.NewDimensionError("Party.MatMul", xc, yr, 0)
	}
	z := x.A.MatMul(y.A).Add(x.A.MatMul(y.B)).Add(x.B.MatMul(y.A))
	rows, cols := z.Dims()
	z = z.Add(p.zeroShare(rows, cols))
	return p.reshare(ctx, "matmul", z)
}

// Mul multiplies two fixed-point sharings elementwise.
func (p *Party) Mul(ctx context.Context, x, y Share) (Share, error) {
	z, err := p.MulRaw(ctx, x, y)
	if err != nil {
		return Share{}, err
	}
	return p.Trunc(ctx, z, p.fracBits)
}

// MatMul computes the fixed-point matrix product x·y.
func (p *Party) MatMul(ctx context.Context, x, y Share) (Share, error) {
	z, err := p.MatMulRaw(ctx, x, y)
	if err != nil {
		return Share{}, err
	}
	return p.Trunc(ctx, z, p.fracBits)
}

// MulConst multiplies by a real constant.
func (p *Party) MulConst(ctx context.Context, x Share, v float64) (Share, error) {
	return p.Trunc(ctx, x.Scale(tensor.EncodeValue(v, p.fracBits)), p.fracBits)
}

// Trunc divides by 2^bits. The opened value x - r is uniformly distributed,
// and the result is off by at most one unit in the last place. It is wrong
// with probability about |x| / 2^63.
func (p *Party) Trunc(ctx context.Context, x Share, bits uint) (out Share, err error) {
	defer errors.Recover(&err, "Party.Trunc")
	if err := p.ready(); err != nil {
		return Share{}, err
	}
	rows, cols := x.Dims()
	r, rShifted, err := p.dealer.TruncPair(p.id, p.nextSeq(), rows, cols, bits)
	if err != nil {
		return Share{}, err
	}
	c, err := p.Reveal(ctx, x.Sub(r))
	if err != nil {
		return Share{}, err
	}
	return p.AddPublic(rShifted, c.ShiftRightArith(bits)), nil
}

// Square returns x*x.
func (p *Party) Square(ctx context.Context, x Share) (Share, error) {
	return p.Mul(ctx, x, x)
}
