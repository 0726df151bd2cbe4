package aby3

import (
	"context"

	"github.com/ezoic/sealedml/core/tensor"
	"github.com/ezoic/sealedml/pkg/errors"
)

// AndBatch computes xs[k] & ys[k] for every k in a single round.
func (p *Party) AndBatch(ctx context.Context, xs, ys []BoolShare) (out []BoolShare, err error) {
	defer errors.Recover(&err, "Party.AndBatch")
	if err := p.ready(); err != nil {
		return nil, err
	}
	if len(xs) != len(ys) {
		return nil, errors.NewDimensionError("Party.AndBatch", len(xs), len(ys), 0)
	}
	zs := make([]*tensor.Ring, len(xs))
	for k := range xs {
		x, y := xs[k], ys[k]
		zs[k] = x.A.And(y.A).Xor(x.A.And(y.B)).Xor(x.B.And(y.A))
	}
	z := pack(zs...)
	_, n := z.Dims()
	z = z.Xor(p.zeroShareBool(1, n))

	in, err := p.exchange(ctx, "and", z)
	if err != nil {
		return nil, err
	}
	as := unpack(z, zs...)
	bs := unpack(in, zs...)
	out = make([]BoolShare, len(xs))
	for k := range out {
		out[k] = BoolShare{A: as[k], B: bs[k]}
	}
	return out, nil
}

// And computes x & y.
func (p *Party) And(ctx context.Context, x, y BoolShare) (BoolShare, error) {
	out, err := p.AndBatch(ctx, []BoolShare{x}, []BoolShare{y})
	if err != nil {
		return BoolShare{}, err
	}
	return out[0], nil
}

// MSB returns a boolean sharing of the sign bit of x, placed in bit 0.
//
// The dealer supplies r in both arithmetic and boolean form. The parties open
// c = x + r and evaluate x = c + ^r + 1 with a Kogge-Stone adder over the
// boolean shares; only the carry into bit 63 is needed.
func (p *Party) MSB(ctx context.Context, x Share) (out BoolShare, err error) {
	defer errors.Recover(&err, "Party.MSB")
	if err := p.ready(); err != nil {
		return BoolShare{}, err
	}
	rows, cols := x.Dims()
	rA, rB, err := p.dealer.MaskedBits(p.id, p.nextSeq(), rows, cols)
	if err != nil {
		return BoolShare{}, err
	}
	c, err := p.Reveal(ctx, x.Add(rA))
	if err != nil {
		return BoolShare{}, err
	}

	s := p.XorPublic(rB, tensor.Full(rows, cols, ^uint64(0)))
	prop := p.XorPublic(s, c)
	// the carry-in of 1 turns the propagate of bit 0 into a generate
	G := s.AndPublic(c).Xor(prop.AndPublic(tensor.Full(rows, cols, 1)))
	P := prop
	for shift := uint(1); shift < 64; shift <<= 1 {
		if shift == 32 {
			res, err := p.And(ctx, P, G.Shl(shift))
			if err != nil {
				return BoolShare{}, err
			}
			G = G.Xor(res)
			break
		}
		res, err := p.AndBatch(ctx, []BoolShare{P, P}, []BoolShare{G.Shl(shift), P.Shl(shift)})
		if err != nil {
			return BoolShare{}, err
		}
		G = G.Xor(res[0])
		P = res[1]
	}
	return prop.Xor(G.Shl(1)).Shr(63), nil
}

// B2A converts a boolean sharing of single bits (bit 0) into an arithmetic
// sharing of the integers 0 and 1.
func (p *Party) B2A(ctx context.Context, b BoolShare) (out Share, err error) {
	defer errors.Recover(&err, "Party.B2A")
	if err := p.ready(); err != nil {
		return Share{}, err
	}
	rows, cols := b.A.Dims()
	betaA, betaB, err := p.dealer.RandomBits(p.id, p.nextSeq(), rows, cols)
	if err != nil {
		return Share{}, err
	}
	e, err := p.RevealBool(ctx, b.Xor(betaB))
	if err != nil {
		return Share{}, err
	}
	// b = e ^ beta = e + beta - 2*e*beta
	coef := e.Scale(^uint64(1)).AddScalar(1)
	return p.AddPublic(betaA.MulPublic(coef), e), nil
}

// LessThanZero returns an arithmetic sharing of [x < 0] as integers 0/1.
// Use Lift to obtain fixed-point values.
func (p *Party) LessThanZero(ctx context.Context, x Share) (Share, error) {
	msb, err := p.MSB(ctx, x)
	if err != nil {
		return Share{}, err
	}
	return p.B2A(ctx, msb)
}

// GreaterThan returns [x > y] as integers 0/1.
func (p *Party) GreaterThan(ctx context.Context, x, y Share) (Share, error) {
	return p.LessThanZero(ctx, y.Sub(x))
}

// Select returns x where cond is 1 and y where cond is 0. cond must hold the
// integers 0/1, not fixed-point values.
func (p *Party) Select(ctx context.Context, cond, x, y Share) (Share, error) {
	d, err := p.MulRaw(ctx, cond, x.Sub(y))
	if err != nil {
		return Share{}, err
	}
	return y.Add(d), nil
}

// Clip bounds every element of x to [lo, hi]. Both comparisons and both
// corrections are batched.
func (p *Party) Clip(ctx context.Context, x Share, lo, hi float64) (Share, error) {
	if lo > hi {
		return Share{}, errors.NewValueError("Party.Clip", "lo must not exceed hi")
	}
	rows, cols := x.Dims()
	loR := tensor.FullValue(rows, cols, lo, p.fracBits)
	hiR := tensor.FullValue(rows, cols, hi, p.fracBits)

	// below = lo - x > 0, above = x - hi > 0
	toLo := p.AddPublic(x.Neg(), loR)
	toHi := p.AddPublic(x.Neg(), hiR)
	flags, err := p.LessThanZero(ctx, toLo.Neg().VStack(toHi))
	if err != nil {
		return Share{}, err
	}
	corr, err := p.MulRaw(ctx, flags, toLo.VStack(toHi))
	if err != nil {
		return Share{}, err
	}
	return x.Add(corr.SliceRows(0, rows)).Add(corr.SliceRows(rows, 2*rows)), nil
}
