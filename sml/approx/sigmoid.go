// Package approx provides MPC-friendly approximations of the sigmoid
// function, both on secret shares and in plain float64.
package approx

import (
	"context"
	"math"
	"strings"

	"github.com/ezoic/sealedml/mpc/aby3"
	"github.com/ezoic/sealedml/pkg/errors"
)

// SigType selects a sigmoid approximation.
type SigType string

const (
	// SigT1 is the first-order Taylor expansion at 0: 0.5 + x/4.
	SigT1 SigType = "t1"
	// SigT3 adds the third-order term: - x^3/48.
	SigT3 SigType = "t3"
	// SigT5 adds the fifth-order term: + x^5/480.
	SigT5 SigType = "t5"
	// SigSeg3 is the three-segment line 0.5 + x/8 clipped to [0, 1].
	SigSeg3 SigType = "seg3"
	// SigSR is the square-root form 0.5 + 0.5*x/sqrt(1+x^2).
	SigSR SigType = "sr"
	// SigReal is the exact logistic function. It has no MPC evaluation.
	SigReal SigType = "real"
	// SigDF is the exact function evaluated through exp and division. It
	// has no MPC evaluation either.
	SigDF SigType = "df"
)

// ParseSigType parses the lower-case name of a sigmoid approximation.
func ParseSigType(s string) (SigType, error) {
	t := SigType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case SigT1, SigT3, SigT5, SigSeg3, SigSR, SigReal, SigDF:
		return t, nil
	}
	return "", errors.NewValidationError("sig_type", "unknown sigmoid approximation", s)
}

// Secure reports whether t can be evaluated on secret shares.
func (t SigType) Secure() bool {
	switch t {
	case SigT1, SigT3, SigT5, SigSeg3, SigSR:
		return true
	}
	return false
}

const (
	defaultSRBound      = 16.0
	defaultSRIterations = 12
	seg3Bound           = 4.0
)

type config struct {
	srBound      float64
	srIterations int
}

// Option tunes an approximation.
type Option func(*config)

// WithSRBound sets the clipping bound applied before the square-root form.
// Beyond it the sigmoid is within 2e-3 of 0 or 1.
func WithSRBound(b float64) Option {
	return func(c *config) { c.srBound = b }
}

// WithSRIterations sets the number of Newton steps of the inverse square
// root.
func WithSRIterations(n int) Option {
	return func(c *config) { c.srIterations = n }
}

func newConfig(opts []Option) (*config, error) {
	c := &config{srBound: defaultSRBound, srIterations: defaultSRIterations}
	for _, opt := range opts {
		opt(c)
	}
	if c.srBound <= 0 {
		return nil, errors.NewValidationError("sr_bound", "must be positive", c.srBound)
	}
	if c.srIterations <= 0 {
		return nil, errors.NewValidationError("sr_iterations", "must be positive", c.srIterations)
	}
	return c, nil
}

// Sigmoid evaluates the approximation t on a secret-shared tensor.
func Sigmoid(ctx context.Context, p *aby3.Party, x aby3.Share, t SigType, opts ...Option) (aby3.Share, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return aby3.Share{}, err
	}
	switch t {
	case SigT1:
		return taylor(ctx, p, x, 1)
	case SigT3:
		return taylor(ctx, p, x, 3)
	case SigT5:
		return taylor(ctx, p, x, 5)
	case SigSeg3:
		return seg3(ctx, p, x)
	case SigSR:
		return squareRoot(ctx, p, x, cfg)
	case SigReal, SigDF:
		return aby3.Share{}, errors.NewModelError("Sigmoid", "sig_type "+string(t), errors.ErrNotImplemented)
	}
	return aby3.Share{}, errors.NewValidationError("sig_type", "unknown sigmoid approximation", string(t))
}

func taylor(ctx context.Context, p *aby3.Party, x aby3.Share, order int) (aby3.Share, error) {
	out, err := p.Trunc(ctx, x, 2)
	if err != nil {
		return aby3.Share{}, err
	}
	out = p.AddConst(out, 0.5)
	if order < 3 {
		return out, nil
	}

	x2, err := p.Square(ctx, x)
	if err != nil {
		return aby3.Share{}, err
	}
	x3, err := p.Mul(ctx, x2, x)
	if err != nil {
		return aby3.Share{}, err
	}
	t3, err := p.MulConst(ctx, x3, -1.0/48)
	if err != nil {
		return aby3.Share{}, err
	}
	out = out.Add(t3)
	if order < 5 {
		return out, nil
	}

	x5, err := p.Mul(ctx, x3, x2)
	if err != nil {
		return aby3.Share{}, err
	}
	t5, err := p.MulConst(ctx, x5, 1.0/480)
	if err != nil {
		return aby3.Share{}, err
	}
	return out.Add(t5), nil
}

func seg3(ctx context.Context, p *aby3.Party, x aby3.Share) (aby3.Share, error) {
	xc, err := p.Clip(ctx, x, -seg3Bound, seg3Bound)
	if err != nil {
		return aby3.Share{}, err
	}
	out, err := p.Trunc(ctx, xc, 3)
	if err != nil {
		return aby3.Share{}, err
	}
	return p.AddConst(out, 0.5), nil
}

// squareRoot evaluates 0.5 + 0.5*x*rsqrt(1+x^2). The Newton iteration
// y <- y*(3 - a*y^2)/2 starts below 1/sqrt(a) for every clipped x, which
// keeps it monotone and convergent.
func squareRoot(ctx context.Context, p *aby3.Party, x aby3.Share, cfg *config) (aby3.Share, error) {
	xc, err := p.Clip(ctx, x, -cfg.srBound, cfg.srBound)
	if err != nil {
		return aby3.Share{}, err
	}
	x2, err := p.Square(ctx, xc)
	if err != nil {
		return aby3.Share{}, err
	}
	a := p.AddConst(x2, 1)

	rows, cols := x.Dims()
	y := p.PublicValue(rows, cols, 1/math.Sqrt(1+cfg.srBound*cfg.srBound))
	for i := 0; i < cfg.srIterations; i++ {
		y2, err := p.Square(ctx, y)
		if err != nil {
			return aby3.Share{}, err
		}
		ay2, err := p.Mul(ctx, a, y2)
		if err != nil {
			return aby3.Share{}, err
		}
		t := p.AddConst(ay2.Neg(), 3)
		raw, err := p.MulRaw(ctx, y, t)
		if err != nil {
			return aby3.Share{}, err
		}
		if y, err = p.Trunc(ctx, raw, p.FracBits()+1); err != nil {
			return aby3.Share{}, err
		}
	}

	raw, err := p.MulRaw(ctx, xc, y)
	if err != nil {
		return aby3.Share{}, err
	}
	half, err := p.Trunc(ctx, raw, p.FracBits()+1)
	if err != nil {
		return aby3.Share{}, err
	}
	return p.AddConst(half, 0.5), nil
}

// SigmoidFloat evaluates t on a plain value. SigReal and SigDF are the exact
// logistic function here.
func SigmoidFloat(x float64, t SigType, opts ...Option) (float64, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return 0, err
	}
	switch t {
	case SigT1:
		return 0.5 + x/4, nil
	case SigT3:
		return 0.5 + x/4 - x*x*x/48, nil
	case SigT5:
		return 0.5 + x/4 - x*x*x/48 + x*x*x*x*x/480, nil
	case SigSeg3:
		return 0.5 + clip(x, -seg3Bound, seg3Bound)/8, nil
	case SigSR:
		xc := clip(x, -cfg.srBound, cfg.srBound)
		return 0.5 + 0.5*xc/math.Sqrt(1+xc*xc), nil
	case SigReal, SigDF:
		return 1 / (1 + math.Exp(-x)), nil
	}
	return 0, errors.NewValidationError("sig_type", "unknown sigmoid approximation", string(t))
}

func clip(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
