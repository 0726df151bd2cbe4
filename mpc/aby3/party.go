package aby3

import (
	"context"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/sealedml/core/tensor"
	"github.com/ezoic/sealedml/mpc/transport"
	"github.com/ezoic/sealedml/pkg/errors"
	"github.com/ezoic/sealedml/pkg/log"
)

const prgKeySize = 256 // bits

// Party is one computing party of the 3PC runtime. A Party is not safe for
// concurrent use; every operation must be issued by a single goroutine.
type Party struct {
	id       int
	net      transport.Messenger
	dealer   *Dealer
	fracBits uint
	seq      uint64

	// prgSelf is shared with the previous party, prgNext with the next one.
	prgSelf kyber.XOF
	prgNext kyber.XOF

	logger log.Logger
}

// PartyOption configures a Party.
type PartyOption func(*Party)

// WithFracBits sets the number of fixed-point fractional bits.
func WithFracBits(bits uint) PartyOption {
	return func(p *Party) { p.fracBits = bits }
}

// WithPartyLogger sets the logger.
func WithPartyLogger(l log.Logger) PartyOption {
	return func(p *Party) { p.logger = l }
}

// NewParty creates party id talking over net and drawing correlated
// randomness from dealer. Setup must be called before any interactive
// operation.
func NewParty(id int, net transport.Messenger, dealer *Dealer, opts ...PartyOption) (*Party, error) {
	if id < 0 || id >= NumParties {
		return nil, errors.NewValidationError("id", "must be in [0, 3)", id)
	}
	if net == nil || dealer == nil {
		return nil, errors.NewValueError("aby3.NewParty", "messenger and dealer are required")
	}
	p := &Party{
		id:       id,
		net:      net,
		dealer:   dealer,
		fracBits: tensor.DefaultFracBits,
		logger:   log.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fracBits == 0 || p.fracBits > 30 {
		return nil, errors.NewValidationError("fracBits", "must be in [1, 30]", p.fracBits)
	}
	p.logger = p.logger.With(log.PartyKey, id)
	return p, nil
}

// ID returns the party index.
func (p *Party) ID() int { return p.id }

// FracBits returns the fixed-point precision.
func (p *Party) FracBits() uint { return p.fracBits }

func (p *Party) next() int { return (p.id + 1) % NumParties }
func (p *Party) prev() int { return (p.id + NumParties - 1) % NumParties }

func (p *Party) nextSeq() uint64 {
	p.seq++
	return p.seq
}

// Setup agrees on the pairwise PRG keys used for zero sharing. Each party
// samples a key and hands it to the previous party.
func (p *Party) Setup(ctx context.Context) (err error) {
	defer errors.Recover(&err, "Party.Setup")

	key := random.Bits(prgKeySize, false, random.New())
	if err := p.net.MessageSend(ctx, p.prev(), key); err != nil {
		return errors.NewProtocolError(p.id, "setup", err)
	}
	nextKey, err := p.net.MessageReceive(ctx, p.next())
	if err != nil {
		return errors.NewProtocolError(p.id, "setup", err)
	}
	p.prgSelf = blake2xb.New(key)
	p.prgNext = blake2xb.New(nextKey)
	p.seq = 0
	p.logger.Debug("PRG keys agreed", log.PhaseKey, log.PhaseSetup)
	return nil
}

func (p *Party) ready() error {
	if p.prgSelf == nil || p.prgNext == nil {
		return errors.NewProtocolError(p.id, "ready", errors.New("Setup has not been run"))
	}
	return nil
}

// zeroShare returns this party's part of a fresh 3-out-of-3 sharing of zero.
func (p *Party) zeroShare(rows, cols int) *tensor.Ring {
	a := randomRing(rows, cols, p.prgSelf)
	b := randomRing(rows, cols, p.prgNext)
	return a.Sub(b)
}

func (p *Party) zeroShareBool(rows, cols int) *tensor.Ring {
	a := randomRing(rows, cols, p.prgSelf)
	b := randomRing(rows, cols, p.prgNext)
	return a.Xor(b)
}

func (p *Party) send(ctx context.Context, to int, r *tensor.Ring) error {
	buf, err := r.MarshalBinary()
	if err != nil {
		return err
	}
	return p.net.MessageSend(ctx, to, buf)
}

func (p *Party) recv(ctx context.Context, from int) (*tensor.Ring, error) {
	buf, err := p.net.MessageReceive(ctx, from)
	if err != nil {
		return nil, err
	}
	r := new(tensor.Ring)
	if err := r.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return r, nil
}

// exchange sends out to the previous party and receives the matching
// tensor from the next one.
func (p *Party) exchange(ctx context.Context, op string, out *tensor.Ring) (*tensor.Ring, error) {
	if err := p.send(ctx, p.prev(), out); err != nil {
		return nil, errors.NewProtocolError(p.id, op, err)
	}
	in, err := p.recv(ctx, p.next())
	if err != nil {
		return nil, errors.NewProtocolError(p.id, op, err)
	}
	if !in.SameShape(out) {
		r, c := out.Dims()
		ir, ic := in.Dims()
		if r != ir {
			return nil, errors.NewProtocolError(p.id, op, errors.NewDimensionError(op, r, ir, 0))
		}
		return nil, errors.NewProtocolError(p.id, op, errors.NewDimensionError(op, c, ic, 1))
	}
	return in, nil
}

// Public returns this party's share of a public tensor.
func (p *Party) Public(c *tensor.Ring) Share {
	rows, cols := c.Dims()
	switch p.id {
	case 0:
		return Share{A: c.Clone(), B: tensor.Zeros(rows, cols)}
	case 2:
		return Share{A: tensor.Zeros(rows, cols), B: c.Clone()}
	default:
		return Share{A: tensor.Zeros(rows, cols), B: tensor.Zeros(rows, cols)}
	}
}

// PublicValue returns a share of a tensor filled with the fixed-point
// encoding of v.
func (p *Party) PublicValue(rows, cols int, v float64) Share {
	return p.Public(tensor.FullValue(rows, cols, v, p.fracBits))
}

// AddPublic returns s + c for a public tensor c.
func (p *Party) AddPublic(s Share, c *tensor.Ring) Share {
	out := Share{A: s.A, B: s.B}
	switch p.id {
	case 0:
		out.A = s.A.Add(c)
	case 2:
		out.B = s.B.Add(c)
	}
	return out
}

// AddConst adds the fixed-point constant v to every element.
func (p *Party) AddConst(s Share, v float64) Share {
	rows, cols := s.Dims()
	return p.AddPublic(s, tensor.FullValue(rows, cols, v, p.fracBits))
}

// XorPublic returns s ^ c for a public tensor c.
func (p *Party) XorPublic(s BoolShare, c *tensor.Ring) BoolShare {
	out := BoolShare{A: s.A, B: s.B}
	switch p.id {
	case 0:
		out.A = s.A.Xor(c)
	case 2:
		out.B = s.B.Xor(c)
	}
	return out
}

// AppendConstColumn appends a column filled with the fixed-point value v.
func (p *Party) AppendConstColumn(s Share, v float64) Share {
	rows, _ := s.Dims()
	return s.HStack(p.PublicValue(rows, 1, v))
}

// Lift turns a sharing of integers (such as comparison results) into a
// sharing of the same values in fixed point.
func (p *Party) Lift(s Share) Share {
	return s.Scale(uint64(1) << p.fracBits)
}

// Reveal opens s to every party.
func (p *Party) Reveal(ctx context.Context, s Share) (out *tensor.Ring, err error) {
	defer errors.Recover(&err, "Party.Reveal")
	if err := p.ready(); err != nil {
		return nil, err
	}
	missing, err := p.exchange(ctx, "reveal", s.B)
	if err != nil {
		return nil, err
	}
	return s.A.Add(s.B).Add(missing), nil
}

// RevealBool opens a boolean sharing to every party.
func (p *Party) RevealBool(ctx context.Context, s BoolShare) (out *tensor.Ring, err error) {
	defer errors.Recover(&err, "Party.RevealBool")
	if err := p.ready(); err != nil {
		return nil, err
	}
	missing, err := p.exchange(ctx, "reveal", s.B)
	if err != nil {
		return nil, err
	}
	return s.A.Xor(s.B).Xor(missing), nil
}

// RevealFloat opens s and decodes it from fixed point.
func (p *Party) RevealFloat(ctx context.Context, s Share) (*mat.Dense, error) {
	r, err := p.Reveal(ctx, s)
	if err != nil {
		return nil, err
	}
	return r.Decode(p.fracBits), nil
}
