package aby3

import (
	"crypto/cipher"
	"fmt"
	"sync"

	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/kyber/v3/xof/blake2xb"

	"github.com/ezoic/sealedml/core/tensor"
	"github.com/ezoic/sealedml/pkg/errors"
)

type materialKind int

const (
	kindTrunc materialKind = iota
	kindMaskedBits
	kindRandomBits
)

func (k materialKind) String() string {
	switch k {
	case kindTrunc:
		return "trunc pair"
	case kindMaskedBits:
		return "masked bits"
	case kindRandomBits:
		return "random bits"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// material is the correlated randomness handed to one party.
type material struct {
	arith   Share
	shifted Share
	boolean BoolShare
}

type bundle struct {
	kind       materialKind
	rows, cols int
	bits       uint
	parts      [NumParties]material
	taken      [NumParties]bool
}

// Dealer hands out correlated randomness to the three parties.
//
// Parties identify a request by their own request counter; because all
// parties run the same program, the n-th request of every party asks for the
// same material. A bundle is generated on the first request and dropped once
// every party has fetched its part.
type Dealer struct {
	mu      sync.Mutex
	rand    cipher.Stream
	bundles map[uint64]*bundle
}

// DealerOption configures a Dealer.
type DealerOption func(*Dealer)

// WithDealerSeed makes the dealer deterministic.
func WithDealerSeed(seed []byte) DealerOption {
	return func(d *Dealer) {
		d.rand = blake2xb.New(seed)
	}
}

// NewDealer creates a dealer seeded from system randomness unless
// WithDealerSeed is given.
func NewDealer(opts ...DealerOption) *Dealer {
	d := &Dealer{bundles: make(map[uint64]*bundle)}
	for _, opt := range opts {
		opt(d)
	}
	if d.rand == nil {
		d.rand = blake2xb.New(random.Bits(256, false, random.New()))
	}
	return d
}

// Pending returns the number of bundles not yet fetched by every party.
func (d *Dealer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.bundles)
}

// Reset drops all pending bundles. It is used after an aborted run, when
// parties may have stopped at different requests.
func (d *Dealer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bundles = make(map[uint64]*bundle)
}

// TruncPair returns shares of a random r and of r shifted right
// arithmetically by bits.
func (d *Dealer) TruncPair(party int, seq uint64, rows, cols int, bits uint) (Share, Share, error) {
	m, err := d.fetch(party, seq, kindTrunc, rows, cols, bits)
	if err != nil {
		return Share{}, Share{}, err
	}
	return m.arith, m.shifted, nil
}

// MaskedBits returns arithmetic and boolean shares of the same uniformly
// random r.
func (d *Dealer) MaskedBits(party int, seq uint64, rows, cols int) (Share, BoolShare, error) {
	m, err := d.fetch(party, seq, kindMaskedBits, rows, cols, 0)
	if err != nil {
		return Share{}, BoolShare{}, err
	}
	return m.arith, m.boolean, nil
}

// RandomBits returns arithmetic and boolean shares of the same random bits.
func (d *Dealer) RandomBits(party int, seq uint64, rows, cols int) (Share, BoolShare, error) {
	m, err := d.fetch(party, seq, kindRandomBits, rows, cols, 0)
	if err != nil {
		return Share{}, BoolShare{}, err
	}
	return m.arith, m.boolean, nil
}

func (d *Dealer) fetch(party int, seq uint64, kind materialKind, rows, cols int, bits uint) (material, error) {
	if party < 0 || party >= NumParties {
		return material{}, errors.NewValueError("Dealer.fetch", fmt.Sprintf("party %d out of range", party))
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.bundles[seq]
	if !ok {
		b = d.generate(kind, rows, cols, bits)
		d.bundles[seq] = b
	}
	if b.kind != kind || b.rows != rows || b.cols != cols || b.bits != bits {
		return material{}, errors.NewProtocolError(party, "dealer", errors.Newf(
			"request %d: want %s %dx%d/%d, peers asked for %s %dx%d/%d",
			seq, kind, rows, cols, bits, b.kind, b.rows, b.cols, b.bits))
	}
	if b.taken[party] {
		return material{}, errors.NewProtocolError(party, "dealer", errors.Newf("request %d fetched twice", seq))
	}
	b.taken[party] = true
	if b.taken[0] && b.taken[1] && b.taken[2] {
		delete(d.bundles, seq)
	}
	return b.parts[party], nil
}

func (d *Dealer) generate(kind materialKind, rows, cols int, bits uint) *bundle {
	b := &bundle{kind: kind, rows: rows, cols: cols, bits: bits}
	r := randomRing(rows, cols, d.rand)
	if kind == kindRandomBits {
		r = r.And(tensor.Full(rows, cols, 1))
	}
	arith := Split(r, d.rand)
	for i := range b.parts {
		b.parts[i].arith = arith[i]
	}
	switch kind {
	case kindTrunc:
		shifted := Split(r.ShiftRightArith(bits), d.rand)
		for i := range b.parts {
			b.parts[i].shifted = shifted[i]
		}
	case kindMaskedBits, kindRandomBits:
		boolean := SplitBool(r, d.rand)
		for i := range b.parts {
			b.parts[i].boolean = boolean[i]
		}
	}
	return b
}
