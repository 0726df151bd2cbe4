// Package emulation runs three ABY3 parties inside one process so that secure
// programs can be developed and measured without a real deployment.
//
// The emulator owns the transport, the parties and the dealer:
//
//	em, err := emulation.NewEmulator(emulation.ClusterABY3_3PC(), emulation.ModeMultiProcess,
//		emulation.WithBandwidth(300), emulation.WithLatency(20*time.Millisecond))
//	if err != nil {
//		return err
//	}
//	defer em.Down()
//	if err := em.Up(ctx); err != nil {
//		return err
//	}
//	x, err := em.Seal(X)
//	...
//	out, err := em.Run(ctx, proc, x)
//
// Run reveals every share the program returns; Seal and Run are the only
// places where plaintext crosses the boundary.
package emulation

import (
	"context"
	"crypto/cipher"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/sealedml/core/tensor"
	"github.com/ezoic/sealedml/mpc/aby3"
	"github.com/ezoic/sealedml/mpc/transport"
	"github.com/ezoic/sealedml/mpc/transport/mocknet"
	"github.com/ezoic/sealedml/mpc/transport/tcpnet"
	"github.com/ezoic/sealedml/pkg/errors"
	"github.com/ezoic/sealedml/pkg/log"
)

// Mode selects how the parties are connected.
type Mode int

const (
	// ModeMultiProcess runs every party on its own goroutine connected by
	// loopback TCP sockets.
	ModeMultiProcess Mode = iota
	// ModeSimulation connects the parties with in-memory queues.
	ModeSimulation
)

func (m Mode) String() string {
	switch m {
	case ModeMultiProcess:
		return "MULTIPROCESS"
	case ModeSimulation:
		return "SIMULATION"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MULTIPROCESS", "MULTI_PROCESS":
		return ModeMultiProcess, nil
	case "SIMULATION", "SIM":
		return ModeSimulation, nil
	}
	return 0, errors.NewValidationError("mode", "expected MULTIPROCESS or SIMULATION", s)
}

type state int

const (
	stateNew state = iota
	stateUp
	stateBroken
	stateDown
)

// Proc is the program every party executes on its own shares. It returns the
// shares to reveal.
type Proc func(ctx context.Context, p *aby3.Party, args ...aby3.Share) ([]aby3.Share, error)

// Sealed is a matrix split into replicated shares, one per party.
type Sealed struct {
	shares     [aby3.NumParties]aby3.Share
	rows, cols int
}

// Dims returns the shape of the sealed matrix.
func (s *Sealed) Dims() (int, int) { return s.rows, s.cols }

// Share returns the share held by party.
func (s *Sealed) Share(party int) aby3.Share { return s.shares[party] }

// Emulator is an in-process three party cluster.
type Emulator struct {
	cfg     ClusterConfig
	mode    Mode
	profile transport.LinkProfile
	seed    []byte
	logger  log.Logger

	mu       sync.Mutex
	state    state
	raw      []transport.Messenger
	parties  []*aby3.Party
	dealer   *aby3.Dealer
	sealRand cipher.Stream

	// counters is read by Stats without mu so it never waits for a Run
	counters atomic.Pointer[[]*transport.Counting]
}

// Option configures an Emulator.
type Option func(*Emulator)

// WithBandwidth limits every party's outgoing link to mbps megabits per
// second.
func WithBandwidth(mbps float64) Option {
	return func(e *Emulator) { e.profile.BandwidthMbps = mbps }
}

// WithLatency delays every message by d.
func WithLatency(d time.Duration) Option {
	return func(e *Emulator) { e.profile.Latency = d }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(e *Emulator) { e.logger = l }
}

// WithSeed makes the dealer and Seal deterministic. Use for tests only.
func WithSeed(seed []byte) Option {
	return func(e *Emulator) { e.seed = append([]byte(nil), seed...) }
}

// NewEmulator validates cfg and returns an emulator that is not yet up.
func NewEmulator(cfg ClusterConfig, mode Mode, opts ...Option) (*Emulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mode != ModeMultiProcess && mode != ModeSimulation {
		return nil, errors.NewValidationError("mode", "unknown mode", int(mode))
	}
	e := &Emulator{
		cfg:    cfg,
		mode:   mode,
		logger: log.GetLoggerWithName("emulation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.profile.BandwidthMbps < 0 || e.profile.Latency < 0 {
		return nil, errors.NewValidationError("link", "bandwidth and latency must not be negative", e.profile)
	}
	e.logger = e.logger.With(log.ComponentKey, "emulator", log.ModeKey, mode.String())
	return e, nil
}

// Mode returns the connection mode.
func (e *Emulator) Mode() Mode { return e.mode }

// Up connects the parties and runs their key agreement.
func (e *Emulator) Up(ctx context.Context) (err error) {
	defer errors.Recover(&err, "Emulator.Up")
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case stateUp, stateBroken:
		return errors.New("emulator: already up")
	case stateDown:
		return errors.New("emulator: already down")
	}
	start := time.Now()

	raw, err := e.connect(ctx)
	if err != nil {
		return err
	}
	e.raw = raw

	var dealerOpts []aby3.DealerOption
	if e.seed != nil {
		dealerOpts = append(dealerOpts, aby3.WithDealerSeed(append([]byte("dealer:"), e.seed...)))
		e.sealRand = blake2xb.New(append([]byte("seal:"), e.seed...))
	} else {
		e.sealRand = random.New()
	}
	e.dealer = aby3.NewDealer(dealerOpts...)

	counters := make([]*transport.Counting, aby3.NumParties)
	e.parties = make([]*aby3.Party, aby3.NumParties)
	for i, m := range raw {
		link := m
		if e.profile.Enabled() {
			link = transport.NewShaped(m, e.profile)
		}
		counters[i] = transport.NewCounting(link)
		p, err := aby3.NewParty(i, counters[i], e.dealer,
			aby3.WithFracBits(e.cfg.Runtime.FxpFractionBits),
			aby3.WithPartyLogger(e.logger),
		)
		if err != nil {
			e.closeLinks()
			return err
		}
		e.parties[i] = p
	}
	e.counters.Store(&counters)

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range e.parties {
		g.Go(func() error { return p.Setup(gctx) })
	}
	if err := g.Wait(); err != nil {
		e.closeLinks()
		return errors.Wrap(err, "emulator: key agreement")
	}

	e.state = stateUp
	e.logger.Info("Cluster up",
		log.PhaseKey, log.PhaseSetup,
		log.ProtocolKey, e.cfg.Runtime.Protocol,
		"cluster", e.cfg.Name,
		"bandwidth_mbps", e.profile.BandwidthMbps,
		"latency_ms", e.profile.Latency.Milliseconds(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (e *Emulator) connect(ctx context.Context) ([]transport.Messenger, error) {
	out := make([]transport.Messenger, aby3.NumParties)
	switch e.mode {
	case ModeSimulation:
		for i, m := range mocknet.NewMockNetwork(aby3.NumParties) {
			out[i] = m
		}
	default:
		ms, err := tcpnet.Listen(e.cfg.Addresses())
		if err != nil {
			return nil, err
		}
		if err := tcpnet.Connect(ctx, ms); err != nil {
			return nil, err
		}
		for i, m := range ms {
			e.logger.Debug("Party listening", log.PartyKey, i, "address", m.Addr())
			out[i] = m
		}
	}
	return out, nil
}

// Seal encodes x to fixed point and splits it into shares. The matrix must be
// non-empty; vectors are sealed as n×1 matrices by the caller.
func (e *Emulator) Seal(x mat.Matrix) (*Sealed, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateUp {
		return nil, e.notUp("Seal")
	}
	if x == nil {
		return nil, errors.NewValueError("Emulator.Seal", "nil matrix")
	}
	r, err := tensor.Encode(x, e.cfg.Runtime.FxpFractionBits)
	if err != nil {
		return nil, err
	}
	rows, cols := x.Dims()
	e.logger.Debug("Data sealed", log.OperationKey, log.OperationSeal, log.SamplesKey, rows, log.FeaturesKey, cols)
	return &Sealed{shares: aby3.Split(r, e.sealRand), rows: rows, cols: cols}, nil
}

// Run executes proc on every party concurrently and reveals the returned
// shares. When a party fails every link is aborted so that no party stays
// blocked, and the emulator can no longer run programs.
func (e *Emulator) Run(ctx context.Context, proc Proc, args ...*Sealed) (_ []*mat.Dense, err error) {
	defer errors.Recover(&err, "Emulator.Run")
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateUp {
		return nil, e.notUp("Run")
	}
	for i, a := range args {
		if a == nil {
			return nil, errors.NewValueError("Emulator.Run", fmt.Sprintf("argument %d is nil", i))
		}
	}
	start := time.Now()
	e.logger.Info("Running program", log.OperationKey, log.OperationRun, "args", len(args))

	var (
		results   [aby3.NumParties][]aby3.Share
		failures  [aby3.NumParties]error
		abortOnce sync.Once
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range e.parties {
		g.Go(func() error {
			shares := make([]aby3.Share, len(args))
			for k, a := range args {
				shares[k] = a.Share(i)
			}
			out, err := proc(gctx, p, shares...)
			if err != nil {
				abortOnce.Do(e.abortLinks)
				failures[i] = errors.NewProtocolError(i, "run", err)
				return failures[i]
			}
			results[i] = out
			return nil
		})
	}
	if g.Wait() != nil {
		err := rootCause(failures[:])
		e.state = stateBroken
		e.logger.Error("Program failed", log.OperationKey, log.OperationRun, "error", err)
		return nil, err
	}

	outputs, err := e.reveal(results)
	if err != nil {
		e.state = stateBroken
		return nil, err
	}
	if pending := e.dealer.Pending(); pending != 0 {
		e.logger.Warn("Dealer material left unused", "bundles", pending)
	}
	e.logger.Info("Program finished",
		log.OperationKey, log.OperationRun,
		"outputs", len(outputs),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return outputs, nil
}

// rootCause prefers the failure that triggered the abort over the ones the
// abort caused.
func rootCause(failures []error) error {
	var first error
	for _, err := range failures {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		if !errors.Is(err, errors.ErrAborted) && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return first
}

func (e *Emulator) reveal(results [aby3.NumParties][]aby3.Share) ([]*mat.Dense, error) {
	n := len(results[0])
	for i := 1; i < aby3.NumParties; i++ {
		if len(results[i]) != n {
			return nil, errors.NewProtocolError(i, "reveal",
				errors.Newf("returned %d outputs, party 0 returned %d", len(results[i]), n))
		}
	}
	outputs := make([]*mat.Dense, n)
	for k := 0; k < n; k++ {
		var shares [aby3.NumParties]aby3.Share
		for i := range shares {
			shares[i] = results[i][k]
		}
		r, err := aby3.Reconstruct(shares)
		if err != nil {
			return nil, errors.Wrapf(err, "output %d", k)
		}
		outputs[k] = r.Decode(e.cfg.Runtime.FxpFractionBits)
	}
	return outputs, nil
}

// Stats returns the traffic counters of every party. Before Up it returns
// nil. It may be called while a Run is in flight.
func (e *Emulator) Stats() []transport.Stats {
	counters := e.counters.Load()
	if counters == nil {
		return nil
	}
	out := make([]transport.Stats, len(*counters))
	for i, c := range *counters {
		if c != nil {
			out[i] = c.Stats()
		}
	}
	return out
}

// Down closes every link. It is safe to call more than once and before Up.
func (e *Emulator) Down() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateDown {
		return nil
	}
	wasUp := e.raw != nil
	e.state = stateDown
	if !wasUp {
		return nil
	}
	for i, s := range e.Stats() {
		e.logger.Info("Party traffic",
			log.PhaseKey, log.PhaseTeardown,
			log.PartyKey, i,
			log.BytesKey, s.BytesSent,
			log.MessagesKey, s.MessagesSent,
			"bytes_received", s.BytesReceived,
			"messages_received", s.MessagesRecv,
		)
	}
	err := e.closeLinks()
	e.logger.Info("Cluster down", log.PhaseKey, log.PhaseTeardown)
	return err
}

func (e *Emulator) abortLinks() {
	for _, m := range e.raw {
		m.Abort()
	}
}

func (e *Emulator) closeLinks() error {
	var errs []error
	for i, m := range e.raw {
		if err := m.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "close party %d", i))
		}
	}
	e.raw = nil
	if e.dealer != nil {
		e.dealer.Reset()
	}
	return errors.Join(errs...)
}

func (e *Emulator) notUp(op string) error {
	if e.state == stateBroken {
		return errors.NewModelError("Emulator."+op, "a previous run failed", errors.ErrNotUp)
	}
	return errors.NewModelError("Emulator."+op, "call Up first", errors.ErrNotUp)
}
