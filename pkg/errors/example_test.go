package errors_test

import (
	"context"
	"fmt"

	"go.dedis.ch/kyber/v3/util/random"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/sealedml/core/tensor"
	"github.com/ezoic/sealedml/emulation"
	"github.com/ezoic/sealedml/mpc/aby3"
	"github.com/ezoic/sealedml/mpc/transport/mocknet"
	sealedErrors "github.com/ezoic/sealedml/pkg/errors"
	"github.com/ezoic/sealedml/pkg/log"
	"github.com/ezoic/sealedml/sml/lr"
)

// A failed program is reported as a ProtocolError naming the party that
// failed first; the peers it left waiting are aborted and the emulator
// refuses further runs.
func Example() {
	em, err := emulation.NewEmulator(emulation.ClusterABY3_3PC(), emulation.ModeSimulation,
		emulation.WithLogger(log.Nop()))
	if err != nil {
		fmt.Println(err)
		return
	}
	defer func() { _ = em.Down() }()
	ctx := context.Background()
	if err := em.Up(ctx); err != nil {
		fmt.Println(err)
		return
	}
	x, err := em.Seal(mat.NewDense(1, 1, []float64{1}))
	if err != nil {
		fmt.Println(err)
		return
	}

	proc := func(ctx context.Context, p *aby3.Party, args ...aby3.Share) ([]aby3.Share, error) {
		if p.ID() == 1 {
			return nil, sealedErrors.NewValueError("proc", "bad input")
		}
		_, err := p.Reveal(ctx, args[0])
		return args, err
	}
	_, err = em.Run(ctx, proc, x)

	var pe *sealedErrors.ProtocolError
	if sealedErrors.As(err, &pe) {
		fmt.Println("party:", pe.Party, "step:", pe.Op)
	}
	var ve *sealedErrors.ValueError
	fmt.Println("value error:", sealedErrors.As(err, &ve))

	_, err = em.Run(ctx, proc, x)
	fmt.Println("not up:", sealedErrors.Is(err, sealedErrors.ErrNotUp))

	// Output:
	// party: 1 step: run
	// value error: true
	// not up: true
}

// An aborted link wakes the blocked receive with ErrAborted, attributed to
// the party and the protocol step.
func Example_abortedLink() {
	net := mocknet.NewMockNetwork(aby3.NumParties)
	p, err := aby3.NewParty(0, net[0], aby3.NewDealer())
	if err != nil {
		fmt.Println(err)
		return
	}
	net[0].Abort()

	err = p.Setup(context.Background())
	var pe *sealedErrors.ProtocolError
	if sealedErrors.As(err, &pe) {
		fmt.Println("party:", pe.Party, "step:", pe.Op)
	}
	fmt.Println("aborted:", sealedErrors.Is(err, sealedErrors.ErrAborted))

	// Output:
	// party: 0 step: setup
	// aborted: true
}

// Reconstruct checks that every replicated component matches its copy.
func Example_shareMismatch() {
	x, err := tensor.Encode(mat.NewDense(1, 2, []float64{1.5, -2}), tensor.DefaultFracBits)
	if err != nil {
		fmt.Println(err)
		return
	}
	shares := aby3.Split(x, random.New())
	opened, err := aby3.Reconstruct(shares)
	fmt.Println("opened:", err == nil && opened.Equal(x))

	shares[1].B = shares[1].B.AddScalar(1)
	_, err = aby3.Reconstruct(shares)
	fmt.Println("mismatch:", sealedErrors.Is(err, sealedErrors.ErrShareMismatch))
	fmt.Println(err)

	// Output:
	// opened: true
	// mismatch: true
	// party 1 second component != party 2 first component: replicated shares are inconsistent
}

// Using a model before Fit yields a NotFittedError naming the method.
func Example_notFitted() {
	net := mocknet.NewMockNetwork(aby3.NumParties)
	p, err := aby3.NewParty(0, net[0], aby3.NewDealer())
	if err != nil {
		fmt.Println(err)
		return
	}
	model := lr.NewLogisticRegression()
	_, err = model.PredictProba(context.Background(), p, p.PublicValue(2, 3, 0))

	var nf *sealedErrors.NotFittedError
	if sealedErrors.As(err, &nf) {
		fmt.Println(nf.ModelName, nf.Method)
	}

	// Output:
	// LogisticRegression PredictProba
}
