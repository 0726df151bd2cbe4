package lr

import (
	"fmt"
	"strings"

	"github.com/ezoic/sealedml/pkg/errors"
	"github.com/ezoic/sealedml/sml/approx"
)

// Solver selects the optimiser.
type Solver string

// Penalty selects the regularisation term.
type Penalty string

// MultiClass selects the multi-class strategy.
type MultiClass string

const (
	SolverSGD Solver = "sgd"

	PenaltyNone       Penalty = "none"
	PenaltyL1         Penalty = "l1"
	PenaltyL2         Penalty = "l2"
	PenaltyElasticNet Penalty = "elasticnet"

	MultiClassBinary MultiClass = "binary"
	MultiClassOVR    MultiClass = "ovr"
)

// Params holds the hyperparameters shared by the secure and the plain model.
// BatchSize is capped at the sample count; rows past the last full batch are
// skipped in every epoch.
type Params struct {
	Epochs       int
	LearningRate float64
	BatchSize    int
	Solver       Solver
	Penalty      Penalty
	SigType      approx.SigType
	L2Norm       float64
	// ClassWeight maps class 0 and 1 to a sample weight. Nil weighs every
	// sample 1.
	ClassWeight map[int]float64
	MultiClass  MultiClass
	SigOptions  []approx.Option
}

// DefaultParams returns the defaults of a LogisticRegression.
func DefaultParams() Params {
	return Params{
		Epochs:       20,
		LearningRate: 0.1,
		BatchSize:    512,
		Solver:       SolverSGD,
		Penalty:      PenaltyNone,
		SigType:      approx.SigSR,
		L2Norm:       0.5,
		MultiClass:   MultiClassBinary,
	}
}

// Option configures a model.
type Option func(*Params)

// WithEpochs sets the number of passes over the training data.
func WithEpochs(n int) Option {
	return func(p *Params) { p.Epochs = n }
}

// WithLearningRate sets the SGD step size.
func WithLearningRate(lr float64) Option {
	return func(p *Params) { p.LearningRate = lr }
}

// WithBatchSize sets the mini-batch size.
func WithBatchSize(n int) Option {
	return func(p *Params) { p.BatchSize = n }
}

// WithSolver sets the optimiser.
func WithSolver(s Solver) Option {
	return func(p *Params) { p.Solver = s }
}

// WithPenalty sets the regularisation term.
func WithPenalty(pen Penalty) Option {
	return func(p *Params) { p.Penalty = pen }
}

// WithSigType sets the sigmoid approximation.
func WithSigType(t approx.SigType, opts ...approx.Option) Option {
	return func(p *Params) {
		p.SigType = t
		p.SigOptions = opts
	}
}

// WithL2Norm sets the strength of the l2 penalty.
func WithL2Norm(v float64) Option {
	return func(p *Params) { p.L2Norm = v }
}

// WithClassWeight sets per-class sample weights.
func WithClassWeight(w map[int]float64) Option {
	return func(p *Params) {
		if w == nil {
			p.ClassWeight = nil
			return
		}
		p.ClassWeight = make(map[int]float64, len(w))
		for k, v := range w {
			p.ClassWeight[k] = v
		}
	}
}

// WithMultiClass sets the multi-class strategy.
func WithMultiClass(m MultiClass) Option {
	return func(p *Params) { p.MultiClass = m }
}

// ParsePenalty parses a penalty name.
func ParsePenalty(s string) (Penalty, error) {
	switch pen := Penalty(strings.ToLower(s)); pen {
	case PenaltyNone, PenaltyL1, PenaltyL2, PenaltyElasticNet:
		return pen, nil
	}
	return "", errors.NewValidationError("penalty", "unknown penalty", s)
}

// ParseClassWeight parses "none" or "0:w0,1:w1".
func ParseClassWeight(s string) (map[int]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return nil, nil
	}
	if strings.EqualFold(s, "balanced") {
		return nil, errors.NewModelError("ParseClassWeight", "class_weight balanced", errors.ErrUnsupported)
	}
	out := make(map[int]float64)
	for _, part := range strings.Split(s, ",") {
		var class int
		var w float64
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d:%g", &class, &w); err != nil {
			return nil, errors.NewValidationError("class_weight", "expected class:weight pairs", s)
		}
		out[class] = w
	}
	return out, nil
}

// Validate checks that the secure runtime can train with p.
func (p Params) Validate() error {
	if p.Epochs <= 0 {
		return errors.NewValidationError("epochs", "must be positive", p.Epochs)
	}
	if p.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	}
	if p.BatchSize <= 0 {
		return errors.NewValidationError("batch_size", "must be positive", p.BatchSize)
	}
	if p.Solver != SolverSGD {
		return errors.NewModelError("LogisticRegression", "solver "+string(p.Solver), errors.ErrUnsupported)
	}
	switch p.Penalty {
	case PenaltyNone, PenaltyL2:
	case PenaltyL1, PenaltyElasticNet:
		return errors.NewModelError("LogisticRegression", "penalty "+string(p.Penalty), errors.ErrUnsupported)
	default:
		return errors.NewValidationError("penalty", "unknown penalty", p.Penalty)
	}
	if p.L2Norm < 0 {
		return errors.NewValidationError("l2_norm", "must not be negative", p.L2Norm)
	}
	if p.MultiClass != MultiClassBinary {
		return errors.NewModelError("LogisticRegression", "multi_class "+string(p.MultiClass), errors.ErrUnsupported)
	}
	for class, w := range p.ClassWeight {
		if class != 0 && class != 1 {
			return errors.NewValidationError("class_weight", "only classes 0 and 1 exist", class)
		}
		if w <= 0 {
			return errors.NewValidationError("class_weight", "weights must be positive", w)
		}
	}
	return nil
}

// classWeights returns the weights of class 0 and class 1.
func (p Params) classWeights() (w0, w1 float64) {
	w0, w1 = 1, 1
	if v, ok := p.ClassWeight[0]; ok {
		w0 = v
	}
	if v, ok := p.ClassWeight[1]; ok {
		w1 = v
	}
	return w0, w1
}

// Map returns the hyperparameters as strings, for logs and saved weights.
func (p Params) Map() map[string]string {
	cw := "none"
	if p.ClassWeight != nil {
		w0, w1 := p.classWeights()
		cw = fmt.Sprintf("0:%g,1:%g", w0, w1)
	}
	return map[string]string{
		"epochs":        fmt.Sprint(p.Epochs),
		"learning_rate": fmt.Sprint(p.LearningRate),
		"batch_size":    fmt.Sprint(p.BatchSize),
		"solver":        string(p.Solver),
		"penalty":       string(p.Penalty),
		"sig_type":      string(p.SigType),
		"l2_norm":       fmt.Sprint(p.L2Norm),
		"class_weight":  cw,
		"multi_class":   string(p.MultiClass),
	}
}
