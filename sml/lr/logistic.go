// Package lr implements binary logistic regression trained with mini-batch
// SGD, both on secret shares (LogisticRegression) and in plain float64
// (PlainLogisticRegression).
//
// The secure model is run by each of the three parties on its own shares:
//
//	model := lr.NewLogisticRegression(lr.WithEpochs(3), lr.WithBatchSize(8))
//	if err := model.Fit(ctx, party, x, y); err != nil {
//		return err
//	}
//	prob, err := model.PredictProba(ctx, party, x)
//
// Weights never leave the shared domain unless RevealWeights is called by
// every party.
package lr

import (
	"context"
	"sync"
	"time"

	"github.com/ezoic/sealedml/core/model"
	"github.com/ezoic/sealedml/core/tensor"
	"github.com/ezoic/sealedml/mpc/aby3"
	sealedErrors "github.com/ezoic/sealedml/pkg/errors"
	"github.com/ezoic/sealedml/pkg/log"
	"github.com/ezoic/sealedml/sml/approx"
)

const modelName = "LogisticRegression"

// LogisticRegression is a secret-shared binary logistic regression.
type LogisticRegression struct {
	state  *model.StateManager
	params Params

	mu        sync.RWMutex
	weights   aby3.Share // (nFeatures+1)×1, bias last
	nFeatures int

	logger log.Logger
}

// NewLogisticRegression creates an untrained model.
func NewLogisticRegression(opts ...Option) *LogisticRegression {
	params := DefaultParams()
	for _, opt := range opts {
		opt(&params)
	}
	return &LogisticRegression{
		state:  model.NewStateManager(),
		params: params,
		logger: log.GetLoggerWithName("sml.lr").With(
			log.ModelNameKey, modelName,
			log.ComponentKey, "sml",
		),
	}
}

// Params returns a copy of the hyperparameters.
func (m *LogisticRegression) Params() Params { return m.params }

// IsFitted reports whether Fit has completed.
func (m *LogisticRegression) IsFitted() bool { return m.state.IsFitted() }

// Fit trains the model on shared features x (n×d) and labels y (n×1).
func (m *LogisticRegression) Fit(ctx context.Context, p *aby3.Party, x, y aby3.Share) (err error) {
	defer sealedErrors.Recover(&err, "LogisticRegression.Fit")

	if err := m.params.Validate(); err != nil {
		return err
	}
	if !m.params.SigType.Secure() {
		return sealedErrors.NewModelError("Sigmoid", "sig_type "+string(m.params.SigType), sealedErrors.ErrNotImplemented)
	}
	n, d := x.Dims()
	ny, cy := y.Dims()
	if ny != n {
		return sealedErrors.NewDimensionError("LogisticRegression.Fit", n, ny, 0)
	}
	if cy != 1 {
		return sealedErrors.NewValueError("LogisticRegression.Fit", "y must be a column vector")
	}
	if n == 0 {
		return sealedErrors.NewModelError("LogisticRegression.Fit", "no rows", sealedErrors.ErrEmptyData)
	}

	logger := m.logger.With(log.PartyKey, p.ID())
	start := time.Now()
	info := partyInfo(logger, p)
	info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.FeaturesKey, d,
	)

	// rows past the last full batch are not trained on
	batchSize := min(m.params.BatchSize, n)
	batches := n / batchSize
	xa := p.AppendConstColumn(x, 1)
	w := p.PublicValue(d+1, 1, 0)
	// l2 leaves the bias out
	biasMask := tensor.Full(d+1, 1, 1)
	biasMask.Set(d, 0, 0)
	w0, w1 := m.params.classWeights()

	batch := 0
	for epoch := 0; epoch < m.params.Epochs; epoch++ {
		for b := 0; b < batches; b++ {
			begin, end := b*batchSize, (b+1)*batchSize
			xb := xa.SliceRows(begin, end)
			yb := y.SliceRows(begin, end)

			w, err = m.step(ctx, p, xb, yb, w, biasMask, w0, w1)
			if err != nil {
				return sealedErrors.Wrapf(err, "epoch %d batch %d", epoch, batch)
			}
			batch++
		}
		logger.Debug("Epoch finished", log.EpochKey, epoch, log.BatchKey, batch)
	}

	m.mu.Lock()
	m.weights = w
	m.nFeatures = d
	m.mu.Unlock()
	m.state.SetFitted()

	info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (m *LogisticRegression) step(ctx context.Context, p *aby3.Party, xb, yb, w aby3.Share,
	biasMask *tensor.Ring, w0, w1 float64) (aby3.Share, error) {
	z, err := p.MatMul(ctx, xb, w)
	if err != nil {
		return aby3.Share{}, err
	}
	pred, err := approx.Sigmoid(ctx, p, z, m.params.SigType, m.params.SigOptions...)
	if err != nil {
		return aby3.Share{}, err
	}
	diff := pred.Sub(yb)
	if m.params.ClassWeight != nil {
		// sample weight is w0 for y=0 and w1 for y=1
		sw, err := p.MulConst(ctx, yb, w1-w0)
		if err != nil {
			return aby3.Share{}, err
		}
		if diff, err = p.Mul(ctx, diff, p.AddConst(sw, w0)); err != nil {
			return aby3.Share{}, err
		}
	}
	grad, err := p.MatMul(ctx, xb.Transpose(), diff)
	if err != nil {
		return aby3.Share{}, err
	}
	if m.params.Penalty == PenaltyL2 {
		reg, err := p.MulConst(ctx, w.MulPublic(biasMask), m.params.L2Norm)
		if err != nil {
			return aby3.Share{}, err
		}
		grad = grad.Add(reg)
	}
	rows, _ := xb.Dims()
	delta, err := p.MulConst(ctx, grad, m.params.LearningRate/float64(rows))
	if err != nil {
		return aby3.Share{}, err
	}
	return w.Sub(delta), nil
}

func (m *LogisticRegression) checkInput(op string, x aby3.Share) error {
	if !m.state.IsFitted() {
		return sealedErrors.NewNotFittedError(modelName, op)
	}
	_, d := x.Dims()
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d != m.nFeatures {
		return sealedErrors.NewDimensionError("LogisticRegression."+op, m.nFeatures, d, 1)
	}
	return nil
}

// PredictProba returns the shared probability of class 1 for every row.
func (m *LogisticRegression) PredictProba(ctx context.Context, p *aby3.Party, x aby3.Share) (prob aby3.Share, err error) {
	defer sealedErrors.Recover(&err, "LogisticRegression.PredictProba")
	if err := m.checkInput("PredictProba", x); err != nil {
		return aby3.Share{}, err
	}
	n, _ := x.Dims()
	partyInfo(m.logger.With(log.PartyKey, p.ID()), p)("Predicting probabilities",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.SamplesKey, n,
	)
	return m.predictProba(ctx, p, x)
}

func (m *LogisticRegression) predictProba(ctx context.Context, p *aby3.Party, x aby3.Share) (aby3.Share, error) {
	m.mu.RLock()
	w := m.weights
	m.mu.RUnlock()

	z, err := p.MatMul(ctx, p.AppendConstColumn(x, 1), w)
	if err != nil {
		return aby3.Share{}, err
	}
	return approx.Sigmoid(ctx, p, z, m.params.SigType, m.params.SigOptions...)
}

// Predict returns shared labels, 1.0 where the probability exceeds 0.5.
func (m *LogisticRegression) Predict(ctx context.Context, p *aby3.Party, x aby3.Share) (labels aby3.Share, err error) {
	defer sealedErrors.Recover(&err, "LogisticRegression.Predict")
	if err := m.checkInput("Predict", x); err != nil {
		return aby3.Share{}, err
	}
	n, _ := x.Dims()
	partyInfo(m.logger.With(log.PartyKey, p.ID()), p)("Predicting labels",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.PredsKey, n,
	)
	prob, err := m.predictProba(ctx, p, x)
	if err != nil {
		return aby3.Share{}, err
	}
	above, err := p.LessThanZero(ctx, p.AddConst(prob.Neg(), 0.5))
	if err != nil {
		return aby3.Share{}, err
	}
	return p.Lift(above), nil
}

// Weights returns this party's share of the (d+1)×1 weights, bias last.
func (m *LogisticRegression) Weights() (aby3.Share, error) {
	if !m.state.IsFitted() {
		return aby3.Share{}, sealedErrors.NewNotFittedError(modelName, "Weights")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.weights, nil
}

// RevealWeights opens the weights. Every party must call it.
func (m *LogisticRegression) RevealWeights(ctx context.Context, p *aby3.Party) (*model.ModelWeights, error) {
	w, err := m.Weights()
	if err != nil {
		return nil, err
	}
	dense, err := p.RevealFloat(ctx, w)
	if err != nil {
		return nil, err
	}
	partyInfo(m.logger.With(log.PartyKey, p.ID()), p)("Weights revealed", log.OperationKey, log.OperationReveal)
	return weightsFromColumn(dense.RawMatrix().Data, m.params), nil
}

func weightsFromColumn(col []float64, params Params) *model.ModelWeights {
	d := len(col) - 1
	coef := make([]float64, d)
	copy(coef, col[:d])
	return &model.ModelWeights{
		ModelType:       modelName,
		Version:         "1",
		Coefficients:    coef,
		Intercept:       col[d],
		Hyperparameters: params.Map(),
	}
}

// partyInfo logs at info level on party 0 and at debug level elsewhere, so
// that a cluster run prints each event once.
func partyInfo(logger log.Logger, p *aby3.Party) func(msg string, fields ...interface{}) {
	if p.ID() == 0 {
		return logger.Info
	}
	return logger.Debug
}
