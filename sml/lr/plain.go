package lr

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/sealedml/core/model"
	"github.com/ezoic/sealedml/core/parallel"
	sealedErrors "github.com/ezoic/sealedml/pkg/errors"
	"github.com/ezoic/sealedml/pkg/log"
	"github.com/ezoic/sealedml/sml/approx"
)

const parallelThreshold = 1000

// PlainLogisticRegression runs the same mini-batch SGD as LogisticRegression
// on plain float64 data. It serves as the reference the secure model is
// compared against.
type PlainLogisticRegression struct {
	state  *model.StateManager
	params Params

	mu          sync.RWMutex
	weights     *mat.VecDense // bias last
	lossHistory []float64

	logger log.Logger
}

// NewPlainLogisticRegression creates an untrained plain model.
func NewPlainLogisticRegression(opts ...Option) *PlainLogisticRegression {
	params := DefaultParams()
	for _, opt := range opts {
		opt(&params)
	}
	return &PlainLogisticRegression{
		state:  model.NewStateManager(),
		params: params,
		logger: log.GetLoggerWithName("sml.lr").With(
			log.ModelNameKey, "PlainLogisticRegression",
			log.ComponentKey, "sml",
		),
	}
}

// Fit trains on X (n×d) and y (n×1, values 0/1).
func (m *PlainLogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer sealedErrors.Recover(&err, "PlainLogisticRegression.Fit")

	if err := m.params.Validate(); err != nil {
		return err
	}
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return sealedErrors.NewModelError("PlainLogisticRegression.Fit", "empty data", sealedErrors.ErrEmptyData)
	}
	ny, cy := y.Dims()
	if ny != n {
		return sealedErrors.NewDimensionError("PlainLogisticRegression.Fit", n, ny, 0)
	}
	if cy != 1 {
		return sealedErrors.NewValueError("PlainLogisticRegression.Fit", "y must be a column vector")
	}

	m.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.FeaturesKey, d,
	)

	xa := withBiasColumn(X)
	w := mat.NewVecDense(d+1, nil)
	w0, w1 := m.params.classWeights()
	batchSize := min(m.params.BatchSize, n)
	batches := n / batchSize

	history := make([]float64, 0, m.params.Epochs)
	for epoch := 0; epoch < m.params.Epochs; epoch++ {
		for b := 0; b < batches; b++ {
			begin := b * batchSize
			xb := xa.Slice(begin, begin+batchSize, 0, d+1)
			rows := batchSize

			var z mat.VecDense
			z.MulVec(xb, w)
			diff := mat.NewVecDense(rows, nil)
			for i := 0; i < rows; i++ {
				s, err := approx.SigmoidFloat(z.AtVec(i), m.params.SigType, m.params.SigOptions...)
				if err != nil {
					return err
				}
				yi := y.At(begin+i, 0)
				e := s - yi
				if m.params.ClassWeight != nil {
					e *= w0 + (w1-w0)*yi
				}
				diff.SetVec(i, e)
			}
			var grad mat.VecDense
			grad.MulVec(xb.T(), diff)
			if m.params.Penalty == PenaltyL2 {
				for j := 0; j < d; j++ {
					grad.SetVec(j, grad.AtVec(j)+m.params.L2Norm*w.AtVec(j))
				}
			}
			w.AddScaledVec(w, -m.params.LearningRate/float64(rows), &grad)
		}
		loss, err := m.logLoss(xa, y, w)
		if err != nil {
			return err
		}
		history = append(history, loss)
		m.logger.Debug("Epoch finished", log.EpochKey, epoch, "loss", loss)
	}

	if len(history) > 1 && history[len(history)-1] > history[0] {
		sealedErrors.Warn(sealedErrors.NewConvergenceWarning("sgd", m.params.Epochs,
			"training loss increased; consider a smaller learning rate"))
	}

	m.mu.Lock()
	m.weights = w
	m.lossHistory = history
	m.mu.Unlock()
	m.state.SetFitted()
	return nil
}

func (m *PlainLogisticRegression) logLoss(xa *mat.Dense, y mat.Matrix, w *mat.VecDense) (float64, error) {
	prob, err := m.probabilities(xa, w)
	if err != nil {
		return 0, err
	}
	n := prob.Len()
	const eps = 1e-15
	var sum float64
	for i := 0; i < n; i++ {
		p := math.Min(math.Max(prob.AtVec(i), eps), 1-eps)
		yi := y.At(i, 0)
		sum -= yi*math.Log(p) + (1-yi)*math.Log(1-p)
	}
	return sum / float64(n), nil
}

func (m *PlainLogisticRegression) probabilities(xa *mat.Dense, w *mat.VecDense) (*mat.VecDense, error) {
	var z mat.VecDense
	z.MulVec(xa, w)
	n := z.Len()
	out := mat.NewVecDense(n, nil)

	var (
		errMu    sync.Mutex
		firstErr error
	)
	parallel.ParallelizeWithThreshold(n, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			s, err := approx.SigmoidFloat(z.AtVec(i), m.params.SigType, m.params.SigOptions...)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return
			}
			out.SetVec(i, s)
		}
	})
	return out, firstErr
}

// PredictProba returns the probability of class 1 as an n×1 matrix.
func (m *PlainLogisticRegression) PredictProba(X mat.Matrix) (_ *mat.Dense, err error) {
	defer sealedErrors.Recover(&err, "PlainLogisticRegression.PredictProba")
	if !m.state.IsFitted() {
		return nil, sealedErrors.NewNotFittedError("PlainLogisticRegression", "PredictProba")
	}
	m.mu.RLock()
	w := m.weights
	m.mu.RUnlock()
	_, d := X.Dims()
	if d+1 != w.Len() {
		return nil, sealedErrors.NewDimensionError("PlainLogisticRegression.PredictProba", w.Len()-1, d, 1)
	}
	prob, err := m.probabilities(withBiasColumn(X), w)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(prob.Len(), 1, prob.RawVector().Data), nil
}

// Predict returns labels 0/1 as an n×1 matrix.
func (m *PlainLogisticRegression) Predict(X mat.Matrix) (*mat.Dense, error) {
	prob, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := prob.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if prob.At(i, 0) > 0.5 {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// LossHistory returns the training log loss after each epoch.
func (m *PlainLogisticRegression) LossHistory() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]float64, len(m.lossHistory))
	copy(out, m.lossHistory)
	return out
}

// ModelWeights returns the trained weights.
func (m *PlainLogisticRegression) ModelWeights() (*model.ModelWeights, error) {
	if !m.state.IsFitted() {
		return nil, sealedErrors.NewNotFittedError("PlainLogisticRegression", "ModelWeights")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	col := make([]float64, m.weights.Len())
	copy(col, m.weights.RawVector().Data)
	w := weightsFromColumn(col, m.params)
	w.ModelType = "PlainLogisticRegression"
	return w, nil
}

func withBiasColumn(X mat.Matrix) *mat.Dense {
	n, d := X.Dims()
	out := mat.NewDense(n, d+1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			out.Set(i, j, X.At(i, j))
		}
		out.Set(i, d, 1)
	}
	return out
}
