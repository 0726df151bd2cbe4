package lr_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/sealedml/pkg/errors"
	"github.com/ezoic/sealedml/sml/approx"
	"github.com/ezoic/sealedml/sml/lr"
)

func TestPlainLogisticRegression_Learns(t *testing.T) {
	X, y := separable(200)
	m := lr.NewPlainLogisticRegression(
		lr.WithEpochs(10),
		lr.WithBatchSize(16),
		lr.WithLearningRate(0.5),
		lr.WithSigType(approx.SigReal),
	)
	require.NoError(t, m.Fit(X, y))

	pred, err := m.Predict(X)
	require.NoError(t, err)
	n, _ := X.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	assert.GreaterOrEqual(t, float64(correct)/float64(n), 0.9)

	hist := m.LossHistory()
	require.Len(t, hist, 10)
	assert.Less(t, hist[len(hist)-1], hist[0])
}

func TestPlainLogisticRegression_ClassWeightShiftsPredictions(t *testing.T) {
	X, y := separable(100)
	positives := func(opts ...lr.Option) float64 {
		m := lr.NewPlainLogisticRegression(append(opts, lr.WithEpochs(3), lr.WithBatchSize(10))...)
		require.NoError(t, m.Fit(X, y))
		prob, err := m.PredictProba(X)
		require.NoError(t, err)
		return mat.Sum(prob)
	}
	base := positives()
	weighted := positives(lr.WithClassWeight(map[int]float64{0: 1, 1: 5}))
	assert.Greater(t, weighted, base)
}

func TestPlainLogisticRegression_Errors(t *testing.T) {
	m := lr.NewPlainLogisticRegression()
	_, err := m.PredictProba(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.ErrorAs(t, err, &nf)

	_, err = m.ModelWeights()
	assert.ErrorAs(t, err, &nf)

	err = m.Fit(mat.NewDense(3, 2, nil), mat.NewDense(2, 1, nil))
	var de *errors.DimensionError
	assert.ErrorAs(t, err, &de)

	X, y := separable(10)
	require.NoError(t, m.Fit(X, y))
	_, err = m.PredictProba(mat.NewDense(1, 3, nil))
	assert.ErrorAs(t, err, &de)
}

func ExamplePlainLogisticRegression() {
	X := mat.NewDense(4, 1, []float64{-2, -1, 1, 2})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	m := lr.NewPlainLogisticRegression(
		lr.WithEpochs(50),
		lr.WithBatchSize(4),
		lr.WithLearningRate(0.5),
		lr.WithSigType(approx.SigSR),
	)
	if err := m.Fit(X, y); err != nil {
		fmt.Println(err)
		return
	}
	labels, _ := m.Predict(X)
	fmt.Println(mat.Col(nil, 0, labels))
	// Output: [0 0 1 1]
}
