package metrics_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/sealedml/metrics"
	"github.com/ezoic/sealedml/pkg/errors"
)

func vec(v ...float64) *mat.VecDense { return mat.NewVecDense(len(v), v) }

func TestAUC(t *testing.T) {
	tests := []struct {
		name  string
		yTrue *mat.VecDense
		yPred *mat.VecDense
		want  float64
	}{
		{"perfect", vec(0, 0, 1, 1), vec(0.1, 0.2, 0.8, 0.9), 1},
		{"inverted", vec(0, 0, 1, 1), vec(0.9, 0.8, 0.2, 0.1), 0},
		{"mixed", vec(0, 0, 1, 1), vec(0.1, 0.4, 0.35, 0.8), 0.75},
		{"all tied", vec(0, 1, 0, 1), vec(0.5, 0.5, 0.5, 0.5), 0.5},
		{"partial tie", vec(0, 1, 1), vec(0.3, 0.3, 0.9), 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := metrics.AUC(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestAUC_Errors(t *testing.T) {
	_, err := metrics.AUC(nil, vec(1))
	var ve *errors.ValueError
	assert.ErrorAs(t, err, &ve)

	_, err = metrics.AUC(vec(0, 1), vec(0.5))
	var de *errors.DimensionError
	assert.ErrorAs(t, err, &de)

	_, err = metrics.AUC(vec(1, 1), vec(0.2, 0.3))
	assert.ErrorAs(t, err, &ve)

	_, err = metrics.AUC(vec(0, 2), vec(0.2, 0.3))
	var vale *errors.ValidationError
	assert.ErrorAs(t, err, &vale)
}

func TestAUCMatrix(t *testing.T) {
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	p := mat.NewDense(4, 1, []float64{0.1, 0.4, 0.35, 0.8})
	got, err := metrics.AUCMatrix(y, p)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got, 1e-12)

	_, err = metrics.AUCMatrix(y, mat.NewDense(3, 1, nil))
	var de *errors.DimensionError
	assert.ErrorAs(t, err, &de)
}

func TestROCCurve(t *testing.T) {
	roc, err := metrics.ROCCurve(vec(0, 0, 1, 1), vec(0.1, 0.4, 0.35, 0.8))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0.5, 0.5, 1}, roc.FPR)
	assert.Equal(t, []float64{0, 0.5, 0.5, 1, 1}, roc.TPR)
	assert.True(t, math.IsInf(roc.Thresholds[0], 1))
	assert.Equal(t, []float64{0.8, 0.4, 0.35, 0.1}, roc.Thresholds[1:])
	assert.InDelta(t, 0.75, roc.Area(), 1e-12)
}

func TestBinaryLogLoss(t *testing.T) {
	got, err := metrics.BinaryLogLoss(vec(0, 1), vec(0.5, 0.5))
	require.NoError(t, err)
	assert.InDelta(t, math.Ln2, got, 1e-12)

	// clipped rather than infinite
	got, err = metrics.BinaryLogLoss(vec(1), vec(0))
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(1e-15), got, 1e-9)

	_, err = metrics.BinaryLogLoss(&mat.VecDense{}, &mat.VecDense{})
	assert.ErrorIs(t, err, errors.ErrEmptyData)
}

func TestAccuracy(t *testing.T) {
	acc, err := metrics.Accuracy(vec(0, 1, 1, 0, 1), vec(0, 1, 0, 0, 1))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, acc, 1e-12)

	acc, err = metrics.AccuracyMatrix(mat.NewDense(2, 1, []float64{1, 0}), mat.NewDense(2, 1, []float64{1, 1}))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, acc, 1e-12)
}

func TestSaveROCPlot(t *testing.T) {
	roc, err := metrics.ROCCurve(vec(0, 0, 1, 1, 0, 1), vec(0.1, 0.4, 0.35, 0.8, 0.2, 0.7))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "roc.png")
	require.NoError(t, metrics.SaveROCPlot(roc, "test", path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, metrics.SaveROCPlot(&metrics.ROC{}, "empty", path))
}
