// Package metrics scores binary classifiers on revealed predictions.
//
// Inputs are gonum vectors or n×1 matrices, the shapes the emulator returns
// from a run:
//
//	auc, err := metrics.AUCMatrix(y, prob)
//
// ROCCurve exposes the points behind AUC and SaveROCPlot renders them.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	sealedErrors "github.com/ezoic/sealedml/pkg/errors"
)

// AUC calculates the area under the ROC curve of scores yPred against binary
// labels yTrue. Tied scores contribute a diagonal segment, so AUC equals the
// probability that a random positive outranks a random negative with ties
// counted as one half.
//
// Both classes must be present.
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	curve, err := ROCCurve(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return curve.Area(), nil
}

// AUCMatrix is AUC on the first column of each matrix.
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("AUCMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return AUC(t, p)
}

// BinaryLogLoss calculates the mean cross-entropy of probabilities yPred
// against binary labels yTrue. Probabilities are clipped to [1e-15, 1-1e-15].
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkPair("BinaryLogLoss", yTrue, yPred); err != nil {
		return 0, err
	}
	if err := checkBinary(yTrue); err != nil {
		return 0, err
	}
	const eps = 1e-15
	n := yTrue.Len()
	loss := 0.0
	for i := 0; i < n; i++ {
		p := math.Min(math.Max(yPred.AtVec(i), eps), 1-eps)
		if yTrue.AtVec(i) == 1 {
			loss -= math.Log(p)
		} else {
			loss -= math.Log(1 - p)
		}
	}
	return loss / float64(n), nil
}

// ClassificationError returns the fraction of labels that differ.
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkPair("ClassificationError", yTrue, yPred); err != nil {
		return 0, err
	}
	n := yTrue.Len()
	wrong := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) != yPred.AtVec(i) {
			wrong++
		}
	}
	return float64(wrong) / float64(n), nil
}

// Accuracy returns the fraction of labels that agree.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	e, err := ClassificationError(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - e, nil
}

// AccuracyMatrix is Accuracy on the first column of each matrix.
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("AccuracyMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return Accuracy(t, p)
}

func checkPair(op string, yTrue, yPred *mat.VecDense) error {
	if yTrue == nil || yPred == nil {
		return sealedErrors.NewValueError(op, "input vectors cannot be nil")
	}
	if yTrue.Len() == 0 {
		return sealedErrors.NewModelError(op, "no samples", sealedErrors.ErrEmptyData)
	}
	if yTrue.Len() != yPred.Len() {
		return sealedErrors.NewDimensionError(op, yTrue.Len(), yPred.Len(), 0)
	}
	return nil
}

func checkBinary(y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return sealedErrors.NewValidationError("yTrue",
				fmt.Sprintf("must contain only 0 or 1, found %g at index %d", v, i), v)
		}
	}
	return nil
}

// columns copies the first column of two matrices into vectors.
func columns(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	if yTrue == nil || yPred == nil {
		return nil, nil, sealedErrors.NewValueError(op, "input matrices cannot be nil")
	}
	r1, c1 := yTrue.Dims()
	r2, c2 := yPred.Dims()
	if r1 == 0 || c1 == 0 || r2 == 0 || c2 == 0 {
		return nil, nil, sealedErrors.NewModelError(op, "no samples", sealedErrors.ErrEmptyData)
	}
	if r1 != r2 {
		return nil, nil, sealedErrors.NewDimensionError(op, r1, r2, 0)
	}
	return mat.NewVecDense(r1, mat.Col(nil, 0, yTrue)), mat.NewVecDense(r2, mat.Col(nil, 0, yPred)), nil
}
