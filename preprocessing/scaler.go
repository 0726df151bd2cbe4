// Package preprocessing provides feature scaling for the plaintext side of a
// run, before data is sealed.
//
// MinMaxScaler maps each feature linearly onto a target range. Keeping
// features inside a small range such as [-2, 2] matters under fixed-point
// secret sharing: products of scaled features stay far from the encoding
// limit and the sigmoid approximations stay in their accurate region.
//
// Example usage:
//
//	scaler := preprocessing.NewMinMaxScaler([2]float64{-2, 2})
//	scaled, err := scaler.FitTransform(X)
//	if err != nil {
//		log.Fatal(err)
//	}
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/sealedml/core/model"
	"github.com/ezoic/sealedml/core/parallel"
	sealedErrors "github.com/ezoic/sealedml/pkg/errors"
	"github.com/ezoic/sealedml/pkg/log"
)

const (
	// features whose range is below this are treated as constant
	constantTolerance = 1e-8
	parallelThreshold = 1000
)

var _ model.Transformer = (*MinMaxScaler)(nil)

// MinMaxScaler scales every feature to FeatureRange.
type MinMaxScaler struct {
	model.BaseEstimator

	// DataMin and DataMax are the per-feature extremes seen by Fit.
	DataMin []float64
	DataMax []float64

	// Scale is DataMax - DataMin, or 1 for constant features.
	Scale []float64

	NFeatures int

	// FeatureRange is the target [min, max].
	FeatureRange [2]float64

	// Clip bounds transformed values to FeatureRange, for data outside the
	// fitted extremes.
	Clip bool
}

// NewMinMaxScaler creates a scaler onto featureRange.
//
// Example:
//
//	scaler := preprocessing.NewMinMaxScaler([2]float64{-2.0, 2.0})
//	err := scaler.Fit(X_train)
//	X_scaled, err := scaler.Transform(X_test)
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	m := &MinMaxScaler{FeatureRange: featureRange}
	m.SetParams(map[string]interface{}{"feature_range": featureRange, "clip": false})
	return m
}

// NewMinMaxScalerDefault creates a scaler onto [0, 1].
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// WithClip enables clipping of transformed values.
func (m *MinMaxScaler) WithClip(clip bool) *MinMaxScaler {
	m.Clip = clip
	m.SetParams(map[string]interface{}{"clip": clip})
	return m
}

// Fit records the per-feature minimum and maximum of X.
func (m *MinMaxScaler) Fit(X mat.Matrix) (err error) {
	defer sealedErrors.Recover(&err, "MinMaxScaler.Fit")
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return sealedErrors.NewValidationError("feature_range", "minimum must be smaller than maximum", m.FeatureRange)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return sealedErrors.NewModelError("MinMaxScaler.Fit", "empty data", sealedErrors.ErrEmptyData)
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < r; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) {
				return sealedErrors.NewValueError("MinMaxScaler.Fit",
					fmt.Sprintf("NaN in feature %d, row %d", j, i))
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		m.DataMin[j] = lo
		m.DataMax[j] = hi
		if hi-lo < constantTolerance {
			m.Scale[j] = 1.0
		} else {
			m.Scale[j] = hi - lo
		}
	}

	log.GetLoggerWithName("preprocessing").Debug("Scaler fitted",
		log.ModelNameKey, "MinMaxScaler",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, r,
		log.FeaturesKey, c,
	)
	m.SetFitted()
	return nil
}

// Transform scales X with the fitted extremes.
func (m *MinMaxScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sealedErrors.Recover(&err, "MinMaxScaler.Transform")
	if !m.IsFitted() {
		return nil, sealedErrors.NewNotFittedError("MinMaxScaler", "Transform")
	}
	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, sealedErrors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures, c, 1)
	}

	out := mat.NewDense(r, c, nil)
	width := m.FeatureRange[1] - m.FeatureRange[0]
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				v := (X.At(i, j)-m.DataMin[j])/m.Scale[j]*width + m.FeatureRange[0]
				if m.Clip {
					v = math.Max(m.FeatureRange[0], math.Min(m.FeatureRange[1], v))
				}
				out.Set(i, j, v)
			}
		}
	})
	return out, nil
}

// FitTransform fits on X and returns X scaled.
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sealedErrors.Recover(&err, "MinMaxScaler.FitTransform")
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform maps scaled values back to the original units.
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sealedErrors.Recover(&err, "MinMaxScaler.InverseTransform")
	if !m.IsFitted() {
		return nil, sealedErrors.NewNotFittedError("MinMaxScaler", "InverseTransform")
	}
	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, sealedErrors.NewDimensionError("MinMaxScaler.InverseTransform", m.NFeatures, c, 1)
	}

	out := mat.NewDense(r, c, nil)
	width := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, (X.At(i, j)-m.FeatureRange[0])/width*m.Scale[j]+m.DataMin[j])
		}
	}
	return out, nil
}

func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])",
			m.FeatureRange[0], m.FeatureRange[1])
	}
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], m.NFeatures)
}
