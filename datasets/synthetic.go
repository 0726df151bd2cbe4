package datasets

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	sealedErrors "github.com/ezoic/sealedml/pkg/errors"
	"github.com/ezoic/sealedml/pkg/log"
)

// ClassificationConfig parameterises MakeClassification.
type ClassificationConfig struct {
	Samples     int
	Features    int
	Informative int
	// Separation is the distance between the class means on an informative
	// feature, in units of the within-class standard deviation.
	Separation float64
	// PositiveRate is the probability of label 1.
	PositiveRate float64
	Seed         uint64
}

// ClassificationOption configures MakeClassification.
type ClassificationOption func(*ClassificationConfig)

// WithSamples sets the number of rows.
func WithSamples(n int) ClassificationOption {
	return func(c *ClassificationConfig) { c.Samples = n }
}

// WithFeatures sets the number of columns and how many of them carry signal.
func WithFeatures(features, informative int) ClassificationOption {
	return func(c *ClassificationConfig) {
		c.Features = features
		c.Informative = informative
	}
}

// WithSeparation sets the class mean distance.
func WithSeparation(s float64) ClassificationOption {
	return func(c *ClassificationConfig) { c.Separation = s }
}

// WithPositiveRate sets the probability of label 1.
func WithPositiveRate(p float64) ClassificationOption {
	return func(c *ClassificationConfig) { c.PositiveRate = p }
}

// WithSeed makes the output reproducible.
func WithSeed(seed uint64) ClassificationOption {
	return func(c *ClassificationConfig) { c.Seed = seed }
}

// DefaultClassificationConfig mirrors the breast cancer data: 569 rows,
// 30 features and 357 positives out of 569.
func DefaultClassificationConfig() ClassificationConfig {
	return ClassificationConfig{
		Samples:      569,
		Features:     30,
		Informative:  10,
		Separation:   1.5,
		PositiveRate: 357.0 / 569.0,
		Seed:         42,
	}
}

// MakeClassification draws a two-class problem with gaussian clusters. Each
// feature gets its own offset and scale so that the columns span different
// ranges, as raw measurements do.
func MakeClassification(opts ...ClassificationOption) (*Dataset, error) {
	cfg := DefaultClassificationConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.Samples < 2:
		return nil, sealedErrors.NewValidationError("samples", "must be at least 2", cfg.Samples)
	case cfg.Features < 1:
		return nil, sealedErrors.NewValidationError("features", "must be positive", cfg.Features)
	case cfg.Informative < 0 || cfg.Informative > cfg.Features:
		return nil, sealedErrors.NewValidationError("informative", "must be within [0, features]", cfg.Informative)
	case cfg.PositiveRate <= 0 || cfg.PositiveRate >= 1:
		return nil, sealedErrors.NewValidationError("positive_rate", "must be within (0, 1)", cfg.PositiveRate)
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	label := distuv.Bernoulli{P: cfg.PositiveRate, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	offset := distuv.Uniform{Min: -10, Max: 10, Src: src}
	scale := distuv.Uniform{Min: 0.1, Max: 20, Src: src}
	sign := distuv.Bernoulli{P: 0.5, Src: src}

	n, d := cfg.Samples, cfg.Features
	shift := make([]float64, d)
	offsets := make([]float64, d)
	scales := make([]float64, d)
	for j := 0; j < d; j++ {
		offsets[j] = offset.Rand()
		scales[j] = scale.Rand()
		if j < cfg.Informative {
			shift[j] = cfg.Separation / 2
			if sign.Rand() == 1 {
				shift[j] = -shift[j]
			}
		}
	}

	X := mat.NewDense(n, d, nil)
	Y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		y := label.Rand()
		// both classes must appear
		if i == 0 {
			y = 0
		} else if i == 1 {
			y = 1
		}
		Y.Set(i, 0, y)
		dir := 2*y - 1
		for j := 0; j < d; j++ {
			X.Set(i, j, offsets[j]+scales[j]*(noise.Rand()+dir*shift[j]))
		}
	}

	names := make([]string, d)
	for j := range names {
		names[j] = fmt.Sprintf("feature_%d", j)
	}
	ds := &Dataset{X: X, Y: Y, FeatureNames: names, TargetNames: []string{"negative", "positive"}}
	zeros, ones := ds.ClassCounts()
	logger.Debug("Synthetic classification data generated",
		log.SamplesKey, n, log.FeaturesKey, d, "negatives", zeros, "positives", ones, "seed", cfg.Seed)
	return ds, nil
}
