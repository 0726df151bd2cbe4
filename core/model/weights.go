package model

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"

	"github.com/ezoic/sealedml/pkg/errors"
)

// ModelWeights holds the revealed parameters of a linear model.
type ModelWeights struct {
	ModelType       string
	Version         string
	Coefficients    []float64
	Intercept       float64
	Hyperparameters map[string]string
}

// Decision returns the linear score w·x + b for one sample.
func (w *ModelWeights) Decision(x []float64) (float64, error) {
	if len(x) != len(w.Coefficients) {
		return 0, errors.NewDimensionError("ModelWeights.Decision", len(w.Coefficients), len(x), 1)
	}
	z := w.Intercept
	for i, v := range x {
		z += w.Coefficients[i] * v
	}
	return z, nil
}

// Hash returns the hex sha256 of the JSON encoding, used to compare runs.
func (w *ModelWeights) Hash() string {
	data, err := json.Marshal(w)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WriteWeights gob-encodes w to wr.
func WriteWeights(w *ModelWeights, wr io.Writer) error {
	if w == nil {
		return errors.NewValueError("WriteWeights", "weights cannot be nil")
	}
	if err := gob.NewEncoder(wr).Encode(w); err != nil {
		return errors.Wrap(err, "failed to encode weights")
	}
	return nil
}

// ReadWeights decodes weights written by WriteWeights.
func ReadWeights(r io.Reader) (*ModelWeights, error) {
	var w ModelWeights
	if err := gob.NewDecoder(r).Decode(&w); err != nil {
		return nil, errors.Wrap(err, "failed to decode weights")
	}
	return &w, nil
}

// SaveWeights writes w to path.
func SaveWeights(w *ModelWeights, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create file %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close file %s", path)
		}
	}()
	return WriteWeights(w, f)
}

// LoadWeights reads weights saved with SaveWeights.
func LoadWeights(path string) (*ModelWeights, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file %s", path)
	}
	defer func() { _ = f.Close() }()
	return ReadWeights(f)
}
