// Package datasets loads the tabular data the demo trains on.
//
// Every loader returns a Dataset whose X is n×d and whose Y is n×1, the
// two-dimensional shapes the emulator seals.
package datasets

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	sealedErrors "github.com/ezoic/sealedml/pkg/errors"
	"github.com/ezoic/sealedml/pkg/log"
)

// Dataset is a feature matrix with one label column.
type Dataset struct {
	X            *mat.Dense
	Y            *mat.Dense
	FeatureNames []string
	TargetNames  []string
}

// Dims returns the number of samples and features.
func (d *Dataset) Dims() (samples, features int) { return d.X.Dims() }

// ClassCounts returns how many labels equal 0 and 1.
func (d *Dataset) ClassCounts() (zeros, ones int) {
	n, _ := d.Y.Dims()
	for i := 0; i < n; i++ {
		switch d.Y.At(i, 0) {
		case 0:
			zeros++
		case 1:
			ones++
		}
	}
	return zeros, ones
}

var logger = log.GetLoggerWithName("datasets").With(log.ComponentKey, "datasets")

// BreastCancerFeatureNames lists the 30 features of the Wisconsin diagnostic
// breast cancer data in file order.
func BreastCancerFeatureNames() []string {
	base := []string{
		"radius", "texture", "perimeter", "area", "smoothness",
		"compactness", "concavity", "concave points", "symmetry", "fractal dimension",
	}
	names := make([]string, 0, 3*len(base))
	for _, b := range base {
		names = append(names, "mean "+b)
	}
	for _, b := range base {
		names = append(names, b+" error")
	}
	for _, b := range base {
		names = append(names, "worst "+b)
	}
	return names
}

// LoadBreastCancer reads the UCI wdbc.data file: no header, then per row an
// id, the diagnosis (M or B) and 30 features. Malignant is labelled 0 and
// benign 1.
func LoadBreastCancer(path string) (*Dataset, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	return breastCancerFromRecords(records, path)
}

func breastCancerFromRecords(records [][]string, path string) (*Dataset, error) {
	names := BreastCancerFeatureNames()
	d := len(names)
	if len(records) == 0 {
		return nil, sealedErrors.NewModelError("LoadBreastCancer", path, sealedErrors.ErrEmptyData)
	}

	X := mat.NewDense(len(records), d, nil)
	Y := mat.NewDense(len(records), 1, nil)
	for i, rec := range records {
		if len(rec) != d+2 {
			return nil, sealedErrors.Wrapf(
				sealedErrors.NewDimensionError("LoadBreastCancer", d+2, len(rec), 1), "%s line %d", path, i+1)
		}
		switch strings.TrimSpace(rec[1]) {
		case "M":
		case "B":
			Y.Set(i, 0, 1)
		default:
			return nil, sealedErrors.NewValidationError("diagnosis",
				"line "+strconv.Itoa(i+1)+" must be M or B", rec[1])
		}
		for j := 0; j < d; j++ {
			v, err := parseFloat(rec[j+2])
			if err != nil {
				return nil, sealedErrors.Wrapf(err, "%s line %d column %d", path, i+1, j+3)
			}
			X.Set(i, j, v)
		}
	}

	ds := &Dataset{X: X, Y: Y, FeatureNames: names, TargetNames: []string{"malignant", "benign"}}
	zeros, ones := ds.ClassCounts()
	logger.Debug("Breast cancer data loaded", "path", path, log.SamplesKey, len(records),
		log.FeaturesKey, d, "malignant", zeros, "benign", ones)
	return ds, nil
}

// LoadCSV reads a numeric CSV file. labelColumn selects the label, negative
// values count from the end (-1 is the last column). With header set the
// first row provides feature names.
func LoadCSV(path string, labelColumn int, header bool) (*Dataset, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	var names []string
	if header && len(records) > 0 {
		names = records[0]
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, sealedErrors.NewModelError("LoadCSV", path, sealedErrors.ErrEmptyData)
	}
	cols := len(records[0])
	if cols < 2 {
		return nil, sealedErrors.NewValueError("LoadCSV", "need at least one feature and a label column")
	}
	label := labelColumn
	if label < 0 {
		label += cols
	}
	if label < 0 || label >= cols {
		return nil, sealedErrors.NewValidationError("labelColumn", "out of range", labelColumn)
	}

	X := mat.NewDense(len(records), cols-1, nil)
	Y := mat.NewDense(len(records), 1, nil)
	for i, rec := range records {
		if len(rec) != cols {
			return nil, sealedErrors.Wrapf(
				sealedErrors.NewDimensionError("LoadCSV", cols, len(rec), 1), "%s row %d", path, i+1)
		}
		j := 0
		for c, field := range rec {
			v, err := parseFloat(field)
			if err != nil {
				return nil, sealedErrors.Wrapf(err, "%s row %d column %d", path, i+1, c+1)
			}
			if c == label {
				Y.Set(i, 0, v)
				continue
			}
			X.Set(i, j, v)
			j++
		}
	}

	ds := &Dataset{X: X, Y: Y}
	if names != nil {
		for c, name := range names {
			if c != label {
				ds.FeatureNames = append(ds.FeatureNames, strings.TrimSpace(name))
			}
		}
	}
	logger.Debug("CSV data loaded", "path", path, log.SamplesKey, len(records), log.FeaturesKey, cols-1)
	return ds, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sealedErrors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()
	return parseCSV(f, path)
}

func parseCSV(r io.Reader, name string) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, sealedErrors.Wrapf(err, "read %s", name)
	}
	// drop blank trailing lines some copies of wdbc.data carry
	out := records[:0]
	for _, rec := range records {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, sealedErrors.NewValidationError("value", "not a number", s)
	}
	return v, nil
}
