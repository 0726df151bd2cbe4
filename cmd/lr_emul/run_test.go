package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/sealedml/core/model"
	"github.com/ezoic/sealedml/emulation"
	"github.com/ezoic/sealedml/pkg/errors"
	"github.com/ezoic/sealedml/sml/approx"
	"github.com/ezoic/sealedml/sml/lr"
)

func testOptions(t *testing.T) options {
	dir := t.TempDir()
	return options{
		model: []lr.Option{
			lr.WithEpochs(1),
			lr.WithLearningRate(0.1),
			lr.WithBatchSize(8),
			lr.WithPenalty(lr.PenaltyL2),
			lr.WithSigType(approx.SigSR),
			lr.WithL2Norm(1.0),
		},
		mode:        emulation.ModeSimulation,
		synthetic:   true,
		seed:        42,
		samples:     64,
		rocPlot:     filepath.Join(dir, "roc.png"),
		saveWeights: filepath.Join(dir, "weights.gob"),
		reference:   true,
		stats:       true,
	}
}

func scoreLine(t *testing.T, output, prefix string) float64 {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, prefix) {
			v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, prefix)), 64)
			require.NoError(t, err)
			return v
		}
	}
	t.Fatalf("no line starting with %q in\n%s", prefix, output)
	return 0
}

func TestRun(t *testing.T) {
	opts := testOptions(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, run(ctx, opts, &out))

	output := out.String()
	assert.Contains(t, output, "Predict result prob: ")
	assert.Contains(t, output, "Predict result label: ")
	assert.Contains(t, output, "Probability mean=")
	assert.Greater(t, scoreLine(t, output, "ROC Score: "), 0.8)
	assert.Greater(t, scoreLine(t, output, "Reference ROC Score: "), 0.8)
	assert.Less(t, scoreLine(t, output, "Max probability gap:"), 0.05)

	info, err := os.Stat(opts.rocPlot)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	w, err := model.LoadWeights(opts.saveWeights)
	require.NoError(t, err)
	assert.Len(t, w.Coefficients, 30)
	assert.Equal(t, "sr", w.Hyperparameters["sig_type"])
}

func TestRun_DemoSettings(t *testing.T) {
	if testing.Short() {
		t.Skip("full size run over loopback TCP")
	}
	opts := options{
		model: []lr.Option{
			lr.WithEpochs(3),
			lr.WithLearningRate(0.1),
			lr.WithBatchSize(8),
			lr.WithSolver(lr.SolverSGD),
			lr.WithPenalty(lr.PenaltyL2),
			lr.WithSigType(approx.SigSR),
			lr.WithL2Norm(1.0),
		},
		mode:      emulation.ModeMultiProcess,
		synthetic: true,
		seed:      42,
		samples:   569,
		reference: true,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, run(ctx, opts, &out))

	output := out.String()
	auc := scoreLine(t, output, "ROC Score: ")
	assert.Greater(t, auc, 0.9)
	assert.InDelta(t, scoreLine(t, output, "Reference ROC Score: "), auc, 0.01)
	assert.Less(t, scoreLine(t, output, "Max probability gap:"), 0.01)
}

func TestLoadData(t *testing.T) {
	ctx := context.Background()

	home := t.TempDir()
	var b strings.Builder
	for i := 0; i < 569; i++ {
		diagnosis := "B"
		if i < 212 {
			diagnosis = "M"
		}
		b.WriteString(strconv.Itoa(i) + "," + diagnosis)
		for j := 0; j < 30; j++ {
			b.WriteString("," + strconv.Itoa(i%7+j))
		}
		b.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(filepath.Join(home, "wdbc.data"), []byte(b.String()), 0o600))

	ds, err := loadData(ctx, options{dataHome: home})
	require.NoError(t, err)
	n, d := ds.Dims()
	assert.Equal(t, 569, n)
	assert.Equal(t, 30, d)
	assert.Equal(t, "mean radius", ds.FeatureNames[0])

	ds, err = loadData(ctx, options{data: filepath.Join(home, "wdbc.data")})
	require.NoError(t, err)
	n, _ = ds.Dims()
	assert.Equal(t, 569, n)

	ds, err = loadData(ctx, options{synthetic: true, seed: 1, samples: 50})
	require.NoError(t, err)
	n, _ = ds.Dims()
	assert.Equal(t, 50, n)
}

func TestRun_UnsupportedSigmoid(t *testing.T) {
	opts := testOptions(t)
	opts.model = append(opts.model, lr.WithSigType(approx.SigReal))
	opts.rocPlot, opts.saveWeights = "", ""

	err := run(context.Background(), opts, &bytes.Buffer{})
	assert.ErrorIs(t, err, errors.ErrNotImplemented)
}

func TestRun_BadConfig(t *testing.T) {
	opts := testOptions(t)
	opts.config = filepath.Join(t.TempDir(), "missing.toml")
	assert.Error(t, run(context.Background(), opts, &bytes.Buffer{}))
}

func TestFormatColumn(t *testing.T) {
	short := mat.NewDense(2, 1, []float64{0.5, 1})
	assert.Equal(t, "[[0.5]\n [1]]", formatColumn(short))

	long := mat.NewDense(8, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	assert.Equal(t, "[[0]\n [1]\n [2]\n ...\n [5]\n [6]\n [7]]", formatColumn(long))
}
