package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/urfave/cli"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/sealedml/core/model"
	"github.com/ezoic/sealedml/datasets"
	"github.com/ezoic/sealedml/emulation"
	"github.com/ezoic/sealedml/metrics"
	"github.com/ezoic/sealedml/mpc/aby3"
	"github.com/ezoic/sealedml/pkg/errors"
	"github.com/ezoic/sealedml/pkg/log"
	"github.com/ezoic/sealedml/preprocessing"
	"github.com/ezoic/sealedml/sml/approx"
	"github.com/ezoic/sealedml/sml/lr"
)

type options struct {
	model     []lr.Option
	mode      emulation.Mode
	bandwidth float64
	latency   time.Duration
	config    string
	data      string
	dataHome  string
	synthetic bool
	seed      uint64
	samples   int

	rocPlot     string
	saveWeights string
	reference   bool
	stats       bool
}

func optionsFromFlags(c *cli.Context) (options, error) {
	penalty, err := lr.ParsePenalty(c.String("penalty"))
	if err != nil {
		return options{}, err
	}
	sig, err := approx.ParseSigType(c.String("sig-type"))
	if err != nil {
		return options{}, err
	}
	classWeight, err := lr.ParseClassWeight(c.String("class-weight"))
	if err != nil {
		return options{}, err
	}
	mode, err := emulation.ParseMode(c.String("mode"))
	if err != nil {
		return options{}, err
	}
	return options{
		model: []lr.Option{
			lr.WithEpochs(c.Int("epochs")),
			lr.WithLearningRate(c.Float64("learning-rate")),
			lr.WithBatchSize(c.Int("batch-size")),
			lr.WithSolver(lr.Solver(c.String("solver"))),
			lr.WithPenalty(penalty),
			lr.WithSigType(sig),
			lr.WithL2Norm(c.Float64("l2-norm")),
			lr.WithClassWeight(classWeight),
			lr.WithMultiClass(lr.MultiClass(c.String("multi-class"))),
		},
		mode:        mode,
		bandwidth:   c.Float64("bandwidth"),
		latency:     time.Duration(c.Int("latency")) * time.Millisecond,
		config:      c.String("config"),
		data:        c.String("data"),
		dataHome:    c.String("data-home"),
		synthetic:   c.Bool("synthetic"),
		seed:        uint64(c.Int64("seed")),
		samples:     c.Int("samples"),
		rocPlot:     c.String("roc-plot"),
		saveWeights: c.String("save-weights"),
		reference:   c.Bool("reference"),
		stats:       c.Bool("stats"),
	}, nil
}

// run brings the emulator up, trains and predicts on sealed data and prints
// the results to out. The emulator is torn down on every path.
func run(ctx context.Context, opts options, out io.Writer) (err error) {
	logger := log.GetLoggerWithName("lr_emul")

	cluster := emulation.ClusterABY3_3PC()
	if opts.config != "" {
		if cluster, err = emulation.LoadClusterConfig(opts.config); err != nil {
			return err
		}
	}
	em, err := emulation.NewEmulator(cluster, opts.mode,
		emulation.WithBandwidth(opts.bandwidth),
		emulation.WithLatency(opts.latency),
	)
	if err != nil {
		return err
	}
	defer func() {
		if derr := em.Down(); derr != nil && err == nil {
			err = derr
		}
	}()
	if err := em.Up(ctx); err != nil {
		return err
	}

	ds, err := loadData(ctx, opts)
	if err != nil {
		return err
	}
	scaler := preprocessing.NewMinMaxScaler([2]float64{-2, 2})
	X, err := scaler.FitTransform(ds.X)
	if err != nil {
		return err
	}
	n, d := X.Dims()
	logger.Info("Data prepared", log.SamplesKey, n, log.FeaturesKey, d)

	// X and y must be two-dimensional
	xs, err := em.Seal(X)
	if err != nil {
		return err
	}
	ys, err := em.Seal(ds.Y)
	if err != nil {
		return err
	}

	var (
		weightsMu sync.Mutex
		weights   *model.ModelWeights
	)
	proc := func(ctx context.Context, p *aby3.Party, args ...aby3.Share) ([]aby3.Share, error) {
		m := lr.NewLogisticRegression(opts.model...)
		if err := m.Fit(ctx, p, args[0], args[1]); err != nil {
			return nil, err
		}
		prob, err := m.PredictProba(ctx, p, args[0])
		if err != nil {
			return nil, err
		}
		pred, err := m.Predict(ctx, p, args[0])
		if err != nil {
			return nil, err
		}
		if opts.saveWeights != "" {
			w, err := m.RevealWeights(ctx, p)
			if err != nil {
				return nil, err
			}
			if p.ID() == 0 {
				weightsMu.Lock()
				weights = w
				weightsMu.Unlock()
			}
		}
		return []aby3.Share{prob, pred}, nil
	}

	result, err := em.Run(ctx, proc, xs, ys)
	if err != nil {
		return err
	}
	prob, pred := result[0], result[1]
	fmt.Fprintln(out, "Predict result prob: ", formatColumn(prob))
	fmt.Fprintln(out, "Predict result label: ", formatColumn(pred))

	auc, err := metrics.AUCMatrix(ds.Y, prob)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "ROC Score: ", auc)

	if acc, err := metrics.AccuracyMatrix(ds.Y, pred); err == nil {
		fmt.Fprintf(out, "Accuracy: %.4f\n", acc)
	}
	if opts.stats {
		if err := printStats(out, prob); err != nil {
			return err
		}
	}
	if opts.rocPlot != "" {
		curve, err := metrics.ROCCurve(mat.VecDenseCopyOf(ds.Y.ColView(0)), mat.VecDenseCopyOf(prob.ColView(0)))
		if err != nil {
			return err
		}
		if err := metrics.SaveROCPlot(curve, "Secret-shared logistic regression", opts.rocPlot); err != nil {
			return err
		}
		logger.Info("ROC curve written", "path", opts.rocPlot)
	}
	if opts.saveWeights != "" {
		if err := model.SaveWeights(weights, opts.saveWeights); err != nil {
			return err
		}
		logger.Info("Weights written", "path", opts.saveWeights, "sha256", weights.Hash())
	}
	if opts.reference {
		if err := compareWithPlain(out, opts, X, ds.Y, prob); err != nil {
			return err
		}
	}
	return nil
}

func loadData(ctx context.Context, opts options) (*datasets.Dataset, error) {
	switch {
	case opts.synthetic:
		return datasets.MakeClassification(datasets.WithSeed(opts.seed), datasets.WithSamples(opts.samples))
	case opts.data != "":
		return datasets.LoadBreastCancer(opts.data)
	}
	var fetch []datasets.FetchOption
	if opts.dataHome != "" {
		fetch = append(fetch, datasets.WithDataHome(opts.dataHome))
	}
	return datasets.BreastCancer(ctx, fetch...)
}

func compareWithPlain(out io.Writer, opts options, X mat.Matrix, y *mat.Dense, prob *mat.Dense) error {
	plain := lr.NewPlainLogisticRegression(opts.model...)
	if err := plain.Fit(X, y); err != nil {
		return errors.Wrap(err, "reference model")
	}
	ref, err := plain.PredictProba(X)
	if err != nil {
		return err
	}
	auc, err := metrics.AUCMatrix(y, ref)
	if err != nil {
		return err
	}
	n, _ := ref.Dims()
	gap := 0.0
	for i := 0; i < n; i++ {
		gap = math.Max(gap, math.Abs(ref.At(i, 0)-prob.At(i, 0)))
	}
	fmt.Fprintln(out, "Reference ROC Score: ", auc)
	fmt.Fprintf(out, "Max probability gap: %.6f\n", gap)
	return nil
}

func printStats(out io.Writer, prob *mat.Dense) error {
	data := stats.Float64Data(mat.Col(nil, 0, prob))
	mean, err := data.Mean()
	if err != nil {
		return err
	}
	median, err := data.Median()
	if err != nil {
		return err
	}
	std, err := data.StandardDeviation()
	if err != nil {
		return err
	}
	minimum, err := data.Min()
	if err != nil {
		return err
	}
	maximum, err := data.Max()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Probability mean=%.4f median=%.4f std=%.4f min=%.4f max=%.4f\n",
		mean, median, std, minimum, maximum)
	return nil
}

// formatColumn prints an n×1 matrix the way numpy prints a column, eliding
// the middle of long outputs.
func formatColumn(m *mat.Dense) string {
	n, _ := m.Dims()
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < n; i++ {
		if n > 6 && i == 3 {
			b.WriteString("\n ...")
			i = n - 4
			continue
		}
		if i > 0 {
			b.WriteString("\n ")
		}
		fmt.Fprintf(&b, "[%.8g]", m.At(i, 0))
	}
	b.WriteString("]")
	return b.String()
}
