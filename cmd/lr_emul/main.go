// Command lr_emul trains a secret-shared logistic regression on the breast
// cancer data inside a three party ABY3 emulator and reports the predicted
// probabilities, labels and ROC AUC.
package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli"

	"github.com/ezoic/sealedml/pkg/log"
)

func main() {
	app := cli.NewApp()
	app.Name = "lr_emul"
	app.Usage = "train and evaluate a secret-shared logistic regression under a 3PC emulator"
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "epochs", Value: 3, Usage: "passes over the training data"},
		cli.Float64Flag{Name: "learning-rate", Value: 0.1, Usage: "SGD step size"},
		cli.IntFlag{Name: "batch-size", Value: 8, Usage: "mini-batch size"},
		cli.StringFlag{Name: "solver", Value: "sgd", Usage: "optimiser, only sgd is supported"},
		cli.StringFlag{Name: "penalty", Value: "l2", Usage: "none or l2"},
		cli.StringFlag{Name: "sig-type", Value: "sr", Usage: "sigmoid approximation: t1, t3, t5, seg3 or sr"},
		cli.Float64Flag{Name: "l2-norm", Value: 1.0, Usage: "strength of the l2 penalty"},
		cli.StringFlag{Name: "class-weight", Value: "none", Usage: `"none" or "0:w0,1:w1"`},
		cli.StringFlag{Name: "multi-class", Value: "binary", Usage: "only binary is supported"},
		cli.StringFlag{Name: "mode", Value: "MULTIPROCESS", Usage: "MULTIPROCESS (loopback TCP) or SIMULATION (in memory)"},
		cli.Float64Flag{Name: "bandwidth", Value: 300, Usage: "link bandwidth in Mbit/s, 0 for unlimited"},
		cli.IntFlag{Name: "latency", Value: 20, Usage: "link latency in milliseconds"},
		cli.StringFlag{Name: "config", Usage: "cluster config file (TOML or YAML), defaults to CLUSTER_ABY3_3PC"},
		cli.StringFlag{Name: "data", Usage: "path to a local wdbc.data, skips the download"},
		cli.StringFlag{Name: "data-home", Usage: "cache directory of the downloaded breast cancer data, defaults to $SEALEDML_DATA"},
		cli.BoolFlag{Name: "synthetic", Usage: "train on a generated data set instead of the breast cancer data"},
		cli.Int64Flag{Name: "seed", Value: 42, Usage: "seed of the synthetic data set"},
		cli.IntFlag{Name: "samples", Value: 569, Usage: "rows of the synthetic data set"},
		cli.StringFlag{Name: "roc-plot", Usage: "write the ROC curve to this image file"},
		cli.StringFlag{Name: "save-weights", Usage: "reveal the trained weights and write them to this file"},
		cli.BoolFlag{Name: "reference", Usage: "also train the plaintext model and compare"},
		cli.BoolFlag{Name: "stats", Usage: "print summary statistics of the predicted probabilities"},
		cli.DurationFlag{Name: "timeout", Value: 30 * time.Minute, Usage: "abort the run after this long"},
		cli.StringFlag{Name: "log-level", Value: "info", Usage: "trace, debug, info, warn or error"},
	}
	app.Action = func(c *cli.Context) error {
		log.SetupLogger(c.String("log-level"))
		opts, err := optionsFromFlags(c)
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()
		ctx, cancelTimeout := context.WithTimeout(ctx, c.Duration("timeout"))
		defer cancelTimeout()
		return run(ctx, opts, os.Stdout)
	}

	if err := app.Run(os.Args); err != nil {
		log.LogError(err, "lr_emul failed")
		os.Exit(1)
	}
}
