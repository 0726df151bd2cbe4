package metrics_test

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/sealedml/metrics"
)

func ExampleAUC() {
	yTrue := mat.NewVecDense(4, []float64{0, 0, 1, 1})
	yPred := mat.NewVecDense(4, []float64{0.1, 0.4, 0.35, 0.8})
	auc, err := metrics.AUC(yTrue, yPred)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("AUC: %.2f\n", auc)
	// Output: AUC: 0.75
}

func ExampleROCCurve() {
	yTrue := mat.NewVecDense(4, []float64{0, 0, 1, 1})
	yPred := mat.NewVecDense(4, []float64{0.1, 0.4, 0.35, 0.8})
	roc, err := metrics.ROCCurve(yTrue, yPred)
	if err != nil {
		fmt.Println(err)
		return
	}
	for i := range roc.FPR {
		fmt.Printf("(%.1f, %.1f)\n", roc.FPR[i], roc.TPR[i])
	}
	// Output:
	// (0.0, 0.0)
	// (0.0, 0.5)
	// (0.5, 0.5)
	// (0.5, 1.0)
	// (1.0, 1.0)
}
