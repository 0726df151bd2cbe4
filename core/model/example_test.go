package model_test

import (
	"fmt"

	"github.com/ezoic/sealedml/core/model"
)

// ExampleStateManager demonstrates fitted-state tracking
func ExampleStateManager() {
	state := model.NewStateManager()
	fmt.Printf("Initially fitted: %t\n", state.IsFitted())

	state.SetFitted()
	fmt.Printf("After SetFitted: %t\n", state.IsFitted())

	state.Reset()
	fmt.Printf("After Reset: %t\n", state.IsFitted())

	// Output: Initially fitted: false
	// After SetFitted: true
	// After Reset: false
}

// ExampleBaseEstimator_params shows hyperparameter bookkeeping
func ExampleBaseEstimator_params() {
	var est model.BaseEstimator
	est.SetParams(map[string]interface{}{"feature_range": [2]float64{-2, 2}})

	params := est.GetParams()
	params["feature_range"] = nil // copies do not leak back

	fmt.Println(est.GetParams()["feature_range"])

	// Output: [-2 2]
}
