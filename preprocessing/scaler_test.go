package preprocessing_test

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	sealedErrors "github.com/ezoic/sealedml/pkg/errors"
	"github.com/ezoic/sealedml/preprocessing"
)

const epsilon = 1e-9

func assertMatrix(t *testing.T, name string, want []float64, got mat.Matrix) {
	t.Helper()
	r, c := got.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.Abs(got.At(i, j)-want[i*c+j]) > epsilon {
				t.Errorf("%s[%d][%d]: expected %f, got %f", name, i, j, want[i*c+j], got.At(i, j))
			}
		}
	}
}

func TestMinMaxScaler_BasicFunctionality(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1.0, 4.0,
		2.0, 5.0,
		3.0, 6.0,
	})

	scaler := preprocessing.NewMinMaxScalerDefault()
	if err := scaler.Fit(X); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	for i, want := range []float64{1.0, 4.0} {
		if scaler.DataMin[i] != want {
			t.Errorf("DataMin[%d]: expected %f, got %f", i, want, scaler.DataMin[i])
		}
	}
	for i, want := range []float64{3.0, 6.0} {
		if scaler.DataMax[i] != want {
			t.Errorf("DataMax[%d]: expected %f, got %f", i, want, scaler.DataMax[i])
		}
	}

	XScaled, err := scaler.Transform(X)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	assertMatrix(t, "XScaled", []float64{0, 0, 0.5, 0.5, 1, 1}, XScaled)
}

func TestMinMaxScaler_SealingRange(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		10.0, 100.0,
		20.0, 200.0,
		30.0, 300.0,
	})

	scaler := preprocessing.NewMinMaxScaler([2]float64{-2.0, 2.0})
	XScaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	assertMatrix(t, "XScaled", []float64{-2, -2, 0, 0, 2, 2}, XScaled)
}

func TestMinMaxScaler_Clip(t *testing.T) {
	train := mat.NewDense(2, 1, []float64{0, 10})
	test := mat.NewDense(3, 1, []float64{-5, 5, 20})

	plain := preprocessing.NewMinMaxScaler([2]float64{-2, 2})
	if err := plain.Fit(train); err != nil {
		t.Fatal(err)
	}
	out, _ := plain.Transform(test)
	assertMatrix(t, "unclipped", []float64{-4, 0, 6}, out)

	clipped := preprocessing.NewMinMaxScaler([2]float64{-2, 2}).WithClip(true)
	if err := clipped.Fit(train); err != nil {
		t.Fatal(err)
	}
	out, _ = clipped.Transform(test)
	assertMatrix(t, "clipped", []float64{-2, 0, 2}, out)

	if clipped.GetParams()["clip"] != true {
		t.Error("clip should be reported by GetParams")
	}
}

func TestMinMaxScaler_InverseTransform(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		5.0, 50.0,
		10.0, 100.0,
		15.0, 150.0,
	})

	scaler := preprocessing.NewMinMaxScaler([2]float64{-2, 2})
	XScaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	XRecovered, err := scaler.InverseTransform(XScaled)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	assertMatrix(t, "XRecovered", X.RawMatrix().Data, XRecovered)
}

func TestMinMaxScaler_ConstantFeature(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		5.0, 1.0,
		5.0, 2.0,
		5.0, 3.0,
	})

	scaler := preprocessing.NewMinMaxScaler([2]float64{-2, 2})
	XScaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	if scaler.Scale[0] != 1.0 {
		t.Errorf("Scale[0] should be 1.0 for a constant feature, got %f", scaler.Scale[0])
	}
	// a constant feature lands on the lower bound
	for i := 0; i < 3; i++ {
		if got := XScaled.At(i, 0); math.Abs(got+2) > epsilon {
			t.Errorf("row %d: expected -2, got %f", i, got)
		}
	}
}

func TestMinMaxScaler_ErrorCases(t *testing.T) {
	scaler := preprocessing.NewMinMaxScalerDefault()
	X := mat.NewDense(1, 2, []float64{1.0, 2.0})

	_, err := scaler.Transform(X)
	var nf *sealedErrors.NotFittedError
	if !sealedErrors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}
	if _, err = scaler.InverseTransform(X); err == nil {
		t.Error("expected error for unfitted scaler, got nil")
	}

	if err := scaler.Fit(X); err != nil {
		t.Fatal(err)
	}
	_, err = scaler.Transform(mat.NewDense(1, 3, nil))
	var de *sealedErrors.DimensionError
	if !sealedErrors.As(err, &de) {
		t.Errorf("expected DimensionError, got %v", err)
	}

	bad := preprocessing.NewMinMaxScaler([2]float64{2, -2})
	if err := bad.Fit(X); err == nil {
		t.Error("expected error for inverted feature range")
	}

	nan := mat.NewDense(2, 1, []float64{1, math.NaN()})
	if err := preprocessing.NewMinMaxScalerDefault().Fit(nan); err == nil {
		t.Error("expected error for NaN input")
	}
}

func TestMinMaxScaler_ParallelMatchesSequential(t *testing.T) {
	const n = 2500
	data := make([]float64, n*2)
	for i := range data {
		data[i] = math.Sin(float64(i))
	}
	X := mat.NewDense(n, 2, data)

	scaler := preprocessing.NewMinMaxScaler([2]float64{-2, 2})
	out, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < 2; j++ {
			want := (X.At(i, j)-scaler.DataMin[j])/scaler.Scale[j]*4 - 2
			if math.Abs(out.At(i, j)-want) > epsilon {
				t.Fatalf("[%d][%d]: expected %f, got %f", i, j, want, out.At(i, j))
			}
		}
	}
}

func TestMinMaxScaler_String(t *testing.T) {
	scaler := preprocessing.NewMinMaxScaler([2]float64{-2.0, 2.0})
	if got, want := scaler.String(), "MinMaxScaler(feature_range=[-2.0, 2.0])"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	_ = scaler.Fit(mat.NewDense(2, 2, []float64{1.0, 2.0, 3.0, 4.0}))
	if got, want := scaler.String(), "MinMaxScaler(feature_range=[-2.0, 2.0], n_features=2)"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
