package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sealedErrors "github.com/ezoic/sealedml/pkg/errors"
)

func TestProtocolError_KeepsInnermostParty(t *testing.T) {
	inner := sealedErrors.NewProtocolError(2, "Reveal", sealedErrors.ErrAborted)
	outer := sealedErrors.NewProtocolError(0, "MatMul", fmt.Errorf("step: %w", inner))

	var pe *sealedErrors.ProtocolError
	require.True(t, errors.As(outer, &pe))
	assert.Equal(t, 2, pe.Party)
	assert.Equal(t, "Reveal", pe.Op)
	assert.True(t, errors.Is(outer, sealedErrors.ErrAborted))
}

func TestProtocolError_NilCause(t *testing.T) {
	assert.NoError(t, sealedErrors.NewProtocolError(1, "Trunc", nil))
}

func TestDimensionError_Message(t *testing.T) {
	err := sealedErrors.NewDimensionError("MatMul", 31, 30, 0)
	assert.Contains(t, err.Error(), "dimension mismatch in rows: expected 31, got 30")

	err = sealedErrors.NewDimensionError("Fit", 1, 2, 1)
	assert.Contains(t, err.Error(), "columns")
}

func TestRecover_ConvertsPanic(t *testing.T) {
	f := func() (err error) {
		defer sealedErrors.Recover(&err, "Ring.MatMul")
		var m map[string]int
		m["boom"]++
		return nil
	}
	err := f()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ring.MatMul: panic recovered")
}

func TestRecover_NoPanicLeavesError(t *testing.T) {
	want := sealedErrors.NewValueError("op", "bad")
	f := func() (err error) {
		defer sealedErrors.Recover(&err, "op")
		return want
	}
	assert.Equal(t, want, f())
}

func TestWarn_UsesHandler(t *testing.T) {
	var got []error
	sealedErrors.SetWarningHandler(func(w error) { got = append(got, w) })
	defer sealedErrors.SetWarningHandler(nil)

	sealedErrors.Warn(sealedErrors.NewConvergenceWarning("LogisticRegression", 3, "fixed epoch budget"))
	sealedErrors.Warn(nil)

	require.Len(t, got, 1)
	var cw *sealedErrors.ConvergenceWarning
	require.True(t, errors.As(got[0], &cw))
	assert.Equal(t, 3, cw.Iterations)
}
