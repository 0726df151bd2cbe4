package errors

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ConvergenceWarning is emitted when an iterative algorithm stops before it
// reached its tolerance.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("%s: ConvergenceWarning: %s did not converge after %d iterations: %s",
		prefix, w.Algorithm, w.Iterations, w.Message)
}

// NewConvergenceWarning creates a ConvergenceWarning.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// NumericalWarning is emitted when a fixed-point computation is close to its
// representable range.
type NumericalWarning struct {
	Op      string
	Message string
}

func (w *NumericalWarning) Error() string {
	return fmt.Sprintf("%s: NumericalWarning: %s: %s", prefix, w.Op, w.Message)
}

var (
	warnMu      sync.RWMutex
	warnHandler = defaultWarnHandler
)

func defaultWarnHandler(w error) {
	zlog.Warn().Err(w).Msg("warning")
}

// SetWarningHandler replaces the function Warn reports to. A nil handler
// restores the default, which logs through zerolog's global logger.
func SetWarningHandler(h func(error)) {
	warnMu.Lock()
	defer warnMu.Unlock()
	if h == nil {
		h = defaultWarnHandler
	}
	warnHandler = h
}

// Warn reports a non-fatal condition.
func Warn(w error) {
	if w == nil {
		return
	}
	warnMu.RLock()
	h := warnHandler
	warnMu.RUnlock()
	h(w)
}

// Recover converts a panic in the calling function into an error stored in
// *err. It must be deferred directly:
//
//	func (m *MinMaxScaler) Fit(X mat.Matrix) (err error) {
//		defer errors.Recover(&err, "MinMaxScaler.Fit")
//		...
//	}
func Recover(err *error, op string) {
	r := recover()
	if r == nil {
		return
	}
	var cause error
	switch v := r.(type) {
	case error:
		cause = v
	default:
		cause = errors.Newf("%v", v)
	}
	*err = errors.WithDetail(
		errors.Wrapf(cause, "%s: panic recovered", op),
		string(debug.Stack()),
	)
}
