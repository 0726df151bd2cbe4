// Package model provides the estimator building blocks shared by sealedml's
// plaintext and secret-shared models:
//
//   - StateManager: thread-safe fitted/not-fitted tracking
//   - BaseEstimator: fitted state plus hyperparameters, embedded by transformers
//   - ModelWeights: revealed model parameters with gob persistence and hashing
//
// Secret-shared models never hold plaintext weights; ModelWeights only exist
// once the parties agree to reveal them.
package model

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// EstimatorState represents the learning state of a model
type EstimatorState int

const (
	// NotFitted indicates the model is not yet trained
	NotFitted EstimatorState = iota
	// Fitted indicates the model has been trained
	Fitted
)

// StateManager tracks whether a model has been fitted. It is safe for
// concurrent use and is held by pointer so that models can be copied.
type StateManager struct {
	mu    sync.RWMutex
	State EstimatorState
}

// NewStateManager creates a StateManager in the NotFitted state.
func NewStateManager() *StateManager {
	return &StateManager{State: NotFitted}
}

// IsFitted reports whether SetFitted has been called since the last Reset.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State == Fitted
}

// SetFitted marks the model as trained.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = Fitted
}

// Reset returns the model to NotFitted.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = NotFitted
}

// BaseEstimator is embedded by plaintext transformers.
type BaseEstimator struct {
	// State holds the model's learning state. Public for gob encoding.
	State EstimatorState

	hyperparameters map[string]interface{}
}

// IsFitted returns whether the estimator has been fitted.
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted marks the estimator as fitted.
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset returns the estimator to its initial untrained state.
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}

// GetParams returns a copy of the hyperparameters.
func (e *BaseEstimator) GetParams() map[string]interface{} {
	params := make(map[string]interface{}, len(e.hyperparameters))
	for k, v := range e.hyperparameters {
		params[k] = v
	}
	return params
}

// SetParams merges params into the hyperparameters.
func (e *BaseEstimator) SetParams(params map[string]interface{}) {
	if e.hyperparameters == nil {
		e.hyperparameters = make(map[string]interface{})
	}
	for k, v := range params {
		e.hyperparameters[k] = v
	}
}

// Transformer is implemented by preprocessing steps.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}
