// Package predictor estimates how long storing a file under a given scheme
// will take. Performance-aware placement ranks feasible candidates with it.
//
// The scheduler only consumes the Predictor interface. Regression is one
// implementation, fitted from externally collected transfer samples; Cached
// memoizes any Predictor.
package predictor

import (
	"errors"
	"time"
)

// ErrNoModel is returned when no trained model covers the requested size
var ErrNoModel = errors.New("no trained model")

// Predictor estimates completion time for storing fileSize bytes as n
// fragments of which k are needed for recovery.
type Predictor interface {
	Predict(fileSize uint64, n, k uint32) (time.Duration, error)
}

// Func adapts a function to the Predictor interface
type Func func(fileSize uint64, n, k uint32) (time.Duration, error)

// Predict calls f
func (f Func) Predict(fileSize uint64, n, k uint32) (time.Duration, error) {
	return f(fileSize, n, k)
}
