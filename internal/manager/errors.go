package manager

import (
	"errors"
	"fmt"
)

// RunError wraps an inference failure (shape mismatch, backend fault).
type RunError struct {
	HandleID string
	Err      error
}

func (e *RunError) Error() string { return fmt.Sprintf("run %s: %v", e.HandleID, e.Err) }
func (e *RunError) Unwrap() error { return e.Err }

// IsRunError reports whether err is (or wraps) a *RunError.
func IsRunError(err error) bool {
	var re *RunError
	return errors.As(err, &re)
}

// notReadyError signals an evaluation before a network is loaded.
type notReadyError struct{ reason string }

func (e notReadyError) Error() string { return "network not ready: " + e.reason }

// ErrNotReady constructs a not-ready error.
func ErrNotReady(reason string) error { return notReadyError{reason: reason} }

// IsNotReady reports whether err indicates the network is not loaded (return 503).
func IsNotReady(err error) bool {
	var ne notReadyError
	return errors.As(err, &ne)
}

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ handleID string }

func (e tooBusyError) Error() string { return "too busy: " + e.handleID }

// ErrTooBusy constructs a backpressure error for handleID.
func ErrTooBusy(handleID string) error { return tooBusyError{handleID: handleID} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var te tooBusyError
	return errors.As(err, &te)
}

// errClosed is returned when a load finishes after Close.
var errClosed = errors.New("manager closed")

// errDraining is internal: the caller raced a reload and should retry on the
// current handle.
var errDraining = errors.New("network draining")

// auxUnavailableError signals that no aux module is loaded.
type auxUnavailableError struct{ reason string }

func (e auxUnavailableError) Error() string { return "aux module unavailable: " + e.reason }

// ErrAuxUnavailable constructs an aux-unavailable error.
func ErrAuxUnavailable(reason string) error { return auxUnavailableError{reason: reason} }

// IsAuxUnavailable reports whether err indicates the aux module is unset.
func IsAuxUnavailable(err error) bool {
	var ae auxUnavailableError
	return errors.As(err, &ae)
}
