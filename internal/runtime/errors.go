package runtime

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// LoadError reports a bundle that could not be fetched, parsed, or compiled.
type LoadError struct {
	Path    string
	Backend string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("load %s (backend %s): %v", e.Path, e.Backend, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// BackendUnavailableError reports that no backend in the preference list can
// run on this host.
type BackendUnavailableError struct {
	Order []string
	// Reasons holds the availability error per registered backend that was tried.
	Reasons map[string]string
}

func (e *BackendUnavailableError) Error() string {
	msg := fmt.Sprintf("no available backend in order [%s]", strings.Join(e.Order, ", "))
	if len(e.Reasons) == 0 {
		return msg
	}
	names := make([]string, 0, len(e.Reasons))
	for n := range e.Reasons {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+": "+e.Reasons[n])
	}
	return msg + " (" + strings.Join(parts, "; ") + ")"
}

// ShapeError reports a tensor whose length does not match a slot.
type ShapeError struct {
	Slot string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("slot %q: want %d values, got %d", e.Slot, e.Want, e.Got)
}

// IsLoadError reports whether err is (or wraps) a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// IsBackendUnavailable reports whether err is (or wraps) a *BackendUnavailableError.
func IsBackendUnavailable(err error) bool {
	var be *BackendUnavailableError
	return errors.As(err, &be)
}

// IsShapeError reports whether err is (or wraps) a *ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}
