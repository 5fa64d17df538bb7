// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"errors"
	"fmt"
)

var (
	// ErrJDKNotFound is the sentinel for a JDK binary that cannot be invoked.
	ErrJDKNotFound = errors.New("JDK not found")

	// ErrJDKVersionMismatch is the sentinel for a JDK reporting the wrong version.
	ErrJDKVersionMismatch = errors.New("JDK version mismatch")
)

type (
	// JDKNotFoundError is returned by Preflight when the JDK cannot be run.
	JDKNotFoundError struct {
		Binary string
		Err    error
	}

	// JDKVersionMismatchError is returned by Preflight when the JDK reports a
	// version other than the required one. Found is empty when no version
	// could be parsed from the output.
	JDKVersionMismatchError struct {
		Found    string
		Required string
	}
)

// Error implements the error interface.
func (e *JDKNotFoundError) Error() string {
	return fmt.Sprintf("running %s -version: %v", e.Binary, e.Err)
}

// Unwrap returns ErrJDKNotFound and the exec error.
func (e *JDKNotFoundError) Unwrap() []error { return []error{ErrJDKNotFound, e.Err} }

// Error implements the error interface.
func (e *JDKVersionMismatchError) Error() string {
	found := e.Found
	if found == "" {
		found = "unknown"
	}
	return fmt.Sprintf("java-tron requires JDK version %s, found %s", e.Required, found)
}

// Unwrap returns ErrJDKVersionMismatch so callers can use errors.Is for classification.
func (e *JDKVersionMismatchError) Unwrap() error { return ErrJDKVersionMismatch }

// IsFatal reports whether err belongs to the fatal tier: a missing or wrong
// JDK, or an unsupported version request. Callers terminate on these instead
// of retrying.
func IsFatal(err error) bool {
	return errors.Is(err, ErrJDKNotFound) ||
		errors.Is(err, ErrJDKVersionMismatch) ||
		errors.Is(err, ErrUnsupportedVersion)
}
