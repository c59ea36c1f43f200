// Package env abstracts reading named values from the process environment so
// that callers can be exercised against a deterministic in-memory source.
package env

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every lookup failure returned from a Source,
// regardless of which implementation produced it.
var ErrNotFound = errors.New("environment variable not found")

// Source retrieves a string value by key.
type Source interface {
	// Var returns the value stored under key. An absent or unreadable key
	// yields an error that satisfies errors.Is(err, ErrNotFound).
	Var(key string) (string, error)
}

// Reason describes why an OSSource lookup failed.
type Reason string

const (
	// ReasonNotPresent means the variable is not set at all.
	ReasonNotPresent Reason = "not present"
	// ReasonNotUnicode means the variable is set but is not valid UTF-8 text.
	ReasonNotUnicode Reason = "not valid unicode"
)

// VarError is returned by OSSource when a variable cannot be read.
type VarError struct {
	Key    string
	Reason Reason
}

// Error implements the error interface.
func (e *VarError) Error() string {
	return fmt.Sprintf("environment variable %s: %s", e.Key, e.Reason)
}

// Is reports ErrNotFound for both failure reasons.
func (e *VarError) Is(target error) bool {
	return target == ErrNotFound
}

// MissingVarError is returned by MapSource when the key was never set.
type MissingVarError struct {
	Key string
}

// Error implements the error interface.
func (e *MissingVarError) Error() string {
	return fmt.Sprintf("no environment variable with the name, %s", e.Key)
}

// Is reports ErrNotFound.
func (e *MissingVarError) Is(target error) bool {
	return target == ErrNotFound
}
