package mhe

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotConfigured is returned by Update before Configure has succeeded.
var ErrNotConfigured = errors.New("estimator is not configured")

// A ConfigurationError is returned by Configure when an input would not produce a positive
// definite precision matrix, or when the estimator is already configured.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %q: %s", e.Field, e.Reason)
}

// NewConfigurationError returns a *ConfigurationError for field.
func NewConfigurationError(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

// An IndexError is returned when a landmark slot is outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("landmark slot %d out of range [0, %d)", e.Index, e.Len)
}

// NewIndexError returns an *IndexError for index.
func NewIndexError(index, length int) error {
	return &IndexError{Index: index, Len: length}
}

// CheckIndex returns an *IndexError unless index is within [0, length).
func CheckIndex(index, length int) error {
	if index >= 0 && index < length {
		return nil
	}
	return NewIndexError(index, length)
}
