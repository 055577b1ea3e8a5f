package driftwatch

import (
	"errors"
	"fmt"
)

// Common sentinel errors for the driftwatch package.
var (
	// ErrInvalidParameter is returned when a tunable or config value is
	// outside its valid domain. The previous value is always retained.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidSample is returned when a submitted sample carries a
	// non-finite value. The sample is dropped without mutating the window.
	ErrInvalidSample = errors.New("invalid sample")

	// ErrSubscriberLimit is returned when Subscribe is called on a hub
	// configured for a single consumer that already has one.
	ErrSubscriberLimit = errors.New("subscriber limit reached")

	// ErrClosed is returned when operations are attempted on a closed hub
	// or journal.
	ErrClosed = errors.New("closed")
)

// ParameterError reports a rejected parameter or configuration value.
type ParameterError struct {
	Name    string
	Value   interface{}
	Message string
}

func (e *ParameterError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("invalid parameter %s=%v: %s", e.Name, e.Value, e.Message)
	}
	return fmt.Sprintf("invalid parameter %s=%v", e.Name, e.Value)
}

// Is implements error matching for ParameterError.
func (e *ParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// newParameterError creates a new ParameterError.
func newParameterError(name string, value interface{}, message string) *ParameterError {
	return &ParameterError{Name: name, Value: value, Message: message}
}

// SampleError reports a rejected sample.
type SampleError struct {
	Sample  Sample
	Message string
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("invalid sample at %d: %s", e.Sample.Timestamp, e.Message)
}

// Is implements error matching for SampleError.
func (e *SampleError) Is(target error) bool {
	return target == ErrInvalidSample
}

// newSampleError creates a new SampleError.
func newSampleError(s Sample, message string) *SampleError {
	return &SampleError{Sample: s, Message: message}
}
