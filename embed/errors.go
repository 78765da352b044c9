package embed

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrResultCountMismatch is returned when a provider or backend returns a
	// different number of results than it was given inputs.
	ErrResultCountMismatch = errors.New("embedding result count mismatch")

	// ErrUnsupportedOption is returned for ml_options the backend cannot honor.
	ErrUnsupportedOption = errors.New("unsupported ml option")

	// ErrInvalidOptions is returned when ml_options cannot be parsed.
	ErrInvalidOptions = errors.New("invalid ml options")

	// ErrProviderRequired is returned when a TextBackend is built without a provider.
	ErrProviderRequired = errors.New("AI provider required")
)

// InvocationError reports an infrastructure-level failure of a backend call.
// It is never encoded in a status column.
type InvocationError struct {
	Model string
	Err   error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("embedding backend invocation failed for model %q: %v", e.Model, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
