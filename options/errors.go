package options

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched by every *ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports an invalid options document.
// Message is the user-facing text; Key names the offending option when there is one.
type ConfigurationError struct {
	Key     string
	Message string
	cause   error
}

func newConfigurationError(key, message string) *ConfigurationError {
	return &ConfigurationError{Key: key, Message: message}
}

// WrapConfigurationError reports an option that parsed as JSON but was
// rejected by the component consuming it.
func WrapConfigurationError(key string, cause error) *ConfigurationError {
	return &ConfigurationError{
		Key:     key,
		Message: fmt.Sprintf("Invalid %s. %v", key, cause),
		cause:   cause,
	}
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// Unwrap exposes the underlying parse failure, if any.
func (e *ConfigurationError) Unwrap() error {
	return e.cause
}

// Is makes errors.Is(err, ErrConfiguration) true for every ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
