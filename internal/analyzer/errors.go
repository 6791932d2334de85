package analyzer

import "fmt"

// ValidationError reports input that cannot be analyzed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ConfigurationError reports an analyzer configuration rejected at construction.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Message)
}

// ErrEmptyContent is returned for empty or whitespace-only content.
var ErrEmptyContent = &ValidationError{Field: "content", Message: "content cannot be empty"}
