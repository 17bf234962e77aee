package models

import "fmt"

// ValidationError reports a malformed request field. It is a caller error, never a backend one.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func required(field, value string) error {
	if isBlank(value) {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}
