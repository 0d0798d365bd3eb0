package domain

import (
	"errors"
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	ErrStoreNotFound = errors.New("store not found")
	ErrShelfNotFound = errors.New("shelf not found")
	ErrItemNotFound  = errors.New("supplier item not found")
)

// ValidationError reports invalid user input, e.g. a non-positive quantity
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for one field
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err wraps a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidationError converts ozzo-validation results into a ValidationError,
// reporting the first failing field in name order.
func AsValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fields := make([]string, 0, len(verrs))
		for field := range verrs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		return &ValidationError{Field: fields[0], Message: verrs[fields[0]].Error()}
	}
	return &ValidationError{Message: err.Error()}
}
