package objerr

import (
	"errors"
	"fmt"
)

// InvalidNameError indicates that a container/blob name is outside the allowed length bounds.
type InvalidNameError struct {
	Name string
}

// Error implements the 'error' interface.
func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("name '%s' is not valid, names must be between 3-63 characters in length", e.Name)
}

// IsInvalidNameError return a boolean indicating whether the given error is an 'InvalidNameError'.
func IsInvalidNameError(err error) bool {
	var invalidNameError *InvalidNameError
	return errors.As(err, &invalidNameError)
}
