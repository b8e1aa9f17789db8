package objerr

import (
	"errors"
	"fmt"
)

// AlreadyExistsError indicates that a container/blob with the requested identity is already registered; the namespace
// is shared, so the caller must pick a different name.
type AlreadyExistsError struct {
	Type string
	Name string
}

// Error implements the 'error' interface.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s '%s' already exists", e.Type, e.Name)
}

// IsAlreadyExistsError return a boolean indicating whether the given error is an 'AlreadyExistsError'.
func IsAlreadyExistsError(err error) bool {
	var alreadyExistsError *AlreadyExistsError
	return errors.As(err, &alreadyExistsError)
}
