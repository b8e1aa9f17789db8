package objval

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"
)

// MaxCORSRules is the maximum number of CORS rules a container may hold.
const MaxCORSRules = 100

// ErrTooManyCORSRules is returned when attempting to set more than 'MaxCORSRules' rules on a container.
var ErrTooManyCORSRules = errors.New("too many CORS rules, containers allow at most 100")

// corsMethods are the HTTP methods a CORS rule may allow.
var corsMethods = []string{"GET", "PUT", "HEAD", "POST", "DELETE"}

// InvalidCORSMethodError is returned when a CORS rule allows an unsupported HTTP method.
type InvalidCORSMethodError struct {
	Method string
}

// Error implements the 'error' interface.
func (e *InvalidCORSMethodError) Error() string {
	return fmt.Sprintf("method %q is not valid in a CORS rule", e.Method)
}

// CorsRule represents a single CORS rule attached to a container.
type CorsRule struct {
	// AllowedMethods are the HTTP methods the rule permits, a subset of GET/PUT/HEAD/POST/DELETE.
	AllowedMethods []string

	// AllowedOrigins are the origins the rule permits.
	AllowedOrigins []string

	// AllowedHeaders are the request headers permitted in a preflighted request.
	AllowedHeaders []string

	// ExposedHeaders are the response headers exposed to the browser.
	ExposedHeaders []string

	// MaxAgeSeconds is how long a preflight response may be cached.
	MaxAgeSeconds int
}

// Valid returns an error if the rule allows an unsupported method, <nil> otherwise.
func (c *CorsRule) Valid() error {
	for _, method := range c.AllowedMethods {
		if !slices.Contains(corsMethods, method) {
			return &InvalidCORSMethodError{Method: method}
		}
	}

	return nil
}
