package rest

import (
	"net/http"

	"github.com/mockcloud/blobmock/objstore/objerr"
)

// Method is the closed set of HTTP verbs the emulator dispatches on.
type Method int

const (
	// MethodGet fetches a blobs payload.
	MethodGet Method = iota

	// MethodPut creates a new blob.
	MethodPut

	// MethodHead checks for a blobs existence.
	MethodHead
)

// String returns the HTTP verb the method corresponds to.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return http.MethodGet
	case MethodPut:
		return http.MethodPut
	case MethodHead:
		return http.MethodHead
	}

	return "UNKNOWN"
}

// parseMethod converts an HTTP verb into a 'Method', any verb outside the closed set has no emulation.
func parseMethod(verb string) (Method, error) {
	switch verb {
	case http.MethodGet:
		return MethodGet, nil
	case http.MethodPut:
		return MethodPut, nil
	case http.MethodHead:
		return MethodHead, nil
	}

	return 0, &objerr.UnimplementedOperationError{Name: verb}
}
