package rest

import (
	"net"
	"strings"

	"github.com/mockcloud/blobmock/objstore/objerr"
)

// DefaultServiceDomain is the service domain requests are addressed to when none is configured.
const DefaultServiceDomain = "blob.core.windows.net"

// BlobIdentity is the (container, path, name) triple a request URL resolves to.
type BlobIdentity struct {
	// Container is the first path segment.
	Container string

	// Path is the sub-namespace prefix; the middle segments joined with '/' and given a trailing '/' so that
	// Path+Name reproduces the composite key blobs are registered under.
	Path string

	// Name is the final path segment, the leaf name of the blob.
	Name string
}

// Key returns the composite key the identity resolves to within its container.
func (b BlobIdentity) Key() string {
	return b.Path + b.Name
}

// ParsePath returns the segments of the given URL path; a single leading slash is stripped, the remainder is split on
// slashes. An empty path yields <nil>.
func ParsePath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}

	return strings.Split(path, "/")
}

// SplitBlobPath resolves the given URL path into a blob identity.
//
// Requests which don't address a blob have no emulation; a path with no container segment is a "list all containers"
// request, one with no blob segments is a container-level operation.
func SplitBlobPath(path string) (BlobIdentity, error) {
	segments := ParsePath(path)

	if len(segments) == 0 || segments[0] == "" {
		return BlobIdentity{}, &objerr.UnimplementedOperationError{Name: "ListAllContainers"}
	}

	if len(segments) == 1 {
		return BlobIdentity{}, &objerr.UnimplementedOperationError{Name: "ContainerOperation"}
	}

	identity := BlobIdentity{
		Container: segments[0],
		Name:      segments[len(segments)-1],
	}

	if middle := segments[1 : len(segments)-1]; len(middle) > 0 {
		identity.Path = strings.Join(middle, "/") + "/"
	}

	return identity, nil
}

// MatchesHost returns a boolean indicating whether the given request host addresses an account under the service
// domain i.e. is of the form '*.<domain>'.
func MatchesHost(host, domain string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	return len(host) > len(domain)+1 && strings.HasSuffix(host, "."+domain)
}
