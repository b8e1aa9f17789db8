// Package rest translates blob storage HTTP requests into backend operations and renders provider-compatible
// responses and errors.
package rest

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/mockcloud/blobmock/log"
	"github.com/mockcloud/blobmock/objstore/objerr"
	"github.com/mockcloud/blobmock/objstore/objmem"
	"github.com/mockcloud/blobmock/types/ratelimit"
)

// response is the normalized (status, headers, body) triple every request resolves to.
type response struct {
	status  int
	headers map[string]string
	body    []byte
}

// ResponderOptions encapsulates the options available when creating a new responder.
type ResponderOptions struct {
	// Store is the backend requests are dispatched to.
	//
	// NOTE: Required
	Store objmem.Store

	// ErrorRenderer renders structured error bodies, defaults to the provider-shaped XML renderer.
	ErrorRenderer ErrorRenderer

	// Logger defaults to 'slog.Default'.
	Logger *slog.Logger

	// ServiceDomain is the domain accounts are addressed under, used to flag requests arriving via an unexpected
	// host. Defaults to 'DefaultServiceDomain'.
	ServiceDomain string

	// DownloadLimiter, when non-<nil>, bounds the rate at which payload bytes are written to clients.
	DownloadLimiter *rate.Limiter
}

// Responder parses inbound blob storage requests, dispatches them to the backend and renders the results in the
// providers wire format. Implements 'http.Handler'; safe for concurrent use by parallel in-flight requests.
type Responder struct {
	store    objmem.Store
	renderer ErrorRenderer
	logger   *slog.Logger
	domain   string
	limiter  *rate.Limiter
}

var _ http.Handler = (*Responder)(nil)

// NewResponder returns a new responder dispatching to the given store.
func NewResponder(options ResponderOptions) *Responder {
	responder := &Responder{
		store:    options.Store,
		renderer: options.ErrorRenderer,
		logger:   options.Logger,
		domain:   options.ServiceDomain,
		limiter:  options.DownloadLimiter,
	}

	if responder.renderer == nil {
		responder.renderer = &XMLErrorRenderer{}
	}

	if responder.logger == nil {
		responder.logger = slog.Default()
	}

	if responder.domain == "" {
		responder.domain = DefaultServiceDomain
	}

	return responder
}

// ServeHTTP implements the 'http.Handler' interface. Every failure resolves to a well-formed HTTP response, domain
// errors never escape the dispatcher.
func (re *Responder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	re.write(w, r, re.dispatch(r))
}

// dispatch resolves the request to a verb-specific handler and runs it.
func (re *Responder) dispatch(r *http.Request) response {
	method, err := parseMethod(r.Method)
	if err != nil {
		return re.errorResponse(err)
	}

	identity, err := SplitBlobPath(r.URL.Path)
	if err != nil {
		return re.errorResponse(err)
	}

	if !MatchesHost(r.Host, re.domain) {
		re.logger.Debug("Request host is outside the service domain", "host", r.Host, "domain", re.domain)
	}

	re.logger.Debug("Dispatching request",
		slog.String("method", method.String()),
		slog.String("action", resolveAction(method, r.URL.Query())),
		log.UserData("container", identity.Container),
		log.UserData("key", identity.Key()),
	)

	// Header validation short-circuits dispatch, a request which fails it never mutates backend state.
	if resp := validateRequiredHeaders(r); resp != nil {
		return *resp
	}

	switch method {
	case MethodGet:
		return re.handleGet(r, identity)
	case MethodPut:
		return re.handlePut(r, identity)
	case MethodHead:
		return re.handleHead(r, identity)
	default:
		return re.errorResponse(&objerr.UnimplementedOperationError{Name: r.Method})
	}
}

// handleGet responds with the raw payload of the addressed blob.
func (re *Responder) handleGet(r *http.Request, identity BlobIdentity) response {
	blob, err := re.store.GetBlob(r.Context(), objmem.GetBlobOptions{
		Container: identity.Container,
		Path:      identity.Path,
		Name:      identity.Name,
	})
	if err != nil {
		return re.errorResponse(err)
	}

	data, err := blob.Value()
	if err != nil {
		return re.internalError(err)
	}

	return response{status: http.StatusOK, body: data}
}

// handlePut stores the request body as a new blob, responding with the storage-specific response headers.
func (re *Responder) handlePut(r *http.Request, identity BlobIdentity) response {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return re.internalError(err)
	}

	blob, err := re.store.PutBlob(r.Context(), objmem.PutBlobOptions{
		Container:         identity.Container,
		Path:              identity.Path,
		Name:              identity.Name,
		Body:              bytes.NewReader(body),
		ContentType:       r.Header.Get("Content-Type"),
		ObjectLockEnabled: r.Header.Get("x-amz-bucket-object-lock-enabled") == "True",
	})
	if err != nil {
		return re.errorResponse(err)
	}

	digest := md5.Sum(body)

	headers := map[string]string{
		"ETag":                          blob.ETag,
		"Last-Modified":                 blob.LastModifiedRFC1123(),
		"Content-MD5":                   base64.StdEncoding.EncodeToString(digest[:]),
		"x-ms-request-server-encrypted": "true",
		"x-ms-version-id":               blob.LastModified.UTC().Format("2006-01-02T15:04:05.0000000Z"),
	}

	if id := r.Header.Get("x-ms-client-request-id"); id != "" {
		headers["x-ms-client-request-id"] = id
	}

	return response{status: http.StatusCreated, headers: headers, body: []byte("Created")}
}

// handleHead responds with an empty body either way; 200 if the addressed blob exists, 404 if not.
func (re *Responder) handleHead(r *http.Request, identity BlobIdentity) response {
	_, err := re.store.GetBlob(r.Context(), objmem.GetBlobOptions{
		Container: identity.Container,
		Path:      identity.Path,
		Name:      identity.Name,
	})

	switch {
	case objerr.IsNotFoundError(err):
		return response{status: http.StatusNotFound}
	case err != nil:
		return re.errorResponse(err)
	}

	return response{status: http.StatusOK}
}

// errorResponse maps a domain error to its wire-format response.
func (re *Responder) errorResponse(err error) response {
	var notFound *objerr.NotFoundError

	switch {
	case errors.As(err, &notFound):
		return response{
			status:  http.StatusNotFound,
			headers: map[string]string{"Content-Type": "application/xml"},
			body:    re.renderer.Render(codeNoSuchBucket, messageNoSuchBucket, notFound.Name),
		}
	case objerr.IsAlreadyExistsError(err):
		return response{status: http.StatusBadRequest, body: []byte("Bucket already exists")}
	case objerr.IsInvalidNameError(err):
		return response{
			status:  http.StatusBadRequest,
			headers: map[string]string{"Content-Type": "application/xml"},
			body:    re.renderer.Render(codeInvalidBucketName, messageInvalidBucketName, ""),
		}
	case objerr.IsUnimplementedOperationError(err):
		return response{status: http.StatusNotImplemented, body: []byte(err.Error())}
	}

	return re.internalError(err)
}

// internalError logs the fault and responds 500; unexpected errors must still produce a well-formed response.
func (re *Responder) internalError(err error) response {
	re.logger.Error("Failed to handle request", "err", err)

	return response{status: http.StatusInternalServerError, body: []byte("internal error")}
}

// write renders the normalized response onto the wire, rate limiting payload writes when configured.
func (re *Responder) write(w http.ResponseWriter, r *http.Request, resp response) {
	for key, value := range resp.headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.status)

	if len(resp.body) == 0 {
		return
	}

	var writer io.Writer = w
	if re.limiter != nil {
		writer = ratelimit.NewRateLimitedWriter(r.Context(), w, re.limiter)
	}

	if _, err := writer.Write(resp.body); err != nil {
		re.logger.Error("Failed to write response", "err", err)
	}
}

// validateRequiredHeaders checks the headers every request must carry, returning the short-circuit response for the
// first missing one.
func validateRequiredHeaders(r *http.Request) *response {
	if r.Header.Get("Content-Length") == "" && r.ContentLength <= 0 {
		return &response{status: http.StatusLengthRequired, body: []byte("Content-Length required")}
	}

	if r.Header.Get("Authorization") == "" {
		return &response{status: http.StatusBadRequest, body: []byte("Authorization required")}
	}

	if r.Header.Get("Date") == "" && r.Header.Get("x-ms-date") == "" {
		return &response{status: http.StatusBadRequest, body: []byte("Date or x-ms-date required")}
	}

	if r.Header.Get("x-ms-version") == "" {
		return &response{status: http.StatusBadRequest, body: []byte("x-ms-version required")}
	}

	return nil
}
