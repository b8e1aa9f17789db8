// Package objmem exposes a 'Store' interface for managing the emulators in-memory containers/blobs, along with the
// authoritative implementation which enforces the naming/uniqueness/lifecycle rules.
package objmem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/exp/maps"

	"github.com/mockcloud/blobmock/objstore/objerr"
	"github.com/mockcloud/blobmock/objstore/objval"
)

// CreateContainerOptions encapsulates the options available when using the 'CreateContainer' function.
type CreateContainerOptions struct {
	// Name is the name of the container being created, globally unique.
	Name string
}

// IterateFunc is the function used when iterating over containers, called once per registered container.
type IterateFunc func(container *objval.Container) error

// IterateContainersOptions encapsulates the options available when using the 'IterateContainers' function.
type IterateContainersOptions struct {
	// Func is executed for each registered container, iteration order is unspecified.
	Func IterateFunc
}

// PutBlobOptions encapsulates the options available when using the 'PutBlob' function.
type PutBlobOptions struct {
	// Container is the container being operated on.
	Container string

	// Name is the leaf name of the blob being created.
	Name string

	// Path is the sub-namespace prefix the blob is nested under, may be empty.
	Path string

	// Body is the payload that will be stored, a <nil> body stores an empty payload.
	Body io.ReadSeeker

	// ContentType is the MIME type recorded for the payload.
	ContentType string

	// LockMode/LegalHoldStatus/LockUntil carry the advisory retention metadata stored with the blob.
	LockMode        objval.LockMode
	LegalHoldStatus objval.LegalHoldStatus
	LockUntil       *time.Time

	// ObjectLockEnabled marks the blob as created with object locking requested.
	ObjectLockEnabled bool
}

// GetBlobOptions encapsulates the options available when using the 'GetBlob' function.
type GetBlobOptions struct {
	// Container is the container being operated on.
	Container string

	// Name is the leaf name of the blob being fetched.
	Name string

	// Path is the sub-namespace prefix the blob is nested under, may be empty.
	Path string
}

// DeleteBlobOptions encapsulates the options available when using the 'DeleteBlob' function.
type DeleteBlobOptions struct {
	// Container is the container being operated on.
	Container string

	// Name is the leaf name of the blob being deleted.
	Name string

	// Path is the sub-namespace prefix the blob is nested under, may be empty.
	Path string
}

// DeleteContainerOptions encapsulates the options available when using the 'DeleteContainer' function.
type DeleteContainerOptions struct {
	// Name is the name of the container being deleted.
	Name string
}

// SetContainerCORSOptions encapsulates the options available when using the 'SetContainerCORS' function.
type SetContainerCORSOptions struct {
	// Container is the container being operated on.
	Container string

	// Rules are the CORS rules which will replace the containers current rule set.
	Rules []objval.CorsRule
}

// DeleteContainerCORSOptions encapsulates the options available when using the 'DeleteContainerCORS' function.
type DeleteContainerCORSOptions struct {
	// Container is the container being operated on.
	Container string
}

// Store is the interface through which the request handling layer manages containers/blobs.
type Store interface {
	CreateContainer(ctx context.Context, opts CreateContainerOptions) (*objval.Container, error)
	ListContainers(ctx context.Context) ([]*objval.Container, error)
	IterateContainers(ctx context.Context, opts IterateContainersOptions) error
	PutBlob(ctx context.Context, opts PutBlobOptions) (*objval.Blob, error)
	GetBlob(ctx context.Context, opts GetBlobOptions) (*objval.Blob, error)
	DeleteBlob(ctx context.Context, opts DeleteBlobOptions) error
	DeleteContainer(ctx context.Context, opts DeleteContainerOptions) error
	SetContainerCORS(ctx context.Context, opts SetContainerCORSOptions) error
	DeleteContainerCORS(ctx context.Context, opts DeleteContainerCORSOptions) error
	Reset(ctx context.Context) error
}

// Options encapsulates the options available when creating a new backend.
type Options struct {
	// DisableContainerAutoCreate stops 'PutBlob' from implicitly creating an unregistered container, making it fail
	// with a not found error instead. The zero value preserves the lenient behavior real emulation sessions expect.
	DisableContainerAutoCreate bool

	// SpoolThreshold is the number of payload bytes a single blob holds in memory before spilling to a temporary
	// backing file, zero means the default.
	SpoolThreshold int
}

// Backend is the authoritative in-memory registry of containers and blobs.
//
// NOTE: One backend is expected per emulation session; state is never persisted, use 'Reset' to wipe it between test
// runs.
type Backend struct {
	lock       sync.RWMutex
	containers map[string]*objval.Container
	options    Options
}

var _ Store = (*Backend)(nil)

// NewBackend returns a new empty backend.
func NewBackend(options Options) *Backend {
	return &Backend{containers: make(map[string]*objval.Container), options: options}
}

// CreateContainer registers a new container with the given name.
func (b *Backend) CreateContainer(_ context.Context, opts CreateContainerOptions) (*objval.Container, error) {
	if !validName(opts.Name) {
		return nil, &objerr.InvalidNameError{Name: opts.Name}
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	if _, ok := b.containers[opts.Name]; ok {
		return nil, &objerr.AlreadyExistsError{Type: "container", Name: opts.Name}
	}

	container := objval.NewContainer(opts.Name)
	b.containers[opts.Name] = container

	return container, nil
}

// ListContainers returns all the registered containers, order unspecified.
func (b *Backend) ListContainers(_ context.Context) ([]*objval.Container, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return maps.Values(b.containers), nil
}

// IterateContainers runs the given function once for each registered container.
func (b *Backend) IterateContainers(_ context.Context, opts IterateContainersOptions) error {
	b.lock.RLock()

	// Take a copy of the registry. This stops a deadlock that happens if fn is trying to perform an operation which
	// requires the write lock.
	cpy := maps.Clone(b.containers)

	b.lock.RUnlock()

	for _, container := range cpy {
		if err := opts.Func(container); err != nil {
			return err
		}
	}

	return nil
}

// PutBlob creates a new blob with the given payload/metadata.
//
// An unregistered container is implicitly created unless the backend was constructed with
// 'DisableContainerAutoCreate'. A second put for the same path+name fails with an already exists error, blobs are
// never silently overwritten.
func (b *Backend) PutBlob(_ context.Context, opts PutBlobOptions) (*objval.Blob, error) {
	if !validName(opts.Container) {
		return nil, &objerr.InvalidNameError{Name: opts.Container}
	}

	if !validName(opts.Name) {
		return nil, &objerr.InvalidNameError{Name: opts.Name}
	}

	var (
		body []byte
		err  error
	)

	if opts.Body != nil {
		body, err = io.ReadAll(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
	}

	// The blob is fully constructed before being published to the registry, a concurrent reader can never observe a
	// partially written entity.
	blob, err := objval.NewBlob(objval.NewBlobOptions{
		ContainerName:     opts.Container,
		Name:              opts.Name,
		Path:              opts.Path,
		Body:              body,
		ContentType:       opts.ContentType,
		LockMode:          opts.LockMode,
		LegalHoldStatus:   opts.LegalHoldStatus,
		LockUntil:         opts.LockUntil,
		ObjectLockEnabled: opts.ObjectLockEnabled,
		SpoolThreshold:    b.options.SpoolThreshold,
	})
	if err != nil {
		return nil, err
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	container, ok := b.containers[opts.Container]

	switch {
	case !ok && b.options.DisableContainerAutoCreate:
		blob.Close()
		return nil, &objerr.NotFoundError{Type: "container", Name: opts.Container}
	case !ok:
		container = objval.NewContainer(opts.Container)
		b.containers[opts.Container] = container
	}

	if _, ok := container.Blobs[blob.Key()]; ok {
		blob.Close()
		return nil, &objerr.AlreadyExistsError{Type: "blob", Name: blob.Key()}
	}

	if blob.LockMode == objval.LockModeUndefined && container.HasDefaultLock() {
		retention := container.DefaultRetention()
		blob.LockMode = container.Locking.DefaultMode
		blob.LockUntil = &retention
	}

	container.Blobs[blob.Key()] = blob

	return blob, nil
}

// GetBlob returns the blob registered under path+name in the given container.
//
// NOTE: A missing container and a missing blob are deliberately indistinguishable, both report the blob as not found.
func (b *Backend) GetBlob(_ context.Context, opts GetBlobOptions) (*objval.Blob, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	container, ok := b.containers[opts.Container]
	if !ok {
		return nil, &objerr.NotFoundError{Type: "blob", Name: opts.Path + opts.Name}
	}

	blob, ok := container.Blobs[opts.Path+opts.Name]
	if !ok {
		return nil, &objerr.NotFoundError{Type: "blob", Name: opts.Path + opts.Name}
	}

	return blob, nil
}

// DeleteBlob removes the blob registered under path+name, releasing its payload buffer.
func (b *Backend) DeleteBlob(_ context.Context, opts DeleteBlobOptions) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	container, ok := b.containers[opts.Container]
	if !ok {
		return &objerr.NotFoundError{Type: "blob", Name: opts.Path + opts.Name}
	}

	blob, ok := container.Blobs[opts.Path+opts.Name]
	if !ok {
		return &objerr.NotFoundError{Type: "blob", Name: opts.Path + opts.Name}
	}

	delete(container.Blobs, blob.Key())

	if err := blob.Close(); err != nil {
		return fmt.Errorf("failed to release payload: %w", err)
	}

	return nil
}

// DeleteContainer removes the whole container namespace, releasing every owned blob.
func (b *Backend) DeleteContainer(_ context.Context, opts DeleteContainerOptions) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	container, ok := b.containers[opts.Name]
	if !ok {
		return &objerr.NotFoundError{Type: "container", Name: opts.Name}
	}

	delete(b.containers, opts.Name)

	return closeAll(container)
}

// SetContainerCORS validates then replaces the CORS rules of the given container.
func (b *Backend) SetContainerCORS(_ context.Context, opts SetContainerCORSOptions) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	container, ok := b.containers[opts.Container]
	if !ok {
		return &objerr.NotFoundError{Type: "container", Name: opts.Container}
	}

	return container.SetCORS(opts.Rules)
}

// DeleteContainerCORS removes all the CORS rules from the given container.
func (b *Backend) DeleteContainerCORS(_ context.Context, opts DeleteContainerCORSOptions) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	container, ok := b.containers[opts.Container]
	if !ok {
		return &objerr.NotFoundError{Type: "container", Name: opts.Container}
	}

	container.DeleteCORS()

	return nil
}

// Reset wipes all state, releasing any spilled payload buffers; the backend may be reused afterwards.
func (b *Backend) Reset(_ context.Context) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	containers := maps.Values(b.containers)
	b.containers = make(map[string]*objval.Container)

	// A failed release must not leave later containers' spilled payloads on disk, release everything and report the
	// failures together.
	errs := make([]error, 0, len(containers))

	for _, container := range containers {
		errs = append(errs, closeAll(container))
	}

	return errors.Join(errs...)
}

// closeAll releases the payload buffers of every blob owned by the given container, reporting every failed release.
func closeAll(container *objval.Container) error {
	var errs []error

	for _, blob := range container.Blobs {
		if err := blob.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release payload of %q: %w", blob.Key(), err))
		}
	}

	return errors.Join(errs...)
}

// validName returns a boolean indicating whether the given container/blob name is within the allowed length bounds.
func validName(name string) bool {
	return len(name) >= objval.MinNameLength && len(name) <= objval.MaxNameLength
}
