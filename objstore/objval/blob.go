// Package objval exposes the entities stored by the emulator; containers, blobs and their metadata.
package objval

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mockcloud/blobmock/types/spool"
)

const (
	// MinNameLength is the minimum number of characters allowed in a container/blob name.
	MinNameLength = 3

	// MaxNameLength is the maximum number of characters allowed in a container/blob name.
	MaxNameLength = 63
)

// Blob represents a single stored object; its payload and the metadata attached to it.
//
// NOTE: Metadata attributes are only written at creation time or whilst holding the payload lock, readers performing
// assertions once a test is complete may access them directly.
type Blob struct {
	ContainerName string
	Name          string
	Path          string

	ContentType   string
	ContentLength int64
	ETag          string
	LastModified  time.Time

	// Retention metadata, stored but never enforced.
	LockMode          LockMode
	LegalHoldStatus   LegalHoldStatus
	LockUntil         *time.Time
	ObjectLockEnabled bool

	lock   sync.Mutex
	buffer *spool.Buffer
}

// NewBlobOptions encapsulates the options available when creating a new blob.
type NewBlobOptions struct {
	// ContainerName is the name of the container which owns the blob.
	ContainerName string

	// Name is the leaf name of the blob, unique within the container for a given path.
	Name string

	// Path is the sub-namespace prefix the blob is nested under, empty for top-level blobs.
	Path string

	// Body is the initial payload.
	Body []byte

	// ContentType is the MIME type reported for the payload.
	ContentType string

	// LockMode/LegalHoldStatus/LockUntil carry the advisory retention metadata.
	LockMode        LockMode
	LegalHoldStatus LegalHoldStatus
	LockUntil       *time.Time

	// ObjectLockEnabled records whether object locking was requested at creation time.
	ObjectLockEnabled bool

	// SpoolThreshold is the number of payload bytes held in memory before spilling to disk, zero means the default.
	SpoolThreshold int
}

// NewBlob creates a new blob holding the given payload.
func NewBlob(opts NewBlobOptions) (*Blob, error) {
	legalHold := opts.LegalHoldStatus
	if legalHold == "" {
		legalHold = LegalHoldStatusOff
	}

	blob := &Blob{
		ContainerName:     opts.ContainerName,
		Name:              opts.Name,
		Path:              opts.Path,
		ContentType:       opts.ContentType,
		LockMode:          opts.LockMode,
		LegalHoldStatus:   legalHold,
		LockUntil:         opts.LockUntil,
		ObjectLockEnabled: opts.ObjectLockEnabled,
		buffer:            spool.NewBuffer(opts.SpoolThreshold),
	}

	if err := blob.SetValue(opts.Body); err != nil {
		blob.Close()
		return nil, err
	}

	return blob, nil
}

// Key returns the composite key the blob is registered under within its container.
func (b *Blob) Key() string {
	return b.Path + b.Name
}

// Value returns a full, independent copy of the current payload.
func (b *Blob) Value() ([]byte, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	data, err := b.buffer.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	return data, nil
}

// SetValue replaces the payload wholesale, refreshing the content length, entity tag and last modified time.
func (b *Blob) SetValue(data []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if err := b.buffer.Set(data); err != nil {
		return fmt.Errorf("failed to store payload: %w", err)
	}

	b.ContentLength = int64(len(data))
	b.ETag = NewETag()
	b.touch()

	return nil
}

// AppendValue extends the payload with the given bytes, refreshing the content length and last modified time.
func (b *Blob) AppendValue(data []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if err := b.buffer.Append(data); err != nil {
		return fmt.Errorf("failed to append payload: %w", err)
	}

	b.ContentLength += int64(len(data))
	b.touch()

	return nil
}

// Copy returns a deep copy of the blob registered under the given name; the payload buffer is not shared.
func (b *Blob) Copy(name string) (*Blob, error) {
	data, err := b.Value()
	if err != nil {
		return nil, err
	}

	return NewBlob(NewBlobOptions{
		ContainerName:     b.ContainerName,
		Name:              name,
		Path:              b.Path,
		Body:              data,
		ContentType:       b.ContentType,
		LockMode:          b.LockMode,
		LegalHoldStatus:   b.LegalHoldStatus,
		LockUntil:         b.LockUntil,
		ObjectLockEnabled: b.ObjectLockEnabled,
	})
}

// LastModifiedRFC1123 returns the last modified time in the RFC-1123 format used in HTTP headers.
func (b *Blob) LastModifiedRFC1123() string {
	return b.LastModified.UTC().Format(http.TimeFormat)
}

// SizeString returns the content length as a decimal string.
func (b *Blob) SizeString() string {
	return strconv.FormatInt(b.ContentLength, 10)
}

// Close releases the payload buffer; the blob must not be reused once closed.
func (b *Blob) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.buffer.Close()
}

// touch bumps the last modified time. The clock may be coarse or step backwards, last modified must never decrease.
func (b *Blob) touch() {
	if now := time.Now().UTC(); now.After(b.LastModified) {
		b.LastModified = now
	}
}

// NewETag returns a new opaque entity tag.
func NewETag() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
