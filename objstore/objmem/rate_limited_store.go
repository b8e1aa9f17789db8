package objmem

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/mockcloud/blobmock/objstore/objval"
	"github.com/mockcloud/blobmock/types/ratelimit"
)

// RateLimitedStore implements the 'Store' interface mostly by deferring to the underlying store, but where the
// methods which involve uploading payloads, the rate limiter is used to control the rate of data transfer.
//
// The rate-limited method is 'PutBlob'; download limiting happens at the HTTP layer where the response stream lives.
type RateLimitedStore struct {
	s  Store
	rl *rate.Limiter
}

var _ Store = (*RateLimitedStore)(nil)

// NewRateLimitedStore returns a RateLimitedStore.
func NewRateLimitedStore(s Store, rl *rate.Limiter) *RateLimitedStore {
	return &RateLimitedStore{s: s, rl: rl}
}

func (r *RateLimitedStore) CreateContainer(ctx context.Context, opts CreateContainerOptions) (*objval.Container,
	error,
) {
	return r.s.CreateContainer(ctx, opts)
}

func (r *RateLimitedStore) ListContainers(ctx context.Context) ([]*objval.Container, error) {
	return r.s.ListContainers(ctx)
}

func (r *RateLimitedStore) IterateContainers(ctx context.Context, opts IterateContainersOptions) error {
	return r.s.IterateContainers(ctx, opts)
}

func (r *RateLimitedStore) PutBlob(ctx context.Context, opts PutBlobOptions) (*objval.Blob, error) {
	if opts.Body != nil {
		opts.Body = ratelimit.NewRateLimitedReadSeeker(ctx, opts.Body, r.rl)
	}

	return r.s.PutBlob(ctx, opts)
}

func (r *RateLimitedStore) GetBlob(ctx context.Context, opts GetBlobOptions) (*objval.Blob, error) {
	return r.s.GetBlob(ctx, opts)
}

func (r *RateLimitedStore) DeleteBlob(ctx context.Context, opts DeleteBlobOptions) error {
	return r.s.DeleteBlob(ctx, opts)
}

func (r *RateLimitedStore) DeleteContainer(ctx context.Context, opts DeleteContainerOptions) error {
	return r.s.DeleteContainer(ctx, opts)
}

func (r *RateLimitedStore) SetContainerCORS(ctx context.Context, opts SetContainerCORSOptions) error {
	return r.s.SetContainerCORS(ctx, opts)
}

func (r *RateLimitedStore) DeleteContainerCORS(ctx context.Context, opts DeleteContainerCORSOptions) error {
	return r.s.DeleteContainerCORS(ctx, opts)
}

func (r *RateLimitedStore) Reset(ctx context.Context) error {
	return r.s.Reset(ctx)
}
