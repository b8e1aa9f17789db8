// Package ratelimit exposes rate limited io implementations.
package ratelimit

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"
)

// RateLimitedReader will use its limiter as a rate limit on the number of bytes read.
type RateLimitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

// NewRateLimitedReader creates a new RateLimitedReader which respects "limiter" in terms of the number of bytes read.
func NewRateLimitedReader(ctx context.Context, r io.Reader, limiter *rate.Limiter) *RateLimitedReader {
	return &RateLimitedReader{ctx: ctx, r: r, limiter: limiter}
}

// Read will read into p whilst respecting the rate limit.
func (r *RateLimitedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n <= 0 {
		return n, err
	}

	return n, waitChunked(r.ctx, r.limiter, n)
}

// RateLimitedReadSeeker will use its limiter as a rate limit on the number of bytes read.
type RateLimitedReadSeeker struct {
	ctx     context.Context
	r       io.ReadSeeker
	limiter *rate.Limiter
}

// NewRateLimitedReadSeeker creates a RateLimitedReadSeeker which respects "limiter" in terms of the number of bytes
// read.
func NewRateLimitedReadSeeker(ctx context.Context, r io.ReadSeeker, limiter *rate.Limiter) *RateLimitedReadSeeker {
	return &RateLimitedReadSeeker{ctx: ctx, r: r, limiter: limiter}
}

// Read will read into p whilst respecting the rate limit.
func (r *RateLimitedReadSeeker) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n <= 0 {
		return n, err
	}

	return n, waitChunked(r.ctx, r.limiter, n)
}

// Seek sets the offset for the next read.
func (r *RateLimitedReadSeeker) Seek(offset int64, whence int) (int64, error) {
	return r.r.Seek(offset, whence)
}

// RateLimitedWriter will use its limiter as a rate limit on the number of bytes written.
type RateLimitedWriter struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
}

// NewRateLimitedWriter creates a new RateLimitedWriter which respects "limiter" in terms of the number of bytes
// written.
func NewRateLimitedWriter(ctx context.Context, w io.Writer, limiter *rate.Limiter) *RateLimitedWriter {
	return &RateLimitedWriter{ctx: ctx, w: w, limiter: limiter}
}

// Write will write from p whilst respecting the rate limit.
func (w *RateLimitedWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if n <= 0 {
		return n, err
	}

	return n, waitChunked(w.ctx, w.limiter, n)
}

var (
	_ io.Reader     = (*RateLimitedReader)(nil)
	_ io.ReadSeeker = (*RateLimitedReadSeeker)(nil)
	_ io.Writer     = (*RateLimitedWriter)(nil)
)

// waitChunked waits for n tokens in chunks of the limiter's burst size. This is because rate.Limiter will only allow
// at most its burst number of tokens to be drained at once, so if we want to wait for more then several calls to wait
// are required.
func waitChunked(ctx context.Context, limiter *rate.Limiter, n int) error {
	maxChunkSize := limiter.Burst()

	for n > 0 {
		waitFor := min(n, maxChunkSize)
		if lErr := limiter.WaitN(ctx, waitFor); lErr != nil {
			return fmt.Errorf("could not wait for limiter: %w", lErr)
		}

		n -= waitFor
	}

	return nil
}
