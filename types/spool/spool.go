// Package spool exposes a payload buffer which holds small payloads in memory, spilling to a temporary backing file
// once a size threshold is crossed; this stops a process holding many large payloads from exhausting memory.
package spool

import (
	"fmt"
	"os"
)

// DefaultThreshold is the number of in-memory bytes permitted before a buffer spills to disk.
const DefaultThreshold = 16 * 1024 * 1024

// Buffer is a write-replace/append, read-all payload store.
//
// NOTE: Not safe for concurrent use, callers are expected to serialize access.
type Buffer struct {
	threshold int
	mem       []byte
	file      *os.File
	size      int64
}

// NewBuffer returns a new empty buffer which will spill to disk once more than 'threshold' bytes are stored. A
// threshold that's zero/negative falls back to 'DefaultThreshold'.
func NewBuffer(threshold int) *Buffer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	return &Buffer{threshold: threshold}
}

// Len returns the number of bytes currently stored.
func (b *Buffer) Len() int64 {
	return b.size
}

// Spilled returns a boolean indicating whether the buffer contents are backed by a temporary file.
func (b *Buffer) Spilled() bool {
	return b.file != nil
}

// Set replaces the stored payload wholesale.
func (b *Buffer) Set(data []byte) error {
	if b.file != nil {
		return b.reset(data)
	}

	if len(data) > b.threshold {
		return b.spill(data)
	}

	b.mem = append(b.mem[:0], data...)
	b.size = int64(len(data))

	return nil
}

// Append extends the stored payload with the given bytes.
func (b *Buffer) Append(data []byte) error {
	if b.file == nil && int(b.size)+len(data) <= b.threshold {
		b.mem = append(b.mem, data...)
		b.size += int64(len(data))

		return nil
	}

	if b.file == nil {
		return b.spill(append(b.mem, data...))
	}

	n, err := b.file.WriteAt(data, b.size)
	if err != nil {
		return fmt.Errorf("failed to append to backing file: %w", err)
	}

	b.size += int64(n)

	return nil
}

// ReadAll returns an independent copy of the stored payload.
func (b *Buffer) ReadAll() ([]byte, error) {
	data := make([]byte, b.size)

	if b.file == nil {
		copy(data, b.mem)
		return data, nil
	}

	if _, err := b.file.ReadAt(data, 0); err != nil {
		return nil, fmt.Errorf("failed to read backing file: %w", err)
	}

	return data, nil
}

// Close releases the backing file, if any. The buffer must not be reused once closed.
func (b *Buffer) Close() error {
	b.mem = nil
	b.size = 0

	if b.file == nil {
		return nil
	}

	name := b.file.Name()

	err := b.file.Close()
	b.file = nil

	if err != nil {
		return fmt.Errorf("failed to close backing file: %w", err)
	}

	if err := os.Remove(name); err != nil {
		return fmt.Errorf("failed to remove backing file: %w", err)
	}

	return nil
}

// reset truncates the backing file then writes the given payload to it from the beginning.
func (b *Buffer) reset(data []byte) error {
	if err := b.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate backing file: %w", err)
	}

	if _, err := b.file.WriteAt(data, 0); err != nil {
		return fmt.Errorf("failed to write backing file: %w", err)
	}

	b.size = int64(len(data))

	return nil
}

// spill moves the buffer onto disk, the in-memory region is released.
func (b *Buffer) spill(data []byte) error {
	file, err := os.CreateTemp("", "blobmock-spool-*")
	if err != nil {
		return fmt.Errorf("failed to create backing file: %w", err)
	}

	if _, err := file.WriteAt(data, 0); err != nil {
		file.Close()
		os.Remove(file.Name())

		return fmt.Errorf("failed to write backing file: %w", err)
	}

	b.file = file
	b.mem = nil
	b.size = int64(len(data))

	return nil
}
