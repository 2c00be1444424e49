package arena

import (
	"context"
	"errors"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/lcgraph/internal/mmap"
)

// MemoryAcquirer is an interface for acquiring memory.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

var (
	// ErrArenaFull is returned when an allocation does not fit.
	ErrArenaFull = errors.New("arena: arena is full")
	// ErrClosed is returned when allocating from a closed arena.
	ErrClosed = errors.New("arena: arena is closed")
)

// Stats tracks arena memory usage.
type Stats struct {
	BytesReserved uint64 // Capacity reserved from the OS
	BytesUsed     uint64 // Bytes handed out (including alignment padding)
}

// Arena is a fixed-capacity contiguous bump allocator backed by an anonymous
// mapping. Offset 0 is reserved as a null sentinel.
type Arena struct {
	mapping  *mmap.Mapping
	buf      []byte
	off      atomic.Uint64
	acquirer MemoryAcquirer
	closed   atomic.Bool
}

// Option is a configuration option for Arena.
type Option func(*Arena)

// WithMemoryAcquirer sets the memory acquirer for the arena.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// New creates an arena of the given capacity in bytes.
func New(ctx context.Context, size int, opts ...Option) (*Arena, error) {
	if size <= 0 {
		return nil, mmap.ErrInvalidSize
	}

	a := &Arena{}
	for _, opt := range opts {
		opt(a)
	}

	if a.acquirer != nil {
		if err := a.acquirer.AcquireMemory(ctx, int64(size)); err != nil {
			return nil, err
		}
	}

	mapping, err := mmap.MapAnon(size)
	if err != nil {
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(int64(size))
		}
		return nil, err
	}

	a.mapping = mapping
	a.buf = mapping.Bytes()
	// Reserve offset 0 as null.
	a.off.Store(1)

	return a, nil
}

// Alloc reserves size bytes at the given alignment and returns the offset of
// the reservation. The memory is zero-filled (fresh anonymous pages).
func (a *Arena) Alloc(size, align uint64) (uint64, error) {
	if a.closed.Load() {
		return 0, ErrClosed
	}
	if size == 0 {
		return 0, nil
	}
	if align == 0 {
		align = 1
	}

	for {
		cur := a.off.Load()
		padding := (align - (cur % align)) % align
		next := cur + padding + size

		if next > uint64(len(a.buf)) {
			return 0, ErrArenaFull
		}

		if a.off.CompareAndSwap(cur, next) {
			return cur + padding, nil
		}
	}
}

// Pointer returns an unsafe.Pointer to the memory at the given offset.
// It performs no bounds checking; offsets must come from Alloc.
func (a *Arena) Pointer(off uint64) unsafe.Pointer {
	return unsafe.Pointer(&a.buf[off])
}

// Bytes returns a slice of the arena at the given offset and size.
// The slice is valid only until Close.
func (a *Arena) Bytes(off, size uint64) []byte {
	return a.buf[off : off+size : off+size]
}

// Cap returns the arena capacity in bytes.
func (a *Arena) Cap() uint64 {
	return uint64(len(a.buf))
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() Stats {
	return Stats{
		BytesReserved: uint64(len(a.buf)),
		BytesUsed:     a.off.Load(),
	}
}

// Close unmaps the arena and releases its reservation. It is idempotent.
// All offsets and pointers into the arena become invalid.
func (a *Arena) Close() error {
	if a.closed.Swap(true) {
		return nil
	}

	size := int64(len(a.buf))
	a.buf = nil
	err := a.mapping.Close()

	if a.acquirer != nil {
		a.acquirer.ReleaseMemory(size)
	}
	return err
}
