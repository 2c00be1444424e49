package larray

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/lcgraph/internal/conv"
	"github.com/hupe1980/lcgraph/internal/mem"
	"github.com/hupe1980/lcgraph/internal/mmap"
	"github.com/hupe1980/lcgraph/resource"
)

// ErrOverflow is returned by CopyIn when the source sequence yields more
// elements than the array holds.
var ErrOverflow = errors.New("larray: sequence longer than array")

// copyChunkBytes is the granularity at which CopyIn consults the bandwidth
// throttle.
const copyChunkBytes = 1 << 20

// Options contains configuration options for array allocation.
type Options struct {
	// Controller accounts for (and may cap) the bytes this array reserves.
	Controller *resource.Controller

	// OffHeap places the backing storage in an anonymous mapping instead of
	// the Go heap. The element type must then be pointer-free: off-heap
	// memory is invisible to the garbage collector.
	OffHeap bool
}

// Option is a configuration option for Alloc.
type Option func(*Options)

// WithController sets the resource controller accounting for this array.
func WithController(c *resource.Controller) Option {
	return func(o *Options) { o.Controller = c }
}

// WithOffHeap places the array in an anonymous mapping.
func WithOffHeap() Option {
	return func(o *Options) { o.OffHeap = true }
}

// Array is a fixed-length contiguous array of T allocated in one piece.
type Array[T any] struct {
	data    []T
	mapping *mmap.Mapping
	ctrl    *resource.Controller
	bytes   int64
	closed  atomic.Bool
}

// Alloc allocates an array of n zero-valued elements.
func Alloc[T any](ctx context.Context, n uint64, opts ...Option) (*Array[T], error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	a := &Array[T]{ctrl: o.Controller}

	var zero T
	elem := uint64(unsafe.Sizeof(zero))
	if n == 0 || elem == 0 {
		// Zero-sized elements reserve nothing; make returns a zero-byte
		// backing store of the right length.
		a.data = make([]T, n)
		return a, nil
	}

	nInt, err := conv.Uint64ToInt(n * elem)
	if err != nil {
		return nil, err
	}

	a.bytes = int64(nInt)
	if err := o.Controller.AcquireMemory(ctx, a.bytes); err != nil {
		return nil, err
	}

	length, err := conv.Uint64ToInt(n)
	if err != nil {
		o.Controller.ReleaseMemory(a.bytes)
		return nil, err
	}

	if o.OffHeap {
		mapping, err := mmap.MapAnon(nInt)
		if err != nil {
			o.Controller.ReleaseMemory(a.bytes)
			return nil, err
		}
		a.mapping = mapping
		a.data = unsafe.Slice((*T)(unsafe.Pointer(&mapping.Bytes()[0])), length)
	} else {
		a.data = mem.AllocSlice[T](length)
	}

	return a, nil
}

// Len returns the number of elements.
func (a *Array[T]) Len() uint64 {
	return uint64(len(a.data))
}

// Slice returns the backing slice. It is valid only until Close.
func (a *Array[T]) Slice() []T {
	return a.data
}

// At returns a pointer to element i. No bounds checking beyond the slice's
// own; handles must come from the owning graph's iterators.
func (a *Array[T]) At(i uint64) *T {
	return &a.data[i]
}

// Reserved returns the bytes this array reserved (0 for zero-sized elements).
func (a *Array[T]) Reserved() uint64 {
	return uint64(a.bytes)
}

// CopyIn fills the array from the start with values from seq, throttled by
// the controller's copy limit. It returns ErrOverflow if seq yields more than
// Len elements; yielding fewer leaves the remainder zero-valued.
func (a *Array[T]) CopyIn(ctx context.Context, seq iter.Seq[T]) error {
	var zero T
	elem := int(unsafe.Sizeof(zero))

	chunk := len(a.data)
	if elem > 0 && copyChunkBytes/elem < chunk {
		chunk = copyChunkBytes / elem
		if chunk == 0 {
			chunk = 1
		}
	}

	i, pending := 0, 0
	for v := range seq {
		if i >= len(a.data) {
			return ErrOverflow
		}
		if pending == 0 {
			if err := a.ctrl.ThrottleCopy(ctx, chunk*elem); err != nil {
				return err
			}
			pending = chunk
		}
		a.data[i] = v
		i++
		pending--
	}
	return nil
}

// Close releases the backing storage. It is idempotent. All slices and
// pointers obtained from the array become invalid.
func (a *Array[T]) Close() error {
	if a.closed.Swap(true) {
		return nil
	}

	a.data = nil
	var err error
	if a.mapping != nil {
		err = a.mapping.Close()
	}
	if a.bytes > 0 {
		a.ctrl.ReleaseMemory(a.bytes)
	}
	return err
}
