package arena

import (
	"context"
	"sync"
	"testing"
	"unsafe"
)

func TestArena_Alloc(t *testing.T) {
	ctx := context.Background()

	t.Run("alignment", func(t *testing.T) {
		a, err := New(ctx, 4096)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer a.Close()

		off, err := a.Alloc(3, 8)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		if off%8 != 0 {
			t.Errorf("offset %d not 8-byte aligned", off)
		}

		off2, err := a.Alloc(16, 8)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		if off2%8 != 0 {
			t.Errorf("offset %d not 8-byte aligned", off2)
		}
		if off2 < off+3 {
			t.Errorf("allocations overlap: %d after [%d,%d)", off2, off, off+3)
		}
	})

	t.Run("null sentinel reserved", func(t *testing.T) {
		a, err := New(ctx, 64)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer a.Close()

		off, err := a.Alloc(1, 1)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		if off == 0 {
			t.Error("first allocation must not be at offset 0")
		}
	})

	t.Run("full", func(t *testing.T) {
		a, err := New(ctx, 64)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer a.Close()

		if _, err := a.Alloc(128, 8); err != ErrArenaFull {
			t.Errorf("expected ErrArenaFull, got %v", err)
		}
	})

	t.Run("zero filled", func(t *testing.T) {
		a, err := New(ctx, 1024)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer a.Close()

		off, err := a.Alloc(512, 8)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		for i, b := range a.Bytes(off, 512) {
			if b != 0 {
				t.Fatalf("byte %d not zero: %d", i, b)
			}
		}
	})

	t.Run("concurrent allocations disjoint", func(t *testing.T) {
		a, err := New(ctx, 1<<20)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer a.Close()

		const workers = 8
		const perWorker = 100
		offs := make([][]uint64, workers)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					off, err := a.Alloc(16, 8)
					if err != nil {
						t.Errorf("Alloc: %v", err)
						return
					}
					offs[w] = append(offs[w], off)
				}
			}(w)
		}
		wg.Wait()

		seen := make(map[uint64]bool)
		for _, list := range offs {
			for _, off := range list {
				if seen[off] {
					t.Fatalf("offset %d returned twice", off)
				}
				seen[off] = true
			}
		}
	})
}

func TestArena_Pointer(t *testing.T) {
	a, err := New(context.Background(), 4096)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	off, err := a.Alloc(8, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	p := (*uint64)(a.Pointer(off))
	*p = 0xdeadbeef
	if *(*uint64)(a.Pointer(off)) != 0xdeadbeef {
		t.Fatal("write through Pointer not visible")
	}
	_ = unsafe.Pointer(p)
}

type fakeAcquirer struct {
	acquired int64
	released int64
}

func (f *fakeAcquirer) AcquireMemory(_ context.Context, n int64) error {
	f.acquired += n
	return nil
}

func (f *fakeAcquirer) ReleaseMemory(n int64) { f.released += n }

func TestArena_Close(t *testing.T) {
	fa := &fakeAcquirer{}
	a, err := New(context.Background(), 4096, WithMemoryAcquirer(fa))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if fa.acquired != 4096 {
		t.Fatalf("expected 4096 acquired, got %d", fa.acquired)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if fa.released != 4096 {
		t.Fatalf("expected 4096 released once, got %d", fa.released)
	}

	if _, err := a.Alloc(1, 1); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
