package mmap

import (
	"testing"
)

func TestMapAnon(t *testing.T) {
	t.Run("zero filled", func(t *testing.T) {
		m, err := MapAnon(4096)
		if err != nil {
			t.Fatalf("MapAnon: %v", err)
		}
		defer m.Close()

		b := m.Bytes()
		if len(b) != 4096 {
			t.Fatalf("expected 4096 bytes, got %d", len(b))
		}
		for i, v := range b {
			if v != 0 {
				t.Fatalf("byte %d not zero: %d", i, v)
			}
		}
	})

	t.Run("writable", func(t *testing.T) {
		m, err := MapAnon(64)
		if err != nil {
			t.Fatalf("MapAnon: %v", err)
		}
		defer m.Close()

		b := m.Bytes()
		b[0] = 0xaa
		b[63] = 0x55
		if b[0] != 0xaa || b[63] != 0x55 {
			t.Fatal("writes not visible")
		}
	})

	t.Run("invalid size", func(t *testing.T) {
		if _, err := MapAnon(0); err != ErrInvalidSize {
			t.Fatalf("expected ErrInvalidSize, got %v", err)
		}
	})

	t.Run("close idempotent", func(t *testing.T) {
		m, err := MapAnon(64)
		if err != nil {
			t.Fatalf("MapAnon: %v", err)
		}
		if err := m.Close(); err != nil {
			t.Fatalf("first close: %v", err)
		}
		if err := m.Close(); err != nil {
			t.Fatalf("second close: %v", err)
		}
		if m.Bytes() != nil {
			t.Fatal("Bytes after Close should be nil")
		}
	})
}
