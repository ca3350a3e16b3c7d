package xor

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func testKey(n int) *Key {
	table := make([]byte, n)
	rand.New(rand.NewSource(1)).Read(table)
	return NewKey(table)
}

func TestApply(t *testing.T) {
	key := testKey(256)

	t.Run("Involution", func(t *testing.T) {
		for _, offset := range []int{0, 1, 0x10, 0x33, 200} {
			original := []byte("the same function decrypts what it encrypted")
			if offset+len(original) > key.Len() {
				original = original[:key.Len()-offset]
			}
			buf := bytes.Clone(original)

			if err := key.Apply(buf, offset); err != nil {
				t.Fatalf("apply at %d: %v", offset, err)
			}
			if bytes.Equal(buf, original) {
				t.Errorf("offset %d: buffer unchanged after apply", offset)
			}
			if err := key.Apply(buf, offset); err != nil {
				t.Fatalf("reapply at %d: %v", offset, err)
			}
			if !bytes.Equal(buf, original) {
				t.Errorf("offset %d: got %x, want %x", offset, buf, original)
			}
		}
	})

	t.Run("ByteWise", func(t *testing.T) {
		buf := make([]byte, 4)
		if err := key.Apply(buf, 7); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(buf, key.table[7:11]) {
			t.Errorf("got %x, want %x", buf, key.table[7:11])
		}
	})

	t.Run("OutOfRange", func(t *testing.T) {
		buf := []byte{1, 2, 3, 4}
		err := key.Apply(buf, key.Len()-2)
		if !errors.Is(err, ErrKeyRange) {
			t.Fatalf("expected ErrKeyRange, got %v", err)
		}
		if !bytes.Equal(buf, []byte{1, 2, 3, 4}) {
			t.Errorf("buffer modified on error: %x", buf)
		}
		if err := key.Apply(buf, -1); !errors.Is(err, ErrKeyRange) {
			t.Errorf("negative offset: expected ErrKeyRange, got %v", err)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if err := key.Apply(nil, key.Len()); err != nil {
			t.Errorf("empty buffer at end of key: %v", err)
		}
	})
}

func TestBlockAlign(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 0},
		{1, 16},
		{12, 16},
		{16, 16},
		{24, 32},
		{36, 48},
		{48, 48},
	}
	for _, tt := range tests {
		if got := BlockAlign(tt.in); got != tt.want {
			t.Errorf("BlockAlign(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLoadKey(t *testing.T) {
	dir := t.TempDir()

	t.Run("PreservesLength", func(t *testing.T) {
		path := filepath.Join(dir, "keys")
		table := []byte{9, 8, 7, 6, 5}
		if err := os.WriteFile(path, table, 0644); err != nil {
			t.Fatal(err)
		}
		key, err := LoadKey(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if key.Len() != len(table) {
			t.Errorf("Len: got %d, want %d", key.Len(), len(table))
		}
	})

	t.Run("Empty", func(t *testing.T) {
		path := filepath.Join(dir, "empty")
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadKey(path); err == nil {
			t.Error("expected error for empty key file")
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if _, err := LoadKey(filepath.Join(dir, "missing")); err == nil {
			t.Error("expected error for missing key file")
		}
	})
}

func BenchmarkApply(b *testing.B) {
	key := testKey(1024 * 1024)
	buf := make([]byte, 256*1024)

	b.SetBytes(int64(len(buf)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := key.Apply(buf, 0); err != nil {
			b.Fatal(err)
		}
	}
}
