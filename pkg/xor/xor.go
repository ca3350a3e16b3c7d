// Package xor implements the archive keystream cipher.
//
// The cipher XORs a buffer against a fixed key table starting at a
// caller-supplied offset. Applying it twice with the same offset restores the
// original bytes.
package xor

import (
	"errors"
	"fmt"
	"os"
)

// Key offsets used by the archive format.
const (
	HeaderOffset       = 0x00 // header fields
	HeaderDigestOffset = 0x00 // header digest, encrypted as its own run
	TableOffset        = 0x10 // entry table records
	EntryOffset        = 0x00 // every entry payload restarts here
)

// BlockSize is the alignment used for the table digest offset.
const BlockSize = 16

// ErrKeyRange is returned when a request reaches past the end of the key table.
var ErrKeyRange = errors.New("key offset out of range")

// Key is an immutable keystream table. It is safe for concurrent use.
type Key struct {
	table []byte
}

// NewKey creates a key from the given table. The table is copied.
func NewKey(table []byte) *Key {
	k := &Key{table: make([]byte, len(table))}
	copy(k.table, table)
	return k
}

// LoadKey reads a key table from disk. The file length is preserved exactly.
func LoadKey(path string) (*Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("read key %s: empty key table", path)
	}
	return &Key{table: data}, nil
}

// Len returns the key table length in bytes.
func (k *Key) Len() int {
	return len(k.table)
}

// Apply XORs buf in place with the key table starting at offset.
// If the key table is too short buf is left untouched.
func (k *Key) Apply(buf []byte, offset int) error {
	if offset < 0 || offset+len(buf) > len(k.table) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrKeyRange, len(buf), offset, len(k.table))
	}
	stream := k.table[offset : offset+len(buf)]
	for i := range buf {
		buf[i] ^= stream[i]
	}
	return nil
}

// BlockAlign rounds n up to the next multiple of BlockSize.
func BlockAlign(n int) int {
	return (n + BlockSize - 1) / BlockSize * BlockSize
}
