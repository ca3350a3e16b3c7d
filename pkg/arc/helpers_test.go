package arc

import (
	"bytes"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goopsie/arcFileTools/pkg/xor"
)

// testKeySize covers every entry written by the tests.
const testKeySize = 1 << 16

func testKey() *xor.Key {
	table := make([]byte, testKeySize)
	rand.New(rand.NewSource(1)).Read(table)
	return xor.NewKey(table)
}

// mapResolver is a fixed UID to path dictionary.
type mapResolver map[uint32]string

func (m mapResolver) Resolve(uid uint32) (string, bool) {
	p, ok := m[uid]
	return p, ok
}

func resolverFor(paths ...string) mapResolver {
	m := make(mapResolver, len(paths))
	for _, p := range paths {
		m[UID(p)] = p
	}
	return m
}

// bufferLogger returns a logger writing text records to the returned buffer.
func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

// assemble lays out an archive from already encoded entries.
func assemble(t *testing.T, key *xor.Key, uids []uint32, raws [][]byte) []byte {
	t.Helper()
	require.Len(t, raws, len(uids))

	records := make([]Record, len(uids))
	offset := DataStart(len(uids))
	for i, raw := range raws {
		records[i] = Record{UID: uids[i], Offset: uint32(offset), Size: uint32(len(raw))}
		offset += len(raw)
	}

	header, err := EncodeHeader(key, Header{NameHash: NameHash("test.arc"), Version: DefaultVersion, EntryCount: uint32(len(uids))})
	require.NoError(t, err)
	table, err := EncodeTable(key, records)
	require.NoError(t, err)

	out := append(header, table...)
	for _, raw := range raws {
		out = append(out, raw...)
	}
	return out
}

func compressible(n int) []byte {
	return bytes.Repeat([]byte("resource payload "), n/17+1)[:n]
}
