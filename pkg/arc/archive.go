// Package arc reads and writes encrypted resource archives.
//
// An archive is a header, an entry table and a run of entry payloads. The
// header and table are XOR-encrypted against a fixed key table and guarded by
// MD5 digests; each entry is encrypted, optionally LZO-compressed and carries
// its own trailer. Entries whose stored bytes begin with "RIFF" or "~SCE" are
// kept verbatim.
package arc

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/goopsie/arcFileTools/pkg/xor"
)

// DefaultVersion is the version written to new archives.
const DefaultVersion = 1

// Archive is a set of entries keyed by UID. Entries keep their arrival order,
// which is the order they are packed in.
//
// An Archive is not safe for concurrent mutation.
type Archive struct {
	Version uint32

	key     *xor.Key
	cfg     config
	entries map[uint32]*Entry
	order   []uint32
	damaged map[uint32]error
}

// New creates an empty archive.
func New(key *xor.Key, opts ...Option) *Archive {
	return &Archive{
		Version: DefaultVersion,
		key:     key,
		cfg:     newConfig(opts),
		entries: make(map[uint32]*Entry),
		damaged: make(map[uint32]error),
	}
}

// ReadFile reads and parses an archive from disk. The file's base name is
// used to check the header name hash unless WithName overrides it.
func ReadFile(key *xor.Key, path string, opts ...Option) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	opts = append([]Option{WithName(filepath.Base(path))}, opts...)
	a, err := Parse(key, data, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return a, nil
}

// Parse decodes a complete archive. Every entry is decrypted and
// decompressed up front.
//
// Structural errors abort with a *FormatError. Digest mismatches abort with
// an *IntegrityError in strict mode and are logged otherwise. An entry that
// fails to decompress is left out and reported by Damaged.
func Parse(key *xor.Key, data []byte, opts ...Option) (*Archive, error) {
	a := New(key, opts...)
	log := a.cfg.logger

	header, err := DecodeHeader(key, data)
	if err = a.tolerate(err); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	a.Version = header.Version

	if a.cfg.name != "" {
		if want := NameHash(a.cfg.name); want != header.NameHash {
			log.Warn("archive name hash mismatch",
				"name", a.cfg.name,
				"stored", fmt.Sprintf("%08x", header.NameHash),
				"expected", fmt.Sprintf("%08x", want))
		}
	}

	records, err := DecodeTable(key, data, header.EntryCount)
	if err = a.tolerate(err); err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}

	prevEnd := uint64(DataStart(len(records)))
	for _, r := range records {
		end := uint64(r.Offset) + uint64(r.Size)
		if uint64(r.Offset) < prevEnd || end > uint64(len(data)) {
			return nil, formatErrorf("table", "entry %08x range [%d, %d) overlaps or lies outside payload area [%d, %d)",
				r.UID, r.Offset, end, prevEnd, len(data))
		}
		prevEnd = end
		raw := data[r.Offset:end]

		payload, tr, err := DecodeEntry(key, r.UID, raw, true)
		if errors.Is(err, ErrIntegrity) {
			if err = a.tolerate(err); err != nil {
				return nil, fmt.Errorf("parse entry %08x: %w", r.UID, err)
			}
			payload, tr, err = DecodeEntry(key, r.UID, raw, false)
		}
		if errors.Is(err, ErrCompression) {
			log.Warn("skipping undecodable entry", "uid", fmt.Sprintf("%08x", r.UID), "err", err)
			a.damaged[r.UID] = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("parse entry %08x: %w", r.UID, err)
		}

		e := &Entry{UID: r.UID, NameHash: tr.NameHash, Data: payload}
		a.attachPath(e, IsPassthrough(raw))
		a.put(e)
	}

	return a, nil
}

// tolerate applies the integrity policy: in lenient mode digest mismatches
// are logged and dropped.
func (a *Archive) tolerate(err error) error {
	var ie *IntegrityError
	if err == nil || a.cfg.strict || !errors.As(err, &ie) {
		return err
	}
	a.cfg.logger.Warn("ignoring digest mismatch",
		"section", ie.Section,
		"uid", fmt.Sprintf("%08x", ie.UID),
		"stored", fmt.Sprintf("%x", ie.Nominal),
		"computed", fmt.Sprintf("%x", ie.Actual))
	return nil
}

func (a *Archive) attachPath(e *Entry, passthrough bool) {
	if a.cfg.resolver == nil {
		return
	}
	p, ok := a.cfg.resolver.Resolve(e.UID)
	if !ok {
		return
	}
	n, err := NormalizePath(p)
	if err != nil || uidOf(n) != e.UID {
		a.cfg.logger.Warn("registry path does not hash to entry", "uid", fmt.Sprintf("%08x", e.UID), "path", p)
		return
	}
	e.Path = n
	switch want := NameHash(n); {
	case passthrough:
		e.NameHash = want
	case want != e.NameHash:
		a.cfg.logger.Warn("entry name hash mismatch", "path", n,
			"stored", fmt.Sprintf("%08x", e.NameHash), "expected", fmt.Sprintf("%08x", want))
	}
}

func (a *Archive) put(e *Entry) {
	if _, ok := a.entries[e.UID]; !ok {
		a.order = append(a.order, e.UID)
	}
	a.entries[e.UID] = e
	delete(a.damaged, e.UID)
}

// Len returns the number of entries.
func (a *Archive) Len() int {
	return len(a.order)
}

// Entry returns the entry with the given UID.
func (a *Archive) Entry(uid uint32) (*Entry, bool) {
	e, ok := a.entries[uid]
	return e, ok
}

// Entries returns all entries in arrival order.
func (a *Archive) Entries() []*Entry {
	out := make([]*Entry, len(a.order))
	for i, uid := range a.order {
		out[i] = a.entries[uid]
	}
	return out
}

// Damaged returns the entries dropped during parsing because their payload
// could not be decompressed.
func (a *Archive) Damaged() map[uint32]error {
	out := make(map[uint32]error, len(a.damaged))
	for uid, err := range a.damaged {
		out[uid] = err
	}
	return out
}

// Add inserts or replaces the entry for path. Placeholder paths of the form
// /unarc<UID>x<nameHash> address the embedded UID directly. data is copied.
func (a *Archive) Add(path string, data []byte) (*Entry, error) {
	data = bytes.Clone(data)
	if data == nil {
		data = []byte{}
	}
	var e *Entry
	if uid, nameHash, ok := ParsePlaceholder(path); ok {
		e = &Entry{UID: uid, NameHash: nameHash, Data: data}
	} else {
		n, err := NormalizePath(path)
		if err != nil {
			return nil, fmt.Errorf("add %q: %w", path, err)
		}
		e = &Entry{UID: uidOf(n), NameHash: NameHash(n), Path: n, Data: data}
	}
	a.put(e)
	return e, nil
}

// PatchStats summarizes a Patch call.
type PatchStats struct {
	Added     int
	Replaced  int
	Unchanged int
}

// Patch overlays other onto a. For every UID in other, other's entry wins.
// Entry data is copied, so the archives stay independent.
func (a *Archive) Patch(other *Archive) PatchStats {
	var stats PatchStats
	for _, e := range other.Entries() {
		c := *e
		c.Data = bytes.Clone(e.Data)
		cur, ok := a.entries[e.UID]
		switch {
		case !ok:
			stats.Added++
		case cur.NameHash == e.NameHash && bytes.Equal(cur.Data, e.Data):
			stats.Unchanged++
		default:
			stats.Replaced++
		}
		if ok && c.Path == "" {
			c.Path = cur.Path
		}
		a.put(&c)
	}
	return stats
}

// Query selects an entry for Extract.
type Query interface {
	uid() (uint32, bool)
}

// ByUID selects an entry by its UID.
type ByUID uint32

func (q ByUID) uid() (uint32, bool) { return uint32(q), true }

// ByPath selects an entry by resource path. The path is normalized before
// hashing.
type ByPath string

func (q ByPath) uid() (uint32, bool) {
	n, err := NormalizePath(string(q))
	if err != nil {
		return 0, false
	}
	return uidOf(n), true
}

// Extract returns the decoded data selected by q. A missing entry is
// reported by the boolean, not an error. The returned slice is the entry's
// own storage and must not be modified.
func (a *Archive) Extract(q Query) ([]byte, bool) {
	uid, ok := q.uid()
	if !ok {
		return nil, false
	}
	e, ok := a.entries[uid]
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// Marshal encodes the archive as it would be written under the file name
// name. Entries are laid out contiguously in arrival order.
func (a *Archive) Marshal(name string) ([]byte, error) {
	count := len(a.order)
	encoded := make([][]byte, count)
	records := make([]Record, count)

	cursor := uint64(DataStart(count))
	for i, uid := range a.order {
		e := a.entries[uid]
		raw, err := EncodeEntry(a.key, e.Data, e.NameHash, a.cfg.compress)
		if err != nil {
			return nil, fmt.Errorf("encode entry %08x: %w", uid, err)
		}
		if cursor+uint64(len(raw)) > math.MaxUint32 {
			return nil, fmt.Errorf("encode entry %08x: archive exceeds %d bytes", uid, uint64(math.MaxUint32))
		}
		encoded[i] = raw
		records[i] = Record{UID: uid, Offset: uint32(cursor), Size: uint32(len(raw))}
		cursor += uint64(len(raw))
	}

	header := Header{Version: a.Version, EntryCount: uint32(count)}
	if name != "" {
		header.NameHash = NameHash(name)
	}
	headerBytes, err := EncodeHeader(a.key, header)
	if err != nil {
		return nil, err
	}
	tableBytes, err := EncodeTable(a.key, records)
	if err != nil {
		return nil, err
	}

	out := make([]byte, cursor)
	copy(out, headerBytes)
	copy(out[TableStart:], tableBytes)
	for i, r := range records {
		copy(out[r.Offset:], encoded[i])
	}
	return out, nil
}

// Pack writes the archive to path, replacing any existing file.
func (a *Archive) Pack(path string) error {
	data, err := a.Marshal(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("pack %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	return nil
}
