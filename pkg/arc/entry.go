package arc

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/goopsie/arcFileTools/pkg/xor"
)

// TrailerSize is the size of the trailer appended to every encoded entry.
const TrailerSize = 0x19 // 4 + 1 + 4 + 16 bytes

// trailerDigestStart is where the digest begins; the digest covers the
// payload and the trailer bytes before it.
const trailerDigestStart = 9

// Pass-through markers. Entries starting with either are stored verbatim.
var (
	markerRIFF = []byte("RIFF")
	markerSCE  = []byte("~SCE")
)

// Entry is a decoded archive resource.
type Entry struct {
	UID      uint32
	NameHash uint32
	Path     string // normalized path, empty when unknown
	Data     []byte
}

// Known reports whether the entry's real path is known.
func (e *Entry) Known() bool {
	return e.Path != ""
}

// Name returns the entry's path, or its placeholder path when unknown.
func (e *Entry) Name() string {
	if e.Path != "" {
		return e.Path
	}
	return Placeholder(e.UID, e.NameHash)
}

// Fingerprint returns a fast non-cryptographic hash of the decoded data.
func (e *Entry) Fingerprint() uint64 {
	return xxhash.Sum64(e.Data)
}

// Trailer is the per-entry footer stored after the payload.
type Trailer struct {
	RealSize   uint32 // decoded size
	Compressed bool
	NameHash   uint32
	Digest     [DigestSize]byte
}

// EncodeTo writes the trailer to buf, which must be at least TrailerSize bytes.
func (t *Trailer) EncodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], t.RealSize)
	buf[4] = 0
	if t.Compressed {
		buf[4] = 1
	}
	binary.LittleEndian.PutUint32(buf[5:9], t.NameHash)
	copy(buf[9:25], t.Digest[:])
}

// DecodeFrom reads the trailer from buf, which must be at least TrailerSize bytes.
func (t *Trailer) DecodeFrom(buf []byte) {
	t.RealSize = binary.LittleEndian.Uint32(buf[0:4])
	t.Compressed = buf[4] == 1
	t.NameHash = binary.LittleEndian.Uint32(buf[5:9])
	copy(t.Digest[:], buf[9:25])
}

// IsPassthrough reports whether b is stored without cipher, compression or
// trailer.
func IsPassthrough(b []byte) bool {
	return bytes.HasPrefix(b, markerRIFF) || bytes.HasPrefix(b, markerSCE)
}

// DecodeEntry decodes the stored bytes of one entry. raw is not modified.
//
// When verify is set the digest is checked before decompressing. A mismatch
// returns the trailer and an *IntegrityError without any data; callers that
// want the data anyway decode again without verification.
func DecodeEntry(key *xor.Key, uid uint32, raw []byte, verify bool) ([]byte, Trailer, error) {
	if IsPassthrough(raw) {
		return bytes.Clone(raw), Trailer{RealSize: uint32(len(raw))}, nil
	}
	if len(raw) < TrailerSize {
		return nil, Trailer{}, formatErrorf("entry", "entry %08x is %d bytes, shorter than its trailer", uid, len(raw))
	}

	buf := bytes.Clone(raw)
	if err := key.Apply(buf, xor.EntryOffset); err != nil {
		return nil, Trailer{}, fmt.Errorf("decrypt entry %08x: %w", uid, err)
	}

	split := len(buf) - TrailerSize
	payload, info := buf[:split], buf[split:]

	var tr Trailer
	tr.DecodeFrom(info)

	if verify {
		actual := Digest(buf[:split+trailerDigestStart])
		if actual != tr.Digest {
			return nil, tr, &IntegrityError{Section: "entry", UID: uid, Nominal: tr.Digest, Actual: actual}
		}
	}

	if !tr.Compressed {
		return payload, tr, nil
	}
	data, err := decompress(uid, payload, tr.RealSize)
	if err != nil {
		return nil, tr, err
	}
	return data, tr, nil
}

// EncodeEntry produces the stored bytes of one entry. When compressPayload is set
// the payload is compressed if that makes it smaller.
func EncodeEntry(key *xor.Key, data []byte, nameHash uint32, compressPayload bool) ([]byte, error) {
	if IsPassthrough(data) {
		return data, nil
	}
	return encodeEntry(key, data, nameHash, compressPayload, false)
}

// encodeEntry builds payload and trailer and encrypts them. With always set
// the payload is compressed even when that does not save space.
func encodeEntry(key *xor.Key, data []byte, nameHash uint32, compressPayload, always bool) ([]byte, error) {
	payload := data
	tr := Trailer{RealSize: uint32(len(data)), NameHash: nameHash}
	if compressPayload && (always || len(data) > 0) {
		if c := compress(data); always || len(c) < len(data) {
			payload = c
			tr.Compressed = true
		}
	}

	out := make([]byte, len(payload)+TrailerSize)
	copy(out, payload)
	info := out[len(payload):]
	tr.EncodeTo(info)
	tr.Digest = Digest(out[:len(payload)+trailerDigestStart])
	copy(info[trailerDigestStart:], tr.Digest[:])

	if err := key.Apply(out, xor.EntryOffset); err != nil {
		return nil, fmt.Errorf("encrypt entry: %w", err)
	}
	return out, nil
}
