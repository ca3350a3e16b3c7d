package arc

import (
	"bytes"
	"encoding/binary"

	"github.com/goopsie/arcFileTools/pkg/xor"
)

// Toggle switches a single extracted entry between its stored and decoded
// forms.
//
// Stored data whose trailer digest verifies is decoded and returned with its
// 4-byte little-endian name hash appended, and decrypted is true. Anything
// else is taken to be decoded data with that name hash appended; it is
// compressed and encoded. RIFF and ~SCE data get no special treatment here.
func Toggle(key *xor.Key, data []byte) (out []byte, decrypted bool, err error) {
	if len(data) >= TrailerSize {
		buf := bytes.Clone(data)
		if err := key.Apply(buf, xor.EntryOffset); err != nil {
			return nil, false, err
		}
		split := len(buf) - DigestSize
		if Digest(buf[:split]) == [DigestSize]byte(buf[split:]) {
			payload, tr, err := DecodeEntry(key, 0, data, false)
			if err != nil {
				return nil, false, err
			}
			return binary.LittleEndian.AppendUint32(payload, tr.NameHash), true, nil
		}
	}

	if len(data) < 4 {
		return nil, false, formatErrorf("entry", "%d bytes is too short to carry a name hash", len(data))
	}
	split := len(data) - 4
	nameHash := binary.LittleEndian.Uint32(data[split:])
	out, err = encodeEntry(key, data[:split], nameHash, true, true)
	if err != nil {
		return nil, false, err
	}
	return out, false, nil
}
