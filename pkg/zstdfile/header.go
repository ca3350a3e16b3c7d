// Package zstdfile reads and writes single-stream ZSTD envelopes: a 24-byte
// header recording both sizes, followed by one zstd frame. Path dictionaries
// are shipped in this form.
package zstdfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Magic identifies an envelope header.
var Magic = [4]byte{0x5a, 0x53, 0x54, 0x44} // "ZSTD"

// HeaderSize is the encoded size of a Header.
const HeaderSize = 24 // 4 + 4 + 8 + 8 bytes

// headerLength is the value stored in Header.HeaderLength.
const headerLength = 16

// Header precedes the compressed stream.
type Header struct {
	Magic            [4]byte
	HeaderLength     uint32
	Length           uint64 // decompressed size
	CompressedLength uint64
}

// NewHeader returns a header for a payload of the given sizes.
func NewHeader(length, compressedLength uint64) *Header {
	return &Header{
		Magic:            Magic,
		HeaderLength:     headerLength,
		Length:           length,
		CompressedLength: compressedLength,
	}
}

// Validate checks the magic and length fields.
func (h *Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("invalid magic: expected %x, got %x", Magic, h.Magic)
	}
	if h.HeaderLength != headerLength {
		return fmt.Errorf("invalid header length: expected %d, got %d", headerLength, h.HeaderLength)
	}
	if h.CompressedLength == 0 && h.Length != 0 {
		return fmt.Errorf("compressed size is zero for %d bytes of content", h.Length)
	}
	return nil
}

// EncodeTo writes the header to buf, which must be at least HeaderSize bytes.
func (h *Header) EncodeTo(buf []byte) {
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.HeaderLength)
	binary.LittleEndian.PutUint64(buf[8:16], h.Length)
	binary.LittleEndian.PutUint64(buf[16:24], h.CompressedLength)
}

// DecodeFrom reads the header from buf without validating it.
func (h *Header) DecodeFrom(buf []byte) {
	copy(h.Magic[:], buf[0:4])
	h.HeaderLength = binary.LittleEndian.Uint32(buf[4:8])
	h.Length = binary.LittleEndian.Uint64(buf[8:16])
	h.CompressedLength = binary.LittleEndian.Uint64(buf[16:24])
}

// MarshalBinary encodes the header.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	h.EncodeTo(buf)
	return buf, nil
}

// UnmarshalBinary decodes and validates the header.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("header data too short: need %d, got %d", HeaderSize, len(data))
	}
	h.DecodeFrom(data)
	return h.Validate()
}

// IsEnvelope reports whether data starts with an envelope magic.
func IsEnvelope(data []byte) bool {
	return bytes.HasPrefix(data, Magic[:])
}
