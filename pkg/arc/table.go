package arc

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/goopsie/arcFileTools/pkg/xor"
)

const (
	// HeaderSize is the size of the header fields covered by the header digest.
	HeaderSize = 0x0C // 4 + 4 + 4 bytes

	// RecordSize is the size of one entry table record.
	RecordSize = 0x0C // 4 + 4 + 4 bytes

	// TableStart is the file offset of the first entry table record.
	TableStart = HeaderSize + DigestSize
)

// Header is the fixed archive header.
type Header struct {
	NameHash   uint32 // CRC of the archive's own file name
	Version    uint32
	EntryCount uint32
}

// EncodeTo writes the header fields to buf, which must be at least HeaderSize bytes.
func (h *Header) EncodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.NameHash)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.EntryCount)
}

// DecodeFrom reads the header fields from buf, which must be at least HeaderSize bytes.
func (h *Header) DecodeFrom(buf []byte) {
	h.NameHash = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	h.EntryCount = binary.LittleEndian.Uint32(buf[8:12])
}

// Record is one entry table row.
type Record struct {
	UID    uint32
	Offset uint32 // absolute file offset of the stored entry
	Size   uint32 // stored size
}

// EncodeTo writes the record to buf, which must be at least RecordSize bytes.
func (r *Record) EncodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], r.UID)
	binary.LittleEndian.PutUint32(buf[4:8], r.Offset)
	binary.LittleEndian.PutUint32(buf[8:12], r.Size)
}

// DecodeFrom reads the record from buf, which must be at least RecordSize bytes.
func (r *Record) DecodeFrom(buf []byte) {
	r.UID = binary.LittleEndian.Uint32(buf[0:4])
	r.Offset = binary.LittleEndian.Uint32(buf[4:8])
	r.Size = binary.LittleEndian.Uint32(buf[8:12])
}

// DataStart returns the file offset of the first entry payload in an archive
// with count entries.
func DataStart(count int) int {
	return TableStart + count*RecordSize + DigestSize
}

// tableDigestOffset is the key offset used for the table digest.
func tableDigestOffset(count int) int {
	return xor.BlockAlign(count * RecordSize)
}

// applyHeader runs the cipher over the header fields and, as a separate run,
// over the header digest.
func applyHeader(key *xor.Key, buf []byte) error {
	if err := key.Apply(buf[:HeaderSize], xor.HeaderOffset); err != nil {
		return err
	}
	return key.Apply(buf[HeaderSize:TableStart], xor.HeaderDigestOffset)
}

// DecodeHeader decrypts and parses the header at the start of data.
// A digest mismatch returns the parsed header with an *IntegrityError.
func DecodeHeader(key *xor.Key, data []byte) (Header, error) {
	if len(data) < TableStart {
		return Header{}, formatErrorf("header", "need %d bytes, got %d", TableStart, len(data))
	}

	buf := bytes.Clone(data[:TableStart])
	if err := applyHeader(key, buf); err != nil {
		return Header{}, fmt.Errorf("decrypt header: %w", err)
	}

	var h Header
	h.DecodeFrom(buf)

	var nominal [DigestSize]byte
	copy(nominal[:], buf[HeaderSize:TableStart])
	if actual := Digest(buf[:HeaderSize]); actual != nominal {
		return h, &IntegrityError{Section: "header", Nominal: nominal, Actual: actual}
	}
	return h, nil
}

// EncodeHeader returns the encrypted header and its digest.
func EncodeHeader(key *xor.Key, h Header) ([]byte, error) {
	buf := make([]byte, TableStart)
	h.EncodeTo(buf)
	digest := Digest(buf[:HeaderSize])
	copy(buf[HeaderSize:], digest[:])

	if err := applyHeader(key, buf); err != nil {
		return nil, fmt.Errorf("encrypt header: %w", err)
	}
	return buf, nil
}

// DecodeTable decrypts and parses count table records and the table digest.
// A digest mismatch returns the parsed records with an *IntegrityError.
func DecodeTable(key *xor.Key, data []byte, count uint32) ([]Record, error) {
	tableLen := int(count) * RecordSize
	if end := DataStart(int(count)); end > len(data) {
		return nil, formatErrorf("table", "%d entries need %d bytes, got %d", count, end, len(data))
	}

	table := bytes.Clone(data[TableStart : TableStart+tableLen])
	if err := key.Apply(table, xor.TableOffset); err != nil {
		return nil, fmt.Errorf("decrypt table: %w", err)
	}

	var nominal [DigestSize]byte
	copy(nominal[:], data[TableStart+tableLen:])
	if err := key.Apply(nominal[:], tableDigestOffset(int(count))); err != nil {
		return nil, fmt.Errorf("decrypt table digest: %w", err)
	}

	records := make([]Record, count)
	for i := range records {
		records[i].DecodeFrom(table[i*RecordSize:])
	}

	if actual := Digest(table); actual != nominal {
		return records, &IntegrityError{Section: "table", Nominal: nominal, Actual: actual}
	}
	return records, nil
}

// EncodeTable returns the encrypted table followed by its encrypted digest.
func EncodeTable(key *xor.Key, records []Record) ([]byte, error) {
	tableLen := len(records) * RecordSize
	buf := make([]byte, tableLen+DigestSize)
	for i := range records {
		records[i].EncodeTo(buf[i*RecordSize:])
	}
	digest := Digest(buf[:tableLen])
	copy(buf[tableLen:], digest[:])

	if err := key.Apply(buf[:tableLen], xor.TableOffset); err != nil {
		return nil, fmt.Errorf("encrypt table: %w", err)
	}
	if err := key.Apply(buf[tableLen:], tableDigestOffset(len(records))); err != nil {
		return nil, fmt.Errorf("encrypt table digest: %w", err)
	}
	return buf, nil
}
