package zstdfile

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/DataDog/zstd"
)

// Reader decompresses the stream following an envelope header.
type Reader struct {
	header    Header
	zReader   io.ReadCloser
	headerBuf [HeaderSize]byte
}

// NewReader reads and validates the header from r and returns a reader for
// the decompressed content.
func NewReader(r io.Reader) (*Reader, error) {
	reader := &Reader{}

	if _, err := io.ReadFull(r, reader.headerBuf[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := reader.header.UnmarshalBinary(reader.headerBuf[:]); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	reader.zReader = zstd.NewReader(io.LimitReader(r, int64(reader.header.CompressedLength)))
	return reader, nil
}

// Header returns the envelope header.
func (r *Reader) Header() Header {
	return r.header
}

// Read reads decompressed data into p.
func (r *Reader) Read(p []byte) (int, error) {
	return r.zReader.Read(p)
}

// Close releases the decompressor.
func (r *Reader) Close() error {
	return r.zReader.Close()
}

// ReadAll reads an envelope and returns its decompressed content.
func ReadAll(r io.Reader) ([]byte, error) {
	reader, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if reader.header.Length == 0 {
		return []byte{}, nil
	}

	data := make([]byte, reader.header.Length)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return data, nil
}

// Decode decodes an in-memory envelope.
func Decode(data []byte) ([]byte, error) {
	return ReadAll(bytes.NewReader(data))
}

// ReadFile reads and decodes an envelope file.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open envelope: %w", err)
	}
	defer f.Close()

	data, err := ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read envelope %s: %w", path, err)
	}
	return data, nil
}
