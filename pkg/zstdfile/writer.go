package zstdfile

import (
	"fmt"
	"io"
	"os"

	"github.com/DataDog/zstd"
)

// DefaultCompressionLevel favours a small dictionary file over speed.
const DefaultCompressionLevel = zstd.DefaultCompression

// Writer compresses content behind an envelope header. The header is written
// first with a zero compressed size and patched on Close.
type Writer struct {
	dst     io.WriteSeeker
	counter *countingWriter
	zWriter *zstd.Writer
	header  *Header
	start   int64
	level   int
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCompressionLevel sets the zstd compression level.
func WithCompressionLevel(level int) WriterOption {
	return func(w *Writer) {
		w.level = level
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// NewWriter starts an envelope at the current position of dst for length
// bytes of content.
func NewWriter(dst io.WriteSeeker, length uint64, opts ...WriterOption) (*Writer, error) {
	start, err := dst.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}

	w := &Writer{
		dst:    dst,
		header: NewHeader(length, 0),
		start:  start,
		level:  DefaultCompressionLevel,
	}
	for _, opt := range opts {
		opt(w)
	}

	headerBytes, err := w.header.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	if _, err := dst.Write(headerBytes); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	w.counter = &countingWriter{w: dst}
	w.zWriter = zstd.NewWriterLevel(w.counter, w.level)
	return w, nil
}

// Write compresses p.
func (w *Writer) Write(p []byte) (int, error) {
	return w.zWriter.Write(p)
}

// Close flushes the compressor and rewrites the header with the final
// compressed size.
func (w *Writer) Close() error {
	if err := w.zWriter.Close(); err != nil {
		return fmt.Errorf("close compressor: %w", err)
	}
	w.header.CompressedLength = uint64(w.counter.n)

	end, err := w.dst.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("get position: %w", err)
	}
	if _, err := w.dst.Seek(w.start, io.SeekStart); err != nil {
		return fmt.Errorf("seek to header: %w", err)
	}
	headerBytes, err := w.header.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	if _, err := w.dst.Write(headerBytes); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.dst.Seek(end, io.SeekStart); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}
	return nil
}

// Encode writes data to dst as a complete envelope.
func Encode(dst io.WriteSeeker, data []byte, opts ...WriterOption) error {
	w, err := NewWriter(dst, uint64(len(data)), opts...)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return w.Close()
}

// WriteFile writes data to path as an envelope.
func WriteFile(path string, data []byte, opts ...WriterOption) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if err := Encode(f, data, opts...); err != nil {
		f.Close()
		return fmt.Errorf("encode envelope: %w", err)
	}
	return f.Close()
}
