package arc

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below via errors.Is.
var (
	ErrFormat      = errors.New("malformed archive")
	ErrIntegrity   = errors.New("integrity check failed")
	ErrCompression = errors.New("unsupported compression")
	ErrInvalidPath = errors.New("invalid path")
)

// FormatError reports a structurally impossible header, table or entry.
type FormatError struct {
	Section string
	Reason  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.Section, e.Reason)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func formatErrorf(section, format string, args ...any) error {
	return &FormatError{Section: section, Reason: fmt.Sprintf(format, args...)}
}

// IntegrityError is returned when a stored digest does not match the
// digest of the bytes it covers.
type IntegrityError struct {
	Section string
	UID     uint32 // zero for the header and table
	Nominal [16]byte
	Actual  [16]byte
}

func (e *IntegrityError) Error() string {
	if e.Section == "entry" {
		return fmt.Sprintf("mismatched entry %08x digest: %x expected %x", e.UID, e.Nominal, e.Actual)
	}
	return fmt.Sprintf("mismatched %s digest: %x expected %x", e.Section, e.Nominal, e.Actual)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// CompressionError is returned when an entry claims to be compressed but
// cannot be decompressed to its recorded size.
type CompressionError struct {
	UID  uint32
	Size uint32
	Err  error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("decompress entry %08x to %d bytes: %v", e.UID, e.Size, e.Err)
}

func (e *CompressionError) Is(target error) bool { return target == ErrCompression }

func (e *CompressionError) Unwrap() error { return e.Err }
