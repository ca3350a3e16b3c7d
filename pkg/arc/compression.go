package arc

import (
	"bytes"
	"fmt"

	"github.com/rasky/go-lzo"
)

func compress(data []byte) []byte {
	return lzo.Compress1X(data)
}

// decompress inflates an LZO1X stream. The output must be exactly size bytes.
func decompress(uid uint32, src []byte, size uint32) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &CompressionError{UID: uid, Size: size, Err: fmt.Errorf("corrupt stream: %v", r)}
		}
	}()

	out, err = lzo.Decompress1X(bytes.NewReader(src), len(src), int(size))
	if err != nil {
		return nil, &CompressionError{UID: uid, Size: size, Err: err}
	}
	if len(out) != int(size) {
		return nil, &CompressionError{UID: uid, Size: size, Err: fmt.Errorf("got %d bytes", len(out))}
	}
	return out, nil
}
