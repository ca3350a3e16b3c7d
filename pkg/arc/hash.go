package arc

import (
	"crypto/md5"
	"fmt"
	"hash/crc32"
	"path"
	"strconv"
	"strings"
)

// DigestSize is the size of every integrity digest in the format.
const DigestSize = md5.Size

const placeholderPrefix = "/unarc"

// NormalizePath converts a resource path to the form that is hashed:
// forward slashes, lowercase, a single leading slash.
func NormalizePath(p string) (string, error) {
	p = strings.ToLower(strings.ReplaceAll(p, "\\", "/"))
	p = "/" + strings.TrimLeft(p, "/")
	if p == "/" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return p, nil
}

// UID returns the lookup key for a resource path. Invalid paths hash to the
// key of "/".
func UID(p string) uint32 {
	n, err := NormalizePath(p)
	if err != nil {
		n = "/"
	}
	return uidOf(n)
}

func uidOf(normalized string) uint32 {
	return ^crc32.ChecksumIEEE([]byte(normalized))
}

// NameHash returns the trailer name hash for a resource path: the CRC of its
// lowercase base name.
func NameHash(p string) uint32 {
	base := path.Base(strings.ToLower(strings.ReplaceAll(p, "\\", "/")))
	return crc32.ChecksumIEEE([]byte(base))
}

// Digest returns the MD5 digest of the concatenated parts.
func Digest(parts ...[]byte) [DigestSize]byte {
	h := md5.New()
	for _, p := range parts {
		h.Write(p)
	}
	var sum [DigestSize]byte
	h.Sum(sum[:0])
	return sum
}

// Placeholder returns the synthetic path used for entries whose real path is
// unknown.
func Placeholder(uid, nameHash uint32) string {
	return placeholderPrefix + strconv.FormatUint(uint64(uid), 10) + "x" + strconv.FormatUint(uint64(nameHash), 10)
}

// ParsePlaceholder extracts the UID and name hash embedded in a placeholder
// path. The path is normalized first.
func ParsePlaceholder(p string) (uid, nameHash uint32, ok bool) {
	n, err := NormalizePath(p)
	if err != nil {
		return 0, 0, false
	}
	rest, found := strings.CutPrefix(n, placeholderPrefix)
	if !found {
		return 0, 0, false
	}
	uidStr, hashStr, found := strings.Cut(rest, "x")
	if !found {
		return 0, 0, false
	}
	u, err := strconv.ParseUint(uidStr, 10, 32)
	if err != nil {
		return 0, 0, false
	}
	h, err := strconv.ParseUint(hashStr, 10, 32)
	if err != nil {
		return 0, 0, false
	}
	return uint32(u), uint32(h), true
}
