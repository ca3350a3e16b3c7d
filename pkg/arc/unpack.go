package arc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
)

type unpackConfig struct {
	include       string
	skipUnchanged bool
}

// UnpackOption configures Unpack.
type UnpackOption func(*unpackConfig)

// WithPathFilter only unpacks entries whose relative output path matches the
// doublestar pattern, e.g. "gfx/**/*.gim".
func WithPathFilter(pattern string) UnpackOption {
	return func(c *unpackConfig) {
		c.include = pattern
	}
}

// WithSkipUnchanged leaves existing files alone when their content already
// matches the entry.
func WithSkipUnchanged(skip bool) UnpackOption {
	return func(c *unpackConfig) {
		c.skipUnchanged = skip
	}
}

// OutputName returns the path an entry is unpacked to, relative to the output
// directory root: the registry path, the entry's own path, or its
// placeholder. reg may be nil.
func OutputName(e *Entry, reg Resolver) string {
	if reg != nil {
		if p, ok := reg.Resolve(e.UID); ok {
			p = "/" + strings.TrimLeft(strings.ReplaceAll(p, "\\", "/"), "/")
			if p != "/" {
				return p
			}
		}
	}
	return e.Name()
}

// Unpack writes every entry's decoded data below dir and returns the number
// of files written. Entries without a known path are written to their
// placeholder name so that a later Add restores the same UID.
func (a *Archive) Unpack(dir string, reg Resolver, opts ...UnpackOption) (int, error) {
	cfg := &unpackConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.include != "" && !doublestar.ValidatePattern(cfg.include) {
		return 0, fmt.Errorf("invalid include pattern %q", cfg.include)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	createdDirs := make(map[string]struct{})
	written := 0
	for _, e := range a.Entries() {
		name := OutputName(e, reg)
		rel := strings.TrimPrefix(name, "/")
		local := filepath.FromSlash(rel)
		if !filepath.IsLocal(local) {
			return written, fmt.Errorf("unpack %s: %w: escapes output directory", name, ErrInvalidPath)
		}

		if cfg.include != "" {
			if ok, _ := doublestar.Match(cfg.include, rel); !ok {
				continue
			}
		}

		target := filepath.Join(dir, local)
		parent := filepath.Dir(target)
		if _, exists := createdDirs[parent]; !exists {
			if err := os.MkdirAll(parent, 0755); err != nil {
				return written, fmt.Errorf("create dir %s: %w", parent, err)
			}
			createdDirs[parent] = struct{}{}
		}

		if cfg.skipUnchanged && sameContent(target, e) {
			continue
		}

		if err := os.WriteFile(target, e.Data, 0644); err != nil {
			return written, fmt.Errorf("write file %s: %w", target, err)
		}
		written++
	}

	return written, nil
}

func sameContent(path string, e *Entry) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() != int64(len(e.Data)) {
		return false
	}
	existing, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return xxhash.Sum64(existing) == e.Fingerprint()
}
