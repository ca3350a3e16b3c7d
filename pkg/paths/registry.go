// Package paths keeps the dictionaries that map entry UIDs back to resource
// paths.
//
// A registry holds a static dictionary, shipped alongside the tools, and a
// discovered dictionary of paths learned while building archives. Both are
// stored as a JSON object keyed by the decimal UID. Files ending in ".zst"
// are wrapped in a ZSTD envelope.
package paths

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/goopsie/arcFileTools/pkg/zstdfile"
)

// Registry resolves UIDs to paths. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	static     map[uint32]string
	discovered map[uint32]string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		static:     make(map[uint32]string),
		discovered: make(map[uint32]string),
	}
}

// Load reads the static and discovered dictionaries. Either path may be
// empty. A missing discovered file is treated as empty.
func Load(staticPath, discoveredPath string) (*Registry, error) {
	r := New()

	if staticPath != "" {
		m, err := readDict(staticPath)
		if err != nil {
			return nil, fmt.Errorf("load static paths: %w", err)
		}
		r.static = m
	}

	if discoveredPath != "" {
		m, err := readDict(discoveredPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("load discovered paths: %w", err)
		default:
			r.discovered = m
		}
	}

	return r, nil
}

// Resolve returns the path for uid, consulting the static dictionary first.
func (r *Registry) Resolve(uid uint32) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.static[uid]; ok {
		return p, true
	}
	p, ok := r.discovered[uid]
	return p, ok
}

// Known reports whether uid is in the static dictionary.
func (r *Registry) Known(uid uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.static[uid]
	return ok
}

// RecordDiscovered adds a path learned at runtime.
func (r *Registry) RecordDiscovered(uid uint32, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discovered[uid] = path
}

// Len returns the number of distinct UIDs across both dictionaries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.static)
	for uid := range r.discovered {
		if _, ok := r.static[uid]; !ok {
			n++
		}
	}
	return n
}

// Discovered returns a copy of the discovered dictionary.
func (r *Registry) Discovered() map[uint32]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.discovered)
}

// SaveDiscovered writes the discovered dictionary to path.
func (r *Registry) SaveDiscovered(path string) error {
	r.mu.RLock()
	data, err := encodeDict(r.discovered)
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode discovered paths: %w", err)
	}

	if isCompressed(path) {
		err = zstdfile.WriteFile(path, data)
	} else {
		err = os.WriteFile(path, data, 0644)
	}
	if err != nil {
		return fmt.Errorf("save discovered paths: %w", err)
	}
	return nil
}

func isCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zst")
}

func readDict(path string) (map[uint32]string, error) {
	var (
		data []byte
		err  error
	)
	if isCompressed(path) {
		data, err = zstdfile.ReadFile(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return decodeDict(data)
}

func decodeDict(data []byte) (map[uint32]string, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode dictionary: %w", err)
	}

	m := make(map[uint32]string, len(raw))
	for k, v := range raw {
		uid, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("decode dictionary: invalid uid %q: %w", k, err)
		}
		m[uint32(uid)] = v
	}
	return m, nil
}

func encodeDict(m map[uint32]string) ([]byte, error) {
	raw := make(map[string]string, len(m))
	for uid, p := range m {
		raw[strconv.FormatUint(uint64(uid), 10)] = p
	}
	// Keys are emitted in sorted order.
	return json.MarshalIndent(raw, "", "  ")
}
