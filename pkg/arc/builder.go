package arc

import (
	"fmt"
	"os"

	"github.com/goopsie/arcFileTools/pkg/paths"
	"github.com/goopsie/arcFileTools/pkg/xor"
)

// Builder constructs archives from scanned files.
type Builder struct {
	key      *xor.Key
	registry *paths.Registry
	opts     []Option
}

// NewBuilder creates a new archive builder. When registry is non-nil, paths
// missing from its static dictionary are recorded as discovered.
func NewBuilder(key *xor.Key, registry *paths.Registry, opts ...Option) *Builder {
	return &Builder{
		key:      key,
		registry: registry,
		opts:     opts,
	}
}

// Build adds every file, in order, to a new archive.
func (b *Builder) Build(files []ScannedFile) (*Archive, error) {
	a := New(b.key, b.opts...)

	for _, file := range files {
		data, err := os.ReadFile(file.Path)
		if err != nil {
			return nil, fmt.Errorf("read file %s: %w", file.Path, err)
		}

		e, err := a.Add(file.ArchivePath, data)
		if err != nil {
			return nil, err
		}

		if b.registry != nil && e.Known() && !b.registry.Known(e.UID) {
			b.registry.RecordDiscovered(e.UID, e.Path)
		}
	}

	return a, nil
}
