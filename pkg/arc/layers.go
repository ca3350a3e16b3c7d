package arc

import (
	"context"
	"errors"
	"fmt"

	"github.com/goopsie/arcFileTools/pkg/xor"
	"golang.org/x/sync/errgroup"
)

// ReadLayers reads a base archive followed by any number of patch archives
// and overlays them in argument order. The files are parsed concurrently.
func ReadLayers(ctx context.Context, key *xor.Key, paths []string, opts ...Option) (*Archive, error) {
	if len(paths) == 0 {
		return nil, errors.New("read layers: no archives given")
	}

	layers := make([]*Archive, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, err := ReadFile(key, path, opts...)
			if err != nil {
				return fmt.Errorf("read layer %d: %w", i, err)
			}
			layers[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	base := layers[0]
	for _, layer := range layers[1:] {
		base.Patch(layer)
	}
	return base, nil
}
