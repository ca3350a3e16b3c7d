package arc

import (
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"sort"
)

// ScannedFile is a file found below an input directory for building an archive.
type ScannedFile struct {
	ArchivePath string // normalized resource path, e.g. /gfx/ui/font.gim
	Path        string // path on disk
	Size        uint32
}

// ScanFiles walks inputDir and returns every regular file, sorted by archive
// path. The archive path is the slash-separated path relative to inputDir.
func ScanFiles(inputDir string) ([]ScannedFile, error) {
	var files []ScannedFile

	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(inputDir, path)
		if err != nil {
			return fmt.Errorf("relative path: %w", err)
		}
		archivePath, err := NormalizePath(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("scan %s: %w", path, err)
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Size() > math.MaxUint32 {
			return fmt.Errorf("file too large: %s (size %d exceeds %d bytes)", path, info.Size(), uint64(math.MaxUint32))
		}

		files = append(files, ScannedFile{
			ArchivePath: archivePath,
			Path:        path,
			Size:        uint32(info.Size()),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ArchivePath < files[j].ArchivePath
	})
	return files, nil
}
