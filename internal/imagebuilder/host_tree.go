package imagebuilder

import (
	"fmt"
	"os"
	"path/filepath"
)

// AddHostTree copies the regular files and directories below hostDir into parent.
// Entries are added in lexical order; symlinks and special files are skipped.
func (b *Builder) AddHostTree(parent uint32, hostDir string) (int, error) {
	entries, err := os.ReadDir(hostDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", hostDir, err)
	}

	added := 0
	for _, entry := range entries {
		path := filepath.Join(hostDir, entry.Name())
		switch {
		case entry.IsDir():
			fid, err := b.AddDirectory(parent, entry.Name())
			if err != nil {
				return added, err
			}
			added++
			n, err := b.AddHostTree(fid, path)
			added += n
			if err != nil {
				return added, err
			}
		case entry.Type().IsRegular():
			data, err := os.ReadFile(path)
			if err != nil {
				return added, fmt.Errorf("failed to read %s: %w", path, err)
			}
			if _, err := b.AddFile(parent, entry.Name(), data); err != nil {
				return added, err
			}
			added++
		default:
			b.logger.Warn().Str("path", path).Str("mode", entry.Type().String()).Msg("skipping non-regular file")
		}
	}
	return added, nil
}
