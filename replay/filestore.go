package replay

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const cacheFileSuffix = ".json.gz"

// FileStorage keeps one gzip file per code in a local directory.
type FileStorage struct {
	Dir string
}

// NewFileStorage returns a FileStorage rooted at dir, creating it if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		return nil, errors.New("replay cache directory empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create replay cache dir: %w", err)
	}
	return &FileStorage{Dir: dir}, nil
}

func (fst *FileStorage) path(key string) (string, error) {
	// Keys become file names, so only well-formed codes are accepted.
	if !IsCode(key) {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return filepath.Join(fst.Dir, key+cacheFileSuffix), nil
}

// Read returns the cached blob for key or ErrCacheMiss.
func (fst *FileStorage) Read(_ context.Context, key string) ([]byte, error) {
	p, err := fst.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p) //nolint:gosec // G304: path built from a validated replay code
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCacheMiss
	}
	return b, err
}

// Write stores blob under key. The file is written under a temporary name and
// renamed into place so readers never observe a partial entry.
func (fst *FileStorage) Write(_ context.Context, key string, blob []byte) error {
	p, err := fst.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(fst.Dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("finalize cache file: %w", err)
	}
	return nil
}
