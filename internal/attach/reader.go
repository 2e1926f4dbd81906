package attach

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrTooLarge is returned for files above the reader's size limit.
var ErrTooLarge = errors.New("file too large")

// LocalFileReader reads files from the local filesystem.
type LocalFileReader struct {
	// MaxBytes rejects larger files. Zero means no limit.
	MaxBytes int64
}

// ReadFile implements FileReader.
func (r LocalFileReader) ReadFile(ctx context.Context, path string) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	if r.MaxBytes > 0 && info.Size() > r.MaxBytes {
		return File{}, fmt.Errorf("%s (%d bytes): %w", path, info.Size(), ErrTooLarge)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: the user chose this file
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	return File{Name: filepath.Base(path), Content: string(data), Path: path}, nil
}
