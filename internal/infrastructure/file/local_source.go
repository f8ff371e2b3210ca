package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mohammadpnp/bulk-import/internal/application/failure"
)

var ErrOutsideBaseDir = errors.New("import file path escapes base directory")

// LocalSource opens uploaded files below BaseDir. Paths are always relative to
// BaseDir.
type LocalSource struct {
	BaseDir string
}

func NewLocalSource(baseDir string) *LocalSource {
	if baseDir == "" {
		baseDir = "."
	}
	return &LocalSource{BaseDir: baseDir}
}

func (s *LocalSource) Open(ctx context.Context, sourcePath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel, err := s.resolve(sourcePath)
	if err != nil {
		return nil, failure.WithType(err, failure.TypePermission)
	}

	// OpenInRoot also refuses symlinks that lead out of BaseDir.
	file, err := os.OpenInRoot(s.BaseDir, rel)
	if err != nil {
		path := filepath.Join(s.BaseDir, rel)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, failure.WithType(fmt.Errorf("open file %s: %w", path, err), failure.TypeFileFormat)
		case errors.Is(err, fs.ErrPermission):
			return nil, failure.WithType(fmt.Errorf("open file %s: %w", path, err), failure.TypePermission)
		}
		return nil, fmt.Errorf("open file %s: %w", path, err)
	}
	return file, nil
}

// resolve returns sourcePath relative to BaseDir. Absolute paths and paths
// that climb out of BaseDir are rejected.
func (s *LocalSource) resolve(sourcePath string) (string, error) {
	if sourcePath == "" || filepath.IsAbs(sourcePath) || filepath.VolumeName(sourcePath) != "" {
		return "", fmt.Errorf("%w: %q", ErrOutsideBaseDir, sourcePath)
	}

	rel := filepath.Clean(sourcePath)
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBaseDir, sourcePath)
	}
	return rel, nil
}
