package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"gsm-go/internal/gsm"
)

// FileSystemMirror mirrors into a local directory, typically a mounted NAS
// share or a folder kept in sync by another tool:
//
//	<dir>/<root path>/
//	  GlobalConfig.json
//	  save_data/<game>/Backups.json
//	  save_data/<game>/<date>.zip
type FileSystemMirror struct {
	dir  string
	root string
}

// NewFileSystemMirror creates a mirror under dir, creating it if needed.
func NewFileSystemMirror(dir, root string) (*FileSystemMirror, error) {
	base := filepath.Join(dir, filepath.FromSlash(path.Join("/", root)))
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create mirror directory: %w", err)
	}
	return &FileSystemMirror{dir: dir, root: root}, nil
}

func (m *FileSystemMirror) localPath(key string) (string, error) {
	p, err := fullPath(m.root, key)
	if err != nil {
		return "", err
	}
	return filepath.Join(m.dir, filepath.FromSlash(p)), nil
}

func (m *FileSystemMirror) Write(ctx context.Context, key string, r io.Reader, size int64) error {
	dest, err := m.localPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return writeFile(dest, r, size)
}

func (m *FileSystemMirror) Read(ctx context.Context, key string, w io.Writer) error {
	src, err := m.localPath(key)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return notFound(key)
	}
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

func (m *FileSystemMirror) Delete(ctx context.Context, key string) error {
	p, err := m.localPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return nil
}

func (m *FileSystemMirror) RemoveAll(ctx context.Context, prefix string) error {
	p, err := m.localPath(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("failed to remove: %w", err)
	}
	return nil
}

func (m *FileSystemMirror) List(ctx context.Context, prefix string) ([]string, error) {
	start, err := m.localPath(prefix)
	if err != nil {
		return nil, err
	}
	base, _ := m.localPath("/")

	var keys []string
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		keys = append(keys, path.Join("/", filepath.ToSlash(rel)))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Check verifies that the mirror directory exists and is a directory.
func (m *FileSystemMirror) Check(ctx context.Context) error {
	base, _ := m.localPath("/")
	info, err := os.Stat(base)
	if err != nil {
		return fmt.Errorf("mirror root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mirror root is not a directory: %s", base)
	}
	return nil
}

// writeFile writes data from r to destPath using atomic write (temp file + rename).
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ gsm.Mirror = (*FileSystemMirror)(nil)
