package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// moveFile renames src onto dst, replacing dst. When the rename crosses
// devices the file is copied and src removed.
func moveFile(src, dst string) error {
	if info, err := os.Lstat(dst); err == nil && info.IsDir() {
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// moveTree moves the directory src to dst. An absent dst is replaced in one
// rename; otherwise the contents are merged file by file and files already in
// dst but not in src are left alone.
func moveTree(src, dst string) error {
	info, err := os.Lstat(dst)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if os.Rename(src, dst) == nil {
			return nil
		}
	case err != nil:
		return err
	case !info.IsDir():
		if err := os.Remove(dst); err != nil {
			return err
		}
	}

	stack := []string{""}
	for len(stack) > 0 {
		rel := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := os.MkdirAll(filepath.Join(dst, rel), 0o755); err != nil {
			return err
		}
		entries, err := os.ReadDir(filepath.Join(src, rel))
		if err != nil {
			return err
		}
		for _, e := range entries {
			childRel := filepath.Join(rel, e.Name())
			if e.IsDir() {
				target := filepath.Join(dst, childRel)
				if info, err := os.Lstat(target); err == nil && !info.IsDir() {
					if err := os.Remove(target); err != nil {
						return err
					}
				}
				stack = append(stack, childRel)
				continue
			}
			if err := moveFile(filepath.Join(src, childRel), filepath.Join(dst, childRel)); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
