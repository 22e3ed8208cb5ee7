package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"gsm-go/internal/gsm"
)

// ZipArchiver implements gsm.Archiver with zip containers.
//
// Entry layout inside an archive:
//
//	<file-base>                  one entry per File unit
//	<folder-base>/<rel/path>     one entry per regular file of a Folder unit
//	<folder-base>/<rel/dir>/     empty directories, so they round-trip
//
// Entry names always use forward slashes.
type ZipArchiver struct {
	scratchDir string
	logger     gsm.Logger
}

// NewZipArchiver creates an archiver that unpacks into temporary directories
// under scratchDir (the OS temp dir when empty).
func NewZipArchiver(scratchDir string, logger gsm.Logger) *ZipArchiver {
	if logger == nil {
		logger = gsm.NewNopLogger()
	}
	return &ZipArchiver{scratchDir: scratchDir, logger: logger}
}

// Compress writes every unit into a new archive at dest. Missing units and
// unreadable sources are collected and returned after the archive has been
// finalized; failures writing the archive itself abort immediately.
func (a *ZipArchiver) Compress(units []gsm.SaveUnit, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return &gsm.ArchiveError{Op: "create", Path: dest, Err: err}
	}
	zw := zip.NewWriter(f)

	var unitErrs error
	for _, u := range units {
		err := a.addUnit(zw, u)
		if err == nil {
			continue
		}
		var fatal *gsm.ArchiveError
		if errors.As(err, &fatal) {
			zw.Close()
			f.Close()
			return err
		}
		a.logger.Warn("save unit skipped", "path", u.Path, "error", err)
		unitErrs = multierr.Append(unitErrs, err)
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return &gsm.ArchiveError{Op: "finalize", Path: dest, Err: err}
	}
	if err := f.Close(); err != nil {
		return &gsm.ArchiveError{Op: "finalize", Path: dest, Err: err}
	}
	return unitErrs
}

// entryName returns the archive name of a unit: the last component of its path.
func entryName(unitPath string) (string, error) {
	base := filepath.Base(unitPath)
	if base == "" || base == "." || base == ".." || base == string(filepath.Separator) || base == "/" {
		return "", &gsm.PathError{Path: unitPath, Reason: "no usable final path component"}
	}
	return base, nil
}

func (a *ZipArchiver) addUnit(zw *zip.Writer, u gsm.SaveUnit) error {
	name, err := entryName(u.Path)
	if err != nil {
		return err
	}
	info, err := os.Stat(u.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return &gsm.NotExistsError{Path: u.Path}
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", u.Path, err)
	}

	switch u.UnitType {
	case gsm.UnitFile:
		if info.IsDir() {
			return fmt.Errorf("save unit %s is declared as a file but is a directory", u.Path)
		}
		return a.addFile(zw, u.Path, name, info)
	case gsm.UnitFolder:
		if !info.IsDir() {
			return fmt.Errorf("save unit %s is declared as a folder but is a file", u.Path)
		}
		return a.addFolder(zw, u.Path, name)
	default:
		return fmt.Errorf("save unit %s has unknown type %q", u.Path, u.UnitType)
	}
}

// addFolder archives a directory tree using an explicit worklist. Symbolic
// links are followed; a directory reached twice through links is archived
// only once, which also breaks cycles.
func (a *ZipArchiver) addFolder(zw *zip.Writer, root, base string) error {
	visited := make(map[string]bool)
	stack := []string{""}
	for len(stack) > 0 {
		rel := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dir := filepath.Join(root, filepath.FromSlash(rel))
		resolved, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return fmt.Errorf("resolving directory %s: %w", dir, err)
		}
		if visited[resolved] {
			a.logger.Warn("skipping directory already archived through a link", "path", dir, "target", resolved)
			continue
		}
		visited[resolved] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("reading directory %s: %w", dir, err)
		}
		if len(entries) == 0 {
			if err := addDirEntry(zw, path.Join(base, rel)+"/", dir); err != nil {
				return err
			}
			continue
		}
		for _, e := range entries {
			childRel := path.Join(rel, e.Name())
			childPath := filepath.Join(dir, e.Name())
			mode := e.Type()
			var info fs.FileInfo
			if mode&fs.ModeSymlink != 0 {
				info, err = os.Stat(childPath)
				if err != nil {
					a.logger.Warn("skipping broken link", "path", childPath, "error", err)
					continue
				}
				mode = info.Mode().Type()
			}
			switch {
			case mode.IsDir():
				stack = append(stack, childRel)
			case mode.IsRegular():
				if info == nil {
					if info, err = e.Info(); err != nil {
						return fmt.Errorf("stat %s: %w", childPath, err)
					}
				}
				if err := a.addFile(zw, childPath, path.Join(base, childRel), info); err != nil {
					return err
				}
			default:
				a.logger.Warn("skipping special file", "path", childPath, "mode", mode.String())
			}
		}
	}
	return nil
}

func addDirEntry(zw *zip.Writer, name, dir string) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Store}
	if info, err := os.Stat(dir); err == nil {
		hdr.Modified = info.ModTime()
		hdr.SetMode(info.Mode())
	}
	if _, err := zw.CreateHeader(hdr); err != nil {
		return &gsm.ArchiveError{Op: "write", Path: name, Err: err}
	}
	return nil
}

func (a *ZipArchiver) addFile(zw *zip.Writer, src, name string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("header for %s: %w", src, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return &gsm.ArchiveError{Op: "write", Path: name, Err: err}
	}
	ew := &entryWriter{w: w}
	if _, err := io.Copy(ew, in); err != nil {
		if ew.err != nil {
			return &gsm.ArchiveError{Op: "write", Path: name, Err: ew.err}
		}
		return fmt.Errorf("reading %s: %w", src, err)
	}
	a.logger.Debug("archived", "entry", name, "size", info.Size())
	return nil
}

// entryWriter remembers write failures so they can be told apart from
// failures reading the source.
type entryWriter struct {
	w   io.Writer
	err error
}

func (e *entryWriter) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}

// Decompress restores every unit from <backupDir>/<date>.zip. The archive is
// unpacked into a scratch directory first; each unit is then moved into
// place, overwriting what is there. Units already moved are not rolled back
// when a later one fails.
func (a *ZipArchiver) Decompress(units []gsm.SaveUnit, backupDir, date string, n gsm.Notifier) (err error) {
	src := filepath.Join(backupDir, date+gsm.ArchiveExt)
	zr, err := zip.OpenReader(src)
	if err != nil {
		return &gsm.ArchiveError{Op: "open", Path: src, Err: err}
	}
	defer zr.Close()

	if a.scratchDir != "" {
		if err := os.MkdirAll(a.scratchDir, 0o755); err != nil {
			return fmt.Errorf("creating scratch directory: %w", err)
		}
	}
	scratch, err := os.MkdirTemp(a.scratchDir, "gsm-restore-")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil && err == nil {
			err = fmt.Errorf("removing scratch directory: %w", rmErr)
		}
	}()

	if err := extractAll(&zr.Reader, scratch); err != nil {
		return &gsm.ArchiveError{Op: "extract", Path: src, Err: err}
	}

	var unitErrs error
	for _, u := range units {
		if err := a.restoreUnit(u, scratch, n); err != nil {
			a.logger.Warn("save unit not restored", "path", u.Path, "error", err)
			unitErrs = multierr.Append(unitErrs, err)
		}
	}
	return unitErrs
}

func extractAll(zr *zip.Reader, dest string) error {
	for _, f := range zr.File {
		rel := filepath.FromSlash(strings.TrimSuffix(f.Name, "/"))
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("entry %q escapes the extraction root", f.Name)
		}
		target := filepath.Join(dest, rel)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("entry %q: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if !f.Modified.IsZero() {
		return os.Chtimes(target, f.Modified, f.Modified)
	}
	return nil
}

func (a *ZipArchiver) restoreUnit(u gsm.SaveUnit, scratch string, n gsm.Notifier) error {
	name, err := entryName(u.Path)
	if err != nil {
		return err
	}
	extracted := filepath.Join(scratch, name)
	if _, err := os.Lstat(extracted); errors.Is(err, fs.ErrNotExist) {
		return &gsm.NotExistsError{Path: u.Path}
	} else if err != nil {
		return fmt.Errorf("stat %s: %w", extracted, err)
	}

	parent := filepath.Dir(u.Path)
	if _, err := os.Stat(parent); errors.Is(err, fs.ErrNotExist) {
		a.logger.Warn("parent folder missing, creating it", "path", parent)
		gsm.Notify(n, gsm.LevelWarning, "Parent folder created",
			fmt.Sprintf("%s did not exist and was created to restore %s", parent, u.Path))
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", parent, err)
		}
	}

	if u.DeleteBeforeApply {
		if err := os.RemoveAll(u.Path); err != nil {
			return fmt.Errorf("clearing %s: %w", u.Path, err)
		}
	}

	switch u.UnitType {
	case gsm.UnitFile:
		err = moveFile(extracted, u.Path)
	case gsm.UnitFolder:
		err = moveTree(extracted, u.Path)
	default:
		err = fmt.Errorf("save unit %s has unknown type %q", u.Path, u.UnitType)
	}
	if err != nil {
		return fmt.Errorf("restoring %s: %w", u.Path, err)
	}
	a.logger.Debug("restored", "path", u.Path)
	return nil
}

var _ gsm.Archiver = (*ZipArchiver)(nil)
