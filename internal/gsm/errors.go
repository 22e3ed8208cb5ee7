package gsm

import (
	"errors"
	"fmt"
	"io/fs"

	"go.uber.org/multierr"
)

var (
	ErrInvalidGameName   = errors.New("invalid game name")
	ErrGameNotFound      = errors.New("game not found")
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrSnapshotExists    = errors.New("snapshot already exists")
	ErrInvalidSnapshotID = errors.New("invalid snapshot id")
	ErrNoSnapshots       = errors.New("no snapshots available")
	ErrExtraBackupFailed = errors.New("cannot create extra backup")
	ErrBackendDisabled   = errors.New("cloud backend is disabled")
)

// NotExistsError reports a save unit or archive entry that is missing.
// It matches fs.ErrNotExist under errors.Is.
type NotExistsError struct {
	Path string
}

func (e *NotExistsError) Error() string {
	return fmt.Sprintf("path does not exist: %s", e.Path)
}

func (e *NotExistsError) Is(target error) bool {
	return target == fs.ErrNotExist
}

// PathError reports a path that cannot be represented as an archive entry
// name or a remote key.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("cannot convert path %q: %s", e.Path, e.Reason)
}

// ArchiveError is a failure of the archive container itself: the file cannot
// be created or opened, the stream is corrupt, or a write into it failed.
// Unlike per-unit errors it aborts the whole codec call.
type ArchiveError struct {
	Op   string
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// MirrorError is a remote failure that happened after the local mutation
// succeeded. The local state is kept.
type MirrorError struct {
	Op  string
	Key string
	Err error
}

func (e *MirrorError) Error() string {
	return fmt.Sprintf("mirror %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *MirrorError) Unwrap() error { return e.Err }

// UnitErrors flattens an aggregate error into its parts. A single error is
// returned as a one-element slice and nil yields nil.
func UnitErrors(err error) []error {
	if err == nil {
		return nil
	}
	if errs := multierr.Errors(err); len(errs) > 1 {
		return errs
	}
	// The aggregate may sit behind a fmt.Errorf wrapper.
	var agg interface{ Unwrap() []error }
	if errors.As(err, &agg) {
		return append([]error(nil), agg.Unwrap()...)
	}
	return []error{err}
}
