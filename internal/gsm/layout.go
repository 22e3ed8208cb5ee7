package gsm

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	// IndexFileName is the per-game snapshot index inside the game's backup folder.
	IndexFileName = "Backups.json"
	// ArchiveExt is the extension of snapshot archives.
	ArchiveExt = ".zip"
	// SnapshotDateLayout formats snapshot ids: YYYY-MM-DD_HH-MM-SS.
	SnapshotDateLayout = "2006-01-02_15-04-05"

	// ExtraBackupDir holds the safety snapshots taken before a restore.
	ExtraBackupDir = "extra_backup"
	// OverwritePrefix marks safety snapshots so they never look like history entries.
	OverwritePrefix = "Overwrite_"
	// MaxExtraBackups is the number of safety snapshots kept per game.
	MaxExtraBackups = 5

	// RemoteConfigKey is where the global configuration lives on the mirror.
	RemoteConfigKey = "/GlobalConfig.json"
	// RemoteSaveDataDir is the remote parent of all per-game folders.
	RemoteSaveDataDir = "/save_data"
)

// SnapshotID formats t as a snapshot id.
func SnapshotID(t time.Time) string {
	return t.Format(SnapshotDateLayout)
}

// ValidateSnapshotID checks that date is a snapshot id in
// SnapshotDateLayout, which also makes it a safe path component.
func ValidateSnapshotID(date string) error {
	if _, err := time.Parse(SnapshotDateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSnapshotID, date)
	}
	return nil
}

// GameDir returns the local backup folder of a game.
func GameDir(backupRoot, game string) string {
	return filepath.Join(backupRoot, game)
}

// ArchivePath returns the local archive location of a snapshot.
func ArchivePath(backupRoot, game, date string) string {
	return filepath.Join(backupRoot, game, date+ArchiveExt)
}

// RemoteKey converts a path relative to the backup root into a mirror key
// under RemoteSaveDataDir. Separators are normalized to forward slashes.
func RemoteKey(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", &PathError{Path: rel, Reason: "remote keys are built from relative paths"}
	}
	slashed := filepath.ToSlash(filepath.Clean(rel))
	slashed = strings.ReplaceAll(slashed, `\`, "/")
	if slashed == "." || slashed == ".." || strings.HasPrefix(slashed, "../") {
		return "", &PathError{Path: rel, Reason: "path escapes the backup root"}
	}
	return path.Join(RemoteSaveDataDir, slashed), nil
}

// RemoteKeyFor derives the mirror key of a local file inside backupRoot.
func RemoteKeyFor(backupRoot, localPath string) (string, error) {
	rel, err := filepath.Rel(backupRoot, localPath)
	if err != nil {
		return "", fmt.Errorf("relative path of %s: %w", localPath, err)
	}
	return RemoteKey(rel)
}

// RemoteGameDir is the mirror folder of a game.
func RemoteGameDir(game string) string {
	return path.Join(RemoteSaveDataDir, game)
}

// RemoteIndexKey is the mirror key of a game's index.
func RemoteIndexKey(game string) string {
	return path.Join(RemoteSaveDataDir, game, IndexFileName)
}

// RemoteArchiveKey is the mirror key of a snapshot archive.
func RemoteArchiveKey(game, date string) string {
	return path.Join(RemoteSaveDataDir, game, date+ArchiveExt)
}
