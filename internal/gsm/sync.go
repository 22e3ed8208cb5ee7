package gsm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

func (s *Service) uploadBytes(ctx context.Context, m Mirror, key string, data []byte) error {
	if err := m.Write(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return &MirrorError{Op: "upload", Key: key, Err: err}
	}
	s.logger.Debug("uploaded", "key", key, "size", len(data))
	return nil
}

// uploadFile mirrors a file inside the backup root under its derived key.
func (s *Service) uploadFile(ctx context.Context, m Mirror, root, localPath string) error {
	key, err := RemoteKeyFor(root, localPath)
	if err != nil {
		return err
	}
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s for upload: %w", localPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}
	if err := m.Write(ctx, key, f, info.Size()); err != nil {
		return &MirrorError{Op: "upload", Key: key, Err: err}
	}
	s.logger.Debug("uploaded", "key", key, "size", info.Size())
	return nil
}

func (s *Service) uploadIndex(ctx context.Context, m Mirror, idx *GameSnapshots) error {
	data, err := EncodeIndex(idx)
	if err != nil {
		return err
	}
	return s.uploadBytes(ctx, m, RemoteIndexKey(idx.Name), data)
}

func (s *Service) uploadConfig(ctx context.Context, m Mirror, cfg *Config) error {
	data, err := EncodeConfig(cfg)
	if err != nil {
		return err
	}
	return s.uploadBytes(ctx, m, RemoteConfigKey, data)
}

func (s *Service) download(ctx context.Context, m Mirror, key string) ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Read(ctx, key, &buf); err != nil {
		return nil, &MirrorError{Op: "download", Key: key, Err: err}
	}
	return buf.Bytes(), nil
}

// UploadAll pushes the local state to the mirror: the configuration, then
// per game its index followed by every archive it references. Local wins.
// Games without an index on disk are skipped; a referenced archive that is
// missing locally aborts the upload.
func (s *Service) UploadAll(ctx context.Context) error {
	cfg, err := s.Config()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("local config: %w", err)
	}
	m, err := s.mirrors(cfg.Settings.Cloud)
	if err != nil {
		return fmt.Errorf("building mirror: %w", err)
	}
	if err := s.uploadConfig(ctx, m, cfg); err != nil {
		return err
	}

	root := s.backupRoot(cfg)
	for _, g := range cfg.Games {
		if err := s.uploadGame(ctx, m, root, g.Name); err != nil {
			return err
		}
	}
	s.logger.Info("upload complete", "games", len(cfg.Games))
	return nil
}

func (s *Service) uploadGame(ctx context.Context, m Mirror, root, name string) error {
	unlock := s.lockGame(name)
	defer unlock()

	dir := GameDir(root, name)
	idxPath := filepath.Join(dir, IndexFileName)
	idx, err := s.index.Load(dir)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("no index to upload", "game", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading index of %s: %w", name, err)
	}
	if err := idx.Validate(); err != nil {
		return fmt.Errorf("index of %s: %w", name, err)
	}
	if err := s.uploadFile(ctx, m, root, idxPath); err != nil {
		return err
	}
	for _, b := range idx.Backups {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.uploadFile(ctx, m, root, ArchivePath(root, name, b.Date)); err != nil {
			return err
		}
	}
	return nil
}

// DownloadAll replaces the local state with the mirror's: the configuration,
// then per game its index and every archive the index references. Remote
// wins; local files are overwritten unconditionally. Local archive locations
// are always derived from backup_path and the snapshot date.
func (s *Service) DownloadAll(ctx context.Context) error {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	local, err := s.Config()
	if err != nil {
		return err
	}
	m, err := s.mirrors(local.Settings.Cloud)
	if err != nil {
		return fmt.Errorf("building mirror: %w", err)
	}

	data, err := s.download(ctx, m, RemoteConfigKey)
	if err != nil {
		return err
	}
	cfg, err := DecodeConfig(data)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return fmt.Errorf("remote %s: %w", RemoteConfigKey, err)
	}
	if err := s.configs.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	root := s.backupRoot(cfg)
	for _, g := range cfg.Games {
		if err := s.downloadGame(ctx, m, root, g.Name); err != nil {
			return err
		}
	}
	s.logger.Info("download complete", "games", len(cfg.Games))
	return nil
}

func (s *Service) downloadGame(ctx context.Context, m Mirror, root, name string) error {
	unlock := s.lockGame(name)
	defer unlock()

	key := RemoteIndexKey(name)
	data, err := s.download(ctx, m, key)
	if err != nil {
		return err
	}
	idx, err := DecodeIndex(data)
	if err == nil {
		err = idx.Validate()
	}
	if err != nil {
		return fmt.Errorf("remote %s: %w", key, err)
	}

	dir := GameDir(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating backup folder: %w", err)
	}
	if err := s.index.Save(dir, idx); err != nil {
		return fmt.Errorf("saving index of %s: %w", name, err)
	}

	for _, b := range idx.Backups {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.downloadFile(ctx, m, RemoteArchiveKey(name, b.Date), ArchivePath(root, name, b.Date)); err != nil {
			return err
		}
	}
	return nil
}

// downloadFile streams a blob into a temp file next to dest and renames it
// into place.
func (s *Service) downloadFile(ctx context.Context, m Mirror, key, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := m.Read(ctx, key, tmp); err != nil {
		tmp.Close()
		return &MirrorError{Op: "download", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("moving %s into place: %w", dest, err)
	}
	s.logger.Debug("downloaded", "key", key, "path", dest)
	return nil
}

// CheckBackend verifies that settings describe a reachable backend. It is
// meant to run before the settings are persisted.
func (s *Service) CheckBackend(ctx context.Context, settings CloudSettings) error {
	if settings.RootPath == "" {
		settings.RootPath = DefaultRootPath
	}
	m, err := s.mirrors(settings)
	if err != nil {
		return fmt.Errorf("building mirror: %w", err)
	}
	if err := m.Check(ctx); err != nil {
		return &MirrorError{Op: "check", Key: settings.RootPath, Err: err}
	}
	s.logger.Info("backend check passed", "backend", settings.Backend.Sanitized().Type)
	return nil
}
