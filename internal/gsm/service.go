package gsm

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/im7mortal/kmutex"
	"go.uber.org/multierr"
)

// Service is the snapshot lifecycle engine. It coordinates the config store,
// the per-game snapshot index, the archive codec and the cloud mirror.
//
// Every read-modify-write of a game's index and archives runs under a
// per-game lock; edits to the global configuration are serialized by a
// service-wide lock taken before any game lock.
type Service struct {
	configs  ConfigStore
	index    SnapshotStore
	archiver Archiver
	mirrors  MirrorFactory
	logger   Logger
	clock    Clock
	baseDir  string

	configMu sync.Mutex
	gameMu   *kmutex.Kmutex
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithBaseDir resolves a relative backup_path against dir instead of the
// working directory.
func WithBaseDir(dir string) ServiceOption {
	return func(s *Service) { s.baseDir = dir }
}

// NewService creates a Service with the provided dependencies. A nil logger
// or clock falls back to NopLogger and RealClock.
func NewService(configs ConfigStore, index SnapshotStore, archiver Archiver, mirrors MirrorFactory, logger Logger, clock Clock, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	s := &Service{
		configs:  configs,
		index:    index,
		archiver: archiver,
		mirrors:  mirrors,
		logger:   logger,
		clock:    clock,
		gameMu:   kmutex.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the current global configuration.
func (s *Service) Config() (*Config, error) {
	cfg, err := s.configs.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// BackupRoot returns the resolved local backup root.
func (s *Service) BackupRoot() (string, error) {
	cfg, err := s.Config()
	if err != nil {
		return "", err
	}
	return s.backupRoot(cfg), nil
}

func (s *Service) backupRoot(cfg *Config) string {
	root := cfg.BackupPath
	if root == "" {
		root = DefaultConfig().BackupPath
	}
	if !filepath.IsAbs(root) && s.baseDir != "" {
		root = filepath.Join(s.baseDir, root)
	}
	return filepath.Clean(root)
}

func (s *Service) lockGame(name string) func() {
	s.gameMu.Lock(name)
	return func() { s.gameMu.Unlock(name) }
}

// requireGame refuses names that are not a single path component even when
// the loaded config holds them.
func requireGame(cfg *Config, name string) (*Game, error) {
	if err := (&Game{Name: name}).Validate(); err != nil {
		return nil, err
	}
	g := cfg.FindGame(name)
	if g == nil {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, name)
	}
	return g, nil
}

// loadIndex reads a game's index, treating a missing file as empty history.
func (s *Service) loadIndex(dir, name string) (*GameSnapshots, error) {
	idx, err := s.index.Load(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return NewGameSnapshots(name), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading index of %s: %w", name, err)
	}
	if err := idx.Validate(); err != nil {
		return nil, fmt.Errorf("index of %s: %w", name, err)
	}
	return idx, nil
}

// syncMirror returns the mirror to keep in step with local mutations, or nil
// when always-sync is off.
func (s *Service) syncMirror(cfg *Config) (Mirror, error) {
	if !cfg.Settings.Cloud.AlwaysSync {
		return nil, nil
	}
	m, err := s.mirrors(cfg.Settings.Cloud)
	if err != nil {
		return nil, &MirrorError{Op: "connect", Key: cfg.Settings.Cloud.RootPath, Err: err}
	}
	return m, nil
}

// AddGame registers g, or replaces the registered game with the same name,
// and prepares its backup folder with an empty index.
func (s *Service) AddGame(ctx context.Context, g Game) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if g.SavePaths == nil {
		g.SavePaths = []SaveUnit{}
	}

	s.configMu.Lock()
	defer s.configMu.Unlock()

	cfg, err := s.Config()
	if err != nil {
		return err
	}

	unlock := s.lockGame(g.Name)
	defer unlock()

	dir := GameDir(s.backupRoot(cfg), g.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating backup folder: %w", err)
	}
	idx, err := s.index.Load(dir)
	if errors.Is(err, fs.ErrNotExist) {
		idx = NewGameSnapshots(g.Name)
		if err := s.index.Save(dir, idx); err != nil {
			return fmt.Errorf("creating index of %s: %w", g.Name, err)
		}
	} else if err != nil {
		return fmt.Errorf("loading index of %s: %w", g.Name, err)
	}

	cfg.UpsertGame(g)
	if err := s.configs.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	s.logger.Info("game registered", "game", g.Name, "units", len(g.SavePaths))

	m, err := s.syncMirror(cfg)
	if err != nil || m == nil {
		return err
	}
	if err := s.uploadIndex(ctx, m, idx); err != nil {
		return err
	}
	return s.uploadConfig(ctx, m, cfg)
}

// Games returns every registered game.
func (s *Service) Games() ([]Game, error) {
	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}
	return cfg.Games, nil
}

// Game returns the named game.
func (s *Service) Game(name string) (*Game, error) {
	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}
	return requireGame(cfg, name)
}

// ListSnapshots returns the snapshot index of a game, oldest first.
func (s *Service) ListSnapshots(name string) (*GameSnapshots, error) {
	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}
	if _, err := requireGame(cfg, name); err != nil {
		return nil, err
	}
	return s.loadIndex(GameDir(s.backupRoot(cfg), name), name)
}

// CreateSnapshot archives the game's save units under a new snapshot id
// derived from the clock and records it in the index.
//
// The archive is written before the index entry. A failed archive is removed
// so no archive exists without an entry. When always-sync is on the index and
// then the archive are uploaded; a remote failure is returned as a
// *MirrorError and the local snapshot is kept.
func (s *Service) CreateSnapshot(ctx context.Context, name, describe string) (*Snapshot, error) {
	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}
	g, err := requireGame(cfg, name)
	if err != nil {
		return nil, err
	}

	unlock := s.lockGame(name)
	defer unlock()

	root := s.backupRoot(cfg)
	dir := GameDir(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup folder: %w", err)
	}
	idx, err := s.loadIndex(dir, name)
	if err != nil {
		return nil, err
	}

	date := SnapshotID(s.clock.Now())
	dest := ArchivePath(root, name, date)
	if idx.Find(date) != nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrSnapshotExists, name, date)
	}
	if _, err := os.Stat(dest); err == nil {
		return nil, fmt.Errorf("%w: %s already on disk", ErrSnapshotExists, dest)
	}

	if err := s.archiver.Compress(g.SavePaths, dest); err != nil {
		if rmErr := os.Remove(dest); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			s.logger.Warn("removing partial archive", "path", dest, "error", rmErr)
		}
		return nil, fmt.Errorf("creating snapshot %s of %s: %w", date, name, err)
	}

	snap := Snapshot{
		Date:     date,
		Describe: describe,
		Path:     filepath.Join(cfg.BackupPath, name, date+ArchiveExt),
	}
	idx.Backups = append(idx.Backups, snap)
	if err := s.index.Save(dir, idx); err != nil {
		if rmErr := os.Remove(dest); rmErr != nil {
			s.logger.Warn("removing unindexed archive", "path", dest, "error", rmErr)
		}
		return nil, fmt.Errorf("saving index of %s: %w", name, err)
	}
	s.logger.Info("snapshot created", "game", name, "date", date)

	m, err := s.syncMirror(cfg)
	if err != nil || m == nil {
		return &snap, err
	}
	if err := s.uploadIndex(ctx, m, idx); err != nil {
		return &snap, err
	}
	if err := s.uploadFile(ctx, m, root, dest); err != nil {
		return &snap, err
	}
	return &snap, nil
}

// RestoreSnapshot writes the archived save units of snapshot date back to
// their original locations. With extra_backup_when_apply set, the current
// state is first captured as an overwrite snapshot; if that fails nothing is
// restored. n may be nil.
func (s *Service) RestoreSnapshot(ctx context.Context, name, date string, n Notifier) error {
	cfg, err := s.Config()
	if err != nil {
		return err
	}
	g, err := requireGame(cfg, name)
	if err != nil {
		return err
	}

	unlock := s.lockGame(name)
	defer unlock()

	root := s.backupRoot(cfg)
	dir := GameDir(root, name)
	idx, err := s.loadIndex(dir, name)
	if err != nil {
		return err
	}
	if idx.Find(date) == nil {
		return fmt.Errorf("%w: %s/%s", ErrSnapshotNotFound, name, date)
	}

	if cfg.Settings.ExtraBackupWhenApply {
		if _, err := s.createOverwriteSnapshot(root, g); err != nil {
			Notify(n, LevelError, "Extra backup failed", fmt.Sprintf("%s was not restored: %v", name, err))
			return fmt.Errorf("%w: %v", ErrExtraBackupFailed, err)
		}
	}

	if err := s.archiver.Decompress(g.SavePaths, dir, date, n); err != nil {
		return fmt.Errorf("restoring snapshot %s of %s: %w", date, name, err)
	}
	s.logger.Info("snapshot restored", "game", name, "date", date)
	return nil
}

// DeleteSnapshot removes a snapshot. The index entry goes first, then the
// archive, so an interrupted delete leaves at worst an orphan archive.
func (s *Service) DeleteSnapshot(ctx context.Context, name, date string) error {
	cfg, err := s.Config()
	if err != nil {
		return err
	}
	if _, err := requireGame(cfg, name); err != nil {
		return err
	}

	unlock := s.lockGame(name)
	defer unlock()

	root := s.backupRoot(cfg)
	dir := GameDir(root, name)
	idx, err := s.loadIndex(dir, name)
	if err != nil {
		return err
	}
	if !idx.Remove(date) {
		return fmt.Errorf("%w: %s/%s", ErrSnapshotNotFound, name, date)
	}
	if err := s.index.Save(dir, idx); err != nil {
		return fmt.Errorf("saving index of %s: %w", name, err)
	}
	archive := ArchivePath(root, name, date)
	if err := os.Remove(archive); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing archive: %w", err)
	}
	s.logger.Info("snapshot deleted", "game", name, "date", date)

	m, err := s.syncMirror(cfg)
	if err != nil || m == nil {
		return err
	}
	if err := s.uploadIndex(ctx, m, idx); err != nil {
		return err
	}
	key := RemoteArchiveKey(name, date)
	if err := m.Delete(ctx, key); err != nil {
		return &MirrorError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// DeleteGame removes a game's whole backup folder and unregisters it.
func (s *Service) DeleteGame(ctx context.Context, name string) error {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	cfg, err := s.Config()
	if err != nil {
		return err
	}
	if _, err := requireGame(cfg, name); err != nil {
		return err
	}

	unlock := s.lockGame(name)
	defer unlock()

	if err := os.RemoveAll(GameDir(s.backupRoot(cfg), name)); err != nil {
		return fmt.Errorf("removing backup folder of %s: %w", name, err)
	}
	cfg.RemoveGame(name)
	if err := s.configs.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	s.logger.Info("game deleted", "game", name)

	m, err := s.syncMirror(cfg)
	if err != nil || m == nil {
		return err
	}
	prefix := RemoteGameDir(name)
	if err := m.RemoveAll(ctx, prefix); err != nil {
		return &MirrorError{Op: "remove", Key: prefix, Err: err}
	}
	return s.uploadConfig(ctx, m, cfg)
}

// CreateOverwriteSnapshot captures the current save state of a game into
// extra_backup/Overwrite_<date>.zip and returns the archive path. At most
// MaxExtraBackups such archives are kept; the oldest is pruned.
func (s *Service) CreateOverwriteSnapshot(name string) (string, error) {
	cfg, err := s.Config()
	if err != nil {
		return "", err
	}
	g, err := requireGame(cfg, name)
	if err != nil {
		return "", err
	}

	unlock := s.lockGame(name)
	defer unlock()

	return s.createOverwriteSnapshot(s.backupRoot(cfg), g)
}

func (s *Service) createOverwriteSnapshot(root string, g *Game) (string, error) {
	dir := filepath.Join(GameDir(root, g.Name), ExtraBackupDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating extra backup folder: %w", err)
	}

	fileName := OverwritePrefix + SnapshotID(s.clock.Now()) + ArchiveExt
	previous, err := overwriteArchives(dir, fileName)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(dir, fileName)
	if err := s.archiver.Compress(g.SavePaths, dest); err != nil {
		if rmErr := os.Remove(dest); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			s.logger.Warn("removing partial extra backup", "path", dest, "error", rmErr)
		}
		return "", fmt.Errorf("creating extra backup of %s: %w", g.Name, err)
	}
	s.logger.Info("extra backup created", "game", g.Name, "path", dest)

	if len(previous) >= MaxExtraBackups {
		oldest := filepath.Join(dir, previous[0])
		if err := os.Remove(oldest); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return dest, fmt.Errorf("pruning extra backup: %w", err)
		}
		s.logger.Debug("extra backup pruned", "game", g.Name, "path", oldest)
	}
	return dest, nil
}

// overwriteArchives lists the overwrite archives in dir, sorted, excluding
// the one named skip.
func overwriteArchives(dir, skip string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading extra backup folder: %w", err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || n == skip {
			continue
		}
		if strings.HasPrefix(n, OverwritePrefix) && strings.HasSuffix(n, ArchiveExt) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// SetSnapshotDescription replaces the description of a snapshot.
func (s *Service) SetSnapshotDescription(ctx context.Context, name, date, describe string) error {
	cfg, err := s.Config()
	if err != nil {
		return err
	}
	if _, err := requireGame(cfg, name); err != nil {
		return err
	}

	unlock := s.lockGame(name)
	defer unlock()

	dir := GameDir(s.backupRoot(cfg), name)
	idx, err := s.loadIndex(dir, name)
	if err != nil {
		return err
	}
	snap := idx.Find(date)
	if snap == nil {
		return fmt.Errorf("%w: %s/%s", ErrSnapshotNotFound, name, date)
	}
	snap.Describe = describe
	if err := s.index.Save(dir, idx); err != nil {
		return fmt.Errorf("saving index of %s: %w", name, err)
	}

	m, err := s.syncMirror(cfg)
	if err != nil || m == nil {
		return err
	}
	return s.uploadIndex(ctx, m, idx)
}

// BackupAll snapshots every registered game. Failures do not stop the
// remaining games; they are returned together.
func (s *Service) BackupAll(ctx context.Context, describe string) error {
	games, err := s.Games()
	if err != nil {
		return err
	}
	var errs error
	for _, g := range games {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if _, err := s.CreateSnapshot(ctx, g.Name, describe); err != nil {
			s.logger.Error("backup failed", "game", g.Name, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", g.Name, err))
		}
	}
	return errs
}

// ApplyAll restores the latest snapshot of every registered game. Games
// without snapshots report ErrNoSnapshots.
func (s *Service) ApplyAll(ctx context.Context, n Notifier) error {
	games, err := s.Games()
	if err != nil {
		return err
	}
	var errs error
	for _, g := range games {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if err := s.applyLatest(ctx, g.Name, n); err != nil {
			s.logger.Error("apply failed", "game", g.Name, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", g.Name, err))
		}
	}
	return errs
}

func (s *Service) applyLatest(ctx context.Context, name string, n Notifier) error {
	idx, err := s.ListSnapshots(name)
	if err != nil {
		return err
	}
	latest := idx.Latest()
	if latest == nil {
		return ErrNoSnapshots
	}
	return s.RestoreSnapshot(ctx, name, latest.Date, n)
}

// UpdateSettings applies fn to the persisted settings and saves the result.
// The configuration is uploaded when always-sync is on afterwards.
func (s *Service) UpdateSettings(ctx context.Context, fn func(*Settings) error) (*Settings, error) {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}
	if err := fn(&cfg.Settings); err != nil {
		return nil, err
	}
	if cfg.Settings.Cloud.RootPath == "" {
		cfg.Settings.Cloud.RootPath = DefaultRootPath
	}
	if err := s.configs.Save(cfg); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}
	s.logger.Info("settings updated", "backend", cfg.Settings.Cloud.Backend.Sanitized().Type, "always_sync", cfg.Settings.Cloud.AlwaysSync)

	m, err := s.syncMirror(cfg)
	if err != nil || m == nil {
		return &cfg.Settings, err
	}
	return &cfg.Settings, s.uploadConfig(ctx, m, cfg)
}
