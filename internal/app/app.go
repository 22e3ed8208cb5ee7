package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"gsm-go/internal/archive"
	"gsm-go/internal/config"
	"gsm-go/internal/gsm"
	"gsm-go/internal/journal"
	"gsm-go/internal/mirror"
	"gsm-go/internal/store"
)

// Options tune how the app reports to the terminal.
type Options struct {
	// Verbose lowers the stderr log threshold from WARN to INFO.
	Verbose bool
	// Out receives notifications. Defaults to os.Stderr.
	Out io.Writer
}

// GSMApp is the application layer between the CLI and gsm.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw CLI arguments, and finalizes the journal on Close.
type GSMApp struct {
	cfg      *config.Config
	configs  *store.JSONConfigStore
	journal  gsm.Journal
	service  *gsm.Service
	notifier gsm.Notifier
	logger   *slog.Logger
	op       *Operation
	logFile  *os.File
}

// NewGSMApp creates a fully wired GSMApp from the given config.
// operation identifies the CLI command being run (e.g. "snapshot create").
// The caller must call Close when done.
func NewGSMApp(cfg *config.Config, operation string, opts Options) (*GSMApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	stderrLevel := slog.LevelWarn
	if opts.Verbose {
		stderrLevel = slog.LevelInfo
	}

	opID := uuid.NewString()
	logger, logFile, err := newLogger(cfg.LogDir, opID, stderrLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger = logger.With("op", operation)

	clock := gsm.RealClock{}
	j, err := journal.NewJournalFromConfig(cfg.Journal, clock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	scratch := cfg.ScratchDir
	if scratch != "" {
		if err := os.MkdirAll(scratch, 0755); err != nil {
			j.Close()
			logFile.Close()
			return nil, fmt.Errorf("creating scratch directory: %w", err)
		}
	}

	adapter := &slogAdapter{l: logger}
	configs := store.NewJSONConfigStore(cfg.StorePath)
	svc := gsm.NewService(
		configs,
		store.NewJSONIndexStore(),
		archive.NewZipArchiver(scratch, adapter),
		mirror.NewMirrorFromSettings,
		adapter,
		clock,
		gsm.WithBaseDir(cfg.BaseDir),
	)

	return &GSMApp{
		cfg:      cfg,
		configs:  configs,
		journal:  j,
		service:  svc,
		notifier: NewTerminalNotifier(out),
		logger:   logger,
		op:       NewOperation(operation, ""),
		logFile:  logFile,
	}, nil
}

// persistOperation saves the operation to the journal, giving it an ID.
// This should only be called for mutating commands.
func (a *GSMApp) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	id, err := a.journal.Begin(a.op.Name, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = id
	return nil
}

// mutate journals the operation, runs fn and records its outcome.
func (a *GSMApp) mutate(parameters string, fn func() error) error {
	if err := a.persistOperation(parameters); err != nil {
		return err
	}
	err := fn()
	a.op.Fail(err)
	return err
}

// Config returns the global configuration.
func (a *GSMApp) Config() (*gsm.Config, error) {
	return a.service.Config()
}

// ConfigPath is where the global configuration is stored.
func (a *GSMApp) ConfigPath() string {
	return a.configs.Path()
}

// InitStore writes the default global configuration unless one exists.
func (a *GSMApp) InitStore() error {
	return a.mutate("path="+a.configs.Path(), func() error {
		if _, err := os.Stat(a.configs.Path()); err == nil {
			return fmt.Errorf("global config already exists at %s", a.configs.Path())
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checking global config: %w", err)
		}
		return a.configs.Save(gsm.DefaultConfig())
	})
}

// AddGame registers a game from raw file and folder paths. Paths are made
// absolute; every unit inherits default_delete_before_apply.
func (a *GSMApp) AddGame(ctx context.Context, name string, files, folders []string, gamePath string) error {
	return a.mutate("game="+name, func() error {
		cfg, err := a.service.Config()
		if err != nil {
			return err
		}
		deleteBefore := cfg.Settings.DefaultDeleteBeforeApply

		units := make([]gsm.SaveUnit, 0, len(files)+len(folders))
		for _, group := range []struct {
			kind  gsm.SaveUnitType
			paths []string
		}{{gsm.UnitFile, files}, {gsm.UnitFolder, folders}} {
			for _, raw := range group.paths {
				abs, err := filepath.Abs(raw)
				if err != nil {
					return fmt.Errorf("resolving path %s: %w", raw, err)
				}
				units = append(units, gsm.SaveUnit{UnitType: group.kind, Path: abs, DeleteBeforeApply: deleteBefore})
			}
		}
		if gamePath != "" {
			if gamePath, err = filepath.Abs(gamePath); err != nil {
				return fmt.Errorf("resolving game path: %w", err)
			}
		}
		return a.service.AddGame(ctx, gsm.Game{Name: name, SavePaths: units, GamePath: gamePath})
	})
}

// Games returns every registered game.
func (a *GSMApp) Games() ([]gsm.Game, error) {
	return a.service.Games()
}

// RemoveGame unregisters a game and deletes its backups.
func (a *GSMApp) RemoveGame(ctx context.Context, name string) error {
	return a.mutate("game="+name, func() error {
		return a.service.DeleteGame(ctx, name)
	})
}

// SnapshotInfo is a snapshot with the size of its archive on disk.
type SnapshotInfo struct {
	gsm.Snapshot
	Size    int64
	Missing bool
}

// Snapshots returns the index of a game and the archive size of each entry.
func (a *GSMApp) Snapshots(name string) (*gsm.GameSnapshots, []SnapshotInfo, error) {
	idx, err := a.service.ListSnapshots(name)
	if err != nil {
		return nil, nil, err
	}
	root, err := a.service.BackupRoot()
	if err != nil {
		return nil, nil, err
	}
	infos := make([]SnapshotInfo, 0, len(idx.Backups))
	for _, s := range idx.Backups {
		info := SnapshotInfo{Snapshot: s}
		st, err := os.Stat(gsm.ArchivePath(root, name, s.Date))
		switch {
		case err == nil:
			info.Size = st.Size()
		case errors.Is(err, fs.ErrNotExist):
			info.Missing = true
		default:
			return nil, nil, fmt.Errorf("stat archive %s: %w", s.Date, err)
		}
		infos = append(infos, info)
	}
	return idx, infos, nil
}

// CreateSnapshot archives the save units of a game.
func (a *GSMApp) CreateSnapshot(ctx context.Context, name, describe string) (*gsm.Snapshot, error) {
	var snap *gsm.Snapshot
	err := a.mutate("game="+name, func() error {
		var err error
		snap, err = a.service.CreateSnapshot(ctx, name, describe)
		return err
	})
	return snap, err
}

// RestoreSnapshot restores snapshot date of a game, or its latest snapshot
// when date is empty.
func (a *GSMApp) RestoreSnapshot(ctx context.Context, name, date string) (string, error) {
	err := a.mutate(fmt.Sprintf("game=%s date=%s", name, date), func() error {
		if date == "" {
			idx, err := a.service.ListSnapshots(name)
			if err != nil {
				return err
			}
			latest := idx.Latest()
			if latest == nil {
				return fmt.Errorf("%s: %w", name, gsm.ErrNoSnapshots)
			}
			date = latest.Date
		}
		return a.service.RestoreSnapshot(ctx, name, date, a.notifier)
	})
	return date, err
}

// DeleteSnapshot removes one snapshot of a game.
func (a *GSMApp) DeleteSnapshot(ctx context.Context, name, date string) error {
	return a.mutate(fmt.Sprintf("game=%s date=%s", name, date), func() error {
		return a.service.DeleteSnapshot(ctx, name, date)
	})
}

// DescribeSnapshot replaces the description of a snapshot.
func (a *GSMApp) DescribeSnapshot(ctx context.Context, name, date, describe string) error {
	return a.mutate(fmt.Sprintf("game=%s date=%s", name, date), func() error {
		return a.service.SetSnapshotDescription(ctx, name, date, describe)
	})
}

// BackupAll snapshots every registered game.
func (a *GSMApp) BackupAll(ctx context.Context, describe string) error {
	return a.mutate("", func() error {
		return a.service.BackupAll(ctx, describe)
	})
}

// ApplyAll restores the latest snapshot of every registered game.
func (a *GSMApp) ApplyAll(ctx context.Context) error {
	return a.mutate("", func() error {
		return a.service.ApplyAll(ctx, a.notifier)
	})
}

// SetCloud checks backend and, if reachable, stores it with rootPath.
// An empty rootPath keeps the configured one.
func (a *GSMApp) SetCloud(ctx context.Context, backend gsm.BackendConfig, rootPath string) error {
	return a.mutate("backend="+backend.Type, func() error {
		cfg, err := a.service.Config()
		if err != nil {
			return err
		}
		cloud := cfg.Settings.Cloud
		cloud.Backend = backend
		if rootPath != "" {
			cloud.RootPath = rootPath
		}
		if backend.Type != gsm.BackendDisabled {
			if err := a.service.CheckBackend(ctx, cloud); err != nil {
				return err
			}
		}
		a.logger.Info("cloud backend configured", "backend", fmt.Sprintf("%+v", backend.Sanitized()))
		_, err = a.service.UpdateSettings(ctx, func(s *gsm.Settings) error {
			s.Cloud.Backend = cloud.Backend
			s.Cloud.RootPath = cloud.RootPath
			return nil
		})
		return err
	})
}

// SetAlwaysSync turns mirroring of every local mutation on or off.
func (a *GSMApp) SetAlwaysSync(ctx context.Context, on bool) error {
	return a.mutate(fmt.Sprintf("always_sync=%t", on), func() error {
		_, err := a.service.UpdateSettings(ctx, func(s *gsm.Settings) error {
			if on && (s.Cloud.Backend.Type == gsm.BackendDisabled || s.Cloud.Backend.Type == "") {
				return gsm.ErrBackendDisabled
			}
			s.Cloud.AlwaysSync = on
			return nil
		})
		return err
	})
}

// SetApplyPolicy updates the restore policies. Nil leaves a policy unchanged.
func (a *GSMApp) SetApplyPolicy(ctx context.Context, extraBackup, deleteBefore *bool) error {
	var params []string
	if extraBackup != nil {
		params = append(params, fmt.Sprintf("extra_backup_when_apply=%t", *extraBackup))
	}
	if deleteBefore != nil {
		params = append(params, fmt.Sprintf("default_delete_before_apply=%t", *deleteBefore))
	}
	return a.mutate(strings.Join(params, " "), func() error {
		_, err := a.service.UpdateSettings(ctx, func(s *gsm.Settings) error {
			if extraBackup != nil {
				s.ExtraBackupWhenApply = *extraBackup
			}
			if deleteBefore != nil {
				s.DefaultDeleteBeforeApply = *deleteBefore
			}
			return nil
		})
		return err
	})
}

// CheckCloud verifies the configured backend is reachable.
func (a *GSMApp) CheckCloud(ctx context.Context) error {
	cfg, err := a.service.Config()
	if err != nil {
		return err
	}
	return a.service.CheckBackend(ctx, cfg.Settings.Cloud)
}

// Upload pushes all local state to the mirror.
func (a *GSMApp) Upload(ctx context.Context) error {
	return a.mutate("", func() error {
		return a.service.UploadAll(ctx)
	})
}

// Download replaces local state with the mirror's.
func (a *GSMApp) Download(ctx context.Context) error {
	return a.mutate("", func() error {
		return a.service.DownloadAll(ctx)
	})
}

// History returns the most recent journaled operations.
func (a *GSMApp) History(limit int) ([]*gsm.Operation, error) {
	return a.journal.List(limit)
}

// Close finalizes the operation record and closes all resources.
func (a *GSMApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.journal.Finish(a.op.ID, a.op.Status, a.op.Message); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.journal.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing journal: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
