package testutil

import (
	"path/filepath"
	"testing"

	"gsm-go/internal/archive"
	"gsm-go/internal/gsm"
	"gsm-go/internal/mirror"
	"gsm-go/internal/store"
)

// MirrorFactory hands out m whenever the Memory backend is selected and
// builds every other backend through mirror.NewMirrorFromSettings.
func MirrorFactory(m gsm.Mirror) gsm.MirrorFactory {
	return func(settings gsm.CloudSettings) (gsm.Mirror, error) {
		if settings.Backend.Type == gsm.BackendMemory {
			return m, nil
		}
		return mirror.NewMirrorFromSettings(settings)
	}
}

// TestEnv is a Service wired to real stores and archiver inside a temp
// directory, with an in-memory mirror and a stub clock.
type TestEnv struct {
	Service *gsm.Service
	Configs *store.JSONConfigStore
	Mirror  *mirror.MemoryMirror
	Clock   *StubClock
	BaseDir string
}

// BackupRoot is where the environment keeps its snapshots.
func (e *TestEnv) BackupRoot() string {
	return filepath.Join(e.BaseDir, "save_data")
}

// NewTestEnv builds a TestEnv. Several environments may share one mirror
// to simulate two machines.
func NewTestEnv(t *testing.T, m *mirror.MemoryMirror) *TestEnv {
	t.Helper()
	if m == nil {
		m = mirror.NewMemoryMirror(gsm.DefaultRootPath)
	}
	base := t.TempDir()
	configs := store.NewJSONConfigStore(filepath.Join(base, store.ConfigFileName))
	clock := FixedClock()
	svc := gsm.NewService(
		configs,
		store.NewJSONIndexStore(),
		archive.NewZipArchiver(filepath.Join(base, "scratch"), nil),
		MirrorFactory(m),
		nil,
		clock,
		gsm.WithBaseDir(base),
	)
	return &TestEnv{Service: svc, Configs: configs, Mirror: m, Clock: clock, BaseDir: base}
}

// EnableSync switches the environment to the memory backend with always-sync on.
func (e *TestEnv) EnableSync(t *testing.T) {
	t.Helper()
	e.SetCloud(t, gsm.BackendConfig{Type: gsm.BackendMemory}, true)
}

// SetCloud overwrites the backend and always-sync policy on disk.
func (e *TestEnv) SetCloud(t *testing.T, backend gsm.BackendConfig, alwaysSync bool) {
	t.Helper()
	cfg, err := e.Configs.Load()
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	cfg.Settings.Cloud.Backend = backend
	cfg.Settings.Cloud.AlwaysSync = alwaysSync
	if err := e.Configs.Save(cfg); err != nil {
		t.Fatalf("saving config: %v", err)
	}
}

