package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gsm-go/internal/config"
	"gsm-go/internal/gsm"
	"gsm-go/internal/testutil"
)

func newTestApp(t *testing.T, cfg *config.Config, operation string) (*GSMApp, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	a, err := NewGSMApp(cfg, operation, Options{Out: &out})
	if err != nil {
		t.Fatalf("NewGSMApp() error = %v", err)
	}
	return a, &out
}

func closeApp(t *testing.T, a *GSMApp) {
	t.Helper()
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestGSMApp_SnapshotLifecycle(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	cfg := config.NewConfig(base)
	cfg.Journal = config.JournalConfig{Type: "memory"}

	saves := filepath.Join(t.TempDir(), "saves")
	testutil.WriteTree(t, saves, map[string]string{
		"slot1.sav":       "level 3",
		"profiles/a.json": "{}",
		"profiles/empty/": "",
	})
	settings := filepath.Join(t.TempDir(), "settings.ini")
	testutil.WriteFile(t, settings, "volume=7")

	a, _ := newTestApp(t, cfg, "snapshot create")
	defer closeApp(t, a)

	if err := a.AddGame(ctx, "Hades", []string{settings}, []string{saves}, ""); err != nil {
		t.Fatalf("AddGame() error = %v", err)
	}
	snap, err := a.CreateSnapshot(ctx, "Hades", "before boss")
	if err != nil {
		t.Fatalf("CreateSnapshot() error = %v", err)
	}

	idx, infos, err := a.Snapshots("Hades")
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	if len(idx.Backups) != 1 || len(infos) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(idx.Backups))
	}
	if infos[0].Date != snap.Date || infos[0].Missing || infos[0].Size == 0 {
		t.Errorf("SnapshotInfo = %+v", infos[0])
	}

	testutil.WriteFile(t, settings, "volume=0")
	date, err := a.RestoreSnapshot(ctx, "Hades", "")
	if err != nil {
		t.Fatalf("RestoreSnapshot() error = %v", err)
	}
	if date != snap.Date {
		t.Errorf("restored %q, want latest %q", date, snap.Date)
	}
	if got := testutil.ReadFile(t, settings); got != "volume=7" {
		t.Errorf("settings.ini = %q, want %q", got, "volume=7")
	}
	if !testutil.Exists(t, filepath.Join(saves, "profiles", "empty")) {
		t.Error("empty folder was not restored")
	}
}

func TestGSMApp_AddGameUsesDefaultDeleteBeforeApply(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig(t.TempDir())
	cfg.Journal = config.JournalConfig{Type: "memory"}

	a, _ := newTestApp(t, cfg, "game add")
	defer closeApp(t, a)

	on := true
	if err := a.SetApplyPolicy(ctx, nil, &on); err != nil {
		t.Fatalf("SetApplyPolicy() error = %v", err)
	}
	if err := a.AddGame(ctx, "Celeste", []string{"relative.sav"}, nil, ""); err != nil {
		t.Fatalf("AddGame() error = %v", err)
	}
	games, err := a.Games()
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 1 || len(games[0].SavePaths) != 1 {
		t.Fatalf("Games() = %+v", games)
	}
	u := games[0].SavePaths[0]
	if !u.DeleteBeforeApply {
		t.Error("unit did not inherit default_delete_before_apply")
	}
	if !filepath.IsAbs(u.Path) {
		t.Errorf("unit path %q is not absolute", u.Path)
	}
}

func TestGSMApp_RestoreWithoutSnapshots(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig(t.TempDir())
	cfg.Journal = config.JournalConfig{Type: "memory"}

	a, _ := newTestApp(t, cfg, "snapshot restore")
	defer closeApp(t, a)

	if err := a.AddGame(ctx, "Hades", nil, nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := a.RestoreSnapshot(ctx, "Hades", ""); !errors.Is(err, gsm.ErrNoSnapshots) {
		t.Errorf("RestoreSnapshot() error = %v, want ErrNoSnapshots", err)
	}
	if a.op.Status != gsm.OperationFailed {
		t.Errorf("operation status = %q, want %q", a.op.Status, gsm.OperationFailed)
	}
}

func TestGSMApp_History(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig(t.TempDir())

	first, _ := newTestApp(t, cfg, "game add")
	if err := first.AddGame(ctx, "Hades", nil, nil, ""); err != nil {
		t.Fatal(err)
	}
	closeApp(t, first)

	second, _ := newTestApp(t, cfg, "snapshot delete")
	if err := second.DeleteSnapshot(ctx, "Hades", "2024-01-01_00-00-00"); !errors.Is(err, gsm.ErrSnapshotNotFound) {
		t.Fatalf("DeleteSnapshot() error = %v, want ErrSnapshotNotFound", err)
	}
	closeApp(t, second)

	reader, _ := newTestApp(t, cfg, "history")
	defer closeApp(t, reader)
	ops, err := reader.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}

	tests := []struct {
		name   string
		params string
		status string
	}{
		{"snapshot delete", "game=Hades date=2024-01-01_00-00-00", gsm.OperationFailed},
		{"game add", "game=Hades", gsm.OperationSuccess},
	}
	if len(ops) != len(tests) {
		t.Fatalf("History() returned %d operations, want %d", len(ops), len(tests))
	}
	for i, tt := range tests {
		op := ops[i]
		if op.Name != tt.name || op.Parameters != tt.params || op.Status != tt.status {
			t.Errorf("ops[%d] = %+v, want name=%q params=%q status=%q", i, op, tt.name, tt.params, tt.status)
		}
		if op.FinishedAt == nil {
			t.Errorf("ops[%d] has no finish time", i)
		}
	}
	if ops[0].Message == "" {
		t.Error("failed operation has no message")
	}
}

func TestGSMApp_ReadOnlyCommandsAreNotJournaled(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())

	a, _ := newTestApp(t, cfg, "game list")
	if _, err := a.Games(); err != nil {
		t.Fatal(err)
	}
	closeApp(t, a)

	reader, _ := newTestApp(t, cfg, "history")
	defer closeApp(t, reader)
	ops, err := reader.History(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 {
		t.Errorf("History() = %d operations, want 0", len(ops))
	}
}

func TestGSMApp_InitStore(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.Journal = config.JournalConfig{Type: "memory"}

	a, _ := newTestApp(t, cfg, "config init")
	defer closeApp(t, a)

	if err := a.InitStore(); err != nil {
		t.Fatalf("InitStore() error = %v", err)
	}
	if !testutil.Exists(t, a.ConfigPath()) {
		t.Fatal("global config not written")
	}
	if err := a.InitStore(); err == nil {
		t.Error("InitStore() on existing config: expected error")
	}
}

func TestGSMApp_CloudRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := gsm.BackendConfig{Type: gsm.BackendMemory, Root: t.Name()}

	srcCfg := config.NewConfig(t.TempDir())
	srcCfg.Journal = config.JournalConfig{Type: "memory"}
	save := filepath.Join(t.TempDir(), "slot.sav")
	testutil.WriteFile(t, save, "gold=100")

	src, _ := newTestApp(t, srcCfg, "cloud set")
	defer closeApp(t, src)
	if err := src.SetCloud(ctx, backend, ""); err != nil {
		t.Fatalf("SetCloud() error = %v", err)
	}
	if err := src.CheckCloud(ctx); err != nil {
		t.Fatalf("CheckCloud() error = %v", err)
	}
	if err := src.AddGame(ctx, "Stardew", []string{save}, nil, ""); err != nil {
		t.Fatal(err)
	}
	snap, err := src.CreateSnapshot(ctx, "Stardew", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Upload(ctx); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	dstCfg := config.NewConfig(t.TempDir())
	dstCfg.Journal = config.JournalConfig{Type: "memory"}
	dst, _ := newTestApp(t, dstCfg, "cloud download")
	defer closeApp(t, dst)
	if err := dst.SetCloud(ctx, backend, ""); err != nil {
		t.Fatal(err)
	}
	if err := dst.Download(ctx); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	idx, infos, err := dst.Snapshots("Stardew")
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	if len(idx.Backups) != 1 || idx.Backups[0].Date != snap.Date {
		t.Fatalf("downloaded index = %+v", idx)
	}
	if infos[0].Missing {
		t.Error("downloaded archive is missing")
	}
}

func TestGSMApp_SetAlwaysSyncRequiresBackend(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.Journal = config.JournalConfig{Type: "memory"}

	a, _ := newTestApp(t, cfg, "cloud sync")
	defer closeApp(t, a)

	if err := a.SetAlwaysSync(context.Background(), true); !errors.Is(err, gsm.ErrBackendDisabled) {
		t.Errorf("SetAlwaysSync() error = %v, want ErrBackendDisabled", err)
	}
}

func TestNewGSMApp_InvalidConfig(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.StorePath = ""
	if _, err := NewGSMApp(cfg, "game list", Options{}); err == nil {
		t.Fatal("NewGSMApp() expected error for invalid config")
	}
}
