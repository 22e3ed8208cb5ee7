package gsm

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func TestSnapshotID(t *testing.T) {
	got := SnapshotID(time.Date(2023, 7, 4, 9, 5, 3, 0, time.Local))
	if got != "2023-07-04_09-05-03" {
		t.Errorf("SnapshotID() = %q", got)
	}
}

func TestRemoteKeyFor(t *testing.T) {
	root := filepath.Join("home", "user", "save_data")
	tests := []struct {
		name    string
		local   string
		want    string
		wantErr bool
	}{
		{"index", filepath.Join(root, "Hades", IndexFileName), "/save_data/Hades/Backups.json", false},
		{"archive", ArchivePath(root, "Hades", "2024-01-15_10-30-00"), "/save_data/Hades/2024-01-15_10-30-00.zip", false},
		{"non-ascii game", filepath.Join(root, "空洞骑士", IndexFileName), "/save_data/空洞骑士/Backups.json", false},
		{"outside the root", filepath.Join("home", "user", "elsewhere.zip"), "", true},
		{"the root itself", root, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RemoteKeyFor(root, tt.local)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RemoteKeyFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("RemoteKeyFor() = %q, want %q", got, tt.want)
			}
		})
	}

	if RemoteArchiveKey("g", "d") != "/save_data/g/d.zip" || RemoteIndexKey("g") != "/save_data/g/Backups.json" {
		t.Error("remote key helpers disagree with the layout")
	}
}

func TestGameSnapshots(t *testing.T) {
	s := NewGameSnapshots("g")
	if s.Latest() != nil {
		t.Error("Latest() of empty index should be nil")
	}
	s.Backups = append(s.Backups, Snapshot{Date: "a"}, Snapshot{Date: "b"}, Snapshot{Date: "c"})
	if !s.Remove("b") || s.Remove("b") {
		t.Error("Remove() should report presence exactly once")
	}
	if s.Find("c") == nil || s.Find("b") != nil {
		t.Error("Find() after Remove() is wrong")
	}
	if s.Latest().Date != "c" {
		t.Errorf("Latest() = %s, want c", s.Latest().Date)
	}
}

func TestBackendConfig_Sanitized(t *testing.T) {
	b := BackendConfig{Type: BackendS3, Endpoint: "https://s3", Bucket: "b", AccessKeyID: "AK", SecretAccessKey: "SK"}
	s := b.Sanitized()
	if s.AccessKeyID == "AK" || s.SecretAccessKey == "SK" {
		t.Errorf("Sanitized() leaked credentials: %+v", s)
	}
	if b.SecretAccessKey != "SK" {
		t.Error("Sanitized() modified the receiver")
	}
	w := BackendConfig{Type: BackendWebDAV, Endpoint: "https://dav", Password: "pw"}.Sanitized()
	if w.Password == "pw" || w.Endpoint != "https://dav" {
		t.Errorf("Sanitized() = %+v", w)
	}
}

func TestUnitErrors(t *testing.T) {
	one := &NotExistsError{Path: "/a"}
	two := &NotExistsError{Path: "/b"}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"single", one, 1},
		{"aggregate", multierr.Combine(one, two), 2},
		{"wrapped aggregate", fmt.Errorf("creating snapshot: %w", multierr.Combine(one, two)), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UnitErrors(tt.err); len(got) != tt.want {
				t.Errorf("UnitErrors() = %v, want %d errors", got, tt.want)
			}
		})
	}

	if !errors.Is(one, fs.ErrNotExist) {
		t.Error("NotExistsError should match fs.ErrNotExist")
	}
}

func TestDecodeConfig_DefaultsBackend(t *testing.T) {
	cfg, err := DecodeConfig([]byte(`{"settings":{"cloud_settings":{"backend":{}}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Settings.Cloud.Backend.Type != BackendDisabled {
		t.Errorf("backend type = %q, want Disabled", cfg.Settings.Cloud.Backend.Type)
	}
}

func TestValidateSnapshotID(t *testing.T) {
	tests := []struct {
		date    string
		wantErr bool
	}{
		{"2024-01-15_10-30-00", false},
		{"../../escaped", true},
		{"2024-01-15_10-30-00/../x", true},
		{"2024-01-15", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			err := ValidateSnapshotID(tt.date)
			if tt.wantErr && !errors.Is(err, ErrInvalidSnapshotID) {
				t.Errorf("ValidateSnapshotID(%q) error = %v, want ErrInvalidSnapshotID", tt.date, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateSnapshotID(%q) unexpected error = %v", tt.date, err)
			}
		})
	}
}
