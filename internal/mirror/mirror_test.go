package mirror

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"reflect"
	"strings"
	"testing"

	"gsm-go/internal/gsm"
)

func put(t *testing.T, m gsm.Mirror, key, content string) {
	t.Helper()
	if err := m.Write(context.Background(), key, strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("Write(%s) error = %v", key, err)
	}
}

func get(t *testing.T, m gsm.Mirror, key string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	err := m.Read(context.Background(), key, &buf)
	return buf.String(), err
}

// testMirrorContract runs the behavior every local mirror must share.
func testMirrorContract(t *testing.T, newMirror func(t *testing.T) gsm.Mirror) {
	ctx := context.Background()

	t.Run("write then read", func(t *testing.T) {
		m := newMirror(t)
		for _, content := range []string{"hello world", "", strings.Repeat("x", 10000)} {
			put(t, m, "/save_data/g/Backups.json", content)
			got, err := get(t, m, "/save_data/g/Backups.json")
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if got != content {
				t.Errorf("Read() = %d bytes, want %d", len(got), len(content))
			}
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		m := newMirror(t)
		if err := m.Write(ctx, "/a", strings.NewReader("abc"), 5); err == nil {
			t.Error("Write() expected size mismatch error")
		}
	})

	t.Run("missing key", func(t *testing.T) {
		m := newMirror(t)
		_, err := get(t, m, "/save_data/none/Backups.json")
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Read() error = %v, want fs.ErrNotExist", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		m := newMirror(t)
		put(t, m, "/x.zip", "x")
		if err := m.Delete(ctx, "/x.zip"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := get(t, m, "/x.zip"); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Read() after delete error = %v", err)
		}
		if err := m.Delete(ctx, "/x.zip"); err != nil {
			t.Errorf("Delete() of missing key error = %v", err)
		}
	})

	t.Run("list and remove all", func(t *testing.T) {
		m := newMirror(t)
		put(t, m, "/GlobalConfig.json", "{}")
		put(t, m, "/save_data/a/Backups.json", "a")
		put(t, m, "/save_data/a/2024-01-01_00-00-00.zip", "a1")
		put(t, m, "/save_data/ab/Backups.json", "ab")

		keys, err := m.List(ctx, "/save_data/a")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		want := []string{"/save_data/a/2024-01-01_00-00-00.zip", "/save_data/a/Backups.json"}
		if !reflect.DeepEqual(keys, want) {
			t.Errorf("List() = %v, want %v", keys, want)
		}

		if err := m.RemoveAll(ctx, "/save_data/a"); err != nil {
			t.Fatalf("RemoveAll() error = %v", err)
		}
		keys, err = m.List(ctx, "/")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		want = []string{"/GlobalConfig.json", "/save_data/ab/Backups.json"}
		if !reflect.DeepEqual(keys, want) {
			t.Errorf("List() after RemoveAll = %v, want %v", keys, want)
		}
	})

	t.Run("rejects escaping keys", func(t *testing.T) {
		m := newMirror(t)
		if err := m.Write(ctx, "/../outside", strings.NewReader("x"), 1); err == nil {
			t.Error("Write() expected error for escaping key")
		}
	})

	t.Run("check", func(t *testing.T) {
		if err := newMirror(t).Check(ctx); err != nil {
			t.Errorf("Check() error = %v", err)
		}
	})
}

func TestMemoryMirror(t *testing.T) {
	testMirrorContract(t, func(t *testing.T) gsm.Mirror {
		return NewMemoryMirror(gsm.DefaultRootPath)
	})
}

func TestFileSystemMirror(t *testing.T) {
	testMirrorContract(t, func(t *testing.T) gsm.Mirror {
		m, err := NewFileSystemMirror(t.TempDir(), gsm.DefaultRootPath)
		if err != nil {
			t.Fatalf("NewFileSystemMirror() error = %v", err)
		}
		return m
	})
}

func TestDisabled(t *testing.T) {
	ctx := context.Background()
	m := Disabled{}
	errs := []error{
		m.Write(ctx, "/k", strings.NewReader(""), 0),
		m.Read(ctx, "/k", &bytes.Buffer{}),
		m.Delete(ctx, "/k"),
		m.RemoveAll(ctx, "/k"),
		m.Check(ctx),
	}
	_, err := m.List(ctx, "/")
	errs = append(errs, err)
	for i, err := range errs {
		if !errors.Is(err, gsm.ErrBackendDisabled) {
			t.Errorf("operation %d error = %v, want ErrBackendDisabled", i, err)
		}
	}
}

func TestRelativeKey(t *testing.T) {
	tests := []struct {
		root, full, want string
	}{
		{"/game-save-manager", "/game-save-manager/save_data/g/Backups.json", "/save_data/g/Backups.json"},
		{"game-save-manager", "/game-save-manager/GlobalConfig.json", "/GlobalConfig.json"},
		{"/", "/GlobalConfig.json", "/GlobalConfig.json"},
	}
	for _, tt := range tests {
		if got := relativeKey(tt.root, tt.full); got != tt.want {
			t.Errorf("relativeKey(%q, %q) = %q, want %q", tt.root, tt.full, got, tt.want)
		}
	}
}

func TestNewMirrorFromSettings(t *testing.T) {
	tests := []struct {
		name     string
		backend  gsm.BackendConfig
		wantErr  bool
		wantType any
	}{
		{name: "disabled", backend: gsm.BackendConfig{Type: gsm.BackendDisabled}, wantType: Disabled{}},
		{name: "empty type is disabled", backend: gsm.BackendConfig{}, wantType: Disabled{}},
		{name: "memory", backend: gsm.BackendConfig{Type: gsm.BackendMemory, Root: "factory-test"}, wantType: &MemoryMirror{}},
		{name: "webdav", backend: gsm.BackendConfig{Type: gsm.BackendWebDAV, Endpoint: "http://localhost:8080/dav", Username: "u", Password: "p"}, wantType: &WebDAVMirror{}},
		{name: "webdav without endpoint", backend: gsm.BackendConfig{Type: gsm.BackendWebDAV}, wantErr: true},
		{name: "s3", backend: gsm.BackendConfig{Type: gsm.BackendS3, Endpoint: "http://localhost:9000", Bucket: "saves", AccessKeyID: "ak", SecretAccessKey: "sk"}, wantType: &S3Mirror{}},
		{name: "s3 without bucket", backend: gsm.BackendConfig{Type: gsm.BackendS3}, wantErr: true},
		{name: "filesystem without root", backend: gsm.BackendConfig{Type: gsm.BackendFilesystem}, wantErr: true},
		{name: "unknown", backend: gsm.BackendConfig{Type: "FTP"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewMirrorFromSettings(gsm.CloudSettings{Backend: tt.backend})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewMirrorFromSettings() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if reflect.TypeOf(got) != reflect.TypeOf(tt.wantType) {
				t.Errorf("NewMirrorFromSettings() = %T, want %T", got, tt.wantType)
			}
		})
	}

	t.Run("memory mirrors are shared by name", func(t *testing.T) {
		settings := gsm.CloudSettings{Backend: gsm.BackendConfig{Type: gsm.BackendMemory, Root: "shared-test"}}
		a, _ := NewMirrorFromSettings(settings)
		b, _ := NewMirrorFromSettings(settings)
		put(t, a, "/k", "v")
		if got, err := get(t, b, "/k"); err != nil || got != "v" {
			t.Errorf("second mirror Read() = %q, %v", got, err)
		}
	})

	t.Run("filesystem", func(t *testing.T) {
		got, err := NewMirrorFromSettings(gsm.CloudSettings{
			Backend: gsm.BackendConfig{Type: gsm.BackendFilesystem, Root: t.TempDir()},
		})
		if err != nil {
			t.Fatalf("NewMirrorFromSettings() error = %v", err)
		}
		if _, ok := got.(*FileSystemMirror); !ok {
			t.Errorf("NewMirrorFromSettings() = %T, want *FileSystemMirror", got)
		}
	})
}
