package app

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("GSM_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("GSM_HOME", "/custom/gsm")
		t.Setenv("GSM_GLOBAL_CONFIG", "/shared/GlobalConfig.json")
		t.Setenv("GSM_SCRATCH_DIR", "/scratch")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		want := Defaults{
			ConfigPath: "/custom/config.toml",
			BaseDir:    "/custom/gsm",
			StorePath:  "/shared/GlobalConfig.json",
			ScratchDir: "/scratch",
			LogDir:     filepath.Join("/custom/gsm", "log"),
		}
		if *d != want {
			t.Errorf("GetDefaults() = %+v, want %+v", *d, want)
		}
	})

	t.Run("falls back to XDG locations", func(t *testing.T) {
		if runtime.GOOS != "linux" {
			t.Skip("XDG variables only apply on linux")
		}
		home := t.TempDir()
		t.Setenv("GSM_CONFIG_PATH", "")
		t.Setenv("GSM_HOME", "")
		t.Setenv("GSM_GLOBAL_CONFIG", "")
		t.Setenv("GSM_SCRATCH_DIR", "")
		t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "cfg"))
		t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
		t.Setenv("XDG_CACHE_HOME", filepath.Join(home, "cache"))

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		base := filepath.Join(home, "data", "gsm")
		want := Defaults{
			ConfigPath: filepath.Join(home, "cfg", "gsm", "gsm.toml"),
			BaseDir:    base,
			StorePath:  filepath.Join(base, "GlobalConfig.json"),
			ScratchDir: filepath.Join(home, "cache", "gsm"),
			LogDir:     filepath.Join(base, "log"),
		}
		if *d != want {
			t.Errorf("GetDefaults() = %+v, want %+v", *d, want)
		}
	})

	t.Run("falls back to home dir without XDG", func(t *testing.T) {
		if runtime.GOOS != "linux" {
			t.Skip("home layout differs off linux")
		}
		home := t.TempDir()
		t.Setenv("HOME", home)
		t.Setenv("GSM_HOME", "")
		t.Setenv("XDG_DATA_HOME", "")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		if want := filepath.Join(home, ".local", "share", "gsm"); d.BaseDir != want {
			t.Errorf("BaseDir = %q, want %q", d.BaseDir, want)
		}
	})
}

func TestDefaults_Config(t *testing.T) {
	d := &Defaults{
		ConfigPath: "/c/gsm.toml",
		BaseDir:    "/data/gsm",
		StorePath:  "/shared/GlobalConfig.json",
		ScratchDir: "/cache/gsm",
		LogDir:     "/data/gsm/log",
	}
	cfg := d.Config()
	if cfg.BaseDir != d.BaseDir || cfg.StorePath != d.StorePath || cfg.ScratchDir != d.ScratchDir || cfg.LogDir != d.LogDir {
		t.Errorf("Config() = %+v, want locations from %+v", cfg, d)
	}
	if cfg.Journal.Path != filepath.Join(d.BaseDir, "journal.db") {
		t.Errorf("journal path = %q", cfg.Journal.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
