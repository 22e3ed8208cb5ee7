package app

import (
	"fmt"
	"os"
	"path/filepath"

	"gsm-go/internal/config"
	"gsm-go/internal/store"
)

// Defaults are the locations gsm uses when no config file says otherwise.
type Defaults struct {
	// ConfigPath is the TOML file describing the local install.
	ConfigPath string
	// BaseDir holds the journal, logs and, unless overridden, the
	// global config and the save_data tree.
	BaseDir string
	// StorePath is the GlobalConfig.json listing games and cloud settings.
	StorePath string
	// ScratchDir receives archives while they are being built.
	ScratchDir string
	LogDir     string
}

// GetDefaults resolves the default locations, checking environment
// variables first.
//
// Environment variables:
//   - GSM_CONFIG_PATH: config file (default: $XDG_CONFIG_HOME/gsm/gsm.toml)
//   - GSM_HOME: base directory (default: $XDG_DATA_HOME/gsm)
//   - GSM_GLOBAL_CONFIG: GlobalConfig.json, e.g. inside a folder shared
//     with another install (default: $GSM_HOME/GlobalConfig.json)
//   - GSM_SCRATCH_DIR: archive scratch space (default: the user cache dir)
func GetDefaults() (*Defaults, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	storePath := os.Getenv("GSM_GLOBAL_CONFIG")
	if storePath == "" {
		storePath = filepath.Join(baseDir, store.ConfigFileName)
	}

	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		StorePath:  storePath,
		ScratchDir: getScratchDir(baseDir),
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// Config returns a fresh config rooted at the default locations.
func (d *Defaults) Config() *config.Config {
	cfg := config.NewConfig(d.BaseDir)
	cfg.StorePath = d.StorePath
	cfg.ScratchDir = d.ScratchDir
	cfg.LogDir = d.LogDir
	return cfg
}

func getConfigPath() (string, error) {
	if path := os.Getenv("GSM_CONFIG_PATH"); path != "" {
		return path, nil
	}

	// Honors XDG_CONFIG_HOME on unix and maps to AppData on windows.
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(dir, "gsm", "gsm.toml"), nil
}

func getBaseDir() (string, error) {
	if path := os.Getenv("GSM_HOME"); path != "" {
		return path, nil
	}
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "gsm"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "gsm"), nil
}

// getScratchDir keeps half-built archives out of the data directory. Without
// a usable cache dir they go under baseDir.
func getScratchDir(baseDir string) string {
	if path := os.Getenv("GSM_SCRATCH_DIR"); path != "" {
		return path
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "gsm")
	}
	return filepath.Join(baseDir, "tmp")
}
