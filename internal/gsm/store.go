package gsm

// SnapshotStore persists a game's snapshot index inside its backup folder.
type SnapshotStore interface {
	// Load reads <dir>/Backups.json. A missing file yields an error that
	// satisfies errors.Is(err, fs.ErrNotExist).
	Load(dir string) (*GameSnapshots, error)

	// Save replaces <dir>/Backups.json with s.
	Save(dir string, s *GameSnapshots) error
}

// ConfigStore persists the global configuration document.
type ConfigStore interface {
	Load() (*Config, error)
	Save(cfg *Config) error
}
