package gsm

// ConfigVersion is written into new global configuration documents.
const ConfigVersion = "1.3.2"

// Config is the global configuration document. It is persisted locally as
// GlobalConfig.json and mirrored to the remote root when syncing.
type Config struct {
	Version    string   `json:"version"`
	BackupPath string   `json:"backup_path"`
	Games      []Game   `json:"games"`
	Settings   Settings `json:"settings"`
}

// Settings holds the user-tunable policies the engine consults.
type Settings struct {
	ExtraBackupWhenApply     bool          `json:"extra_backup_when_apply"`
	DefaultDeleteBeforeApply bool          `json:"default_delete_before_apply"`
	Cloud                    CloudSettings `json:"cloud_settings"`
}

// CloudSettings selects the mirror backend and the mirroring policy.
type CloudSettings struct {
	// AlwaysSync mirrors every local mutation as part of the same operation.
	AlwaysSync bool          `json:"always_sync"`
	RootPath   string        `json:"root_path"`
	Backend    BackendConfig `json:"backend"`
}

// Backend kinds accepted in BackendConfig.Type.
const (
	BackendDisabled   = "Disabled"
	BackendWebDAV     = "WebDAV"
	BackendS3         = "S3"
	BackendFilesystem = "Filesystem"
	BackendMemory     = "Memory"
)

// BackendConfig describes a mirror backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BackendConfig struct {
	Type string `json:"type"`

	// WebDAV and S3
	Endpoint string `json:"endpoint,omitempty"`

	// WebDAV-specific fields
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// S3-specific fields
	Bucket          string `json:"bucket,omitempty"`
	Region          string `json:"region,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`

	// Filesystem-specific fields
	Root string `json:"root,omitempty"`
}

// Sanitized returns a copy with credentials masked, suitable for logs.
func (b BackendConfig) Sanitized() BackendConfig {
	switch b.Type {
	case BackendWebDAV:
		b.Username = "*username*"
		b.Password = "*password*"
	case BackendS3:
		b.Endpoint = "*endpoint*"
		b.Bucket = "*bucket*"
		b.Region = "*region*"
		b.AccessKeyID = "*access_key_id*"
		b.SecretAccessKey = "*secret_access_key*"
	}
	return b
}

// DefaultRootPath is the remote root used when none is configured.
const DefaultRootPath = "/game-save-manager"

// DefaultConfig returns the configuration used when none has been saved yet.
func DefaultConfig() *Config {
	return &Config{
		Version:    ConfigVersion,
		BackupPath: "./save_data",
		Games:      []Game{},
		Settings: Settings{
			ExtraBackupWhenApply: true,
			Cloud: CloudSettings{
				RootPath: DefaultRootPath,
				Backend:  BackendConfig{Type: BackendDisabled},
			},
		},
	}
}

// Validate checks every registered game name.
func (c *Config) Validate() error {
	for i := range c.Games {
		if err := c.Games[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FindGame returns the registered game with the given name, or nil.
func (c *Config) FindGame(name string) *Game {
	for i := range c.Games {
		if c.Games[i].Name == name {
			return &c.Games[i]
		}
	}
	return nil
}

// UpsertGame replaces the game with the same name or appends it.
func (c *Config) UpsertGame(g Game) {
	if existing := c.FindGame(g.Name); existing != nil {
		*existing = g
		return
	}
	c.Games = append(c.Games, g)
}

// RemoveGame drops the named game and reports whether it was registered.
func (c *Config) RemoveGame(name string) bool {
	kept := c.Games[:0]
	found := false
	for _, g := range c.Games {
		if g.Name == name {
			found = true
			continue
		}
		kept = append(kept, g)
	}
	c.Games = kept
	return found
}
