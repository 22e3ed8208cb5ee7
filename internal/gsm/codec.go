package gsm

import (
	"encoding/json"
	"fmt"
)

// EncodeIndex renders an index exactly as it is stored on disk and on the mirror.
func EncodeIndex(s *GameSnapshots) ([]byte, error) {
	if s.Backups == nil {
		s.Backups = []Snapshot{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding index for %s: %w", s.Name, err)
	}
	return data, nil
}

// DecodeIndex parses an index document.
func DecodeIndex(data []byte) (*GameSnapshots, error) {
	var s GameSnapshots
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	if s.Backups == nil {
		s.Backups = []Snapshot{}
	}
	return &s, nil
}

// EncodeConfig renders the global configuration document.
func EncodeConfig(c *Config) ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

// DecodeConfig parses a global configuration document. Fields missing from
// the document keep their DefaultConfig values.
func DecodeConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Games == nil {
		cfg.Games = []Game{}
	}
	if cfg.Settings.Cloud.Backend.Type == "" {
		cfg.Settings.Cloud.Backend.Type = BackendDisabled
	}
	return cfg, nil
}
