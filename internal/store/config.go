package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gsm-go/internal/gsm"
)

// ConfigFileName is the file name of the global configuration document.
const ConfigFileName = "GlobalConfig.json"

// JSONConfigStore keeps the global configuration in a single JSON file.
type JSONConfigStore struct {
	path string
}

func NewJSONConfigStore(path string) *JSONConfigStore {
	return &JSONConfigStore{path: path}
}

// Path returns the file backing the store.
func (s *JSONConfigStore) Path() string { return s.path }

// Load reads the configuration. A missing file yields gsm.DefaultConfig().
func (s *JSONConfigStore) Load() (*gsm.Config, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return gsm.DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := gsm.DecodeConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return cfg, nil
}

func (s *JSONConfigStore) Save(cfg *gsm.Config) error {
	if cfg.Version == "" {
		cfg.Version = gsm.ConfigVersion
	}
	data, err := gsm.EncodeConfig(cfg)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

var _ gsm.ConfigStore = (*JSONConfigStore)(nil)
