package store

import (
	"fmt"
	"os"
	"path/filepath"

	"gsm-go/internal/gsm"
)

// JSONIndexStore keeps each game's snapshot index in <dir>/Backups.json.
// Nothing is cached: every Load reads the file and every Save rewrites it.
type JSONIndexStore struct{}

func NewJSONIndexStore() *JSONIndexStore { return &JSONIndexStore{} }

func (JSONIndexStore) Load(dir string) (*gsm.GameSnapshots, error) {
	p := filepath.Join(dir, gsm.IndexFileName)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	idx, err := gsm.DecodeIndex(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return idx, nil
}

func (JSONIndexStore) Save(dir string, s *gsm.GameSnapshots) error {
	data, err := gsm.EncodeIndex(s)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, gsm.IndexFileName), data)
}

var _ gsm.SnapshotStore = (*JSONIndexStore)(nil)
