package journal

import (
	"fmt"

	"gsm-go/internal/config"
	"gsm-go/internal/gsm"
)

// NewJournalFromConfig creates a Journal based on the journal config type.
func NewJournalFromConfig(cfg config.JournalConfig, clock gsm.Clock) (gsm.Journal, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite journal")
		}
		return open(cfg.Path, clock)
	case "memory":
		return open(":memory:", clock)
	default:
		return nil, fmt.Errorf("unknown journal type: %s", cfg.Type)
	}
}

// open keeps a failed Open from turning into a non-nil interface.
func open(path string, clock gsm.Clock) (gsm.Journal, error) {
	j, err := Open(path, clock)
	if err != nil {
		return nil, err
	}
	return j, nil
}
