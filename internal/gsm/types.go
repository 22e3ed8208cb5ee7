package gsm

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// SaveUnitType says whether a save unit is a single file or a directory tree.
type SaveUnitType string

const (
	UnitFile   SaveUnitType = "File"
	UnitFolder SaveUnitType = "Folder"
)

// UnmarshalJSON rejects unit types other than File and Folder.
func (t *SaveUnitType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch SaveUnitType(s) {
	case UnitFile, UnitFolder:
		*t = SaveUnitType(s)
		return nil
	default:
		return fmt.Errorf("unknown save unit type: %q", s)
	}
}

// SaveUnit declares one file or folder that belongs to a game's save data.
type SaveUnit struct {
	UnitType SaveUnitType `json:"unit_type"`
	Path     string       `json:"path"`
	// DeleteBeforeApply removes whatever occupies Path before a restore moves
	// the archived copy into place.
	DeleteBeforeApply bool `json:"delete_before_apply"`
}

// Game is a named set of save units. The name keys the backup folder, the
// index file and the remote layout.
type Game struct {
	Name      string     `json:"name"`
	SavePaths []SaveUnit `json:"save_paths"`
	GamePath  string     `json:"game_path,omitempty"`
}

// Validate checks that the game name can be used as a single path component.
func (g *Game) Validate() error {
	name := g.Name
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidGameName, name)
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, filepath.Separator) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidGameName, name)
	}
	return nil
}

// Snapshot is one completed backup of a game. Date is the snapshot id.
type Snapshot struct {
	Date     string `json:"date"`
	Describe string `json:"describe"`
	Path     string `json:"path"`
}

// GameSnapshots is the durable index of a game's snapshots, oldest first.
type GameSnapshots struct {
	Name    string     `json:"name"`
	Backups []Snapshot `json:"backups"`
}

// NewGameSnapshots returns an empty index for the named game.
func NewGameSnapshots(name string) *GameSnapshots {
	return &GameSnapshots{Name: name, Backups: []Snapshot{}}
}

// Find returns the snapshot with the given date, or nil.
func (s *GameSnapshots) Find(date string) *Snapshot {
	for i := range s.Backups {
		if s.Backups[i].Date == date {
			return &s.Backups[i]
		}
	}
	return nil
}

// Remove drops the snapshot with the given date and reports whether it was present.
func (s *GameSnapshots) Remove(date string) bool {
	kept := s.Backups[:0]
	found := false
	for _, b := range s.Backups {
		if b.Date == date {
			found = true
			continue
		}
		kept = append(kept, b)
	}
	s.Backups = kept
	return found
}

// Validate checks every snapshot id in the index.
func (s *GameSnapshots) Validate() error {
	for _, b := range s.Backups {
		if err := ValidateSnapshotID(b.Date); err != nil {
			return err
		}
	}
	return nil
}

// Latest returns the most recently appended snapshot, or nil.
func (s *GameSnapshots) Latest() *Snapshot {
	if len(s.Backups) == 0 {
		return nil
	}
	return &s.Backups[len(s.Backups)-1]
}
