package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateFile is the install record kept at the instance root.
const StateFile = ".mrpack-installer.json"

// ErrNotFound reports that the instance has no install record yet.
var ErrNotFound = errors.New("no install state found")

// State records which pack version an instance was last fully installed
// with. It is written only after a run succeeds end to end, so a partially
// failed update leaves the previous record in place.
type State struct {
	VersionID     string    `json:"version_id"`
	VersionNumber string    `json:"version_number,omitempty"`
	InstalledAt   time.Time `json:"installed_at"`
}

// Load reads the install record from the instance directory. A missing
// file yields ErrNotFound so callers can treat it as a fresh install.
func Load(instanceDir string) (*State, error) {
	path := filepath.Join(instanceDir, StateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}

	return &s, nil
}

// Save writes the install record durably: the JSON lands in a temp file
// first and is renamed over the final path, so a crash mid-write cannot
// leave a truncated record behind.
func (s *State) Save(instanceDir string) error {
	path := filepath.Join(instanceDir, StateFile)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing state: %w", err)
	}

	return nil
}
