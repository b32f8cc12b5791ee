package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// stateSchemaVersion is bumped whenever PersistedState changes shape in a
// way old readers cannot handle.
const stateSchemaVersion = 1

// PersistedState is the device configuration that survives reboots.
type PersistedState struct {
	SchemaVersion int `json:"schema_version"`

	// WebhookURL is the zone-fetch base delivered through pairing. Empty
	// means the device has never paired.
	WebhookURL string `json:"webhook_url,omitempty"`

	// DeviceToken identifies this device to the server's sync cache.
	DeviceToken string `json:"device_token,omitempty"`

	PairedAt *time.Time `json:"paired_at,omitempty"`

	// Loop progress, mirrored after every step so a power cycle resumes
	// error backoff and the full-refresh cadence instead of resetting them.
	State           string     `json:"state,omitempty"`
	ErrorCount      int        `json:"error_count,omitempty"`
	RenderCount     int        `json:"render_count,omitempty"`
	PartialCount    int        `json:"partial_count,omitempty"`
	LastFullRefresh *time.Time `json:"last_full_refresh,omitempty"`
	LastSuccess     *time.Time `json:"last_success,omitempty"`
}

// Paired reports whether the state carries bound server configuration.
func (s *PersistedState) Paired() bool {
	return s.WebhookURL != ""
}

// StateStore reads and writes the persisted state file.
type StateStore struct {
	path string
}

// NewStateStore creates a store over the given file path. The parent
// directory must exist.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load reads the persisted state. A missing file returns a zero state with
// the current schema version; a file with an unknown schema version returns
// ErrUnknownSchema.
func (s *StateStore) Load() (*PersistedState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PersistedState{SchemaVersion: stateSchemaVersion}, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var state PersistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	if state.SchemaVersion != stateSchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSchema, state.SchemaVersion)
	}
	return &state, nil
}

// Save writes the state atomically: a temp file in the same directory is
// renamed over the target, so a power cut leaves either the old state or
// the new one, never a torn file.
func (s *StateStore) Save(state *PersistedState) error {
	state.SchemaVersion = stateSchemaVersion

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// Reset removes the persisted state, returning the device to unpaired.
func (s *StateStore) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}
