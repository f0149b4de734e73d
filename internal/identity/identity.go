package identity

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Identity is the durable device identity. DeviceID is generated once and
// reused on every authentication so the service maps the device to the same
// logical account; DisplayName is the label the player picked, echoed back by
// the service after it is confirmed.
type Identity struct {
	DeviceID    string `json:"device_id"`
	DisplayName string `json:"display_name"`
}

// New returns a fresh identity with a random device id and the given name.
func New(displayName string) Identity {
	return Identity{
		DeviceID:    uuid.NewString(),
		DisplayName: displayName,
	}
}

// Store persists one identity across application restarts.
type Store interface {
	// Load returns the saved identity, or ok=false when none is saved.
	Load() (id Identity, ok bool, err error)
	Save(id Identity) error
	// Clear removes the saved identity. Clearing an empty store is not an error.
	Clear() error
}

// FileStore keeps the identity as a JSON file in the user's config directory.
type FileStore struct {
	path string
}

// NewFileStore creates a store rooted at the platform config directory
// (e.g. ~/.config/gridvoice/identity.json).
func NewFileStore() (*FileStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return &FileStore{path: filepath.Join(dir, "gridvoice", "identity.json")}, nil
}

// NewFileStoreAt creates a store backed by an explicit file path.
func NewFileStoreAt(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (Identity, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Identity{}, false, nil
		}
		return Identity{}, false, err
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return Identity{}, false, err
	}
	if id.DeviceID == "" {
		return Identity{}, false, nil
	}
	return id, true, nil
}

func (s *FileStore) Save(id Identity) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
