// SPDX-License-Identifier: MPL-2.0

package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the state file name inside the workspace state directory.
const FileName = "state.toml"

type (
	// ConfigState records whether a workspace has been configured and which node
	// version is installed.
	ConfigState struct {
		Configured bool              `toml:"configured"`
		Version    string            `toml:"version"`
		UpdatedAt  time.Time         `toml:"updated_at,omitempty"`
		Artifacts  map[string]string `toml:"artifacts,omitempty"` // artifact name -> sha256
	}

	// Store reads and writes ConfigState for one workspace.
	Store struct {
		mu   sync.Mutex
		path string
		now  func() time.Time
	}
)

// NewStore returns a Store persisting to <dir>/state.toml. The directory is
// created on first write.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	return &Store{
		path: filepath.Join(dir, FileName),
		now:  time.Now,
	}, nil
}

// Get returns the persisted state. A missing file reads as the zero state.
func (s *Store) Get() (ConfigState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// ResetConfig clears the configured flag, the installed version and the
// recorded artifacts.
func (s *Store) ResetConfig() error {
	return s.update(func(cs *ConfigState) {
		*cs = ConfigState{}
	})
}

// UpdateVersion records v as the installed node version.
func (s *Store) UpdateVersion(v string) error {
	return s.update(func(cs *ConfigState) {
		cs.Version = v
	})
}

// MarkConfigured sets the configured flag.
func (s *Store) MarkConfigured() error {
	return s.update(func(cs *ConfigState) {
		cs.Configured = true
	})
}

// RecordArtifact stores the sha256 of a placed artifact.
func (s *Store) RecordArtifact(name, sha256 string) error {
	return s.update(func(cs *ConfigState) {
		if cs.Artifacts == nil {
			cs.Artifacts = make(map[string]string)
		}
		cs.Artifacts[name] = sha256
	})
}

func (s *Store) update(mutate func(*ConfigState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.load()
	if err != nil {
		return err
	}
	mutate(&cs)
	cs.UpdatedAt = s.now().UTC().Truncate(time.Second)

	data, err := toml.Marshal(cs)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing state %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) load() (ConfigState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return ConfigState{}, nil
	}
	if err != nil {
		return ConfigState{}, fmt.Errorf("reading state %s: %w", s.path, err)
	}

	var cs ConfigState
	if err := toml.Unmarshal(data, &cs); err != nil {
		return ConfigState{}, fmt.Errorf("decoding state %s: %w", s.path, err)
	}
	return cs, nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place, so readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
