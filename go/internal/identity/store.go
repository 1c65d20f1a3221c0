// Package identity persists a device's stable identifier and display name.
// The backing file plays the role browser local storage plays for web
// clients: written once on first use, surviving restarts, and rotated only
// by a recovery-code transplant.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teamaction/geohunt/go/internal/models"
)

// DefaultUserName is reported until a display name is set.
const DefaultUserName = "Anonymous"

type state struct {
	DeviceID     string            `json:"device_id"`
	UserName     string            `json:"user_name,omitempty"`
	DeviceType   models.DeviceType `json:"device_type,omitempty"`
	RecoveryCode string            `json:"recovery_code,omitempty"`
}

// Store is a file-backed device identity.
type Store struct {
	path string

	mu sync.Mutex
	st state
}

// NewStore loads (or lazily initializes) the identity file at path.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First use; the file is written when an id is first requested.
	case err != nil:
		return nil, fmt.Errorf("read identity file: %w", err)
	default:
		if err := json.Unmarshal(data, &s.st); err != nil {
			return nil, fmt.Errorf("parse identity file: %w", err)
		}
	}
	return s, nil
}

// DeviceID returns the persisted device identifier, generating and
// persisting a new one on first call. It never fails: if the write fails
// the generated id is still returned and kept in memory for this process.
func (s *Store) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.DeviceID == "" {
		s.st.DeviceID = "device-" + uuid.NewString()
		s.persistLocked()
	}
	return s.st.DeviceID
}

// UserName returns the last-set display name, or DefaultUserName.
func (s *Store) UserName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.UserName == "" {
		return DefaultUserName
	}
	return s.st.UserName
}

// SetUserName updates the display name.
func (s *Store) SetUserName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.UserName = name
	s.persistLocked()
}

// DeviceType returns the reported device class, defaulting to desktop.
func (s *Store) DeviceType() models.DeviceType {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.DeviceType == "" {
		return models.DeviceTypeDesktop
	}
	return s.st.DeviceType
}

// SetDeviceType records the client-reported device class.
func (s *Store) SetDeviceType(t models.DeviceType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.DeviceType = t
	s.persistLocked()
}

// RecoveryCode returns the locally cached recovery code, if any.
func (s *Store) RecoveryCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.RecoveryCode
}

// SetRecoveryCode caches a generated recovery code for re-display.
func (s *Store) SetRecoveryCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.RecoveryCode = code
	s.persistLocked()
}

// Transplant destructively replaces this device's identity with a recovered
// one. Any local-only state tied to the previous device id is abandoned.
func (s *Store) Transplant(deviceID, userName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.DeviceID = deviceID
	s.st.UserName = userName
	s.st.RecoveryCode = ""
	s.persistLocked()
}

// persistLocked writes the identity file; failures are logged, never
// surfaced, so identity reads stay infallible.
func (s *Store) persistLocked() {
	data, err := json.MarshalIndent(s.st, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("marshal identity state")
		return
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error().Err(err).Str("dir", dir).Msg("create identity dir")
			return
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("write identity file")
	}
}
