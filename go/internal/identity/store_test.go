package identity

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/teamaction/geohunt/go/internal/models"
)

func TestDeviceIDStableAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")

	s1, err := NewStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	id := s1.DeviceID()
	if !strings.HasPrefix(id, "device-") {
		t.Fatalf("device id = %q, want device- prefix", id)
	}
	if s1.DeviceID() != id {
		t.Fatal("device id changed between calls")
	}

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if s2.DeviceID() != id {
		t.Fatalf("device id after reopen = %q, want %q", s2.DeviceID(), id)
	}
}

func TestUserNameDefaultsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if s.UserName() != DefaultUserName {
		t.Fatalf("user name = %q, want default", s.UserName())
	}

	s.SetUserName("Alice")
	s.SetDeviceType(models.DeviceTypeMobile)

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if reopened.UserName() != "Alice" {
		t.Fatalf("user name after reopen = %q", reopened.UserName())
	}
	if reopened.DeviceType() != models.DeviceTypeMobile {
		t.Fatalf("device type after reopen = %q", reopened.DeviceType())
	}
}

func TestTransplantReplacesIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	s.DeviceID()
	s.SetUserName("Old Name")
	s.SetRecoveryCode("ABC234")

	s.Transplant("device-recovered", "New Name")

	if s.DeviceID() != "device-recovered" {
		t.Fatalf("device id = %q, want transplanted id", s.DeviceID())
	}
	if s.UserName() != "New Name" {
		t.Fatalf("user name = %q", s.UserName())
	}
	if s.RecoveryCode() != "" {
		t.Fatal("transplant must drop the cached recovery code")
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if reopened.DeviceID() != "device-recovered" {
		t.Fatal("transplant was not persisted")
	}
}
