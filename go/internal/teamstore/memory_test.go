package teamstore

import (
	"context"
	"errors"
	"testing"
)

func TestEnsureTeamCreatesThenReturnsExisting(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	created, err := m.EnsureTeam(ctx, "g1", "Red Team", "Red_Team", "device-a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.CaptainDeviceID != "device-a" {
		t.Fatalf("captain = %q, want the first joiner", created.CaptainDeviceID)
	}

	joined, err := m.EnsureTeam(ctx, "g1", "Red Team", "Red_Team", "device-b")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if joined.ID != created.ID {
		t.Fatal("rejoin must return the existing team")
	}
	if joined.CaptainDeviceID != "device-a" {
		t.Fatalf("captain after rejoin = %q, a later joiner must not take over", joined.CaptainDeviceID)
	}
}

func TestEnsureTeamRejectsKeyCollision(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.EnsureTeam(ctx, "g1", "Red Team!", "Red_Team_", "device-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := m.EnsureTeam(ctx, "g1", "Red Team?", "Red_Team_", "device-b")
	if !errors.Is(err, ErrTeamKeyCollision) {
		t.Fatalf("err = %v, want ErrTeamKeyCollision", err)
	}

	// The same key in a different game is a different team.
	if _, err := m.EnsureTeam(ctx, "g2", "Red Team?", "Red_Team_", "device-b"); err != nil {
		t.Fatalf("cross-game create: %v", err)
	}
}

func TestSetCaptain(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.EnsureTeam(ctx, "g1", "Red Team", "Red_Team", "device-a"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.SetCaptain(ctx, "g1", "Red_Team", "device-b"); err != nil {
		t.Fatalf("set captain: %v", err)
	}
	got, err := m.GetCaptain(ctx, "g1", "Red_Team")
	if err != nil {
		t.Fatalf("get captain: %v", err)
	}
	if got != "device-b" {
		t.Fatalf("captain = %q, want device-b", got)
	}

	if err := m.SetCaptain(ctx, "g1", "No_Such_Team", "device-b"); err == nil {
		t.Fatal("set captain on a missing team must fail")
	}
}
