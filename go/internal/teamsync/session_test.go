package teamsync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/teamaction/geohunt/go/internal/broadcast"
	"github.com/teamaction/geohunt/go/internal/identity"
	"github.com/teamaction/geohunt/go/internal/recoverystore"
	"github.com/teamaction/geohunt/go/internal/teamstore"
	"github.com/teamaction/geohunt/go/internal/votestore"
)

// fixture bundles the in-process backends every session test runs against.
// All sessions created from one fixture share the bus, the stores, and the
// fake clock, so multi-device scenarios stay deterministic.
type fixture struct {
	clock    *clockwork.FakeClock
	bus      *broadcast.MemoryBus
	votes    *votestore.Memory
	teams    *teamstore.Memory
	recovery *recoverystore.Memory
}

func newFixture() *fixture {
	clock := clockwork.NewFakeClock()
	return &fixture{
		clock:    clock,
		bus:      broadcast.NewMemoryBus(),
		votes:    votestore.NewMemory(),
		teams:    teamstore.NewMemory(),
		recovery: recoverystore.NewMemory(clock),
	}
}

// quietConfig pushes the background loops out to an hour so a test's clock
// advances never race a heartbeat or sweep it did not ask for.
func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = time.Hour
	cfg.SweepInterval = time.Hour
	return cfg
}

func (f *fixture) newSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	id, err := identity.NewStore(filepath.Join(t.TempDir(), "identity.json"))
	if err != nil {
		t.Fatalf("identity store: %v", err)
	}
	s := NewSession(cfg, f.bus, f.votes, f.teams, f.recovery, id)
	s.clock = f.clock
	return s
}

func (f *fixture) connect(t *testing.T, cfg Config, gameID, teamName, userName string) *Session {
	t.Helper()
	s := f.newSession(t, cfg)
	if err := s.Connect(context.Background(), gameID, teamName, userName); err != nil {
		t.Fatalf("connect %q/%q: %v", gameID, teamName, err)
	}
	t.Cleanup(s.Disconnect)
	return s
}

// waitFor polls cond until it holds or the test deadline hits. Only the
// few deliberately detached paths (persistence, self-removal) need it.
func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", desc)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectSetsTeamKeyAndCaptain(t *testing.T) {
	f := newFixture()
	s := f.connect(t, quietConfig(), "game1", "Red Team!", "Alice")

	if got := s.TeamKey(); got != "Red_Team_" {
		t.Fatalf("team key = %q, want %q", got, "Red_Team_")
	}
	if !s.IsCaptain() {
		t.Fatal("first joiner should hold captaincy")
	}
	if !s.Connected() {
		t.Fatal("session should report connected")
	}
}

func TestSecondJoinerIsNotCaptain(t *testing.T) {
	f := newFixture()
	a := f.connect(t, quietConfig(), "game1", "Red Team", "Alice")
	b := f.connect(t, quietConfig(), "game1", "Red Team", "Bob")

	if !a.IsCaptain() {
		t.Fatal("first joiner lost captaincy")
	}
	if b.IsCaptain() {
		t.Fatal("second joiner should not be captain")
	}
	if b.Captain() != a.DeviceID() {
		t.Fatalf("captain = %q, want %q", b.Captain(), a.DeviceID())
	}
}

func TestConnectRejectsTeamKeyCollision(t *testing.T) {
	f := newFixture()
	f.connect(t, quietConfig(), "game1", "Red Team!", "Alice")

	// "Red Team?" sanitizes to the same key as "Red Team!".
	s := f.newSession(t, quietConfig())
	err := s.Connect(context.Background(), "game1", "Red Team?", "Bob")
	if !errors.Is(err, teamstore.ErrTeamKeyCollision) {
		t.Fatalf("err = %v, want ErrTeamKeyCollision", err)
	}
	if s.Connected() {
		t.Fatal("session should not be connected after a rejected join")
	}
}

func TestConnectSameNameSameKeyIsNotACollision(t *testing.T) {
	f := newFixture()
	f.connect(t, quietConfig(), "game1", "Red Team", "Alice")
	f.connect(t, quietConfig(), "game1", "Red Team", "Bob")
}

func TestDisconnectIsIdempotent(t *testing.T) {
	f := newFixture()
	s := f.connect(t, quietConfig(), "game1", "Red Team", "Alice")

	s.Disconnect()
	s.Disconnect()
	if s.Connected() {
		t.Fatal("session still connected after Disconnect")
	}

	// A fully disconnected session can Connect again.
	if err := s.Connect(context.Background(), "game1", "Red Team", "Alice"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if !s.Connected() {
		t.Fatal("session should reconnect after Disconnect")
	}
}
