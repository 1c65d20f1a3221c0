package teamsync

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/teamaction/geohunt/go/internal/broadcast"
	"github.com/teamaction/geohunt/go/internal/identity"
	"github.com/teamaction/geohunt/go/internal/models"
	"github.com/teamaction/geohunt/go/internal/teamstore"
)

func memberByID(roster []models.TeamMember, deviceID string) *models.TeamMember {
	for i := range roster {
		if roster[i].DeviceID == deviceID {
			return &roster[i]
		}
	}
	return nil
}

func TestCaptainRetiresAndUnretiresMember(t *testing.T) {
	f := newFixture()
	captain := f.connect(t, quietConfig(), "game1", "Red Team", "Alice")
	member := f.connect(t, quietConfig(), "game1", "Red Team", "Bob")

	captain.RetirePlayer(member.DeviceID())

	for _, s := range []*Session{captain, member} {
		m := memberByID(s.GetAllMembers(), member.DeviceID())
		if m == nil || !m.IsRetired {
			t.Fatalf("member not retired in roster of %q", s.DeviceID())
		}
	}

	captain.UnretirePlayer(member.DeviceID())
	if m := memberByID(member.GetAllMembers(), member.DeviceID()); m == nil || m.IsRetired {
		t.Fatal("member should be unretired")
	}
}

func TestNonCaptainAdminCommandRefused(t *testing.T) {
	f := newFixture()
	captain := f.connect(t, quietConfig(), "game1", "Red Team", "Alice")
	member := f.connect(t, quietConfig(), "game1", "Red Team", "Bob")

	member.RetirePlayer(captain.DeviceID())

	if m := memberByID(captain.GetAllMembers(), captain.DeviceID()); m == nil || m.IsRetired {
		t.Fatal("non-captain command must not take effect")
	}
}

func TestForgedAdminCommandDropped(t *testing.T) {
	f := newFixture()
	captain := f.connect(t, quietConfig(), "game1", "Red Team", "Alice")
	member := f.connect(t, quietConfig(), "game1", "Red Team", "Bob")

	// A frame whose sender is not the authoritative captain, published
	// straight onto the channel as a misbehaving client would.
	raw, _ := json.Marshal(AdminPayload{TargetDeviceID: captain.DeviceID()})
	env := Envelope{
		ID:        "forged-1",
		Type:      EventTypeRetire,
		Sender:    member.DeviceID(),
		Timestamp: f.clock.Now(),
		Payload:   raw,
	}
	if err := f.bus.Channel(broadcast.TeamChannel("game1", "Red_Team")).Send(eventAdmin, env); err != nil {
		t.Fatalf("send forged admin: %v", err)
	}

	if m := memberByID(captain.GetAllMembers(), captain.DeviceID()); m == nil || m.IsRetired {
		t.Fatal("forged admin command must be dropped")
	}
}

func TestTransferCaptaincy(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	captain := f.connect(t, quietConfig(), "game1", "Red Team", "Alice")
	member := f.connect(t, quietConfig(), "game1", "Red Team", "Bob")

	if err := member.TransferCaptaincy(ctx, member.DeviceID()); err == nil {
		t.Fatal("non-captain transfer must fail")
	}

	if err := captain.TransferCaptaincy(ctx, member.DeviceID()); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if captain.IsCaptain() {
		t.Fatal("old captain still reports captaincy")
	}
	if !member.IsCaptain() {
		t.Fatal("new captain not recognized")
	}

	// The store is the source of truth for late joiners.
	got, err := f.teams.GetCaptain(ctx, "game1", "Red_Team")
	if err != nil {
		t.Fatalf("get captain: %v", err)
	}
	if got != member.DeviceID() {
		t.Fatalf("stored captain = %q, want %q", got, member.DeviceID())
	}

	// The transfer is effective immediately: the new captain can command.
	member.RetirePlayer(captain.DeviceID())
	if m := memberByID(captain.GetAllMembers(), captain.DeviceID()); m == nil || !m.IsRetired {
		t.Fatal("new captain's command should take effect")
	}
}

func TestRemovePlayerDisconnectsTarget(t *testing.T) {
	f := newFixture()
	captain := f.connect(t, quietConfig(), "game1", "Red Team", "Alice")
	member := f.connect(t, quietConfig(), "game1", "Red Team", "Bob")

	captain.RemovePlayer(member.DeviceID())

	if memberByID(captain.GetAllMembers(), member.DeviceID()) != nil {
		t.Fatal("removed member still on captain's roster")
	}
	waitFor(t, "removed device to disconnect", func() bool {
		return !member.Connected()
	})
}

// flakyTeamStore fails team creation but still answers captain reads,
// modeling a store that was briefly unavailable during a join.
type flakyTeamStore struct {
	*teamstore.Memory
	failEnsure bool
}

func (s *flakyTeamStore) EnsureTeam(ctx context.Context, gameID, name, teamKey, captainDeviceID string) (*models.Team, error) {
	if s.failEnsure {
		return nil, errors.New("team store unavailable")
	}
	return s.Memory.EnsureTeam(ctx, gameID, name, teamKey, captainDeviceID)
}

func TestDegradedJoinRefreshesCaptainFromStore(t *testing.T) {
	f := newFixture()
	captain := f.connect(t, quietConfig(), "game1", "Red Team", "Alice")

	id, err := identity.NewStore(filepath.Join(t.TempDir(), "identity.json"))
	if err != nil {
		t.Fatalf("identity store: %v", err)
	}
	flaky := &flakyTeamStore{Memory: f.teams, failEnsure: true}
	member := NewSession(quietConfig(), f.bus, f.votes, flaky, f.recovery, id)
	member.clock = f.clock
	if err := member.Connect(context.Background(), "game1", "Red Team", "Bob"); err != nil {
		t.Fatalf("degraded connect: %v", err)
	}
	t.Cleanup(member.Disconnect)

	if member.Captain() != "" {
		t.Fatal("degraded join should leave captaincy unknown")
	}

	// The first incoming command re-reads the captain from the store, so
	// the command applies instead of being dropped forever.
	captain.RetirePlayer(member.DeviceID())

	if member.Captain() != captain.DeviceID() {
		t.Fatalf("captain = %q, want %q", member.Captain(), captain.DeviceID())
	}
	if m := memberByID(member.GetAllMembers(), member.DeviceID()); m == nil || !m.IsRetired {
		t.Fatal("command should apply once captaincy is refreshed")
	}
}

func TestMemberAddedAnnouncementNeedsNoCaptaincy(t *testing.T) {
	f := newFixture()
	f.connect(t, quietConfig(), "game1", "Red Team", "Alice")
	member := f.connect(t, quietConfig(), "game1", "Red Team", "Bob")

	// Informational only; must not be refused and must not panic.
	member.AnnounceMemberAdded("Bob")
}
