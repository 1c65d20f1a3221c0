package teamsync

import (
	"context"
	"time"

	"github.com/teamaction/geohunt/go/internal/models"
)

// VoteStore defines what the session needs from the durable vote table:
// last-write-wins upserts keyed (game, team, point, device), a point-in-time
// load, and a post-commit change feed. The feed must be live before the
// load is issued so no committed vote falls between them.
type VoteStore interface {
	UpsertVote(ctx context.Context, gameID, teamKey string, vote models.TaskVote) error
	ListVotes(ctx context.Context, gameID, teamKey string) ([]models.TaskVote, error)
	SubscribeVotes(ctx context.Context, gameID, teamKey string) (<-chan models.TaskVote, func(), error)
}

// TeamStore defines what the session needs from the durable team table.
// EnsureTeam creates the row on first join and must reject a second team
// whose name sanitizes to an existing key in the same game.
type TeamStore interface {
	EnsureTeam(ctx context.Context, gameID, name, teamKey, captainDeviceID string) (*models.Team, error)
	GetCaptain(ctx context.Context, gameID, teamKey string) (string, error)
	SetCaptain(ctx context.Context, gameID, teamKey, deviceID string) error
}

// RecoveryStore defines what the session needs for recovery codes: creation
// with a server-side TTL and single-use redemption. Redeem returns nil data
// (not an error) for a missing or expired code.
type RecoveryStore interface {
	CreateCode(ctx context.Context, code string, data models.RecoveryCodeData, ttl time.Duration) error
	RedeemCode(ctx context.Context, code string) (*models.RecoveryCodeData, error)
}
