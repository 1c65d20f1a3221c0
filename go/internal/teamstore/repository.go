// Package teamstore is the durable team table: the authoritative record of
// a team's name, join key, and captaincy.
package teamstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teamaction/geohunt/go/internal/models"
	"github.com/teamaction/geohunt/go/internal/sqlutil"
)

// ErrTeamKeyCollision is returned when a team name sanitizes to a key
// already claimed by a differently named team in the same game. The
// sanitization is lossy, so the collision is rejected at creation time
// rather than silently merging two teams onto one channel.
var ErrTeamKeyCollision = errors.New("team name collides with an existing team key")

// Repository implements team data access over Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new team repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureTeam returns the team row for (gameID, teamKey), creating it with
// the caller as captain if it does not exist. A row whose stored name
// differs from the joining name is a key collision and is rejected.
func (r *Repository) EnsureTeam(ctx context.Context, gameID, name, teamKey, captainDeviceID string) (*models.Team, error) {
	var team *models.Team
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT id, game_id, name, team_key, captain_device_id, photo_url, created_at
			 FROM teams WHERE game_id = $1 AND team_key = $2`,
			gameID, teamKey)
		existing, err := scanTeam(row)
		switch {
		case err == nil:
			if existing.Name != name {
				return fmt.Errorf("%w: %q vs existing %q", ErrTeamKeyCollision, name, existing.Name)
			}
			team = existing
			return nil
		case errors.Is(err, sql.ErrNoRows):
			created := &models.Team{
				ID:              uuid.New(),
				GameID:          gameID,
				Name:            name,
				TeamKey:         teamKey,
				CaptainDeviceID: captainDeviceID,
				CreatedAt:       time.Now().UTC(),
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO teams (id, game_id, name, team_key, captain_device_id, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				created.ID, created.GameID, created.Name, created.TeamKey,
				created.CaptainDeviceID, created.CreatedAt); err != nil {
				return fmt.Errorf("insert team: %w", err)
			}
			team = created
			return nil
		default:
			return fmt.Errorf("select team: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return team, nil
}

// GetCaptain returns the authoritative captain device id for a team.
func (r *Repository) GetCaptain(ctx context.Context, gameID, teamKey string) (string, error) {
	var captain string
	err := r.db.QueryRowContext(ctx,
		`SELECT captain_device_id FROM teams WHERE game_id = $1 AND team_key = $2`,
		gameID, teamKey).Scan(&captain)
	if err != nil {
		return "", fmt.Errorf("get captain: %w", err)
	}
	return captain, nil
}

// SetCaptain transfers captaincy to another device.
func (r *Repository) SetCaptain(ctx context.Context, gameID, teamKey, deviceID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE teams SET captain_device_id = $3 WHERE game_id = $1 AND team_key = $2`,
		gameID, teamKey, deviceID)
	if err != nil {
		return fmt.Errorf("set captain: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set captain: team %s/%s not found", gameID, teamKey)
	}
	return nil
}

func scanTeam(row *sql.Row) (*models.Team, error) {
	var t models.Team
	var photo sql.NullString
	if err := row.Scan(&t.ID, &t.GameID, &t.Name, &t.TeamKey, &t.CaptainDeviceID, &photo, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.PhotoURL = sqlutil.FromSqlStringPtr(photo)
	return &t, nil
}
