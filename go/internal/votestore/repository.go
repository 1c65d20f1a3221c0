// Package votestore is the durable mirror of the live vote ledger: an
// upsert-by-(game, team, point, device) table that survives reloads and
// reconnects, plus the post-commit change feed replayed into reconnecting
// sessions.
package votestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sqlc-dev/pqtype"

	"github.com/teamaction/geohunt/go/internal/models"
)

// Repository implements vote row access over Postgres. The listener DSN is
// kept alongside the pool because the change feed needs its own dedicated
// connection.
type Repository struct {
	db  *sql.DB
	dsn string
}

// NewRepository creates a new vote repository. dsn is reused by the
// LISTEN/NOTIFY change feed.
func NewRepository(db *sql.DB, dsn string) *Repository {
	return &Repository{db: db, dsn: dsn}
}

// UpsertVote inserts or replaces a device's vote for a task. Last write
// wins per (game, team, point, device) key, not per issuing session, so
// a straggling write from a disconnected session stays harmless.
func (r *Repository) UpsertVote(ctx context.Context, gameID, teamKey string, vote models.TaskVote) error {
	answer, err := json.Marshal(vote.Answer)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO task_votes (game_id, team_key, point_id, device_id, user_name, answer, vote_ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (game_id, team_key, point_id, device_id)
		 DO UPDATE SET user_name = EXCLUDED.user_name,
		               answer = EXCLUDED.answer,
		               vote_ts = EXCLUDED.vote_ts`,
		gameID, teamKey, vote.PointID, vote.DeviceID, vote.UserName,
		pqtype.NullRawMessage{RawMessage: answer, Valid: true}, vote.Timestamp)
	if err != nil {
		return fmt.Errorf("upsert vote: %w", err)
	}
	return nil
}

// ListVotes returns every persisted vote for a team, one row per
// (point, device) pair.
func (r *Repository) ListVotes(ctx context.Context, gameID, teamKey string) ([]models.TaskVote, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT point_id, device_id, user_name, answer, vote_ts
		 FROM task_votes WHERE game_id = $1 AND team_key = $2`,
		gameID, teamKey)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var votes []models.TaskVote
	for rows.Next() {
		var v models.TaskVote
		var answer pqtype.NullRawMessage
		if err := rows.Scan(&v.PointID, &v.DeviceID, &v.UserName, &answer, &v.Timestamp); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		if answer.Valid {
			if err := json.Unmarshal(answer.RawMessage, &v.Answer); err != nil {
				return nil, fmt.Errorf("parse answer for %s/%s: %w", v.PointID, v.DeviceID, err)
			}
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	return votes, nil
}
