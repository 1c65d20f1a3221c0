// Package recoverystore holds short-lived recovery codes mapping a code to
// an identity snapshot. Codes are single-use and expire server-side even if
// never redeemed.
package recoverystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/teamaction/geohunt/go/internal/models"
	"github.com/teamaction/geohunt/go/internal/sqlutil"
)

// Repository implements recovery code access over Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new recovery code repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateCode stores a code with its identity snapshot and TTL.
func (r *Repository) CreateCode(ctx context.Context, code string, data models.RecoveryCodeData, ttl time.Duration) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recovery_codes (code, game_id, team_name, device_id, user_name, user_photo, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		code, data.GameID, data.TeamName, data.DeviceID, data.UserName,
		sqlutil.ToSqlString(data.UserPhoto), time.Now().UTC().Add(ttl))
	if err != nil {
		return fmt.Errorf("insert recovery code: %w", err)
	}
	return nil
}

// RedeemCode atomically reads and deletes a live code. It returns nil data
// for an unknown or expired code; expiry is enforced in the query, not by a
// sweeper, so a stale row can never be redeemed even before cleanup runs.
func (r *Repository) RedeemCode(ctx context.Context, code string) (*models.RecoveryCodeData, error) {
	var data *models.RecoveryCodeData
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT game_id, team_name, device_id, user_name, user_photo
			 FROM recovery_codes
			 WHERE code = $1 AND expires_at > now()
			 FOR UPDATE`,
			code)
		var d models.RecoveryCodeData
		var photo sql.NullString
		if err := row.Scan(&d.GameID, &d.TeamName, &d.DeviceID, &d.UserName, &photo); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("select recovery code: %w", err)
		}
		d.UserPhoto = sqlutil.FromSqlStringPtr(photo)
		if _, err := tx.ExecContext(ctx, `DELETE FROM recovery_codes WHERE code = $1`, code); err != nil {
			return fmt.Errorf("delete recovery code: %w", err)
		}
		data = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// PurgeExpired removes codes past their TTL. Redemption never depends on
// this; it only keeps the table small.
func (r *Repository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recovery_codes WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purge recovery codes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge recovery codes: %w", err)
	}
	return n, nil
}
