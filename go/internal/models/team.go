package models

import (
	"time"

	"github.com/google/uuid"
)

// Team is the durable team row. TeamKey is the sanitized channel-safe
// derivation of Name and the join key for vote and presence rows; it is
// unique per game. CaptainDeviceID is the authoritative captaincy record
// that admin broadcasts are checked against.
type Team struct {
	ID              uuid.UUID `json:"id"`
	GameID          string    `json:"game_id"`
	Name            string    `json:"name"`
	TeamKey         string    `json:"team_key"`
	CaptainDeviceID string    `json:"captain_device_id"`
	PhotoURL        *string   `json:"photo_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
