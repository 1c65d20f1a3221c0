package models

import (
	"fmt"
	"strings"
)

// ChatMessage travels on the game-global channel. TargetTeamID narrows an
// instructor message to one team; nil means every team sees it. The ID embeds
// the sender's device id so consumers can answer "is this mine" without extra
// state, and is the dedup key across redundant channel deliveries.
type ChatMessage struct {
	ID           string  `json:"id"`
	GameID       string  `json:"game_id"`
	TargetTeamID *string `json:"target_team_id,omitempty"`
	Message      string  `json:"message"`
	Sender       string  `json:"sender"`
	Timestamp    int64   `json:"timestamp"`
	IsUrgent     bool    `json:"is_urgent,omitempty"`
}

// ChatMessageID builds the canonical message id for a send at ts (millis).
func ChatMessageID(ts int64, deviceID string) string {
	return fmt.Sprintf("msg-%d-%s", ts, deviceID)
}

// IsFrom reports whether the message id embeds the given device id.
func (m ChatMessage) IsFrom(deviceID string) bool {
	return strings.HasSuffix(m.ID, "-"+deviceID)
}
