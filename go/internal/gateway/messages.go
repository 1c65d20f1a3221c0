package gateway

import (
	"encoding/json"

	"github.com/teamaction/geohunt/go/internal/models"
)

// CommandAction names a client-issued command.
type CommandAction string

const (
	ActionJoin             CommandAction = "join"
	ActionLeave            CommandAction = "leave"
	ActionVote             CommandAction = "vote"
	ActionLocation         CommandAction = "location"
	ActionSolving          CommandAction = "solving"
	ActionChat             CommandAction = "chat"
	ActionTeamChat         CommandAction = "team_chat"
	ActionRetire           CommandAction = "retire"
	ActionUnretire         CommandAction = "unretire"
	ActionRemove           CommandAction = "remove"
	ActionTransferCaptain  CommandAction = "transfer_captain"
	ActionGlobalLocation   CommandAction = "global_location"
	ActionGenerateRecovery CommandAction = "generate_recovery"
	ActionRedeemRecovery   CommandAction = "redeem_recovery"
)

// ClientCommand is one JSON frame from a device.
type ClientCommand struct {
	Action CommandAction `json:"action"`

	GameID   string `json:"game_id,omitempty"`
	TeamName string `json:"team_name,omitempty"`
	UserName string `json:"user_name,omitempty"`

	PointID string          `json:"point_id,omitempty"`
	Answer  json.RawMessage `json:"answer,omitempty"`

	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
	Solving bool    `json:"solving,omitempty"`

	Message      string  `json:"message,omitempty"`
	TargetTeamID *string `json:"target_team_id,omitempty"`
	Urgent       bool    `json:"urgent,omitempty"`

	TargetDeviceID string `json:"target_device_id,omitempty"`
	NewCaptainID   string `json:"new_captain_id,omitempty"`

	Code     string  `json:"code,omitempty"`
	Name     string  `json:"name,omitempty"`
	PhotoURL *string `json:"photo_url,omitempty"`
}

// ServerEventType names a push frame to a device.
type ServerEventType string

const (
	EventWelcome      ServerEventType = "welcome"
	EventJoined       ServerEventType = "joined"
	EventMembers      ServerEventType = "members"
	EventVotes        ServerEventType = "votes"
	EventChatMessage  ServerEventType = "chat"
	EventLocations    ServerEventType = "locations"
	EventRecoveryCode ServerEventType = "recovery_code"
	EventRecovered    ServerEventType = "recovered"
	EventError        ServerEventType = "error"
)

// ServerEvent is one JSON frame to a device.
type ServerEvent struct {
	Type ServerEventType `json:"type"`

	DeviceID string `json:"device_id,omitempty"`
	TeamKey  string `json:"team_key,omitempty"`

	Members   []models.TeamMember          `json:"members,omitempty"`
	PointID   string                       `json:"point_id,omitempty"`
	Votes     []models.TaskVote            `json:"votes,omitempty"`
	Consensus *bool                        `json:"consensus,omitempty"`
	Conflict  *bool                        `json:"conflict,omitempty"`
	Message   *models.ChatMessage          `json:"message,omitempty"`
	Locations []models.GlobalLocationEntry `json:"locations,omitempty"`
	Code      string                       `json:"code,omitempty"`
	Recovered *models.RecoveryCodeData     `json:"recovered,omitempty"`
	Error     string                       `json:"error,omitempty"`
}
