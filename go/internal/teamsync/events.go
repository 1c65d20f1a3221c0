package teamsync

import (
	"encoding/json"
	"time"

	"github.com/teamaction/geohunt/go/internal/models"
)

// Channel event names. Each name is one subject on the underlying bus.
const (
	eventPresence = "presence"
	eventVote     = "vote"
	eventAdmin    = "admin"
	eventChat     = "chat"
	eventLocation = "location"
)

// EventType narrows the admin event stream.
type EventType string

const (
	EventTypeRetire        EventType = "RetirePlayer"
	EventTypeUnretire      EventType = "UnretirePlayer"
	EventTypeCaptainChange EventType = "CaptainChanged"
	EventTypeMemberRemoved EventType = "MemberRemoved"
	EventTypeMemberAdded   EventType = "MemberAdded"
)

// Envelope is the wire frame for every broadcast the session sends. Sender
// is the publishing device id; admin recipients check it against the
// authoritative captain before applying the command.
type Envelope struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type,omitempty"`
	Sender    string          `json:"sender"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// AdminPayload carries captain control commands. TargetDeviceID names the
// member being retired/unretired/removed; NewCaptainID is set only for
// captaincy transfers.
type AdminPayload struct {
	TargetDeviceID string `json:"target_device_id,omitempty"`
	NewCaptainID   string `json:"new_captain_id,omitempty"`
	UserName       string `json:"user_name,omitempty"`
}

// presencePayload is the heartbeat body; it is a TeamMember snapshot whose
// Location is present only when the throttle admits a location send.
type presencePayload = models.TeamMember
