package models

// DeviceType is a coarse, informational device class reported by clients.
type DeviceType string

const (
	DeviceTypeMobile  DeviceType = "mobile"
	DeviceTypeTablet  DeviceType = "tablet"
	DeviceTypeDesktop DeviceType = "desktop"
)

// TeamMember is the live presence record for one device on a team.
// LastSeen is wall-clock milliseconds; a member counts as active only while
// now-LastSeen stays inside the liveness window.
type TeamMember struct {
	DeviceID   string     `json:"device_id"`
	UserName   string     `json:"user_name"`
	LastSeen   int64      `json:"last_seen"`
	Location   *LatLng    `json:"location,omitempty"`
	IsSolving  bool       `json:"is_solving,omitempty"`
	IsRetired  bool       `json:"is_retired,omitempty"`
	DeviceType DeviceType `json:"device_type,omitempty"`
}
