package models

// TaskVote is one device's current answer for one task. Timestamp is the
// voting client's wall clock in milliseconds; it orders votes from the same
// device only, never across devices.
type TaskVote struct {
	DeviceID  string `json:"device_id"`
	UserName  string `json:"user_name"`
	PointID   string `json:"point_id"`
	Answer    Answer `json:"answer"`
	Timestamp int64  `json:"timestamp"`
}
