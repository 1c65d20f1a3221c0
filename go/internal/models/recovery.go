package models

// RecoveryCodeData is the identity snapshot stored behind a recovery code.
// Redeeming it transplants this identity onto a new browser, carrying the
// device's vote and scoring history along.
type RecoveryCodeData struct {
	GameID    string  `json:"game_id"`
	TeamName  string  `json:"team_name"`
	DeviceID  string  `json:"device_id"`
	UserName  string  `json:"user_name"`
	UserPhoto *string `json:"user_photo,omitempty"`
}
