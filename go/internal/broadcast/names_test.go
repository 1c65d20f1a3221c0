package broadcast

import "testing"

func TestSanitizeTeamKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Red Team!", "Red_Team_"},
		{"Red Team?", "Red_Team_"},
		{"Alpha123", "Alpha123"},
		{"über-cool", "_ber_cool"},
		{"", ""},
		{"a b\tc", "a_b_c"},
	}
	for _, tt := range tests {
		if got := SanitizeTeamKey(tt.in); got != tt.want {
			t.Errorf("SanitizeTeamKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChannelNames(t *testing.T) {
	if got := TeamChannel("g1", "Red_Team"); got != "game_g1_team_Red_Team" {
		t.Errorf("TeamChannel = %q", got)
	}
	if got := GlobalChannel("g1"); got != "game_g1_global" {
		t.Errorf("GlobalChannel = %q", got)
	}
}
