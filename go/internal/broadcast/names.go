package broadcast

import "fmt"

// SanitizeTeamKey derives the channel-safe join key from a team display
// name: every non-alphanumeric rune becomes an underscore. The mapping is
// lossy ("Red Team!" and "Red Team?" both become "Red_Team_"), so callers
// that mint teams must reject key collisions within a game.
func SanitizeTeamKey(teamName string) string {
	out := make([]rune, 0, len(teamName))
	for _, r := range teamName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// TeamChannel names the per-team channel carrying presence, votes, and
// admin commands.
func TeamChannel(gameID, teamKey string) string {
	return fmt.Sprintf("game_%s_team_%s", gameID, teamKey)
}

// GlobalChannel names the per-game channel carrying chat and cross-team
// location.
func GlobalChannel(gameID string) string {
	return fmt.Sprintf("game_%s_global", gameID)
}
