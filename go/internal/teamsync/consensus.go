package teamsync

import "github.com/teamaction/geohunt/go/internal/models"

// Consensus reports whether a vote snapshot is non-empty and every vote's
// normalized answer agrees. It is a pure function of the snapshot; the
// ledger never caches it, callers recompute on each change.
func Consensus(votes []models.TaskVote) bool {
	if len(votes) == 0 {
		return false
	}
	first := votes[0].Answer.Normalize()
	for _, v := range votes[1:] {
		if v.Answer.Normalize() != first {
			return false
		}
	}
	return true
}

// Conflict reports whether two or more votes exist without consensus.
func Conflict(votes []models.TaskVote) bool {
	return len(votes) >= 2 && !Consensus(votes)
}
