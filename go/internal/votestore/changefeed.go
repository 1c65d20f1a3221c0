package votestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/teamaction/geohunt/go/internal/models"
)

// voteNotifyChannel is the Postgres NOTIFY channel the task_votes trigger
// publishes post-commit row snapshots on (see go/sql/schema.sql).
const voteNotifyChannel = "task_votes_changed"

// voteNotification mirrors the trigger's row_to_json payload.
type voteNotification struct {
	GameID   string          `json:"game_id"`
	TeamKey  string          `json:"team_key"`
	PointID  string          `json:"point_id"`
	DeviceID string          `json:"device_id"`
	UserName string          `json:"user_name"`
	Answer   json.RawMessage `json:"answer"`
	VoteTS   int64           `json:"vote_ts"`
}

// SubscribeVotes opens the change feed filtered to one team. The LISTEN is
// confirmed live before this returns, so a caller that loads existing rows
// afterwards cannot miss a vote committed in between. The returned cancel
// func closes the feed and its channel.
func (r *Repository) SubscribeVotes(ctx context.Context, gameID, teamKey string) (<-chan models.TaskVote, func(), error) {
	listener := pq.NewListener(r.dsn, 2*time.Second, time.Minute,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				log.Warn().Err(err).Int("event", int(event)).Msg("vote feed listener event")
			}
		})
	if err := listener.Listen(voteNotifyChannel); err != nil {
		listener.Close()
		return nil, nil, fmt.Errorf("listen %s: %w", voteNotifyChannel, err)
	}

	out := make(chan models.TaskVote, 64)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil {
					// Reconnect marker; deliveries may have been dropped
					// while the connection was down. The broadcast path
					// covers the gap for live peers.
					log.Warn().Msg("vote feed reconnected, possible missed notifications")
					continue
				}
				vote, ok := parseVoteNotification(n.Extra, gameID, teamKey)
				if !ok {
					continue
				}
				select {
				case out <- vote:
				case <-done:
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		close(done)
		if err := listener.Close(); err != nil {
			log.Warn().Err(err).Msg("close vote feed listener")
		}
	}
	return out, cancel, nil
}

// parseVoteNotification decodes one NOTIFY payload and applies the
// (game, team) column filter.
func parseVoteNotification(payload, gameID, teamKey string) (models.TaskVote, bool) {
	var n voteNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		log.Warn().Err(err).Msg("bad vote feed payload")
		return models.TaskVote{}, false
	}
	if n.GameID != gameID || n.TeamKey != teamKey {
		return models.TaskVote{}, false
	}
	vote := models.TaskVote{
		PointID:   n.PointID,
		DeviceID:  n.DeviceID,
		UserName:  n.UserName,
		Timestamp: n.VoteTS,
	}
	if len(n.Answer) > 0 {
		if err := json.Unmarshal(n.Answer, &vote.Answer); err != nil {
			log.Warn().Err(err).Msg("bad answer in vote feed payload")
			return models.TaskVote{}, false
		}
	}
	return vote, true
}
