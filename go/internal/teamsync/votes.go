package teamsync

import (
	"context"
	"sort"
	"time"

	"github.com/teamaction/geohunt/go/internal/models"
)

// CastVote records this device's answer for a task: local state first for
// read-your-write feedback, then broadcast for live peers, then an async
// upsert to the durable store as the safety net for late joiners. Errors on
// the durable path are logged, never surfaced; the broadcast path is
// primary for live gameplay. Silent no-op while disconnected.
func (s *Session) CastVote(pointID string, answer models.Answer) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	vote := models.TaskVote{
		DeviceID:  s.deviceID,
		UserName:  s.identity.UserName(),
		PointID:   pointID,
		Answer:    answer,
		Timestamp: s.clock.Now().UnixMilli(),
	}
	gameID, teamKey := s.gameID, s.teamKey
	ch := s.teamCh
	s.mu.Unlock()

	s.handleIncomingVote(vote)
	s.publish(ch, eventVote, "", vote)

	// Deliberately detached from the session lifecycle: a disconnect must
	// not cancel an in-flight write, and upserts keep stragglers safe.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.voteStore.UpsertVote(ctx, gameID, teamKey, vote); err != nil {
			s.log.Warn().Err(err).
				Str("point_id", pointID).
				Msg("vote persistence failed, broadcast path remains authoritative")
		}
	}()
}

func (s *Session) onVote(data []byte) {
	_, vote, err := decodeEnvelope[models.TaskVote](data)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad vote payload")
		return
	}
	s.handleIncomingVote(vote)
}

// handleIncomingVote is the single acceptance path for local, broadcast,
// and replayed votes. A vote is accepted only if its timestamp is not older
// than the last accepted timestamp from the same device for the same task.
// The monotonicity check is per-device, deliberately not global, so clock
// skew across devices never rejects a legitimate vote. On acceptance the
// vote replaces that device's prior vote for the task and bumps the
// member's liveness (voting implies presence).
func (s *Session) handleIncomingVote(vote models.TaskVote) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	byDevice, ok := s.votes[vote.PointID]
	if !ok {
		byDevice = make(map[string]models.TaskVote)
		s.votes[vote.PointID] = byDevice
	}
	if cur, ok := byDevice[vote.DeviceID]; ok {
		if vote.Timestamp < cur.Timestamp {
			s.mu.Unlock()
			s.log.Warn().
				Str("point_id", vote.PointID).
				Str("device_id", vote.DeviceID).
				Int64("stale_ts", vote.Timestamp).
				Int64("accepted_ts", cur.Timestamp).
				Msg("stale vote rejected")
			return
		}
		if vote.Timestamp == cur.Timestamp && vote.Answer.Equal(cur.Answer) {
			// Echo of a vote already applied; no state change, no fan-out.
			s.mu.Unlock()
			return
		}
	}
	byDevice[vote.DeviceID] = vote

	if m, ok := s.members[vote.DeviceID]; ok {
		if vote.Timestamp > m.LastSeen {
			m.LastSeen = vote.Timestamp
		}
	} else {
		s.members[vote.DeviceID] = &models.TeamMember{
			DeviceID: vote.DeviceID,
			UserName: vote.UserName,
			LastSeen: vote.Timestamp,
		}
	}
	s.memberNotify.Fire()

	snapshot := s.votesForTaskLocked(vote.PointID)
	fns := make([]func([]models.TaskVote), 0)
	for _, sub := range s.voteSubs {
		if sub.pointID == "" || sub.pointID == vote.PointID {
			fns = append(fns, sub.fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// SubscribeVotes registers a vote callback for one task (or every task when
// pointID is empty). It fires immediately with the current state, then on
// each accepted vote affecting it. An unfiltered subscription fires once per
// task already holding votes, so votes replayed from the durable store
// before the subscribe (a reconnecting device's history) reach the
// subscriber without waiting for fresh activity. Returns an unsubscribe
// func.
func (s *Session) SubscribeVotes(pointID string, fn func([]models.TaskVote)) func() {
	s.mu.Lock()
	if s.voteSubs == nil {
		s.voteSubs = make(map[int]voteSub)
	}
	s.subSeq++
	id := s.subSeq
	s.voteSubs[id] = voteSub{pointID: pointID, fn: fn}
	var snapshots [][]models.TaskVote
	if pointID == "" {
		ids := make([]string, 0, len(s.votes))
		for taskID, byDevice := range s.votes {
			if len(byDevice) > 0 {
				ids = append(ids, taskID)
			}
		}
		sort.Strings(ids)
		for _, taskID := range ids {
			snapshots = append(snapshots, s.votesForTaskLocked(taskID))
		}
	} else {
		snapshots = append(snapshots, s.votesForTaskLocked(pointID))
	}
	s.mu.Unlock()

	for _, snapshot := range snapshots {
		fn(snapshot)
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.voteSubs, id)
	}
}

// VotesForTask returns the current votes for a task, empty if none.
func (s *Session) VotesForTask(pointID string) []models.TaskVote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.votesForTaskLocked(pointID)
}

func (s *Session) votesForTaskLocked(pointID string) []models.TaskVote {
	byDevice := s.votes[pointID]
	out := make([]models.TaskVote, 0, len(byDevice))
	for _, v := range byDevice {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}
