package teamsync

import (
	"fmt"

	"github.com/teamaction/geohunt/go/internal/models"
)

// SendChatMessage sends an instructor-authored message on the game-global
// channel. A nil targetTeamKey broadcasts to every team; otherwise only the
// named team surfaces it. Silent no-op while disconnected.
func (s *Session) SendChatMessage(targetTeamKey *string, message string, urgent bool) {
	s.sendChat(targetTeamKey, message, "Instructor", urgent)
}

// SendTeamChatMessage sends a team-authored message labeled
// "<TeamName>: <UserName>". Silent no-op while disconnected.
func (s *Session) SendTeamChatMessage(message string) {
	s.mu.Lock()
	sender := fmt.Sprintf("%s: %s", s.teamName, s.identity.UserName())
	s.mu.Unlock()
	s.sendChat(nil, message, sender, false)
}

func (s *Session) sendChat(targetTeamKey *string, message, sender string, urgent bool) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	ts := s.clock.Now().UnixMilli()
	msg := models.ChatMessage{
		ID:           models.ChatMessageID(ts, s.deviceID),
		GameID:       s.gameID,
		TargetTeamID: targetTeamKey,
		Message:      message,
		Sender:       sender,
		Timestamp:    ts,
		IsUrgent:     urgent,
	}
	ch := s.globalCh
	s.mu.Unlock()

	// Local apply first; the self-echo from the channel dedups against it.
	s.handleIncomingChat(msg)
	s.publish(ch, eventChat, "", msg)
}

func (s *Session) onChat(data []byte) {
	_, msg, err := decodeEnvelope[models.ChatMessage](data)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad chat payload")
		return
	}
	s.handleIncomingChat(msg)
}

// handleIncomingChat admits each message id exactly once, in arrival order.
// A message can legitimately arrive more than once (self-echo plus parallel
// channel delivery is a deliberate redundancy strategy); dedup by id is the
// correctness mechanism that makes that safe.
func (s *Session) handleIncomingChat(msg models.ChatMessage) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	if _, dup := s.seen[msg.ID]; dup {
		s.mu.Unlock()
		return
	}
	s.seen[msg.ID] = struct{}{}
	if msg.TargetTeamID != nil && *msg.TargetTeamID != s.teamKey && !msg.IsFrom(s.deviceID) {
		// Addressed to another team; id stays marked so a re-delivery
		// cannot sneak it in later.
		s.mu.Unlock()
		return
	}
	fns := make([]func(models.ChatMessage), 0, len(s.chatSubs))
	for _, fn := range s.chatSubs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

// SubscribeChat registers a callback fired once per accepted (post-dedup)
// message, in arrival order. There is no sequence number; two out-of-order
// deliveries are not reconciled. Returns an unsubscribe func.
func (s *Session) SubscribeChat(fn func(models.ChatMessage)) func() {
	s.mu.Lock()
	if s.chatSubs == nil {
		s.chatSubs = make(map[int]func(models.ChatMessage))
	}
	s.subSeq++
	id := s.subSeq
	s.chatSubs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.chatSubs, id)
	}
}
