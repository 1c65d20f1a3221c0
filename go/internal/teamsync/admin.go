package teamsync

import (
	"context"
	"fmt"
	"time"
)

// Captain admin commands fan out over the team channel and every recipient
// applies them to its own roster mirror; nobody mutates another device's
// state directly. The session enforces captaincy on both ends: outgoing
// commands from a non-captain are refused, and incoming commands whose
// sender does not match the authoritative captain id are dropped.

// RetirePlayer disables a member from voting and scoring. Captain only.
func (s *Session) RetirePlayer(deviceID string) {
	s.sendAdmin(EventTypeRetire, AdminPayload{TargetDeviceID: deviceID})
}

// UnretirePlayer re-enables a retired member. Captain only.
func (s *Session) UnretirePlayer(deviceID string) {
	s.sendAdmin(EventTypeUnretire, AdminPayload{TargetDeviceID: deviceID})
}

// RemovePlayer drops a member from every recipient's roster mirror.
// Captain only.
func (s *Session) RemovePlayer(deviceID string) {
	s.sendAdmin(EventTypeMemberRemoved, AdminPayload{TargetDeviceID: deviceID})
}

// TransferCaptaincy records the new captain in the team store (the source
// of truth) and then broadcasts the change as a low-latency notification.
// Captain only; unlike the fire-and-forget commands this returns an error,
// because a failed store write means captaincy did NOT change.
func (s *Session) TransferCaptaincy(ctx context.Context, newCaptainID string) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.deviceID != s.captainID {
		s.mu.Unlock()
		return fmt.Errorf("transfer captaincy: device is not the captain")
	}
	gameID, teamKey := s.gameID, s.teamKey
	s.mu.Unlock()

	if err := s.teamStore.SetCaptain(ctx, gameID, teamKey, newCaptainID); err != nil {
		return fmt.Errorf("persist captain change: %w", err)
	}

	s.sendAdmin(EventTypeCaptainChange, AdminPayload{NewCaptainID: newCaptainID})
	return nil
}

// AnnounceMemberAdded is an informational broadcast from a joining device;
// recipients only log it, the joiner's own heartbeats carry the real state.
func (s *Session) AnnounceMemberAdded(userName string) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	ch := s.teamCh
	deviceID := s.deviceID
	s.mu.Unlock()
	s.publish(ch, eventAdmin, EventTypeMemberAdded, AdminPayload{TargetDeviceID: deviceID, UserName: userName})
}

func (s *Session) sendAdmin(typ EventType, payload AdminPayload) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	if s.deviceID != s.captainID {
		s.mu.Unlock()
		s.log.Warn().Str("type", string(typ)).Msg("admin command denied, not captain")
		return
	}
	ch := s.teamCh
	s.mu.Unlock()

	// Apply locally first; the self-echo re-applies idempotently.
	s.applyAdmin(typ, s.DeviceID(), payload)
	s.publish(ch, eventAdmin, typ, payload)
}

func (s *Session) onAdmin(data []byte) {
	env, payload, err := decodeEnvelope[AdminPayload](data)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad admin payload")
		return
	}
	if env.Type != EventTypeMemberAdded && s.Captain() == "" {
		s.refreshCaptain()
	}
	s.applyAdmin(env.Type, env.Sender, payload)
}

// refreshCaptain re-reads the authoritative captain from the team store.
// A connect that could not load the team row leaves captaincy unknown and
// every command dropped; the first incoming command retries the read so a
// transient store failure does not wedge the session until reconnect.
func (s *Session) refreshCaptain() {
	s.mu.Lock()
	if !s.connected || s.captainID != "" {
		s.mu.Unlock()
		return
	}
	gameID, teamKey := s.gameID, s.teamKey
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	captainID, err := s.teamStore.GetCaptain(ctx, gameID, teamKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("captain refresh failed")
		return
	}

	s.mu.Lock()
	if s.connected && s.captainID == "" && captainID != "" {
		s.captainID = captainID
		s.memberNotify.Fire()
	}
	s.mu.Unlock()
}

// applyAdmin validates the sender against the authoritative captain and
// folds the command into local state. MemberAdded is exempt from the
// captain check: any member may announce itself.
func (s *Session) applyAdmin(typ EventType, sender string, payload AdminPayload) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	if typ != EventTypeMemberAdded && (s.captainID == "" || sender != s.captainID) {
		s.mu.Unlock()
		s.log.Warn().
			Str("type", string(typ)).
			Str("sender", sender).
			Msg("admin command from non-captain dropped")
		return
	}

	var resendPresence, disconnect bool
	switch typ {
	case EventTypeRetire, EventTypeUnretire:
		if m, ok := s.members[payload.TargetDeviceID]; ok {
			m.IsRetired = typ == EventTypeRetire
			s.memberNotify.Fire()
		}
		// The target re-broadcasts its own presence so the flag reaches
		// members that missed the command.
		resendPresence = payload.TargetDeviceID == s.deviceID
	case EventTypeCaptainChange:
		s.captainID = payload.NewCaptainID
		s.memberNotify.Fire()
	case EventTypeMemberRemoved:
		delete(s.members, payload.TargetDeviceID)
		s.memberNotify.Fire()
		disconnect = payload.TargetDeviceID == s.deviceID
	case EventTypeMemberAdded:
		s.log.Info().
			Str("device_id", payload.TargetDeviceID).
			Str("user_name", payload.UserName).
			Msg("member joined team")
	default:
		s.log.Warn().Str("type", string(typ)).Msg("unknown admin command")
	}
	s.mu.Unlock()

	if resendPresence {
		s.SendPresence(true)
	}
	if disconnect {
		// This device was removed; leave the team.
		go s.Disconnect()
	}
}

// Captain returns the authoritative captain device id as this session last
// observed it.
func (s *Session) Captain() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captainID
}

// IsCaptain reports whether this device currently holds captaincy.
func (s *Session) IsCaptain() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected && s.deviceID == s.captainID
}
