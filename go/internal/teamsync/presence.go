package teamsync

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/teamaction/geohunt/go/internal/models"
)

// SendPresence broadcasts a heartbeat for this device. The heartbeat always
// carries identity and liveness; a location rides along only when it has
// moved at least LocationMinMoveM since the last sent point, when the last
// location send is older than LocationResendAge, or when force is set.
// Silent no-op while disconnected.
func (s *Session) SendPresence(force bool) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()

	payload := presencePayload{
		DeviceID:   s.deviceID,
		UserName:   s.identity.UserName(),
		LastSeen:   now.UnixMilli(),
		IsSolving:  s.isSolving,
		DeviceType: s.identity.DeviceType(),
	}
	if self, ok := s.members[s.deviceID]; ok {
		payload.IsRetired = self.IsRetired
	}
	if s.lastLoc != nil && (force || s.locDirty || now.Sub(s.lastLocSentAt) >= s.cfg.LocationResendAge) {
		loc := *s.lastLoc
		payload.Location = &loc
		sent := loc
		s.lastSentLoc = &sent
		s.lastLocSentAt = now
		s.locDirty = false
	}

	s.mergeMemberLocked(payload)
	ch := s.teamCh
	s.mu.Unlock()

	s.publish(ch, eventPresence, "", payload)
}

// UpdateLocation records the device's latest position. It never transmits
// by itself; the next heartbeat carries the location if it moved at least
// LocationMinMoveM from the last sent point.
func (s *Session) UpdateLocation(coord models.LatLng) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := coord.Coarsen()
	s.lastLoc = &c
	if s.lastSentLoc == nil || c.DistanceM(*s.lastSentLoc) >= s.cfg.LocationMinMoveM {
		s.locDirty = true
	}
}

// SetSolving flags whether this device is currently viewing a task. The
// flag propagates on the next presence send, which is issued immediately.
func (s *Session) SetSolving(solving bool) {
	s.mu.Lock()
	s.isSolving = solving
	s.mu.Unlock()
	s.SendPresence(false)
}

// SubscribeMembers registers a roster callback. It fires immediately with
// the current active roster, then on every coalesced change whose composite
// signature actually differs. Returns an unsubscribe func.
func (s *Session) SubscribeMembers(fn func([]models.TeamMember)) func() {
	s.mu.Lock()
	if s.memberSubs == nil {
		s.memberSubs = make(map[int]func([]models.TeamMember))
	}
	s.subSeq++
	id := s.subSeq
	s.memberSubs[id] = fn
	snapshot := s.activeMembersLocked()
	s.mu.Unlock()

	fn(snapshot)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.memberSubs, id)
	}
}

// GetAllMembers returns the raw roster snapshot, retired and offline
// members included, for admin views that must show everyone.
func (s *Session) GetAllMembers() []models.TeamMember {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TeamMember, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

func (s *Session) onPresence(data []byte) {
	_, m, err := decodeEnvelope[presencePayload](data)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad presence payload")
		return
	}
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	s.mergeMemberLocked(m)
	s.mu.Unlock()
}

// mergeMemberLocked folds a presence record into the roster mirror.
// LastSeen only moves forward; a missing location keeps the last known one.
func (s *Session) mergeMemberLocked(m models.TeamMember) {
	existing, ok := s.members[m.DeviceID]
	if !ok {
		copied := m
		s.members[m.DeviceID] = &copied
		s.memberNotify.Fire()
		return
	}
	existing.UserName = m.UserName
	existing.IsSolving = m.IsSolving
	existing.IsRetired = m.IsRetired
	if m.DeviceType != "" {
		existing.DeviceType = m.DeviceType
	}
	if m.LastSeen > existing.LastSeen {
		existing.LastSeen = m.LastSeen
	}
	if m.Location != nil {
		existing.Location = m.Location
	}
	s.memberNotify.Fire()
}

// activeMembersLocked filters the roster to members inside the liveness
// window, sorted by device id for stable output.
func (s *Session) activeMembersLocked() []models.TeamMember {
	cutoff := s.clock.Now().UnixMilli() - s.cfg.LivenessWindow.Milliseconds()
	out := make([]models.TeamMember, 0, len(s.members))
	for _, m := range s.members {
		if m.LastSeen > cutoff {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// emitMembers is the debounced roster notifier. A no-op heartbeat that
// leaves the composite signature unchanged does not re-fire subscribers.
func (s *Session) emitMembers() {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	roster := s.activeMembersLocked()
	sig := rosterSignature(roster)
	if sig == s.lastRosterSig {
		s.mu.Unlock()
		return
	}
	s.lastRosterSig = sig
	fns := make([]func([]models.TeamMember), 0, len(s.memberSubs))
	for _, fn := range s.memberSubs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(roster)
	}
}

// rosterSignature hashes the fields a roster consumer can observe change:
// device id, last seen, solving, retired.
func rosterSignature(roster []models.TeamMember) uint64 {
	h := fnv.New64a()
	for _, m := range roster {
		fmt.Fprintf(h, "%s|%d|%t|%t;", m.DeviceID, m.LastSeen, m.IsSolving, m.IsRetired)
	}
	return h.Sum64()
}
