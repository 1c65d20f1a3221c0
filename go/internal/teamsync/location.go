package teamsync

import (
	"sort"

	"github.com/teamaction/geohunt/go/internal/models"
)

// BroadcastGlobalLocation publishes this team's coarse position to every
// other team in the game. Captain-only: non-captain calls are dropped with
// a warning. The caller owns the cadence (typically every 10s while team
// visibility is enabled); the relay does not schedule sends.
func (s *Session) BroadcastGlobalLocation(name string, loc models.LatLng, photoURL *string) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	if s.deviceID != s.captainID {
		s.mu.Unlock()
		s.log.Warn().Str("device_id", s.DeviceID()).Msg("global location send denied, not captain")
		return
	}
	entry := models.GlobalLocationEntry{
		TeamID:    s.teamKey,
		Name:      name,
		Location:  loc.Coarsen(),
		PhotoURL:  photoURL,
		Timestamp: s.clock.Now().UnixMilli(),
	}
	ch := s.globalCh
	s.mu.Unlock()

	s.publish(ch, eventLocation, "", entry)
}

func (s *Session) onLocation(data []byte) {
	_, entry, err := decodeEnvelope[models.GlobalLocationEntry](data)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad location payload")
		return
	}
	s.mu.Lock()
	if !s.connected || entry.TeamID == s.teamKey {
		s.mu.Unlock()
		return
	}
	s.others[entry.TeamID] = entry
	snapshot := s.activeOthersLocked()
	fns := s.locSubFnsLocked()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// SubscribeGlobalLocations registers a callback receiving the other teams'
// last-known locations, entries older than GlobalStaleAfter excluded. It
// fires immediately with the current view, then on each incoming update and
// on the periodic sweep. Returns an unsubscribe func.
func (s *Session) SubscribeGlobalLocations(fn func([]models.GlobalLocationEntry)) func() {
	s.mu.Lock()
	if s.locSubs == nil {
		s.locSubs = make(map[int]func([]models.GlobalLocationEntry))
	}
	s.subSeq++
	id := s.subSeq
	s.locSubs[id] = fn
	snapshot := s.activeOthersLocked()
	s.mu.Unlock()

	fn(snapshot)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.locSubs, id)
	}
}

// activeOthersLocked drops entries past the staleness window from both the
// returned view and the cache. Expiry is primarily read-triggered; the
// sweep loop covers the case where no team ever broadcasts again.
func (s *Session) activeOthersLocked() []models.GlobalLocationEntry {
	cutoff := s.clock.Now().UnixMilli() - s.cfg.GlobalStaleAfter.Milliseconds()
	out := make([]models.GlobalLocationEntry, 0, len(s.others))
	for id, e := range s.others {
		if e.Timestamp <= cutoff {
			delete(s.others, id)
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out
}

func (s *Session) locSubFnsLocked() []func([]models.GlobalLocationEntry) {
	fns := make([]func([]models.GlobalLocationEntry), 0, len(s.locSubs))
	for _, fn := range s.locSubs {
		fns = append(fns, fn)
	}
	return fns
}

// pruneStaleOthers re-evaluates staleness on the sweep cadence and notifies
// subscribers only when an entry actually expired.
func (s *Session) pruneStaleOthers() {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	before := len(s.others)
	snapshot := s.activeOthersLocked()
	changed := len(s.others) != before
	fns := s.locSubFnsLocked()
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range fns {
		fn(snapshot)
	}
}
