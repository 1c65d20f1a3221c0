// Package teamsync is the real-time synchronization core for a running
// hunt: device presence and heartbeats, collaborative per-task voting with
// consensus detection, captain admin commands, cross-team location, chat,
// and identity recovery. One Session exists per device per game join, with
// an explicit Connect/Disconnect lifecycle.
//
// Every device's local state is a read replica under eventual consistency.
// The only ordering defenses are the per-device monotonic vote timestamp
// check and chat dedup by message id; there are no sequence numbers and no
// distributed locks.
package teamsync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/teamaction/geohunt/go/internal/broadcast"
	"github.com/teamaction/geohunt/go/internal/identity"
	"github.com/teamaction/geohunt/go/internal/models"
	"github.com/teamaction/geohunt/go/internal/teamstore"
)

// Config holds the session's timing and throttling parameters.
type Config struct {
	HeartbeatInterval time.Duration // presence cadence
	LivenessWindow    time.Duration // member considered active within this window
	SweepInterval     time.Duration // roster/location re-evaluation cadence
	NotifyDebounce    time.Duration // roster notify coalescing window
	LocationMinMoveM  float64       // meters before a location counts as moved
	LocationResendAge time.Duration // max silence before a location is re-sent
	GlobalStaleAfter  time.Duration // other-team entries older than this are dropped
	RecoveryCodeTTL   time.Duration // server-side recovery code lifetime
}

// DefaultConfig returns the production timing parameters.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 10 * time.Second,
		LivenessWindow:    60 * time.Second,
		SweepInterval:     15 * time.Second,
		NotifyDebounce:    100 * time.Millisecond,
		LocationMinMoveM:  2,
		LocationResendAge: 20 * time.Second,
		GlobalStaleAfter:  120 * time.Second,
		RecoveryCodeTTL:   10 * time.Minute,
	}
}

type voteSub struct {
	pointID string // empty = all tasks
	fn      func([]models.TaskVote)
}

// Session coordinates one device's view of its team. All public methods are
// safe for concurrent use. Mutating methods apply local state synchronously
// for immediate feedback, then fan out over broadcast and, where durability
// matters, persist to the row store. Transport and durability failures are
// logged and swallowed: a temporarily stale session beats a crashed one.
type Session struct {
	cfg           Config
	bus           broadcast.Bus
	voteStore     VoteStore
	teamStore     TeamStore
	recoveryStore RecoveryStore
	identity      *identity.Store
	clock         clockwork.Clock
	log           zerolog.Logger

	mu        sync.Mutex
	connected bool
	gameID    string
	teamName  string
	teamKey   string
	deviceID  string
	captainID string

	teamCh   broadcast.Channel
	globalCh broadcast.Channel
	feedStop func()
	stopCh   chan struct{}
	wg       sync.WaitGroup

	members map[string]*models.TeamMember
	votes   map[string]map[string]models.TaskVote // pointID -> deviceID -> vote
	seen    map[string]struct{}                   // chat dedup
	others  map[string]models.GlobalLocationEntry

	isSolving     bool
	lastLoc       *models.LatLng
	lastSentLoc   *models.LatLng
	lastLocSentAt time.Time
	locDirty      bool

	subSeq     int
	memberSubs map[int]func([]models.TeamMember)
	voteSubs   map[int]voteSub
	chatSubs   map[int]func(models.ChatMessage)
	locSubs    map[int]func([]models.GlobalLocationEntry)

	memberNotify  *trigger
	lastRosterSig uint64
}

// NewSession builds a session over the given transport and stores. The
// session is idle until Connect.
func NewSession(cfg Config, bus broadcast.Bus, votes VoteStore, teams TeamStore, recovery RecoveryStore, id *identity.Store) *Session {
	return &Session{
		cfg:           cfg,
		bus:           bus,
		voteStore:     votes,
		teamStore:     teams,
		recoveryStore: recovery,
		identity:      id,
		clock:         clockwork.NewRealClock(),
		log:           log.With().Str("component", "teamsync").Logger(),
	}
}

// Connect joins a game and team. It is an idempotent re-entry point: any
// prior session is disconnected first. The durable vote change feed is
// subscribed before the initial vote load so no committed vote can fall in
// the gap between them.
func (s *Session) Connect(ctx context.Context, gameID, teamName, userName string) error {
	s.Disconnect()

	if userName != "" {
		s.identity.SetUserName(userName)
	}
	deviceID := s.identity.DeviceID()
	teamKey := broadcast.SanitizeTeamKey(teamName)

	captainID := ""
	team, err := s.teamStore.EnsureTeam(ctx, gameID, teamName, teamKey, deviceID)
	switch {
	case errors.Is(err, teamstore.ErrTeamKeyCollision):
		return err
	case err != nil:
		// Degrade: without the team row there is no authoritative captain.
		// Admin commands are dropped until refreshCaptain heals the gap.
		s.log.Warn().Err(err).Str("game_id", gameID).Str("team_key", teamKey).
			Msg("team row unavailable, captaincy unknown")
	default:
		captainID = team.CaptainDeviceID
	}

	teamCh := s.bus.Channel(broadcast.TeamChannel(gameID, teamKey))
	teamCh.On(eventPresence, s.onPresence)
	teamCh.On(eventVote, s.onVote)
	teamCh.On(eventAdmin, s.onAdmin)

	globalCh := s.bus.Channel(broadcast.GlobalChannel(gameID))
	globalCh.On(eventChat, s.onChat)
	globalCh.On(eventLocation, s.onLocation)

	if err := teamCh.Subscribe(); err != nil {
		s.log.Warn().Err(err).Msg("team channel subscribe failed, presence degraded")
	}
	if err := globalCh.Subscribe(); err != nil {
		s.log.Warn().Err(err).Msg("global channel subscribe failed, chat degraded")
	}

	s.mu.Lock()
	s.connected = true
	s.gameID = gameID
	s.teamName = teamName
	s.teamKey = teamKey
	s.deviceID = deviceID
	s.captainID = captainID
	s.teamCh = teamCh
	s.globalCh = globalCh
	s.stopCh = make(chan struct{})
	s.members = make(map[string]*models.TeamMember)
	s.votes = make(map[string]map[string]models.TaskVote)
	s.seen = make(map[string]struct{})
	s.others = make(map[string]models.GlobalLocationEntry)
	s.isSolving = false
	s.lastLoc = nil
	s.lastSentLoc = nil
	s.lastLocSentAt = time.Time{}
	s.locDirty = false
	s.lastRosterSig = 0
	if s.memberSubs == nil {
		s.memberSubs = make(map[int]func([]models.TeamMember))
		s.voteSubs = make(map[int]voteSub)
		s.chatSubs = make(map[int]func(models.ChatMessage))
		s.locSubs = make(map[int]func([]models.GlobalLocationEntry))
	}
	s.memberNotify = newTrigger(s.clock, s.cfg.NotifyDebounce, s.emitMembers)
	s.mu.Unlock()

	s.replayDurableVotes(ctx, gameID, teamKey)

	s.wg.Add(2)
	go s.heartbeatLoop()
	go s.sweepLoop()

	s.SendPresence(true)

	s.log.Info().
		Str("game_id", gameID).
		Str("team_key", teamKey).
		Str("device_id", deviceID).
		Msg("session connected")
	return nil
}

// replayDurableVotes wires the change feed, then loads and replays the
// existing vote rows through the same acceptance path live votes take.
func (s *Session) replayDurableVotes(ctx context.Context, gameID, teamKey string) {
	feed, cancel, err := s.voteStore.SubscribeVotes(ctx, gameID, teamKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("vote change feed unavailable, durable replay skipped")
	} else {
		s.mu.Lock()
		s.feedStop = cancel
		stopCh := s.stopCh
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case v, ok := <-feed:
					if !ok {
						return
					}
					s.handleIncomingVote(v)
				case <-stopCh:
					return
				}
			}
		}()
	}

	rows, err := s.voteStore.ListVotes(ctx, gameID, teamKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("durable vote load failed")
		return
	}
	for _, v := range rows {
		s.handleIncomingVote(v)
	}
}

// Disconnect tears the session down. Safe to call when idle. In-flight
// persistence writes are not cancelled; upsert semantics keep stragglers
// harmless.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	s.connected = false
	teamCh, globalCh := s.teamCh, s.globalCh
	feedStop := s.feedStop
	stopCh := s.stopCh
	notify := s.memberNotify
	s.teamCh = nil
	s.globalCh = nil
	s.feedStop = nil
	s.mu.Unlock()

	close(stopCh)
	if notify != nil {
		notify.Stop()
	}
	if teamCh != nil {
		teamCh.Unsubscribe()
	}
	if globalCh != nil {
		globalCh.Unsubscribe()
	}
	if feedStop != nil {
		feedStop()
	}
	s.wg.Wait()

	s.log.Info().Msg("session disconnected")
}

// Connected reports whether the session currently holds a game/team.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// DeviceID returns the device identity this session operates under.
func (s *Session) DeviceID() string {
	return s.identity.DeviceID()
}

// TeamKey returns the sanitized team join key, empty when idle.
func (s *Session) TeamKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teamKey
}

func (s *Session) heartbeatLoop() {
	defer s.wg.Done()
	s.mu.Lock()
	stopCh := s.stopCh
	s.mu.Unlock()

	ticker := s.clock.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			s.SendPresence(false)
		case <-stopCh:
			return
		}
	}
}

// sweepLoop periodically re-evaluates liveness so members past the window
// drop off rosters even when no new event arrives, and prunes stale
// other-team locations the same way.
func (s *Session) sweepLoop() {
	defer s.wg.Done()
	s.mu.Lock()
	stopCh := s.stopCh
	notify := s.memberNotify
	s.mu.Unlock()

	ticker := s.clock.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			notify.Fire()
			s.pruneStaleOthers()
		case <-stopCh:
			return
		}
	}
}

// publish wraps payload in an envelope and sends it. Send failures are
// absorbed: the heartbeat cadence self-heals transient transport loss.
func (s *Session) publish(ch broadcast.Channel, event string, typ EventType, payload any) {
	if ch == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("marshal broadcast payload")
		return
	}
	env := Envelope{
		ID:        uuid.NewString(),
		Type:      typ,
		Sender:    s.DeviceID(),
		Timestamp: s.clock.Now(),
		Payload:   raw,
	}
	if err := ch.Send(event, env); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("broadcast send failed")
	}
}

func decodeEnvelope[T any](data []byte) (Envelope, T, error) {
	var env Envelope
	var payload T
	if err := json.Unmarshal(data, &env); err != nil {
		return env, payload, err
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return env, payload, err
	}
	return env, payload, nil
}
