// Package gateway bridges browser WebSocket clients onto sync sessions.
// Each connection owns one session; client commands map onto the session's
// surface and subscription pushes flow back as JSON frames.
package gateway

import (
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/teamaction/geohunt/go/internal/broadcast"
	"github.com/teamaction/geohunt/go/internal/identity"
	"github.com/teamaction/geohunt/go/internal/teamsync"
)

// ConnectionConfig holds WebSocket tuning for device connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  8192,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// Gateway manages device WebSocket connections. Identity files live under
// dataDir, one per device token, playing the role local storage plays in a
// browser-only deployment.
type Gateway struct {
	cfg      ConnectionConfig
	syncCfg  teamsync.Config
	bus      broadcast.Bus
	votes    teamsync.VoteStore
	teams    teamsync.TeamStore
	recovery teamsync.RecoveryStore
	dataDir  string
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*Connection]bool
}

// New creates a gateway over the given transport and stores.
func New(cfg ConnectionConfig, syncCfg teamsync.Config, bus broadcast.Bus, votes teamsync.VoteStore, teams teamsync.TeamStore, recovery teamsync.RecoveryStore, dataDir string) *Gateway {
	return &Gateway{
		cfg:      cfg,
		syncCfg:  syncCfg,
		bus:      bus,
		votes:    votes,
		teams:    teams,
		recovery: recovery,
		dataDir:  dataDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		conns: make(map[*Connection]bool),
	}
}

// HandleDeviceConnection upgrades an HTTP request to a device WebSocket.
// The device token in the query pins the connection to a persisted
// identity; a missing token mints a fresh one, returned in the welcome
// frame so the client can store it.
func (g *Gateway) HandleDeviceConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("device")
	if token == "" {
		token = uuid.NewString()
	}
	idStore, err := identity.NewStore(filepath.Join(g.dataDir, token+".json"))
	if err != nil {
		log.Error().Err(err).Msg("failed to open identity store")
		http.Error(w, "identity unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	c := &Connection{
		id:      uuid.NewString(),
		token:   token,
		conn:    conn,
		send:    make(chan []byte, 256),
		gateway: g,
		session: teamsync.NewSession(g.syncCfg, g.bus, g.votes, g.teams, g.recovery, idStore),
	}
	g.register(c)

	go c.writePump()
	go c.readPump()

	// Echo the cached recovery code so a refreshed client can keep
	// showing it without minting a new one.
	c.push(ServerEvent{Type: EventWelcome, DeviceID: idStore.DeviceID(), Code: idStore.RecoveryCode()})

	log.Info().
		Str("connection_id", c.id).
		Str("device_id", idStore.DeviceID()).
		Msg("device connection established")
}

// HandleStats reports active connection counts.
func (g *Gateway) HandleStats(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	total := len(g.conns)
	g.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"total_connections":%d}`, total)
}

// RegisterRoutes registers gateway routes with an HTTP mux.
func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/device", g.HandleDeviceConnection)
	mux.HandleFunc("/ws/stats", g.HandleStats)
}

func (g *Gateway) register(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conns[c] = true
}

func (g *Gateway) unregister(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.conns[c]; ok {
		delete(g.conns, c)
		close(c.send)
	}
}

// Shutdown disconnects every session and closes every socket.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	conns := make([]*Connection, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.session.Disconnect()
		c.conn.Close()
	}
}
