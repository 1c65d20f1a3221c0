package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/teamaction/geohunt/go/internal/models"
	"github.com/teamaction/geohunt/go/internal/teamsync"
)

// Connection is one device WebSocket and its sync session.
type Connection struct {
	id      string
	token   string
	conn    *websocket.Conn
	send    chan []byte
	gateway *Gateway
	session *teamsync.Session

	// Session subscription teardowns, replaced on each join.
	unsubs []func()
}

// push marshals a server event into the send queue. A full queue drops the
// frame; the next snapshot push supersedes it anyway.
func (c *Connection) push(ev ServerEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", string(ev.Type)).Msg("marshal server event")
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("connection_id", c.id).Str("type", string(ev.Type)).
			Msg("send buffer full, dropping frame")
	}
}

// readPump consumes client frames until the socket dies, then tears the
// session down.
func (c *Connection) readPump() {
	defer func() {
		c.clearSubscriptions()
		c.session.Disconnect()
		c.gateway.unregister(c)
		c.conn.Close()
		log.Info().Str("connection_id", c.id).Msg("device connection closed")
	}()

	c.conn.SetReadLimit(c.gateway.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.gateway.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.gateway.cfg.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("connection_id", c.id).Msg("unexpected socket close")
			}
			return
		}
		var cmd ClientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.push(ServerEvent{Type: EventError, Error: "malformed command"})
			continue
		}
		c.handleCommand(cmd)
	}
}

// writePump flushes queued frames and keeps the socket alive with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.gateway.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.gateway.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.id).Msg("write to socket failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.gateway.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) handleCommand(cmd ClientCommand) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	switch cmd.Action {
	case ActionJoin:
		c.clearSubscriptions()
		if err := c.session.Connect(ctx, cmd.GameID, cmd.TeamName, cmd.UserName); err != nil {
			c.push(ServerEvent{Type: EventError, Error: err.Error()})
			return
		}
		c.wireSubscriptions()
		c.push(ServerEvent{
			Type:     EventJoined,
			DeviceID: c.session.DeviceID(),
			TeamKey:  c.session.TeamKey(),
		})

	case ActionLeave:
		c.clearSubscriptions()
		c.session.Disconnect()

	case ActionVote:
		var answer models.Answer
		if err := json.Unmarshal(cmd.Answer, &answer); err != nil {
			c.push(ServerEvent{Type: EventError, Error: "malformed answer"})
			return
		}
		c.session.CastVote(cmd.PointID, answer)

	case ActionLocation:
		c.session.UpdateLocation(models.LatLng{Lat: cmd.Lat, Lng: cmd.Lng})

	case ActionSolving:
		c.session.SetSolving(cmd.Solving)

	case ActionChat:
		c.session.SendChatMessage(cmd.TargetTeamID, cmd.Message, cmd.Urgent)

	case ActionTeamChat:
		c.session.SendTeamChatMessage(cmd.Message)

	case ActionRetire:
		c.session.RetirePlayer(cmd.TargetDeviceID)

	case ActionUnretire:
		c.session.UnretirePlayer(cmd.TargetDeviceID)

	case ActionRemove:
		c.session.RemovePlayer(cmd.TargetDeviceID)

	case ActionTransferCaptain:
		if err := c.session.TransferCaptaincy(ctx, cmd.NewCaptainID); err != nil {
			c.push(ServerEvent{Type: EventError, Error: err.Error()})
		}

	case ActionGlobalLocation:
		c.session.BroadcastGlobalLocation(cmd.Name, models.LatLng{Lat: cmd.Lat, Lng: cmd.Lng}, cmd.PhotoURL)

	case ActionGenerateRecovery:
		code, err := c.session.GenerateRecoveryCode(ctx)
		if err != nil {
			c.push(ServerEvent{Type: EventError, Error: err.Error()})
			return
		}
		c.push(ServerEvent{Type: EventRecoveryCode, Code: code})

	case ActionRedeemRecovery:
		data, err := c.session.ReconnectWithCode(ctx, cmd.Code)
		if err != nil {
			if errors.Is(err, teamsync.ErrInvalidCode) {
				c.push(ServerEvent{Type: EventError, Error: "invalid or expired code"})
			} else {
				c.push(ServerEvent{Type: EventError, Error: err.Error()})
			}
			return
		}
		c.push(ServerEvent{Type: EventRecovered, Recovered: data, DeviceID: data.DeviceID})

	default:
		c.push(ServerEvent{Type: EventError, Error: "unknown action"})
	}
}

// wireSubscriptions forwards session pushes to the socket. The vote
// subscription is unfiltered; each frame carries the recomputed consensus
// and conflict flags for the affected task so clients never re-derive them.
func (c *Connection) wireSubscriptions() {
	c.unsubs = append(c.unsubs,
		c.session.SubscribeMembers(func(members []models.TeamMember) {
			c.push(ServerEvent{Type: EventMembers, Members: members})
		}),
		c.session.SubscribeVotes("", func(votes []models.TaskVote) {
			pointID := ""
			if len(votes) > 0 {
				pointID = votes[0].PointID
			}
			consensus := teamsync.Consensus(votes)
			conflict := teamsync.Conflict(votes)
			c.push(ServerEvent{
				Type:      EventVotes,
				PointID:   pointID,
				Votes:     votes,
				Consensus: &consensus,
				Conflict:  &conflict,
			})
		}),
		c.session.SubscribeChat(func(msg models.ChatMessage) {
			m := msg
			c.push(ServerEvent{Type: EventChatMessage, Message: &m})
		}),
		c.session.SubscribeGlobalLocations(func(entries []models.GlobalLocationEntry) {
			c.push(ServerEvent{Type: EventLocations, Locations: entries})
		}),
	)
}

func (c *Connection) clearSubscriptions() {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
}
