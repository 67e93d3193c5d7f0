package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/palemoky/roomchat/internal/apperrors"
	"github.com/palemoky/roomchat/internal/logger"
	"github.com/palemoky/roomchat/internal/protocol"
	"github.com/palemoky/roomchat/internal/protocol/codec"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = time.Minute
	pingPeriod = pongWait - pongWait/10

	// joinWait bounds how long a fresh socket may stay silent before its
	// Join frame.
	joinWait = 10 * time.Second

	sendBufferSize = 256
	maxStrikes     = 5
)

// Client is one live WebSocket of a logged-in user, bound to a single room.
type Client struct {
	ID     string
	Name   string
	RoomID string
	IP     string

	server *Server
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection for the session user name.
func NewClient(s *Server, conn *websocket.Conn, name, ip string) *Client {
	return &Client{
		ID:     uuid.New().String(),
		Name:   name,
		IP:     ip,
		server: s,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

func (c *Client) GetID() string   { return c.ID }
func (c *Client) GetName() string { return c.Name }
func (c *Client) GetRoom() string { return c.RoomID }

// SendMessage queues data for the write loop without blocking. A full
// buffer or a closed client reports false.
func (c *Client) SendMessage(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close ends the write loop, which then closes the socket. It is idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// awaitJoin reads the first frame, which must be a Join naming a room.
func (c *Client) awaitJoin() (string, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(joinWait))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read join: %w", err)
	}
	ev, err := codec.DecodeEvent(data)
	if err != nil {
		return "", err
	}
	join, ok := ev.(protocol.Join)
	if !ok || join.RoomID == "" {
		return "", fmt.Errorf("first frame is %s: %w", ev.Kind(), apperrors.ErrNotJoined)
	}
	return join.RoomID, nil
}

// notice sends a private server line to this socket only.
func (c *Client) notice(text string) {
	data, err := codec.EncodeEnvelope(&protocol.Envelope{
		RoomID:  c.RoomID,
		Name:    protocol.ServerName,
		ToName:  c.Name,
		Message: text,
	})
	if err != nil {
		logger.L().Error().Err(err).Msg("encode notice")
		return
	}
	c.SendMessage(data)
}

// throttle applies the flood guard to one inbound frame. It reports whether
// the frame may be relayed and whether the socket should be dropped.
func (c *Client) throttle() (relay, drop bool) {
	limiter := c.server.messageLimiter
	allowed, warning := limiter.AllowMessage(c.ID)
	switch {
	case !allowed:
		c.notice("you are sending too fast, message dropped")
		return false, limiter.Strikes(c.ID) > maxStrikes
	case warning:
		c.notice("slow down")
	}
	return true, false
}

// readLoop relays chat frames until the socket fails or the client floods.
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
		}
		c.server.disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.server.config.Server.MaxMessageSize)
	alive := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	_ = alive("")
	c.conn.SetPongHandler(alive)

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.L().Warn().Err(err).Str("client", c.ID).Msg("read failed")
			}
			return
		}

		relay, drop := c.throttle()
		if drop {
			logger.L().Warn().Str("user", c.Name).Str("ip", c.IP).Msg("disconnecting flooding client")
			return
		}
		if !relay {
			continue
		}

		env, err := codec.Decode(frame)
		if err != nil {
			logger.L().Debug().Err(err).Str("client", c.ID).Msg("dropping frame")
			continue
		}
		c.server.relay(c, env.Message, env.ToName)
		codec.PutEnvelope(env)
	}
}

// writeLoop drains the send buffer and pings on idle. A closed buffer ends
// the socket with a close frame.
func (c *Client) writeLoop() {
	keepalive := time.NewTicker(pingPeriod)
	defer func() {
		keepalive.Stop()
		_ = c.conn.Close()
	}()

	write := func(kind int, payload []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, payload)
	}

	for {
		select {
		case frame, open := <-c.send:
			if !open {
				_ = write(websocket.CloseMessage, []byte{})
				return
			}
			if write(websocket.TextMessage, frame) != nil {
				return
			}
		case <-keepalive.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}
