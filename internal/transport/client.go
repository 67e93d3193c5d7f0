// Package transport is the RoomClient WebSocket connection: it dials /ws,
// sends the Join envelope, pumps frames both ways and never reconnects.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/palemoky/roomchat/internal/apperrors"
	"github.com/palemoky/roomchat/internal/logger"
	"github.com/palemoky/roomchat/internal/protocol"
	"github.com/palemoky/roomchat/internal/protocol/codec"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	handshakeWait  = 10 * time.Second
	sendBufferSize = 256
)

// State is the connection lifecycle. There is no transition out of Closed.
type State int32

const (
	StateUnjoined State = iota
	StateJoining
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MalformedPolicy decides what an undecodable inbound frame does.
type MalformedPolicy int

const (
	// DropMalformed logs the frame and keeps reading.
	DropMalformed MalformedPolicy = iota
	// CloseOnMalformed reports ErrMalformedFrame and closes the connection.
	CloseOnMalformed
)

// ParseMalformedPolicy maps the config value; anything but "close" drops.
func ParseMalformedPolicy(s string) MalformedPolicy {
	if s == "close" {
		return CloseOnMalformed
	}
	return DropMalformed
}

// ErrAlreadyConnected is returned by a second Connect on the same Client.
var ErrAlreadyConnected = errors.New("transport: client already connected")

// Client is one room connection. Callbacks must be set before Connect; they
// run on the read pump goroutine.
type Client struct {
	ServerURL string
	Jar       http.CookieJar
	Policy    MalformedPolicy

	OnEnvelope func(protocol.Event) // every decoded inbound event; when set, Receive stays empty
	OnError    func(error)          // malformed frames under CloseOnMalformed, unexpected closes
	OnClose    func()               // read side ended

	mu      sync.Mutex // guards conn against a Close racing Connect
	conn    *websocket.Conn
	send    chan []byte
	receive chan protocol.Event
	done    chan struct{}

	roomID string
	name   string

	state     atomic.Int32
	closeOnce sync.Once
}

// NewClient creates an unjoined client for a ws:// or wss:// URL.
func NewClient(serverURL string) *Client {
	return &Client{
		ServerURL: serverURL,
		send:      make(chan []byte, sendBufferSize),
		receive:   make(chan protocol.Event, sendBufferSize),
		done:      make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// RoomID returns the joined room.
func (c *Client) RoomID() string { return c.roomID }

// Name returns the identity the client joined as.
func (c *Client) Name() string { return c.name }

// Connect dials the server once and sends exactly one Join envelope before
// any other frame. Empty roomID or name fail without dialing.
func (c *Client) Connect(ctx context.Context, roomID, name string) error {
	join, err := codec.Encode(protocol.Join{RoomID: roomID, Name: name})
	if err != nil {
		return err
	}
	if !c.state.CompareAndSwap(int32(StateUnjoined), int32(StateJoining)) {
		if c.State() == StateClosed {
			return apperrors.ErrConnClosed
		}
		return ErrAlreadyConnected
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeWait,
		Jar:              c.Jar,
	}
	// A Close during the handshake aborts the dial.
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-dialCtx.Done():
		}
	}()

	conn, resp, err := dialer.DialContext(dialCtx, c.ServerURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return c.abortConnect(fmt.Errorf("dial %s: %w", c.ServerURL, err))
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		_ = conn.Close()
		return c.abortConnect(fmt.Errorf("send join: %w", err))
	}

	// Close may have run while dialing; it wins and the socket is dropped.
	c.mu.Lock()
	c.roomID = roomID
	c.name = name
	if !c.state.CompareAndSwap(int32(StateJoining), int32(StateJoined)) {
		c.mu.Unlock()
		_ = conn.Close()
		return apperrors.ErrConnClosed
	}
	c.conn = conn
	c.mu.Unlock()
	logger.L().Info().Str("room", roomID).Str("name", name).Msg("joined room")

	go c.readLoop()
	go c.writeLoop()
	return nil
}

// abortConnect rewinds a failed Connect to unjoined, unless Close got there
// first.
func (c *Client) abortConnect(err error) error {
	if c.state.CompareAndSwap(int32(StateJoining), int32(StateUnjoined)) {
		return err
	}
	return fmt.Errorf("%w: %v", apperrors.ErrConnClosed, err)
}

// Send transmits a Broadcast when toName is empty, otherwise a private
// message. An empty message is never sent.
func (c *Client) Send(message, toName string) error {
	if message == "" {
		return apperrors.ErrEmptyMessage
	}
	switch c.State() {
	case StateJoined:
	case StateClosed:
		return apperrors.ErrConnClosed
	default:
		return apperrors.ErrNotJoined
	}

	data, err := codec.Encode(protocol.NewChat(c.roomID, c.name, message, toName))
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return apperrors.ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return apperrors.ErrSendBufferFull
	}
}

// Receive returns the channel of decoded inbound events. It is only fed when
// OnEnvelope is nil, and must then be drained or the read loop stalls.
func (c *Client) Receive() <-chan protocol.Event {
	return c.receive
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReceiveWithTimeout waits for the next event.
func (c *Client) ReceiveWithTimeout(timeout time.Duration) (protocol.Event, error) {
	select {
	case ev := <-c.receive:
		return ev, nil
	case <-c.done:
		return nil, apperrors.ErrConnClosed
	case <-time.After(timeout):
		return nil, context.DeadlineExceeded
	}
}

// Close ends the connection. It is safe to call more than once and from any
// goroutine, including while Connect is still dialing: that Connect then
// fails with ErrConnClosed and the client stays closed.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state.Store(int32(StateClosed))
		close(c.done)
		conn := c.conn
		c.mu.Unlock()

		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
		}
	})
}

// IsConnected reports whether the room is joined.
func (c *Client) IsConnected() bool {
	return c.State() == StateJoined
}
