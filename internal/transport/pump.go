package transport

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/palemoky/roomchat/internal/apperrors"
	"github.com/palemoky/roomchat/internal/logger"
	"github.com/palemoky/roomchat/internal/protocol"
	"github.com/palemoky/roomchat/internal/protocol/codec"
)

// readLoop delivers inbound events until the socket fails, a malformed
// frame closes it, or the client is closed locally.
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
		}
		c.Close()
		if c.OnClose != nil {
			c.OnClose()
		}
	}()

	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closedLocally() && websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.fail(fmt.Errorf("%w: %v", apperrors.ErrConnClosed, err))
			}
			return
		}

		ev, err := codec.DecodeEvent(frame)
		switch {
		case err == nil:
			if !c.deliver(ev) {
				return
			}
		case c.Policy == CloseOnMalformed:
			c.fail(err)
			return
		default:
			logger.L().Warn().Err(err).Int("bytes", len(frame)).Msg("dropping malformed frame")
		}
	}
}

func (c *Client) extendReadDeadline() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

func (c *Client) closedLocally() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) fail(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

// deliver hands ev to OnEnvelope when set, otherwise queues it for Receive.
// It reports false once the client is closed.
func (c *Client) deliver(ev protocol.Event) bool {
	if c.OnEnvelope != nil {
		c.OnEnvelope(ev)
		return true
	}
	select {
	case c.receive <- ev:
		return true
	case <-c.done:
		return false
	}
}

// writeLoop drains the send queue and pings on idle.
func (c *Client) writeLoop() {
	keepalive := time.NewTicker(pingPeriod)
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
		}
		keepalive.Stop()
		c.Close()
	}()

	write := func(kind int, payload []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, payload)
	}

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := write(websocket.TextMessage, frame); err != nil {
				logger.LogError("write frame: %v", err)
				return
			}
		case <-keepalive.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
