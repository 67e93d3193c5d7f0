package server

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/palemoky/roomchat/internal/logger"
	"github.com/palemoky/roomchat/internal/protocol"
	"github.com/palemoky/roomchat/internal/protocol/codec"
)

// storeTimeout bounds Redis work done outside an HTTP request.
const storeTimeout = 5 * time.Second

// withAnonymous prefixes a roster with the anonymous entry.
func withAnonymous(names []string) []string {
	return append([]string{protocol.AnonymousName}, names...)
}

// rosters returns the member and online lists of roomID.
func (s *Server) rosters(ctx context.Context, roomID string) (all, online []string, err error) {
	members, err := s.store.Members(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	return withAnonymous(members), withAnonymous(s.hub.Online(roomID)), nil
}

// announce broadcasts a server line with fresh rosters to roomID.
func (s *Server) announce(ctx context.Context, roomID, text string) {
	all, online, err := s.rosters(ctx, roomID)
	if err != nil {
		logger.L().Error().Err(err).Str("room", roomID).Msg("load roster")
		return
	}
	s.fanOut(&protocol.Envelope{
		RoomID:      roomID,
		Name:        protocol.ServerName,
		Message:     text,
		AllUsers:    all,
		OnlineUsers: online,
	})
}

// relay fans out a chat message from c. The sender name and room come from
// the connection, never from the frame.
func (s *Server) relay(c *Client, message, toName string) {
	text := s.sanitize(message)
	if strings.TrimSpace(text) == "" {
		return
	}
	s.fanOut(&protocol.Envelope{
		RoomID:  c.RoomID,
		Name:    c.Name,
		ToName:  toName,
		Message: text,
	})
}

// sanitize strips markup. Entities are decoded again because clients render
// plain text.
func (s *Server) sanitize(message string) string {
	return html.UnescapeString(s.policy.Sanitize(message))
}

// fanOut delivers env to the whole room, or only to sender and recipient
// when it is private.
func (s *Server) fanOut(env *protocol.Envelope) {
	data, err := codec.EncodeEnvelope(env)
	if err != nil {
		logger.L().Error().Err(err).Msg("encode envelope")
		return
	}
	logger.L().Info().
		Str("room", env.RoomID).
		Str("from", env.Name).
		Str("to", env.ToName).
		Str("msg", env.Message).
		Msg("chat")

	if env.ToName != "" {
		s.hub.Deliver(env.RoomID, data, env.Name, env.ToName)
		return
	}
	s.hub.Deliver(env.RoomID, data)
}

// disconnect unregisters c and tells the room it left.
func (s *Server) disconnect(c *Client) {
	s.hub.Unregister(c)
	c.Close()
	s.messageLimiter.RemoveClient(c.ID)
	logger.L().Info().Str("user", c.Name).Str("room", c.RoomID).Str("client", c.ID).Msg("disconnected")

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	// A deleted room or a user who already left has been announced.
	if member, err := s.store.IsMember(ctx, c.RoomID, c.Name); err != nil || !member {
		return
	}
	s.announce(ctx, c.RoomID, c.Name+" left")
}
