package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/palemoky/roomchat/internal/apperrors"
	"github.com/palemoky/roomchat/internal/logger"
)

// handleWebSocket upgrades a logged-in user and binds the socket to the room
// named by its first frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := UserFrom(r.Context())
	clientIP := GetClientIP(r)

	if !s.originChecker.Check(r) {
		logger.L().Warn().Str("origin", r.Header.Get("Origin")).Str("ip", clientIP).Msg("origin rejected")
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Warn().Err(err).Str("ip", clientIP).Msg("upgrade failed")
		return
	}

	client := NewClient(s, conn, name, clientIP)
	roomID, err := client.awaitJoin()
	if err != nil {
		logger.L().Warn().Err(err).Str("user", name).Msg("join rejected")
		closeWith(conn, websocket.ClosePolicyViolation, "expected join")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if _, ok, err := s.store.RoomMaster(ctx, roomID); err != nil || !ok {
		if err == nil {
			err = apperrors.ErrRoomNotFound
		}
		logger.L().Warn().Err(err).Str("user", name).Str("room", roomID).Msg("join rejected")
		closeWith(conn, websocket.ClosePolicyViolation, apperrors.ErrRoomNotFound.Message)
		return
	}
	if _, err := s.store.AddMember(ctx, roomID, name); err != nil {
		logger.L().Error().Err(err).Str("user", name).Str("room", roomID).Msg("add member")
		closeWith(conn, websocket.CloseInternalServerErr, "")
		return
	}

	client.RoomID = roomID
	s.hub.Register(client)
	go client.writeLoop()

	s.announce(ctx, roomID, name+" joined")
	client.notice("welcome to room " + roomID)
	logger.L().Info().Str("user", name).Str("room", roomID).Str("client", client.ID).Msg("connected")

	go client.readLoop()
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}
