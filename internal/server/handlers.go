package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/palemoky/roomchat/internal/apperrors"
	"github.com/palemoky/roomchat/internal/logger"
	"github.com/palemoky/roomchat/internal/protocol"
	"github.com/palemoky/roomchat/internal/validate"
)

// errorStatus maps error codes to HTTP statuses. Unlisted codes are 500.
var errorStatus = map[int]int{
	protocol.ErrCodeUnauthenticated:  http.StatusUnauthorized,
	protocol.ErrCodeBadCredentials:   http.StatusUnauthorized,
	protocol.ErrCodeUserExists:       http.StatusConflict,
	protocol.ErrCodeIsMaster:         http.StatusConflict,
	protocol.ErrCodeInvalidPassword:  http.StatusBadRequest,
	protocol.ErrCodeInvalidUsername:  http.StatusBadRequest,
	protocol.ErrCodePasswordMismatch: http.StatusBadRequest,
	protocol.ErrCodeInvalidRoomID:    http.StatusBadRequest,
	protocol.ErrCodeRoomNotFound:     http.StatusNotFound,
	protocol.ErrCodeNotMember:        http.StatusForbidden,
	protocol.ErrCodeNotMaster:        http.StatusForbidden,
}

// writeError answers with the status of err, its code in the error header
// and its text as the body. Internal failures are logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *apperrors.ChatError
	status, known := 0, false
	if errors.As(err, &ce) {
		status, known = errorStatus[ce.Code]
	}
	if !known {
		logger.L().Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set(protocol.HeaderErrorCode, strconv.Itoa(ce.Code))
	http.Error(w, ce.Message, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Warn().Err(err).Msg("write response")
	}
}

// roomParam reads and validates the roomid query parameter.
func roomParam(r *http.Request) (string, error) {
	id := r.URL.Query().Get(protocol.QueryRoomID)
	if err := validate.RoomID(id); err != nil {
		return "", err
	}
	return id, nil
}

// --- identity and rooms ---

func (s *Server) handleUsername(w http.ResponseWriter, r *http.Request) {
	name, err := s.sessions.CurrentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.UserNamePayload{Name: name})
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.store.OwnedRooms(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.RoomsListPayload{RoomsList: rooms})
}

func (s *Server) handleJoinRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.store.JoinedRooms(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.RoomsListPayload{RoomsList: rooms})
}

// ownership loads the room and reports whether the caller owns it.
func (s *Server) ownership(r *http.Request) (protocol.RoomOwnerPayload, error) {
	id, err := roomParam(r)
	if err != nil {
		return protocol.RoomOwnerPayload{}, err
	}
	master, ok, err := s.store.RoomMaster(r.Context(), id)
	if err != nil {
		return protocol.RoomOwnerPayload{}, err
	}
	if !ok {
		return protocol.RoomOwnerPayload{}, apperrors.ErrRoomNotFound
	}
	return protocol.RoomOwnerPayload{RoomID: id, IsMaster: master == UserFrom(r.Context())}, nil
}

func (s *Server) handleRoomOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := s.ownership(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, owner)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	name := UserFrom(r.Context())
	id, err := s.store.CreateRoom(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.L().Info().Str("user", name).Str("room", id).Msg("room created")
	writeJSON(w, http.StatusCreated, protocol.RoomCreatedPayload{RoomID: id})
}

// handleRoom joins the caller to an existing room.
func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	owner, err := s.ownership(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.store.AddMember(r.Context(), owner.RoomID, UserFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, owner)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	owner, err := s.ownership(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !owner.IsMaster {
		writeError(w, r, apperrors.ErrNotMaster)
		return
	}
	if err := s.store.DeleteRoom(r.Context(), owner.RoomID); err != nil {
		writeError(w, r, err)
		return
	}
	s.hub.CloseRoom(owner.RoomID)
	logger.L().Info().Str("user", UserFrom(r.Context())).Str("room", owner.RoomID).Msg("room deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	owner, err := s.ownership(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if owner.IsMaster {
		writeError(w, r, apperrors.ErrIsMaster)
		return
	}
	name := UserFrom(r.Context())
	member, err := s.store.IsMember(r.Context(), owner.RoomID, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !member {
		writeError(w, r, apperrors.ErrNotMember)
		return
	}
	if err := s.store.RemoveMember(r.Context(), owner.RoomID, name); err != nil {
		writeError(w, r, err)
		return
	}
	s.hub.CloseMember(owner.RoomID, name)
	s.announce(r.Context(), owner.RoomID, name+" left the room")
	w.WriteHeader(http.StatusNoContent)
}

// --- accounts ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	name := r.PostFormValue(protocol.FieldUsername)
	password := r.PostFormValue(protocol.FieldPassword)

	if err := s.checkPassword(r, name, password); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.sessions.Issue(r.Context(), w, name); err != nil {
		writeError(w, r, err)
		return
	}
	logger.L().Info().Str("user", name).Str("ip", GetClientIP(r)).Msg("login")
	w.WriteHeader(http.StatusNoContent)
}

// checkPassword compares password with the stored hash of name.
func (s *Server) checkPassword(r *http.Request, name, password string) error {
	hash, err := s.store.PasswordHash(r.Context(), name)
	if err != nil {
		return err
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return apperrors.ErrBadCredentials
	}
	return nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	name := r.PostFormValue(protocol.FieldUsername)
	password := r.PostFormValue(protocol.FieldPassword)
	check := r.PostFormValue(protocol.FieldCheckPassword)

	if err := validate.Username(name); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.NewPassword(password, check); err != nil {
		writeError(w, r, err)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.CreateUser(r.Context(), name, string(hash)); err != nil {
		writeError(w, r, err)
		return
	}
	logger.L().Info().Str("user", name).Msg("signup")
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Revoke(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	name := UserFrom(r.Context())
	rooms, err := s.store.DeleteUser(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for _, id := range rooms {
		s.hub.CloseRoom(id)
	}
	s.hub.CloseUser(name)
	s.sessions.expire(w)
	logger.L().Info().Str("user", name).Strs("rooms", rooms).Msg("user deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	name := UserFrom(r.Context())
	oldPassword := r.PostFormValue(protocol.FieldOldPassword)
	password := r.PostFormValue(protocol.FieldPassword)
	check := r.PostFormValue(protocol.FieldCheckPassword)

	if err := s.checkPassword(r, name, oldPassword); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.NewPassword(password, check); err != nil {
		writeError(w, r, err)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.SetPasswordHash(r.Context(), name, string(hash)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.redis.Ping(r.Context()).Err(); err != nil {
		http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("OK"))
}
