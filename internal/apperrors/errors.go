// Package apperrors holds the error values shared by the client and the server.
package apperrors

import (
	"errors"

	"github.com/palemoky/roomchat/internal/protocol"
)

// ChatError carries a protocol error code next to its message.
type ChatError struct {
	Code    int
	Message string
}

func (e *ChatError) Error() string {
	return e.Message
}

func newError(code int) *ChatError {
	return &ChatError{Code: code, Message: protocol.ErrorMessages[code]}
}

// Predefined errors
var (
	ErrInvalidEnvelope  = newError(protocol.ErrCodeInvalidEnvelope)
	ErrMalformedFrame   = newError(protocol.ErrCodeMalformedFrame)
	ErrEmptyMessage     = newError(protocol.ErrCodeEmptyMessage)
	ErrUnauthenticated  = newError(protocol.ErrCodeUnauthenticated)
	ErrBadCredentials   = newError(protocol.ErrCodeBadCredentials)
	ErrUserExists       = newError(protocol.ErrCodeUserExists)
	ErrInvalidPassword  = newError(protocol.ErrCodeInvalidPassword)
	ErrInvalidUsername  = newError(protocol.ErrCodeInvalidUsername)
	ErrPasswordMismatch = newError(protocol.ErrCodePasswordMismatch)
	ErrRoomNotFound     = newError(protocol.ErrCodeRoomNotFound)
	ErrNotMember        = newError(protocol.ErrCodeNotMember)
	ErrNotMaster        = newError(protocol.ErrCodeNotMaster)
	ErrIsMaster         = newError(protocol.ErrCodeIsMaster)
	ErrInvalidRoomID    = newError(protocol.ErrCodeInvalidRoomID)
	ErrConnClosed       = newError(protocol.ErrCodeConnClosed)
	ErrSendBufferFull   = newError(protocol.ErrCodeSendBufferFull)
	ErrNotJoined        = newError(protocol.ErrCodeNotJoined)
)

// CodeOf returns the code of the first ChatError in err's chain, or
// ErrCodeUnknown.
func CodeOf(err error) int {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return protocol.ErrCodeUnknown
}

// FromCode returns the predefined error for code, falling back to a fresh
// ChatError carrying msg.
func FromCode(code int, msg string) *ChatError {
	for _, e := range []*ChatError{
		ErrInvalidEnvelope, ErrMalformedFrame, ErrEmptyMessage, ErrUnauthenticated,
		ErrBadCredentials, ErrUserExists, ErrInvalidPassword, ErrInvalidUsername,
		ErrPasswordMismatch, ErrRoomNotFound, ErrNotMember, ErrNotMaster, ErrIsMaster,
		ErrInvalidRoomID, ErrConnClosed, ErrSendBufferFull, ErrNotJoined,
	} {
		if e.Code == code {
			return e
		}
	}
	if msg == "" {
		msg = protocol.ErrorMessages[protocol.ErrCodeUnknown]
	}
	return &ChatError{Code: code, Message: msg}
}
