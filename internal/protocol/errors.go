package protocol

// Error codes
const (
	ErrCodeUnknown          = 1000
	ErrCodeInvalidEnvelope  = 1001
	ErrCodeMalformedFrame   = 1002
	ErrCodeEmptyMessage     = 1003
	ErrCodeUnauthenticated  = 2001
	ErrCodeBadCredentials   = 2002
	ErrCodeUserExists       = 2003
	ErrCodeInvalidPassword  = 2004
	ErrCodeInvalidUsername  = 2005
	ErrCodePasswordMismatch = 2006
	ErrCodeRoomNotFound     = 3001
	ErrCodeNotMember        = 3002
	ErrCodeNotMaster        = 3003
	ErrCodeIsMaster         = 3004
	ErrCodeInvalidRoomID    = 3005
	ErrCodeConnClosed       = 4001
	ErrCodeSendBufferFull   = 4002
	ErrCodeNotJoined        = 4003
)

// ErrorMessages maps error codes to user-facing text.
var ErrorMessages = map[int]string{
	ErrCodeUnknown:          "unknown error",
	ErrCodeInvalidEnvelope:  "envelope needs a room id and a name",
	ErrCodeMalformedFrame:   "malformed frame",
	ErrCodeEmptyMessage:     "message is empty",
	ErrCodeUnauthenticated:  "please log in",
	ErrCodeBadCredentials:   "wrong username or password",
	ErrCodeUserExists:       "username is already taken",
	ErrCodeInvalidPassword:  "password needs at least one letter and one digit, 8-100 characters from A-Z a-z 0-9 !@#$%^&*()_+=-",
	ErrCodeInvalidUsername:  "username must be 1-100 characters and not a reserved name",
	ErrCodePasswordMismatch: "passwords do not match",
	ErrCodeRoomNotFound:     "room not found",
	ErrCodeNotMember:        "you are not in this room",
	ErrCodeNotMaster:        "only the room creator can delete the room",
	ErrCodeIsMaster:         "the room creator cannot leave, delete the room instead",
	ErrCodeInvalidRoomID:    "room id must be 4 digits",
	ErrCodeConnClosed:       "connection closed",
	ErrCodeSendBufferFull:   "send buffer full",
	ErrCodeNotJoined:        "not joined to a room",
}
