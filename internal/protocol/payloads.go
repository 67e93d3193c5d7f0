package protocol

// --- HTTP response bodies ---

// UserNamePayload is returned by GET /username. An empty name means the
// caller has no session.
type UserNamePayload struct {
	Name string `json:"name"`
}

// RoomsListPayload is returned by GET /rooms and GET /joinrooms.
type RoomsListPayload struct {
	RoomsList []string `json:"roomslist"`
}

// RoomOwnerPayload is returned by GET /roomowner.
type RoomOwnerPayload struct {
	RoomID   string `json:"roomid"`
	IsMaster bool   `json:"ismaster"`
}

// RoomCreatedPayload is returned by POST /createroom.
type RoomCreatedPayload struct {
	RoomID string `json:"roomid"`
}

// --- routes ---

const (
	PathUsername       = "/username"
	PathRooms          = "/rooms"
	PathJoinRooms      = "/joinrooms"
	PathRoomOwner      = "/roomowner"
	PathCreateRoom     = "/createroom"
	PathRoom           = "/room"
	PathDeleteRoom     = "/deleteroom"
	PathLeaveRoom      = "/leaveroom"
	PathLogin          = "/login"
	PathSignup         = "/signup"
	PathLogout         = "/logout"
	PathDeleteUser     = "/deleteuser"
	PathChangePassword = "/changepassword"
	PathWebSocket      = "/ws"
	PathHealth         = "/health"
)

// Query and form field names.
const (
	QueryRoomID        = "roomid"
	FieldUsername      = "username"
	FieldPassword      = "password"
	FieldCheckPassword = "checkpassword"
	FieldOldPassword   = "oldpassword"
)

// ServerName is the sender name used for server-generated messages.
const ServerName = "Server"

// AnonymousName heads every roster list.
const AnonymousName = "anonymous"

// HeaderErrorCode carries the numeric error code on non-2xx responses; the
// body holds the human-readable text.
const HeaderErrorCode = "X-Roomchat-Error"
