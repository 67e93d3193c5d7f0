// Package protocol defines the envelopes exchanged between the chat client and server.
package protocol

// Envelope is the JSON unit carried in every WebSocket text frame.
//
// AllUsers and OnlineUsers are nil when the frame does not carry a membership
// change. A decoded empty array stays a non-nil, zero-length slice.
type Envelope struct {
	RoomID      string   `json:"roomid"`
	Message     string   `json:"message"`
	Name        string   `json:"name"`
	ToName      string   `json:"toname"`
	AllUsers    []string `json:"allusers"`
	OnlineUsers []string `json:"onlineusers"`
}

// HasRoster reports whether the envelope carries at least one roster list.
func (e *Envelope) HasRoster() bool {
	return e.AllUsers != nil || e.OnlineUsers != nil
}

// EventKind discriminates the Event union.
type EventKind int

const (
	KindJoin EventKind = iota
	KindBroadcast
	KindPrivate
	KindRoster
)

func (k EventKind) String() string {
	switch k {
	case KindJoin:
		return "join"
	case KindBroadcast:
		return "broadcast"
	case KindPrivate:
		return "private"
	case KindRoster:
		return "roster"
	default:
		return "unknown"
	}
}

// Event is one of Join, Broadcast, PrivateMessage or RosterUpdate.
type Event interface {
	Kind() EventKind
	// Envelope returns the wire form of the event.
	Envelope() Envelope
}

// Join announces that Name entered RoomID. Sent once per connection.
type Join struct {
	RoomID string
	Name   string
}

// Broadcast is a message for everyone in the room.
type Broadcast struct {
	RoomID  string
	Name    string
	Message string
}

// PrivateMessage is a room-scoped message directed at ToName.
type PrivateMessage struct {
	RoomID  string
	Name    string
	ToName  string
	Message string
}

// RosterUpdate accompanies membership changes. Either list may be nil,
// meaning that list did not change.
type RosterUpdate struct {
	RoomID      string
	Name        string
	ToName      string
	Message     string
	AllUsers    []string
	OnlineUsers []string
}

func (Join) Kind() EventKind           { return KindJoin }
func (Broadcast) Kind() EventKind      { return KindBroadcast }
func (PrivateMessage) Kind() EventKind { return KindPrivate }
func (RosterUpdate) Kind() EventKind   { return KindRoster }

func (e Join) Envelope() Envelope {
	return Envelope{RoomID: e.RoomID, Name: e.Name}
}

func (e Broadcast) Envelope() Envelope {
	return Envelope{RoomID: e.RoomID, Name: e.Name, Message: e.Message}
}

func (e PrivateMessage) Envelope() Envelope {
	return Envelope{RoomID: e.RoomID, Name: e.Name, ToName: e.ToName, Message: e.Message}
}

func (e RosterUpdate) Envelope() Envelope {
	return Envelope{
		RoomID:      e.RoomID,
		Name:        e.Name,
		ToName:      e.ToName,
		Message:     e.Message,
		AllUsers:    e.AllUsers,
		OnlineUsers: e.OnlineUsers,
	}
}

// Classify turns a decoded envelope into its Event. Roster presence wins over
// everything else, then a recipient, then an empty message (a join).
func Classify(env *Envelope) Event {
	switch {
	case env.HasRoster():
		return RosterUpdate{
			RoomID:      env.RoomID,
			Name:        env.Name,
			ToName:      env.ToName,
			Message:     env.Message,
			AllUsers:    env.AllUsers,
			OnlineUsers: env.OnlineUsers,
		}
	case env.ToName != "":
		return PrivateMessage{RoomID: env.RoomID, Name: env.Name, ToName: env.ToName, Message: env.Message}
	case env.Message == "":
		return Join{RoomID: env.RoomID, Name: env.Name}
	default:
		return Broadcast{RoomID: env.RoomID, Name: env.Name, Message: env.Message}
	}
}

// NewChat builds the event for a user send action: a Broadcast when toName is
// empty, a PrivateMessage otherwise.
func NewChat(roomID, name, message, toName string) Event {
	if toName == "" {
		return Broadcast{RoomID: roomID, Name: name, Message: message}
	}
	return PrivateMessage{RoomID: roomID, Name: name, ToName: toName, Message: message}
}
