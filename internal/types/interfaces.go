// Package types holds the interfaces shared across packages so that the UI
// and the server can depend on behaviour instead of concrete clients.
package types

import (
	"context"

	"github.com/palemoky/roomchat/internal/api"
	"github.com/palemoky/roomchat/internal/client"
	"github.com/palemoky/roomchat/internal/protocol"
)

// ChatAPI is the HTTP surface the terminal client drives.
type ChatAPI interface {
	ResolveIdentity(ctx context.Context) (string, error)
	Rooms(ctx context.Context) ([]string, error)
	JoinRooms(ctx context.Context) ([]string, error)
	CreateRoom(ctx context.Context) (string, error)
	DeleteRoom(ctx context.Context, roomID string) error
	DeleteOrLeave(ctx context.Context, roomID string) (api.RoomExit, error)
	Login(ctx context.Context, username, password string) error
	Signup(ctx context.Context, username, password, check string) error
	Logout(ctx context.Context) error
	DeleteUser(ctx context.Context) error
	ChangePassword(ctx context.Context, oldPassword, password, check string) error
}

// RoomConn is the WebSocket connection of one mounted room.
type RoomConn interface {
	Connect(ctx context.Context, roomID, name string) error
	Send(message, toName string) error
	Receive() <-chan protocol.Event
	Done() <-chan struct{}
	Close()
}

// Transcript is the local message history of the terminal client.
type Transcript interface {
	Append(line client.MessageLine) error
	LoadRecent(roomID string, limit int) ([]client.MessageLine, error)
	DeleteRoom(roomID string) error
}

// ClientInterface is a live server-side socket registered with the hub.
type ClientInterface interface {
	GetID() string
	GetName() string
	GetRoom() string
	// SendMessage queues a frame; false means the client is gone or too slow.
	SendMessage(data []byte) bool
	Close()
}

// MessageLimiter throttles chat frames per connection.
type MessageLimiter interface {
	AllowMessage(clientID string) (allowed bool, warning bool)
	RemoveClient(clientID string)
}
