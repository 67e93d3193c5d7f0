//go:build !production

package testutil

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/roomchat/internal/api"
	"github.com/palemoky/roomchat/internal/protocol"
)

// MockChatAPI implements types.ChatAPI.
type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) ResolveIdentity(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockChatAPI) Rooms(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	rooms, _ := args.Get(0).([]string)
	return rooms, args.Error(1)
}

func (m *MockChatAPI) JoinRooms(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	rooms, _ := args.Get(0).([]string)
	return rooms, args.Error(1)
}

func (m *MockChatAPI) CreateRoom(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockChatAPI) DeleteRoom(ctx context.Context, roomID string) error {
	return m.Called(ctx, roomID).Error(0)
}

func (m *MockChatAPI) DeleteOrLeave(ctx context.Context, roomID string) (api.RoomExit, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(api.RoomExit), args.Error(1)
}

func (m *MockChatAPI) Login(ctx context.Context, username, password string) error {
	return m.Called(ctx, username, password).Error(0)
}

func (m *MockChatAPI) Signup(ctx context.Context, username, password, check string) error {
	return m.Called(ctx, username, password, check).Error(0)
}

func (m *MockChatAPI) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockChatAPI) DeleteUser(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockChatAPI) ChangePassword(ctx context.Context, oldPassword, password, check string) error {
	return m.Called(ctx, oldPassword, password, check).Error(0)
}

// MockRoomConn implements types.RoomConn. Events pushed with Push are
// delivered through Receive.
type MockRoomConn struct {
	mock.Mock

	events chan protocol.Event
	done   chan struct{}
}

// NewMockRoomConn creates a connection mock with open channels.
func NewMockRoomConn() *MockRoomConn {
	return &MockRoomConn{
		events: make(chan protocol.Event, 16),
		done:   make(chan struct{}),
	}
}

func (m *MockRoomConn) Connect(ctx context.Context, roomID, name string) error {
	return m.Called(ctx, roomID, name).Error(0)
}

func (m *MockRoomConn) Send(message, toName string) error {
	return m.Called(message, toName).Error(0)
}

func (m *MockRoomConn) Receive() <-chan protocol.Event { return m.events }
func (m *MockRoomConn) Done() <-chan struct{}          { return m.done }

func (m *MockRoomConn) Close() {
	m.Called()
}

// Push queues an inbound event.
func (m *MockRoomConn) Push(ev protocol.Event) {
	m.events <- ev
}

// Hangup closes the done channel as a dropped connection would.
func (m *MockRoomConn) Hangup() {
	close(m.done)
}

// SimpleClient is a hub client without assertions; it records frames.
type SimpleClient struct {
	ID     string
	Name   string
	RoomID string

	mu     sync.Mutex
	frames [][]byte
	full   bool
	closed bool
}

func (c *SimpleClient) GetID() string   { return c.ID }
func (c *SimpleClient) GetName() string { return c.Name }
func (c *SimpleClient) GetRoom() string { return c.RoomID }

func (c *SimpleClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *SimpleClient) SendMessage(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full || c.closed {
		return false
	}
	c.frames = append(c.frames, data)
	return true
}

// SetFull makes every later SendMessage fail like a saturated buffer.
func (c *SimpleClient) SetFull(full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full = full
}

// Frames returns a copy of the recorded frames.
func (c *SimpleClient) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

// Closed reports whether Close was called.
func (c *SimpleClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
