package ui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/roomchat/internal/api"
	"github.com/palemoky/roomchat/internal/apperrors"
	"github.com/palemoky/roomchat/internal/client"
	"github.com/palemoky/roomchat/internal/protocol"
	"github.com/palemoky/roomchat/internal/testutil"
	"github.com/palemoky/roomchat/internal/types"
	"github.com/palemoky/roomchat/internal/ui/model"
)

// runCmd executes cmd and any batched children, keeping the messages that
// arrive quickly. Long ticks and blocked listeners are abandoned.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	select {
	case msg := <-ch:
		if batch, ok := msg.(tea.BatchMsg); ok {
			var out []tea.Msg
			for _, c := range batch {
				out = append(out, runCmd(c)...)
			}
			return out
		}
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// find returns the first message of type T.
func find[T tea.Msg](t *testing.T, msgs []tea.Msg) T {
	t.Helper()
	for _, msg := range msgs {
		if v, ok := msg.(T); ok {
			return v
		}
	}
	var zero T
	require.Failf(t, "message not found", "%T not in %v", zero, msgs)
	return zero
}

type harness struct {
	m     *model.ChatModel
	api   *testutil.MockChatAPI
	conn  *testutil.MockRoomConn
	dials int
}

func newHarness(t *testing.T, opts model.Options) *harness {
	t.Helper()
	return newHarnessWithHistory(t, opts, nil)
}

func newHarnessWithHistory(t *testing.T, opts model.Options, transcript types.Transcript) *harness {
	t.Helper()
	h := &harness{
		api:  &testutil.MockChatAPI{},
		conn: testutil.NewMockRoomConn(),
	}
	h.conn.On("Close").Return().Maybe()
	h.m = NewChatModel(model.Deps{
		API: h.api,
		Dial: func() types.RoomConn {
			h.dials++
			return h.conn
		},
		History: transcript,
	}, opts)
	h.m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return h
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	_, cmd := h.m.Update(msg)
	return cmd
}

func (h *harness) key(k tea.KeyType) tea.Cmd {
	return h.update(tea.KeyMsg{Type: k})
}

func (h *harness) runes(s string) tea.Cmd {
	return h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// enterRoom resolves alice and mounts room 0042 with a live connection.
func (h *harness) enterRoom(t *testing.T) {
	t.Helper()
	h.conn.On("Connect", mock.Anything, "0042", "alice").Return(nil).Once()

	h.m.Update(model.IdentityMsg{Name: "alice"})
	cmd := h.m.EnterRoom("0042")
	require.Equal(t, model.PhaseRoom, h.m.Phase())

	connected := find[model.ConnectedMsg](t, runCmd(cmd))
	h.update(connected)
}

func TestInit_EmptyIdentityShowsLoginWithoutDialing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{InitialRoom: "0042"})
	h.api.On("ResolveIdentity", mock.Anything).Return("", nil).Once()

	identity := find[model.IdentityMsg](t, runCmd(h.m.Init()))
	h.update(identity)

	assert.Equal(t, model.PhaseLogin, h.m.Phase())
	assert.Zero(t, h.dials)
	assert.Nil(t, h.m.Session())
	h.api.AssertExpectations(t)
}

func TestInit_IdentityErrorShowsLogin(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.api.On("ResolveIdentity", mock.Anything).Return("", apperrors.ErrUnauthenticated).Once()

	h.update(find[model.IdentityMsg](t, runCmd(h.m.Init())))
	assert.Equal(t, model.PhaseLogin, h.m.Phase())
	assert.Zero(t, h.dials)
}

func TestInit_IdentityEntersLobbyAndLoadsRooms(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.api.On("ResolveIdentity", mock.Anything).Return("alice", nil).Once()
	h.api.On("Rooms", mock.Anything).Return([]string{"0001"}, nil).Once()
	h.api.On("JoinRooms", mock.Anything).Return([]string{"0001", "0002"}, nil).Once()

	cmd := h.update(find[model.IdentityMsg](t, runCmd(h.m.Init())))
	require.Equal(t, model.PhaseLobby, h.m.Phase())
	assert.Equal(t, "alice", h.m.DisplayName())

	h.update(find[model.RoomsLoadedMsg](t, runCmd(cmd)))
	assert.Equal(t, []string{"0001", "0002"}, h.m.Lobby().Entries())
	assert.Contains(t, h.m.View(), "0002")
}

func TestInitialRoom_JoinsAfterIdentity(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{InitialRoom: "0042"})
	h.conn.On("Connect", mock.Anything, "0042", "alice").Return(nil).Once()

	cmd := h.update(model.IdentityMsg{Name: "alice"})
	assert.Equal(t, model.PhaseRoom, h.m.Phase())
	assert.Equal(t, 1, h.dials)

	h.update(find[model.ConnectedMsg](t, runCmd(cmd)))
	h.conn.AssertExpectations(t)
}

func TestRoom_EventsReachTheLog(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.enterRoom(t)

	h.conn.Push(protocol.RosterUpdate{
		RoomID:      "0042",
		Name:        protocol.ServerName,
		Message:     "alice joined",
		AllUsers:    []string{protocol.AnonymousName, "alice", "bob"},
		OnlineUsers: []string{protocol.AnonymousName, "alice", "bob"},
	})
	h.conn.Push(protocol.Broadcast{RoomID: "0042", Name: "bob", Message: "hello alice"})

	listen := h.update(find[model.EventMsg](t, runCmd(h.update(model.ConnectedMsg{Conn: h.conn}))))
	h.update(find[model.EventMsg](t, runCmd(listen)))

	s := h.m.Session()
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "hello alice", s.Messages[1].Text)
	assert.Equal(t, []string{"bob"}, s.Recipients())
	assert.Contains(t, h.m.View(), "0042 : bob→")
}

func TestRoom_StaleConnectionMessagesIgnored(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.enterRoom(t)

	stale := testutil.NewMockRoomConn()
	h.update(model.EventMsg{Conn: stale, Event: protocol.Broadcast{RoomID: "0001", Name: "bob", Message: "old"}})
	h.update(model.ConnectionClosedMsg{Conn: stale})

	assert.Empty(t, h.m.Session().Messages)
	assert.Nil(t, h.m.GetCurrentNotification())
}

func TestRoom_ConnectionClosedNotifies(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.enterRoom(t)

	h.conn.Hangup()
	h.update(find[model.ConnectionClosedMsg](t, runCmd(h.update(model.ConnectedMsg{Conn: h.conn}))))

	n := h.m.GetCurrentNotification()
	require.NotNil(t, n)
	assert.Equal(t, model.NotifyConnection, n.Type)
}

func TestRoom_SendClearsInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.enterRoom(t)
	h.conn.On("Send", "hi all", "").Return(nil).Once()

	h.m.Input().SetValue("hi all")
	h.key(tea.KeyEnter)

	assert.Empty(t, h.m.Input().Value())
	h.conn.AssertExpectations(t)
}

func TestRoom_SendPrivateToSelectedRecipient(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.enterRoom(t)
	h.m.Session().OnlineUsers = []string{protocol.AnonymousName, "alice", "bob"}
	h.conn.On("Send", "psst", "bob").Return(nil).Once()

	h.key(tea.KeyTab)
	assert.Equal(t, "bob", h.m.Recipient())

	h.m.Input().SetValue("psst")
	h.key(tea.KeyEnter)
	h.conn.AssertExpectations(t)

	h.key(tea.KeyTab)
	assert.Empty(t, h.m.Recipient())
}

func TestRoom_EmptySendIsSilent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.enterRoom(t)
	h.conn.On("Send", "", "").Return(apperrors.ErrEmptyMessage).Once()

	h.key(tea.KeyEnter)
	assert.Nil(t, h.m.GetCurrentNotification())
}

func TestRoom_FailedSendKeepsInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.enterRoom(t)
	h.conn.On("Send", "hi", "").Return(apperrors.ErrSendBufferFull).Once()

	h.m.Input().SetValue("hi")
	h.key(tea.KeyEnter)

	assert.Equal(t, "hi", h.m.Input().Value())
	n := h.m.GetCurrentNotification()
	require.NotNil(t, n)
	assert.Equal(t, model.NotifyError, n.Type)
}

func TestRoom_TypingIgnoresStaleExpiry(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.enterRoom(t)
	typing := h.m.Session().Typing

	h.runes("a")
	h.runes("b")
	require.True(t, typing.Visible())

	h.update(model.TypingExpiredMsg{Gen: 1})
	assert.True(t, typing.Visible(), "expiry of an earlier keystroke must not hide the indicator")

	h.update(model.TypingExpiredMsg{Gen: 2})
	assert.False(t, typing.Visible())
	assert.Equal(t, "ab", h.m.Input().Value())
}

func TestRoom_TypingExpiresAfterTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{TypingTimeout: 10 * time.Millisecond})
	h.enterRoom(t)

	expired := find[model.TypingExpiredMsg](t, runCmd(h.runes("x")))
	h.update(expired)
	assert.False(t, h.m.Session().Typing.Visible())
}

func TestConfirm_DeclineMakesNoRequest(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.enterRoom(t)

	h.key(tea.KeyCtrlD)
	require.Equal(t, model.PhaseConfirm, h.m.Phase())
	assert.Contains(t, h.m.View(), "0042")

	cmd := h.runes("n")
	runCmd(cmd)

	assert.Equal(t, model.PhaseRoom, h.m.Phase())
	assert.Nil(t, h.m.Confirm())
	assert.NotNil(t, h.m.Session())
	h.api.AssertNotCalled(t, "DeleteOrLeave", mock.Anything, mock.Anything)
	h.api.AssertNotCalled(t, "DeleteRoom", mock.Anything, mock.Anything)
}

func TestConfirm_AcceptRunsDeleteOrLeave(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		exit api.RoomExit
		want string
	}{
		{name: "owner deletes", exit: api.RoomDeleted, want: "room 0042 deleted"},
		{name: "member leaves", exit: api.RoomLeft, want: "room 0042 left"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, model.Options{})
			h.enterRoom(t)
			h.api.On("DeleteOrLeave", mock.Anything, "0042").Return(tt.exit, nil).Once()
			h.api.On("Rooms", mock.Anything).Return([]string{}, nil).Maybe()
			h.api.On("JoinRooms", mock.Anything).Return([]string{}, nil).Maybe()

			h.key(tea.KeyCtrlD)
			exit := find[model.RoomExitMsg](t, runCmd(h.runes("y")))
			h.update(exit)

			assert.Equal(t, model.PhaseLobby, h.m.Phase())
			assert.Nil(t, h.m.Session())
			n := h.m.GetCurrentNotification()
			require.NotNil(t, n)
			assert.Equal(t, tt.want, n.Message)
			h.api.AssertNumberOfCalls(t, "DeleteOrLeave", 1)
		})
	}
}

// brokenTranscript fails every write and records which rooms were dropped.
type brokenTranscript struct {
	deleted []string
}

func (b *brokenTranscript) Append(client.MessageLine) error { return errors.New("disk full") }

func (b *brokenTranscript) LoadRecent(string, int) ([]client.MessageLine, error) { return nil, nil }

func (b *brokenTranscript) DeleteRoom(roomID string) error {
	b.deleted = append(b.deleted, roomID)
	return errors.New("disk full")
}

func TestHistory_DeleteFailureStillFinishesRoomDeletion(t *testing.T) {
	t.Parallel()

	t.Run("lobby delete", func(t *testing.T) {
		t.Parallel()
		transcript := &brokenTranscript{}
		h := newHarnessWithHistory(t, model.Options{}, transcript)
		h.update(model.IdentityMsg{Name: "alice"})

		cmd := h.update(model.RoomDeletedMsg{RoomID: "0042"})

		assert.NotNil(t, cmd, "rooms are refreshed")
		assert.Equal(t, []string{"0042"}, transcript.deleted)
		n := h.m.GetCurrentNotification()
		require.NotNil(t, n)
		assert.Equal(t, "deleted room 0042", n.Message)
	})

	t.Run("delete from the room", func(t *testing.T) {
		t.Parallel()
		transcript := &brokenTranscript{}
		h := newHarnessWithHistory(t, model.Options{}, transcript)
		h.enterRoom(t)

		h.update(model.RoomExitMsg{RoomID: "0042", Exit: api.RoomDeleted})

		assert.Equal(t, model.PhaseLobby, h.m.Phase())
		assert.Equal(t, []string{"0042"}, transcript.deleted)
	})
}

func TestConfirm_FailedDeleteOrLeaveStaysInRoom(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.enterRoom(t)
	h.api.On("DeleteOrLeave", mock.Anything, "0042").Return(api.RoomLeft, errors.New("boom")).Once()

	h.key(tea.KeyCtrlD)
	h.update(find[model.RoomExitMsg](t, runCmd(h.runes("y"))))

	assert.Equal(t, model.PhaseRoom, h.m.Phase())
	assert.NotNil(t, h.m.Session())
}

func TestLogin_InvalidPasswordNeverReachesNetwork(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.update(model.IdentityMsg{})
	require.Equal(t, model.PhaseLogin, h.m.Phase())

	h.m.Form().SetValue(0, "alice")
	h.m.Form().SetValue(1, "short")
	assert.Nil(t, h.key(tea.KeyEnter))

	assert.NotEmpty(t, h.m.Form().Error)
	assert.Contains(t, h.m.View(), h.m.Form().Error[:10])
	h.api.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_SuccessResolvesIdentityAgain(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.update(model.IdentityMsg{})
	h.api.On("Login", mock.Anything, "alice", "passw0rd!").Return(nil).Once()
	h.api.On("ResolveIdentity", mock.Anything).Return("alice", nil).Once()

	h.m.Form().SetValue(0, "alice")
	h.m.Form().SetValue(1, "passw0rd!")
	cmd := h.update(find[model.AuthMsg](t, runCmd(h.key(tea.KeyEnter))))

	assert.Equal(t, model.PhaseConnecting, h.m.Phase())
	identity := find[model.IdentityMsg](t, runCmd(cmd))
	assert.Equal(t, "alice", identity.Name)
}

func TestSignup_SuccessPrefillsLogin(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.update(model.IdentityMsg{})
	h.key(tea.KeyCtrlN)
	require.Equal(t, model.PhaseSignup, h.m.Phase())
	h.api.On("Signup", mock.Anything, "carol", "s3cretpass", "s3cretpass").Return(nil).Once()

	f := h.m.Form()
	f.SetValue(0, "carol")
	f.SetValue(1, "s3cretpass")
	f.SetValue(2, "s3cretpass")
	h.update(find[model.AuthMsg](t, runCmd(h.key(tea.KeyEnter))))

	assert.Equal(t, model.PhaseLogin, h.m.Phase())
	assert.Equal(t, "carol", h.m.Form().Value(0))
}

func TestLobby_DeleteWithEmptyIDIsNoop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.api.On("Rooms", mock.Anything).Return([]string{}, nil).Maybe()
	h.api.On("JoinRooms", mock.Anything).Return([]string{}, nil).Maybe()
	h.update(model.IdentityMsg{Name: "alice"})

	assert.Nil(t, h.key(tea.KeyCtrlD))
	h.api.AssertNotCalled(t, "DeleteRoom", mock.Anything, mock.Anything)
}

func TestLobby_EnterJoinsTypedRoom(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.api.On("Rooms", mock.Anything).Return([]string{}, nil).Maybe()
	h.api.On("JoinRooms", mock.Anything).Return([]string{}, nil).Maybe()
	h.update(model.IdentityMsg{Name: "alice"})

	h.m.Input().SetValue("0042")
	h.key(tea.KeyEnter)

	assert.Equal(t, model.PhaseRoom, h.m.Phase())
	assert.Equal(t, "0042", h.m.Session().RoomID)
	assert.Equal(t, 1, h.dials)
}

func TestUserMenu_DeleteUserNeedsConfirm(t *testing.T) {
	t.Parallel()

	h := newHarness(t, model.Options{})
	h.api.On("Rooms", mock.Anything).Return([]string{}, nil).Maybe()
	h.api.On("JoinRooms", mock.Anything).Return([]string{}, nil).Maybe()
	h.api.On("DeleteUser", mock.Anything).Return(nil).Once()
	h.update(model.IdentityMsg{Name: "alice"})

	h.key(tea.KeyCtrlU)
	require.Equal(t, model.PhaseUserMenu, h.m.Phase())
	h.runes("3")
	require.Equal(t, model.PhaseConfirm, h.m.Phase())

	h.update(find[model.LoggedOutMsg](t, runCmd(h.runes("y"))))
	assert.Equal(t, model.PhaseLogin, h.m.Phase())
	h.api.AssertExpectations(t)
}
