// Package model contains the UI model implementations.
package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/palemoky/roomchat/internal/api"
	"github.com/palemoky/roomchat/internal/apperrors"
	"github.com/palemoky/roomchat/internal/client"
	"github.com/palemoky/roomchat/internal/logger"
	"github.com/palemoky/roomchat/internal/protocol"
	"github.com/palemoky/roomchat/internal/sound"
	"github.com/palemoky/roomchat/internal/types"
	"github.com/palemoky/roomchat/internal/ui/common"
)

const (
	notificationTTL = 3 * time.Second
	requestTimeout  = 10 * time.Second
	connectTimeout  = 15 * time.Second

	lobbyPlaceholder = "room id (enter: join, ctrl+n: new room)"
	roomPlaceholder  = "message (enter: send, tab: recipient)"
)

// Options tune the chat model.
type Options struct {
	TypingTimeout   time.Duration
	IdentityTimeout time.Duration
	ShowJoinLines   bool
	HistoryLimit    int
	// InitialRoom is entered right after the identity resolves.
	InitialRoom string
}

// Deps are the collaborators of the chat model.
type Deps struct {
	API     types.ChatAPI
	Dial    func() types.RoomConn
	History types.Transcript // nil disables local history
	Sound   *sound.Player
}

// ChatModel is the root bubbletea model of the client.
type ChatModel struct {
	api     types.ChatAPI
	dial    func() types.RoomConn
	history types.Transcript
	sound   *sound.Player
	opts    Options

	phase       Phase
	displayName string

	// Room view, nil outside PhaseRoom.
	session   *client.Session
	conn      types.RoomConn
	recipient string

	lobby   LobbyState
	form    *Form
	confirm *Confirm

	notifications map[NotificationType]*SystemNotification

	input  *textinput.Model
	width  int
	height int

	// View renderer (injected to break circular import)
	viewRenderer func(Model, Phase) string

	// Key handler (injected to break circular import)
	keyHandler func(Model, tea.KeyMsg) (bool, tea.Cmd)

	// Event handler (injected to break circular import)
	eventHandler func(Model, protocol.Event) tea.Cmd
}

// NewChatModel creates the model in the connecting phase.
func NewChatModel(deps Deps, opts Options) *ChatModel {
	ti := textinput.New()
	ti.Placeholder = lobbyPlaceholder
	ti.CharLimit = 2000
	ti.Width = 50

	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = client.DefaultTypingTimeout
	}
	if opts.IdentityTimeout <= 0 {
		opts.IdentityTimeout = requestTimeout
	}

	return &ChatModel{
		api:           deps.API,
		dial:          deps.Dial,
		history:       deps.History,
		sound:         deps.Sound,
		opts:          opts,
		phase:         PhaseConnecting,
		input:         &ti,
		notifications: make(map[NotificationType]*SystemNotification),
	}
}

func (m *ChatModel) Init() tea.Cmd {
	if m.sound != nil {
		go func() {
			if err := m.sound.Load(); err != nil {
				logger.LogError("load sound cues: %v", err)
			}
		}()
	}
	return tea.Batch(m.resolveIdentity(), textinput.Blink)
}

// --- commands ---

func (m *ChatModel) resolveIdentity() tea.Cmd {
	chat := m.api
	timeout := m.opts.IdentityTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		name, err := chat.ResolveIdentity(ctx)
		return IdentityMsg{Name: name, Err: err}
	}
}

func connectCmd(conn types.RoomConn, roomID, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := conn.Connect(ctx, roomID, name); err != nil {
			return ConnectionErrorMsg{Conn: conn, Err: err}
		}
		return ConnectedMsg{Conn: conn}
	}
}

func listenCmd(conn types.RoomConn) tea.Cmd {
	return func() tea.Msg {
		// drain buffered events before reporting the close
		select {
		case ev := <-conn.Receive():
			return EventMsg{Conn: conn, Event: ev}
		default:
		}
		select {
		case ev := <-conn.Receive():
			return EventMsg{Conn: conn, Event: ev}
		case <-conn.Done():
			return ConnectionClosedMsg{Conn: conn}
		}
	}
}

func (m *ChatModel) loadHistory(roomID string) tea.Cmd {
	if m.history == nil {
		return nil
	}
	store, limit := m.history, m.opts.HistoryLimit
	return func() tea.Msg {
		lines, err := store.LoadRecent(roomID, limit)
		if err != nil {
			logger.LogError("load history for %s: %v", roomID, err)
		}
		return HistoryLoadedMsg{RoomID: roomID, Lines: lines}
	}
}

func withTimeout(fn func(ctx context.Context) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return fn(ctx)
	}
}

// --- Model interface implementation ---

func (m *ChatModel) Phase() Phase                 { return m.phase }
func (m *ChatModel) DisplayName() string          { return m.displayName }
func (m *ChatModel) Session() *client.Session     { return m.session }
func (m *ChatModel) Lobby() *LobbyState           { return &m.lobby }
func (m *ChatModel) Recipient() string            { return m.recipient }
func (m *ChatModel) SetRecipient(name string)     { m.recipient = name }
func (m *ChatModel) Input() *textinput.Model      { return m.input }
func (m *ChatModel) Form() *Form                  { return m.form }
func (m *ChatModel) Confirm() *Confirm            { return m.confirm }
func (m *ChatModel) Width() int                   { return m.width }
func (m *ChatModel) Height() int                  { return m.height }
func (m *ChatModel) Conn() types.RoomConn         { return m.conn }
func (m *ChatModel) Notifications() map[NotificationType]*SystemNotification {
	return m.notifications
}

// SetPhase switches screens. Leaving the confirm screen drops the prompt.
func (m *ChatModel) SetPhase(p Phase) {
	if p != PhaseConfirm {
		m.confirm = nil
	}
	m.phase = p
}

// AskConfirm shows a yes/no prompt.
func (m *ChatModel) AskConfirm(c Confirm) {
	m.confirm = &c
	m.phase = PhaseConfirm
}

func (m *ChatModel) SetNotification(notifyType NotificationType, message string, temporary bool) tea.Cmd {
	m.notifications[notifyType] = &SystemNotification{
		Message:   message,
		Type:      notifyType,
		Temporary: temporary,
	}
	if !temporary {
		return nil
	}
	return tea.Tick(notificationTTL, func(time.Time) tea.Msg {
		return ClearNotificationMsg{}
	})
}

func (m *ChatModel) ClearNotification(notifyType NotificationType) {
	delete(m.notifications, notifyType)
}

func (m *ChatModel) GetCurrentNotification() *SystemNotification {
	for _, notifyType := range []NotificationType{NotifyError, NotifyConnection, NotifyInfo} {
		if n, ok := m.notifications[notifyType]; ok {
			return n
		}
	}
	return nil
}

func (m *ChatModel) PlaySound(name string) {
	if m.sound != nil {
		m.sound.Play(name)
	}
}

// RecordLine appends a rendered line to the local transcript.
func (m *ChatModel) RecordLine(line client.MessageLine) {
	if m.history == nil {
		return
	}
	if err := m.history.Append(line); err != nil {
		logger.LogError("append history: %v", err)
	}
}

// forgetRoom drops the local transcript of a deleted room.
func (m *ChatModel) forgetRoom(roomID string) {
	if m.history == nil {
		return
	}
	if err := m.history.DeleteRoom(roomID); err != nil {
		logger.LogError("delete history of %s: %v", roomID, err)
	}
}

// closeRoom tears down the mounted room, if any.
func (m *ChatModel) closeRoom() {
	if m.conn != nil {
		m.conn.Close()
	}
	m.conn = nil
	m.session = nil
	m.recipient = ""
	m.ClearNotification(NotifyConnection)
}

// ShowLogin drops any room and shows the login (or signup) form.
func (m *ChatModel) ShowLogin(signup bool) {
	m.closeRoom()
	m.displayName = ""
	if signup {
		m.form = NewForm(FormSignup)
		m.SetPhase(PhaseSignup)
	} else {
		m.form = NewForm(FormLogin)
		m.SetPhase(PhaseLogin)
	}
}

// EnterLobby shows the room list and refreshes it.
func (m *ChatModel) EnterLobby() tea.Cmd {
	m.closeRoom()
	m.form = nil
	m.SetPhase(PhaseLobby)
	m.input.Reset()
	m.input.Placeholder = lobbyPlaceholder
	m.input.Focus()
	return m.RefreshRooms()
}

// EnterRoom mounts the room view for roomID and dials it. An empty id is a
// no-op.
func (m *ChatModel) EnterRoom(roomID string) tea.Cmd {
	if roomID == "" || m.displayName == "" {
		return nil
	}
	m.closeRoom()

	m.session = client.NewSession(m.displayName, roomID, m.opts.TypingTimeout)
	m.session.ShowJoinLines = m.opts.ShowJoinLines
	m.conn = m.dial()
	m.SetPhase(PhaseRoom)
	m.input.Reset()
	m.input.Placeholder = roomPlaceholder
	m.input.Focus()
	m.SetNotification(NotifyConnection, fmt.Sprintf("connecting to room %s...", roomID), false)

	return tea.Batch(connectCmd(m.conn, roomID, m.displayName), m.loadHistory(roomID))
}

// LeaveRoomView unmounts the room and returns to the lobby. Membership is
// unchanged.
func (m *ChatModel) LeaveRoomView() tea.Cmd {
	return m.EnterLobby()
}

// SendChat sends the input text to the room or the selected recipient and
// clears the input on success.
func (m *ChatModel) SendChat() tea.Cmd {
	if m.conn == nil {
		return nil
	}
	err := m.conn.Send(m.input.Value(), m.recipient)
	switch {
	case err == nil:
		m.input.Reset()
		return nil
	case errors.Is(err, apperrors.ErrEmptyMessage):
		return nil
	default:
		return m.SetNotification(NotifyError, fmt.Sprintf("send failed: %v", err), true)
	}
}

// Keystroke shows the typing indicator and schedules its expiry.
func (m *ChatModel) Keystroke() tea.Cmd {
	if m.session == nil {
		return nil
	}
	gen := m.session.Typing.Keystroke()
	return tea.Tick(m.session.Typing.Timeout(), func(time.Time) tea.Msg {
		return TypingExpiredMsg{Gen: gen}
	})
}

func (m *ChatModel) RefreshRooms() tea.Cmd {
	chat := m.api
	return withTimeout(func(ctx context.Context) tea.Msg {
		owned, err := chat.Rooms(ctx)
		if err != nil {
			return RoomsLoadedMsg{Err: err}
		}
		joined, err := chat.JoinRooms(ctx)
		return RoomsLoadedMsg{Owned: owned, Joined: joined, Err: err}
	})
}

func (m *ChatModel) CreateRoom() tea.Cmd {
	chat := m.api
	return withTimeout(func(ctx context.Context) tea.Msg {
		id, err := chat.CreateRoom(ctx)
		return RoomCreatedMsg{RoomID: id, Err: err}
	})
}

// DeleteRoom deletes roomID from the lobby. An empty id is a no-op.
func (m *ChatModel) DeleteRoom(roomID string) tea.Cmd {
	if roomID == "" {
		return nil
	}
	chat := m.api
	return withTimeout(func(ctx context.Context) tea.Msg {
		return RoomDeletedMsg{RoomID: roomID, Err: chat.DeleteRoom(ctx, roomID)}
	})
}

// DeleteOrLeave runs the confirmed delete-or-leave of roomID.
func (m *ChatModel) DeleteOrLeave(roomID string) tea.Cmd {
	chat := m.api
	return withTimeout(func(ctx context.Context) tea.Msg {
		exit, err := chat.DeleteOrLeave(ctx, roomID)
		return RoomExitMsg{RoomID: roomID, Exit: exit, Err: err}
	})
}

// SubmitForm validates the form on screen and submits it. Invalid input
// never reaches the network.
func (m *ChatModel) SubmitForm() tea.Cmd {
	f := m.form
	if f == nil || f.Validate() != nil {
		return nil
	}
	chat := m.api
	switch f.Kind {
	case FormLogin:
		user, pw := f.Value(0), f.Value(1)
		return withTimeout(func(ctx context.Context) tea.Msg {
			return AuthMsg{Err: chat.Login(ctx, user, pw)}
		})
	case FormSignup:
		user, pw, check := f.Value(0), f.Value(1), f.Value(2)
		return withTimeout(func(ctx context.Context) tea.Msg {
			return AuthMsg{Signup: true, Err: chat.Signup(ctx, user, pw, check)}
		})
	case FormChangePassword:
		old, pw, check := f.Value(0), f.Value(1), f.Value(2)
		return withTimeout(func(ctx context.Context) tea.Msg {
			return PasswordChangedMsg{Err: chat.ChangePassword(ctx, old, pw, check)}
		})
	}
	return nil
}

func (m *ChatModel) Logout() tea.Cmd {
	chat := m.api
	return withTimeout(func(ctx context.Context) tea.Msg {
		return LoggedOutMsg{Err: chat.Logout(ctx)}
	})
}

func (m *ChatModel) DeleteUser() tea.Cmd {
	chat := m.api
	return withTimeout(func(ctx context.Context) tea.Msg {
		return LoggedOutMsg{Deleted: true, Err: chat.DeleteUser(ctx)}
	})
}

// ShowChangePassword opens the change password form.
func (m *ChatModel) ShowChangePassword() {
	m.form = NewForm(FormChangePassword)
	m.SetPhase(PhaseChangePassword)
}

// --- Update ---

// Update handles tea messages.
func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case IdentityMsg:
		cmds = append(cmds, m.handleIdentity(msg))

	case ConnectedMsg:
		if msg.Conn != m.conn {
			msg.Conn.Close()
			break
		}
		m.ClearNotification(NotifyConnection)
		cmds = append(cmds, listenCmd(m.conn))

	case ConnectionErrorMsg:
		if msg.Conn != m.conn {
			break
		}
		logger.LogError("connect room: %v", msg.Err)
		m.SetNotification(NotifyConnection, fmt.Sprintf("cannot join room: %v (esc: back)", msg.Err), false)

	case EventMsg:
		if msg.Conn != m.conn {
			break
		}
		if m.eventHandler != nil {
			cmds = append(cmds, m.eventHandler(m, msg.Event))
		}
		cmds = append(cmds, listenCmd(m.conn))

	case ConnectionClosedMsg:
		if msg.Conn != m.conn {
			break
		}
		m.SetNotification(NotifyConnection, "connection closed (esc: back)", false)

	case TypingExpiredMsg:
		if m.session != nil {
			m.session.Typing.Expire(msg.Gen)
		}

	case HistoryLoadedMsg:
		if m.session != nil && m.session.RoomID == msg.RoomID {
			m.session.Restore(msg.Lines)
		}

	case RoomsLoadedMsg:
		cmds = append(cmds, m.handleRoomsLoaded(msg))

	case RoomCreatedMsg:
		if msg.Err != nil {
			cmds = append(cmds, m.reportError("create room", msg.Err))
			break
		}
		cmds = append(cmds,
			m.SetNotification(NotifyInfo, fmt.Sprintf("created room %s", msg.RoomID), true),
			m.RefreshRooms())

	case RoomDeletedMsg:
		if msg.Err != nil {
			cmds = append(cmds, m.reportError("delete room", msg.Err))
			break
		}
		m.forgetRoom(msg.RoomID)
		cmds = append(cmds,
			m.SetNotification(NotifyInfo, fmt.Sprintf("deleted room %s", msg.RoomID), true),
			m.RefreshRooms())

	case RoomExitMsg:
		cmds = append(cmds, m.handleRoomExit(msg))

	case AuthMsg:
		cmds = append(cmds, m.handleAuth(msg))

	case LoggedOutMsg:
		if msg.Err != nil {
			cmds = append(cmds, m.reportError("account", msg.Err))
			break
		}
		m.ShowLogin(false)
		if msg.Deleted {
			cmds = append(cmds, m.SetNotification(NotifyInfo, "account deleted", true))
		}

	case PasswordChangedMsg:
		if msg.Err != nil {
			if m.form != nil {
				m.form.Error = msg.Err.Error()
			}
			break
		}
		m.form = nil
		m.SetPhase(PhaseUserMenu)
		cmds = append(cmds, m.SetNotification(NotifyInfo, "password changed", true))

	case ClearNotificationMsg:
		m.ClearNotification(NotifyError)
		m.ClearNotification(NotifyInfo)

	case tea.KeyMsg:
		if m.keyHandler != nil {
			handled, keyCmd := m.keyHandler(m, msg)
			if keyCmd != nil {
				cmds = append(cmds, keyCmd)
			}
			if handled {
				return m, tea.Batch(cmds...)
			}
		}
	}

	cmds = append(cmds, m.updateInputs(msg))
	return m, tea.Batch(cmds...)
}

// updateInputs forwards msg to whichever text field the phase shows.
func (m *ChatModel) updateInputs(msg tea.Msg) tea.Cmd {
	switch m.phase {
	case PhaseLogin, PhaseSignup, PhaseChangePassword:
		if m.form != nil {
			return m.form.Update(msg)
		}
	case PhaseLobby, PhaseRoom:
		newInput, cmd := m.input.Update(msg)
		*m.input = newInput
		return cmd
	}
	return nil
}

func (m *ChatModel) reportError(action string, err error) tea.Cmd {
	logger.LogError("%s: %v", action, err)
	if api.IsUnauthenticated(err) {
		m.ShowLogin(false)
		return nil
	}
	return m.SetNotification(NotifyError, fmt.Sprintf("%s failed: %v", action, err), true)
}

func (m *ChatModel) handleIdentity(msg IdentityMsg) tea.Cmd {
	if msg.Err != nil || msg.Name == "" {
		m.ShowLogin(false)
		return nil
	}
	m.displayName = msg.Name
	if room := m.opts.InitialRoom; room != "" {
		m.opts.InitialRoom = ""
		return m.EnterRoom(room)
	}
	return m.EnterLobby()
}

func (m *ChatModel) handleRoomsLoaded(msg RoomsLoadedMsg) tea.Cmd {
	if msg.Err != nil {
		return m.reportError("load rooms", msg.Err)
	}
	m.lobby.Owned = msg.Owned
	m.lobby.Joined = msg.Joined
	if n := len(m.lobby.Entries()); m.lobby.Selected >= n {
		m.lobby.Selected = max(n-1, 0)
	}
	return nil
}

func (m *ChatModel) handleRoomExit(msg RoomExitMsg) tea.Cmd {
	if msg.Err != nil {
		if m.session != nil {
			m.SetPhase(PhaseRoom)
		}
		return m.reportError("delete or leave room", msg.Err)
	}
	if msg.Exit == api.RoomDeleted {
		m.forgetRoom(msg.RoomID)
	}
	lobby := m.EnterLobby()
	note := m.SetNotification(NotifyInfo, fmt.Sprintf("room %s %s", msg.RoomID, msg.Exit), true)
	return tea.Batch(lobby, note)
}

func (m *ChatModel) handleAuth(msg AuthMsg) tea.Cmd {
	if msg.Err != nil {
		if m.form != nil {
			m.form.Error = msg.Err.Error()
		}
		return nil
	}
	if msg.Signup {
		user := ""
		if m.form != nil {
			user = m.form.Value(0)
		}
		m.ShowLogin(false)
		m.form.SetValue(0, user)
		m.form.Move(1)
		return m.SetNotification(NotifyInfo, "account created, please log in", true)
	}
	m.form = nil
	m.SetPhase(PhaseConnecting)
	return m.resolveIdentity()
}

// View renders the model.
func (m *ChatModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var content string
	switch {
	case m.phase == PhaseConnecting:
		content = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, "resolving identity...")
	case m.viewRenderer != nil:
		content = m.viewRenderer(m, m.phase)
	default:
		content = "View renderer not initialized"
	}
	return common.DocStyle.Render(content)
}

// SetViewRenderer sets the view rendering function.
func (m *ChatModel) SetViewRenderer(fn func(Model, Phase) string) {
	m.viewRenderer = fn
}

// SetKeyHandler sets the keyboard event handler function.
func (m *ChatModel) SetKeyHandler(fn func(Model, tea.KeyMsg) (bool, tea.Cmd)) {
	m.keyHandler = fn
}

// SetEventHandler sets the inbound event handler function.
func (m *ChatModel) SetEventHandler(fn func(Model, protocol.Event) tea.Cmd) {
	m.eventHandler = fn
}
