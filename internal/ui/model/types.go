// Package model defines the core types and interfaces for the UI.
package model

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/palemoky/roomchat/internal/api"
	"github.com/palemoky/roomchat/internal/client"
	"github.com/palemoky/roomchat/internal/protocol"
	"github.com/palemoky/roomchat/internal/types"
)

// Phase is the screen currently shown.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseLogin
	PhaseSignup
	PhaseLobby
	PhaseRoom
	PhaseUserMenu
	PhaseChangePassword
	PhaseConfirm
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseLogin:
		return "login"
	case PhaseSignup:
		return "signup"
	case PhaseLobby:
		return "lobby"
	case PhaseRoom:
		return "room"
	case PhaseUserMenu:
		return "usermenu"
	case PhaseChangePassword:
		return "changepassword"
	case PhaseConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// NotificationType orders notifications by priority.
type NotificationType int

const (
	NotifyError      NotificationType = iota // temporary
	NotifyInfo                               // temporary
	NotifyConnection                         // persistent while the room is mounted
)

// SystemNotification is a one-line status message.
type SystemNotification struct {
	Message   string
	Type      NotificationType
	Temporary bool // cleared after notificationTTL
}

// ConfirmKind is the action waiting for a yes/no.
type ConfirmKind int

const (
	ConfirmDeleteOrLeave ConfirmKind = iota
	ConfirmDeleteUser
)

// Confirm is a pending confirmation prompt.
type Confirm struct {
	Kind   ConfirmKind
	RoomID string
	Prompt string
	Return Phase // shown again when declined
}

// LobbyState is the room list screen.
type LobbyState struct {
	Owned    []string
	Joined   []string
	Selected int
}

// Entries lists owned rooms first, then joined rooms not already owned.
func (l *LobbyState) Entries() []string {
	out := make([]string, 0, len(l.Owned)+len(l.Joined))
	seen := make(map[string]bool, len(l.Owned))
	for _, id := range l.Owned {
		out = append(out, id)
		seen[id] = true
	}
	for _, id := range l.Joined {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

// SelectedRoom returns the highlighted room id, or "".
func (l *LobbyState) SelectedRoom() string {
	entries := l.Entries()
	if l.Selected < 0 || l.Selected >= len(entries) {
		return ""
	}
	return entries[l.Selected]
}

// Move shifts the selection by delta, wrapping around.
func (l *LobbyState) Move(delta int) {
	n := len(l.Entries())
	if n == 0 {
		l.Selected = 0
		return
	}
	l.Selected = ((l.Selected+delta)%n + n) % n
}

// --- Tea Messages ---

// IdentityMsg carries the result of the identity fetch.
type IdentityMsg struct {
	Name string
	Err  error
}

// ConnectedMsg reports a joined room connection.
type ConnectedMsg struct {
	Conn types.RoomConn
}

// ConnectionErrorMsg reports a failed dial.
type ConnectionErrorMsg struct {
	Conn types.RoomConn
	Err  error
}

// EventMsg wraps an inbound event.
type EventMsg struct {
	Conn  types.RoomConn
	Event protocol.Event
}

// ConnectionClosedMsg reports that the room connection ended.
type ConnectionClosedMsg struct {
	Conn types.RoomConn
}

// TypingExpiredMsg fires TypingTimeout after a keystroke.
type TypingExpiredMsg struct {
	Gen uint64
}

// HistoryLoadedMsg carries the local transcript of a room.
type HistoryLoadedMsg struct {
	RoomID string
	Lines  []client.MessageLine
}

// RoomsLoadedMsg carries both lobby lists.
type RoomsLoadedMsg struct {
	Owned  []string
	Joined []string
	Err    error
}

// RoomCreatedMsg reports a new room.
type RoomCreatedMsg struct {
	RoomID string
	Err    error
}

// RoomDeletedMsg reports a lobby delete.
type RoomDeletedMsg struct {
	RoomID string
	Err    error
}

// RoomExitMsg reports the outcome of delete-or-leave.
type RoomExitMsg struct {
	RoomID string
	Exit   api.RoomExit
	Err    error
}

// AuthMsg reports a login or signup result.
type AuthMsg struct {
	Signup bool
	Err    error
}

// LoggedOutMsg reports logout or account deletion.
type LoggedOutMsg struct {
	Deleted bool
	Err     error
}

// PasswordChangedMsg reports a password change.
type PasswordChangedMsg struct {
	Err error
}

// ClearNotificationMsg clears temporary notifications.
type ClearNotificationMsg struct{}

// --- Model Interface ---

// Model is the interface of ChatModel used by the handler, view and input
// packages.
type Model interface {
	// Phase management
	Phase() Phase
	SetPhase(Phase)

	// Identity and room state
	DisplayName() string
	Session() *client.Session
	Lobby() *LobbyState
	Recipient() string
	SetRecipient(string)

	// UI components
	Input() *textinput.Model
	Form() *Form
	Confirm() *Confirm
	AskConfirm(Confirm)

	// Notification management
	SetNotification(notifyType NotificationType, message string, temporary bool) tea.Cmd
	ClearNotification(notifyType NotificationType)
	GetCurrentNotification() *SystemNotification

	// Actions
	ShowLogin(signup bool)
	ShowChangePassword()
	EnterLobby() tea.Cmd
	EnterRoom(roomID string) tea.Cmd
	LeaveRoomView() tea.Cmd
	SendChat() tea.Cmd
	Keystroke() tea.Cmd
	RefreshRooms() tea.Cmd
	CreateRoom() tea.Cmd
	DeleteRoom(roomID string) tea.Cmd
	DeleteOrLeave(roomID string) tea.Cmd
	SubmitForm() tea.Cmd
	Logout() tea.Cmd
	DeleteUser() tea.Cmd
	RecordLine(line client.MessageLine)

	// Sound
	PlaySound(name string)

	// Dimensions
	Width() int
	Height() int
}
