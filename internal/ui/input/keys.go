// Package input handles keyboard input processing.
package input

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/palemoky/roomchat/internal/ui/model"
)

// KeyHandlerFunc handles a key press in one phase.
type KeyHandlerFunc func(m model.Model, msg tea.KeyMsg) (bool, tea.Cmd)

var phaseHandlers = map[model.Phase]KeyHandlerFunc{
	model.PhaseConnecting:     handleConnectingKeys,
	model.PhaseLogin:          handleAccountFormKeys,
	model.PhaseSignup:         handleAccountFormKeys,
	model.PhaseLobby:          handleLobbyKeys,
	model.PhaseRoom:           handleRoomKeys,
	model.PhaseUserMenu:       handleUserMenuKeys,
	model.PhaseChangePassword: handleChangePasswordKeys,
	model.PhaseConfirm:        handleConfirmKeys,
}

// HandleKeyPress processes a key for the current phase. It returns whether
// the key was consumed; unconsumed keys reach the focused text field.
func HandleKeyPress(m model.Model, msg tea.KeyMsg) (bool, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return true, tea.Quit
	}
	if h, ok := phaseHandlers[m.Phase()]; ok {
		return h(m, msg)
	}
	return false, nil
}

func handleConnectingKeys(_ model.Model, msg tea.KeyMsg) (bool, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		return true, tea.Quit
	}
	return true, nil
}

// handleFormNavigation moves focus between fields.
func handleFormNavigation(m model.Model, msg tea.KeyMsg) bool {
	f := m.Form()
	if f == nil {
		return false
	}
	switch msg.Type {
	case tea.KeyTab, tea.KeyDown:
		f.Move(1)
		return true
	case tea.KeyShiftTab, tea.KeyUp:
		f.Move(-1)
		return true
	}
	return false
}

func handleAccountFormKeys(m model.Model, msg tea.KeyMsg) (bool, tea.Cmd) {
	if handleFormNavigation(m, msg) {
		return true, nil
	}
	switch msg.Type {
	case tea.KeyEnter:
		return true, m.SubmitForm()
	case tea.KeyCtrlN:
		m.ShowLogin(m.Phase() == model.PhaseLogin)
		return true, nil
	case tea.KeyEsc:
		return true, tea.Quit
	}
	return false, nil
}

func handleChangePasswordKeys(m model.Model, msg tea.KeyMsg) (bool, tea.Cmd) {
	if handleFormNavigation(m, msg) {
		return true, nil
	}
	switch msg.Type {
	case tea.KeyEnter:
		return true, m.SubmitForm()
	case tea.KeyEsc:
		m.SetPhase(model.PhaseUserMenu)
		return true, nil
	}
	return false, nil
}

// lobbyTarget is the typed room id, or the highlighted one.
func lobbyTarget(m model.Model) string {
	if id := strings.TrimSpace(m.Input().Value()); id != "" {
		return id
	}
	return m.Lobby().SelectedRoom()
}

func handleLobbyKeys(m model.Model, msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		m.Lobby().Move(-1)
		return true, nil
	case tea.KeyDown:
		m.Lobby().Move(1)
		return true, nil
	case tea.KeyEnter:
		return true, m.EnterRoom(lobbyTarget(m))
	case tea.KeyCtrlN:
		return true, m.CreateRoom()
	case tea.KeyCtrlD:
		id := lobbyTarget(m)
		m.Input().Reset()
		return true, m.DeleteRoom(id)
	case tea.KeyCtrlR:
		return true, m.RefreshRooms()
	case tea.KeyCtrlU:
		m.SetPhase(model.PhaseUserMenu)
		return true, nil
	case tea.KeyEsc:
		return true, tea.Quit
	}
	return false, nil
}

// nextRecipient cycles "" (everyone) and each private recipient.
func nextRecipient(current string, recipients []string) string {
	options := append([]string{""}, recipients...)
	for i, name := range options {
		if name == current {
			return options[(i+1)%len(options)]
		}
	}
	return ""
}

func handleRoomKeys(m model.Model, msg tea.KeyMsg) (bool, tea.Cmd) {
	s := m.Session()
	switch msg.Type {
	case tea.KeyEnter:
		return true, m.SendChat()
	case tea.KeyTab:
		if s != nil {
			m.SetRecipient(nextRecipient(m.Recipient(), s.Recipients()))
		}
		return true, nil
	case tea.KeyCtrlD:
		if s == nil {
			return true, nil
		}
		m.AskConfirm(model.Confirm{
			Kind:   model.ConfirmDeleteOrLeave,
			RoomID: s.RoomID,
			Prompt: fmt.Sprintf("delete room %s if you own it, otherwise leave it?", s.RoomID),
			Return: model.PhaseRoom,
		})
		return true, nil
	case tea.KeyEsc:
		return true, m.LeaveRoomView()
	case tea.KeyRunes, tea.KeySpace, tea.KeyBackspace, tea.KeyDelete:
		return false, m.Keystroke()
	}
	return false, nil
}

func handleUserMenuKeys(m model.Model, msg tea.KeyMsg) (bool, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		return true, m.EnterLobby()
	}
	switch msg.String() {
	case "1":
		m.ShowChangePassword()
	case "2":
		return true, m.Logout()
	case "3":
		m.AskConfirm(model.Confirm{
			Kind:   model.ConfirmDeleteUser,
			Prompt: fmt.Sprintf("delete account %s and all its rooms?", m.DisplayName()),
			Return: model.PhaseUserMenu,
		})
	}
	return true, nil
}

// handleConfirmKeys runs the pending action on "y". Declining returns to the
// previous screen without any request.
func handleConfirmKeys(m model.Model, msg tea.KeyMsg) (bool, tea.Cmd) {
	c := m.Confirm()
	if c == nil {
		m.SetPhase(model.PhaseLobby)
		return true, nil
	}
	pending := *c

	switch {
	case msg.String() == "y" || msg.String() == "Y":
		m.SetPhase(pending.Return)
		switch pending.Kind {
		case model.ConfirmDeleteOrLeave:
			return true, m.DeleteOrLeave(pending.RoomID)
		case model.ConfirmDeleteUser:
			return true, m.DeleteUser()
		}
		return true, nil
	case msg.String() == "n" || msg.String() == "N" || msg.Type == tea.KeyEsc:
		m.SetPhase(pending.Return)
		return true, m.SetNotification(model.NotifyInfo, "cancelled", true)
	}
	return true, nil
}
