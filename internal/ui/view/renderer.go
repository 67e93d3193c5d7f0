// Package view provides UI rendering functions.
package view

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/palemoky/roomchat/internal/ui/common"
	"github.com/palemoky/roomchat/internal/ui/model"
)

// CreateViewRenderer creates a view renderer function that can be injected into ChatModel.
func CreateViewRenderer() func(model.Model, model.Phase) string {
	return func(m model.Model, phase model.Phase) string {
		var body string
		switch phase {
		case model.PhaseLogin, model.PhaseSignup, model.PhaseChangePassword:
			body = FormView(m.Form(), m.Width())
		case model.PhaseLobby:
			body = LobbyView(m)
		case model.PhaseRoom:
			body = RoomView(m)
		case model.PhaseUserMenu:
			body = UserMenuView(m)
		case model.PhaseConfirm:
			body = ConfirmView(m.Confirm(), m.Width())
		default:
			return "Unknown phase"
		}
		return withNotification(m, body)
	}
}

// withNotification puts the current notification under body.
func withNotification(m model.Model, body string) string {
	n := m.GetCurrentNotification()
	if n == nil {
		return body
	}
	return body + "\n" + lipgloss.PlaceHorizontal(m.Width(), lipgloss.Center, NotificationLine(n))
}

// NotificationLine renders n in the style of its type.
func NotificationLine(n *model.SystemNotification) string {
	switch n.Type {
	case model.NotifyError:
		return common.ErrorStyle.Render("⚠ " + n.Message)
	case model.NotifyConnection:
		return common.MutedStyle.Render(n.Message)
	default:
		return common.InfoStyle.Render(n.Message)
	}
}

// helpLine joins key hints.
func helpLine(hints ...string) string {
	return common.MutedStyle.Render(strings.Join(hints, " • "))
}
