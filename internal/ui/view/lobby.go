package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/palemoky/roomchat/internal/ui/common"
	"github.com/palemoky/roomchat/internal/ui/model"
)

// LobbyView renders the room list.
func LobbyView(m model.Model) string {
	width := m.Width()
	lobby := m.Lobby()

	var sb strings.Builder
	title := common.TitleStyle(fmt.Sprintf("roomchat: %s", m.DisplayName()))
	sb.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, title))
	sb.WriteString("\n\n")

	list := RenderRoomList(lobby.Owned, lobby.Entries(), lobby.Selected)
	sb.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, common.BoxStyle.Width(40).Render(list)))
	sb.WriteString("\n\n")

	sb.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, m.Input().View()))
	sb.WriteString("\n")
	sb.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
		helpLine("↑/↓ select", "enter join", "ctrl+n new room", "ctrl+d delete room", "ctrl+r refresh", "ctrl+u account", "esc quit")))
	return sb.String()
}

// RenderRoomList renders entries with owned rooms marked and the selected
// one highlighted.
func RenderRoomList(owned, entries []string, selected int) string {
	if len(entries) == 0 {
		return common.MutedStyle.Render("no rooms yet, press ctrl+n to create one")
	}
	ownedSet := make(map[string]bool, len(owned))
	for _, id := range owned {
		ownedSet[id] = true
	}

	var sb strings.Builder
	sb.WriteString(common.TitleStyle("rooms"))
	for i, id := range entries {
		label := id
		if ownedSet[id] {
			label += common.MutedStyle.Render(" (owner)")
		}
		if i == selected {
			sb.WriteString("\n" + common.SelectedStyle.Render(common.CursorIcon+" ") + common.SelectedStyle.Render(id))
			if ownedSet[id] {
				sb.WriteString(common.MutedStyle.Render(" (owner)"))
			}
			continue
		}
		sb.WriteString("\n  " + label)
	}
	return sb.String()
}

// UserMenuView renders the account menu.
func UserMenuView(m model.Model) string {
	var sb strings.Builder
	sb.WriteString(common.TitleStyle(fmt.Sprintf("account: %s", m.DisplayName())))
	sb.WriteString("\n\n")
	sb.WriteString("1. change password\n")
	sb.WriteString("2. log out\n")
	sb.WriteString("3. delete account\n")
	menu := common.BoxStyle.Render(sb.String())
	return lipgloss.Place(m.Width(), max(m.Height()-4, 0), lipgloss.Center, lipgloss.Center,
		menu+"\n"+helpLine("1-3 choose", "esc back"))
}
