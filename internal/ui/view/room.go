package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/palemoky/roomchat/internal/client"
	"github.com/palemoky/roomchat/internal/protocol"
	"github.com/palemoky/roomchat/internal/ui/common"
	"github.com/palemoky/roomchat/internal/ui/model"
)

const (
	rosterWidth    = 22
	rosterNameMax  = 16
	minLogWidth    = 30
	reservedHeight = 10
)

// RoomView renders the message log, both roster panels and the input.
func RoomView(m model.Model) string {
	s := m.Session()
	if s == nil {
		return ""
	}
	width := m.Width()

	title := common.TitleStyle(fmt.Sprintf("room %s", s.RoomID)) +
		common.MutedStyle.Render(fmt.Sprintf("  as %s", s.DisplayName))

	logWidth := max(width-2*rosterWidth-12, minLogWidth)
	logHeight := max(m.Height()-reservedHeight, 5)

	log := common.BoxStyle.Width(logWidth).Height(logHeight).
		Render(RenderMessageLog(s.Messages, s.DisplayName, logWidth, logHeight))
	rosters := lipgloss.JoinVertical(lipgloss.Left,
		RenderRoster("members", s.AllUsers, s.OnlineUsers),
		RenderRoster("online", s.OnlineUsers, s.OnlineUsers),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, log, rosters)

	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	sb.WriteString(RenderTypingIndicator(s.Typing.Visible()))
	sb.WriteString("\n")
	sb.WriteString(RenderRecipient(m.Recipient()))
	sb.WriteString(m.Input().View())
	sb.WriteString("\n")
	sb.WriteString(helpLine("enter send", "tab recipient", "ctrl+d delete/leave room", "esc lobby"))
	return sb.String()
}

// RenderMessageLog renders the log scrolled to its newest line. Wrapped text
// counts as extra rows.
func RenderMessageLog(lines []client.MessageLine, me string, width, height int) string {
	if len(lines) == 0 {
		return common.MutedStyle.Render("no messages yet")
	}
	rendered := make([]string, 0, height)
	for _, line := range common.Tail(lines, max(height, 1)) {
		rendered = append(rendered, RenderMessageLine(line, me))
	}

	vp := viewport.New(width, height)
	vp.SetContent(lipgloss.NewStyle().Width(width).Render(strings.Join(rendered, "\n")))
	vp.GotoBottom()
	return vp.View()
}

// RenderMessageLine renders the "roomid : name→toname" header and the text
// nested under it.
func RenderMessageLine(line client.MessageLine, me string) string {
	header := line.Header()
	if !line.At.IsZero() {
		header = line.At.Format("15:04") + " " + header
	}
	text := "  " + line.Text

	switch {
	case line.From == protocol.ServerName:
		return common.HeaderStyle.Render(header) + "\n" + common.ServerStyle.Render(text)
	case line.Private():
		icon := common.PrivateIcon + " "
		if line.To == me {
			return common.PrivateStyle.Render(icon+header) + "\n" + common.PrivateStyle.Bold(true).Render(text)
		}
		return common.PrivateStyle.Render(icon+header) + "\n" + common.PrivateStyle.Render(text)
	default:
		return common.HeaderStyle.Render(header) + "\n" + text
	}
}

// RenderRoster renders one user panel; names in online are marked.
func RenderRoster(title string, names, online []string) string {
	var sb strings.Builder
	sb.WriteString(common.TitleStyle(title))
	if names == nil {
		sb.WriteString("\n" + common.MutedStyle.Render("…"))
	}
	onlineSet := make(map[string]bool, len(online))
	for _, n := range online {
		onlineSet[n] = true
	}
	for _, n := range names {
		icon := common.OfflineIcon
		if onlineSet[n] {
			icon = common.OnlineIcon
		}
		sb.WriteString("\n" + icon + " " + common.TruncateName(n, rosterNameMax))
	}
	return common.BoxStyle.Width(rosterWidth).Render(sb.String())
}

// RenderTypingIndicator renders the local typing hint, or a blank line.
func RenderTypingIndicator(visible bool) string {
	if !visible {
		return " "
	}
	return common.MutedStyle.Render("typing...")
}

// RenderRecipient renders who the next message goes to.
func RenderRecipient(recipient string) string {
	if recipient == "" {
		return common.MutedStyle.Render("to everyone ")
	}
	return common.PrivateStyle.Render("to " + recipient + " ")
}
