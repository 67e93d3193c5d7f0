package view

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/palemoky/roomchat/internal/ui/common"
	"github.com/palemoky/roomchat/internal/ui/model"
)

var formTitles = map[model.FormKind]string{
	model.FormLogin:          "log in",
	model.FormSignup:         "sign up",
	model.FormChangePassword: "change password",
}

// FormView renders an account form with its validation error.
func FormView(f *model.Form, width int) string {
	if f == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(common.TitleStyle(formTitles[f.Kind]))
	sb.WriteString("\n")
	for i, field := range f.Fields {
		label := f.Labels[i]
		if i == f.Focus {
			label = common.SelectedStyle.Render(label)
		}
		sb.WriteString("\n" + label + "\n" + field.View() + "\n")
	}
	if f.Error != "" {
		sb.WriteString("\n" + common.ErrorStyle.Width(50).Render(f.Error) + "\n")
	}

	var hints []string
	switch f.Kind {
	case model.FormLogin:
		hints = []string{"tab next field", "enter log in", "ctrl+n sign up", "esc quit"}
	case model.FormSignup:
		hints = []string{"tab next field", "enter sign up", "ctrl+n log in", "esc quit"}
	default:
		hints = []string{"tab next field", "enter save", "esc back"}
	}

	box := common.BoxStyle.Render(sb.String())
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, box+"\n"+helpLine(hints...))
}

// ConfirmView renders a yes/no prompt.
func ConfirmView(c *model.Confirm, width int) string {
	if c == nil {
		return ""
	}
	body := c.Prompt + "\n\n" + helpLine("y confirm", "n/esc cancel")
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, common.BoxStyle.Render(body))
}
