// Package common provides shared styles and utilities for the UI.
package common

import "github.com/charmbracelet/lipgloss"

// Icon constants
const (
	OnlineIcon  = "●"
	OfflineIcon = "○"
	PrivateIcon = "✉"
	CursorIcon  = "▸"
)

// Lipgloss Styles
var (
	DocStyle      = lipgloss.NewStyle().Margin(1, 2)
	TitleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("228")).Bold(true).Render
	BoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	PromptStyle   = lipgloss.NewStyle().MarginTop(1)
	ErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	InfoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	MutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	HeaderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Bold(true)
	PrivateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	ServerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Italic(true)
	SelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("228")).Bold(true)
)
