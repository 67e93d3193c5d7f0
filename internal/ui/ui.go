// Package ui provides the main entry point for the UI.
package ui

import (
	"github.com/palemoky/roomchat/internal/ui/handler"
	"github.com/palemoky/roomchat/internal/ui/input"
	"github.com/palemoky/roomchat/internal/ui/model"
	"github.com/palemoky/roomchat/internal/ui/view"
)

// NewChatModel creates the root chat model with its renderer, key handler
// and event handler wired in.
func NewChatModel(deps model.Deps, opts model.Options) *model.ChatModel {
	m := model.NewChatModel(deps, opts)
	m.SetViewRenderer(view.CreateViewRenderer())
	m.SetKeyHandler(input.HandleKeyPress)
	m.SetEventHandler(handler.HandleEvent)
	return m
}
