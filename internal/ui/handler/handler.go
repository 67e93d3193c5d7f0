// Package handler applies inbound room events to the UI model.
package handler

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/palemoky/roomchat/internal/protocol"
	"github.com/palemoky/roomchat/internal/sound"
	"github.com/palemoky/roomchat/internal/ui/model"
)

// EventHandlerFunc handles one kind of inbound event.
type EventHandlerFunc func(m model.Model, ev protocol.Event) tea.Cmd

// eventHandlers maps event kinds to their handlers.
var eventHandlers = map[protocol.EventKind]EventHandlerFunc{
	protocol.KindJoin:      handleJoin,
	protocol.KindBroadcast: handleMessage,
	protocol.KindPrivate:   handlePrivate,
	protocol.KindRoster:    handleRoster,
}

// HandleEvent dispatches ev to its handler. Events outside a mounted room
// are dropped.
func HandleEvent(m model.Model, ev protocol.Event) tea.Cmd {
	if ev == nil || m.Session() == nil {
		return nil
	}
	if h, ok := eventHandlers[ev.Kind()]; ok {
		return h(m, ev)
	}
	return nil
}

// apply folds ev into the session and records the resulting line.
func apply(m model.Model, ev protocol.Event) bool {
	line, ok := m.Session().Apply(ev)
	if ok {
		m.RecordLine(line)
	}
	return ok
}

func handleJoin(m model.Model, ev protocol.Event) tea.Cmd {
	apply(m, ev)
	return nil
}

func handleMessage(m model.Model, ev protocol.Event) tea.Cmd {
	apply(m, ev)
	return nil
}

func handlePrivate(m model.Model, ev protocol.Event) tea.Cmd {
	apply(m, ev)
	notifyPrivate(m, ev.Envelope())
	return nil
}

// handleRoster updates the panels. A roster frame can also carry a private
// server notice such as the welcome line.
func handleRoster(m model.Model, ev protocol.Event) tea.Cmd {
	env := ev.Envelope()
	joinedBefore := m.Session().AllUsers
	apply(m, ev)
	notifyPrivate(m, env)

	// Stay on a recipient that is still online.
	if r := m.Recipient(); r != "" && env.OnlineUsers != nil && !m.Session().IsOnline(r) {
		m.SetRecipient("")
	}
	if joinedBefore != nil && env.AllUsers != nil && len(env.AllUsers) > len(joinedBefore) {
		m.PlaySound(sound.CueJoin)
	}
	return nil
}

// notifyPrivate plays the private cue for messages other users sent us.
func notifyPrivate(m model.Model, env protocol.Envelope) {
	me := m.Session().DisplayName
	if env.ToName == me && env.Name != me {
		m.PlaySound(sound.CuePrivate)
	}
}
