package client

import (
	"slices"
	"time"

	"github.com/palemoky/roomchat/internal/protocol"
)

// MessageLine is one rendered entry of the message log.
type MessageLine struct {
	RoomID string
	From   string
	To     string
	Text   string
	Kind   protocol.EventKind
	At     time.Time
}

// Header is the "roomid : name→toname" caption shown above the text.
func (l MessageLine) Header() string {
	return l.RoomID + " : " + l.From + "→" + l.To
}

// Private reports whether the line was addressed to a single user.
func (l MessageLine) Private() bool {
	return l.To != ""
}

// Session is the view state of one mounted room: who we are, the message
// log, both roster panels and the typing indicator. It is owned by the UI
// model and discarded when the room view unmounts.
type Session struct {
	DisplayName string
	RoomID      string

	Messages    []MessageLine
	AllUsers    []string
	OnlineUsers []string

	// ShowJoinLines renders join events as (near-empty) log lines.
	ShowJoinLines bool

	Typing *Typing

	now func() time.Time
}

// NewSession creates the state for roomID as displayName.
func NewSession(displayName, roomID string, typingTimeout time.Duration) *Session {
	return &Session{
		DisplayName:   displayName,
		RoomID:        roomID,
		ShowJoinLines: true,
		Typing:        NewTyping(typingTimeout),
		now:           time.Now,
	}
}

// Apply folds an inbound event into the session. A roster list that is nil
// leaves its panel untouched; a non-nil list replaces it in order. The
// returned line is the one appended to the log, if any.
func (s *Session) Apply(ev protocol.Event) (MessageLine, bool) {
	env := ev.Envelope()

	if env.AllUsers != nil {
		s.AllUsers = slices.Clone(env.AllUsers)
	}
	if env.OnlineUsers != nil {
		s.OnlineUsers = slices.Clone(env.OnlineUsers)
	}

	if ev.Kind() == protocol.KindJoin && !s.ShowJoinLines {
		return MessageLine{}, false
	}

	line := MessageLine{
		RoomID: env.RoomID,
		From:   env.Name,
		To:     env.ToName,
		Text:   env.Message,
		Kind:   ev.Kind(),
		At:     s.now(),
	}
	s.Messages = append(s.Messages, line)
	return line, true
}

// Restore prepends lines loaded from the local transcript.
func (s *Session) Restore(lines []MessageLine) {
	if len(lines) == 0 {
		return
	}
	s.Messages = append(slices.Clone(lines), s.Messages...)
}

// Recipients lists the online users a private message can go to: everyone
// but ourselves and the anonymous roster entry.
func (s *Session) Recipients() []string {
	out := make([]string, 0, len(s.OnlineUsers))
	for _, name := range s.OnlineUsers {
		if name == s.DisplayName || name == protocol.AnonymousName || name == "" {
			continue
		}
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// IsOnline reports whether name is in the online panel.
func (s *Session) IsOnline(name string) bool {
	return slices.Contains(s.OnlineUsers, name)
}
