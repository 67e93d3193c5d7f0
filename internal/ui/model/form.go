package model

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/palemoky/roomchat/internal/validate"
)

// FormKind identifies the account form on screen.
type FormKind int

const (
	FormLogin FormKind = iota
	FormSignup
	FormChangePassword
)

const formInputWidth = 30

// Form is a stack of text fields with one focused at a time.
type Form struct {
	Kind   FormKind
	Fields []textinput.Model
	Labels []string
	Focus  int
	Error  string
}

func newField(placeholder string, secret bool) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = validate.PasswordMaxLen
	ti.Width = formInputWidth
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	return ti
}

// NewForm builds an empty form of kind with the first field focused.
func NewForm(kind FormKind) *Form {
	f := &Form{Kind: kind}
	switch kind {
	case FormLogin:
		f.add("username", newField("username", false))
		f.add("password", newField("password", true))
	case FormSignup:
		f.add("username", newField("username", false))
		f.add("password", newField("password", true))
		f.add("check password", newField("password again", true))
	case FormChangePassword:
		f.add("old password", newField("current password", true))
		f.add("new password", newField("new password", true))
		f.add("check password", newField("new password again", true))
	}
	f.Fields[0].Focus()
	return f
}

func (f *Form) add(label string, field textinput.Model) {
	f.Labels = append(f.Labels, label)
	f.Fields = append(f.Fields, field)
}

// Value returns the text of field i.
func (f *Form) Value(i int) string {
	if i < 0 || i >= len(f.Fields) {
		return ""
	}
	return f.Fields[i].Value()
}

// SetValue replaces the text of field i.
func (f *Form) SetValue(i int, v string) {
	if i >= 0 && i < len(f.Fields) {
		f.Fields[i].SetValue(v)
	}
}

// Move changes focus by delta, wrapping around.
func (f *Form) Move(delta int) {
	n := len(f.Fields)
	f.Fields[f.Focus].Blur()
	f.Focus = ((f.Focus+delta)%n + n) % n
	f.Fields[f.Focus].Focus()
}

// Update forwards msg to the focused field.
func (f *Form) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.Fields[f.Focus], cmd = f.Fields[f.Focus].Update(msg)
	return cmd
}

// Validate applies the client-side rules and records the error text.
func (f *Form) Validate() error {
	var err error
	switch f.Kind {
	case FormLogin:
		if err = validate.Username(f.Value(0)); err == nil {
			err = validate.Password(f.Value(1))
		}
	case FormSignup:
		if err = validate.Username(f.Value(0)); err == nil {
			err = validate.NewPassword(f.Value(1), f.Value(2))
		}
	case FormChangePassword:
		err = validate.NewPassword(f.Value(1), f.Value(2))
	}
	f.Error = ""
	if err != nil {
		f.Error = formErrorText(err)
	}
	return err
}

func formErrorText(err error) string {
	if validate.IsPasswordError(err) {
		return err.Error() + ": " + validate.PasswordRule
	}
	return err.Error()
}
