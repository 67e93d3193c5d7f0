package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTyping_ShowsOnKeystroke(t *testing.T) {
	ty := NewTyping(time.Second)
	assert.False(t, ty.Visible())

	gen := ty.Keystroke()
	assert.True(t, ty.Visible())
	assert.True(t, ty.Expire(gen))
	assert.False(t, ty.Visible())
}

func TestTyping_OnlyLastGenerationHides(t *testing.T) {
	ty := NewTyping(time.Second)

	// three keystrokes 0.5s apart: each expiry before the last is stale
	g1 := ty.Keystroke()
	g2 := ty.Keystroke()
	assert.False(t, ty.Expire(g1))
	assert.True(t, ty.Visible())

	g3 := ty.Keystroke()
	assert.False(t, ty.Expire(g2))
	assert.True(t, ty.Visible())

	assert.True(t, ty.Expire(g3))
	assert.False(t, ty.Visible())
}

func TestTyping_StaleExpiryAfterHide(t *testing.T) {
	ty := NewTyping(time.Second)
	g1 := ty.Keystroke()
	assert.True(t, ty.Expire(g1))

	g2 := ty.Keystroke()
	assert.False(t, ty.Expire(g1))
	assert.True(t, ty.Visible())
	assert.True(t, ty.Expire(g2))
}

func TestNewTyping_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTypingTimeout, NewTyping(0).Timeout())
	assert.Equal(t, DefaultTypingTimeout, NewTyping(-time.Second).Timeout())
	assert.Equal(t, 250*time.Millisecond, NewTyping(250*time.Millisecond).Timeout())
}
