package client

import "time"

// DefaultTypingTimeout is how long the indicator stays up after the last
// keystroke.
const DefaultTypingTimeout = time.Second

// Typing is the debounced "typing" indicator. Each keystroke starts a new
// generation; only the expiry of the latest generation hides the indicator,
// so at most one pending timer is ever effective.
type Typing struct {
	timeout time.Duration
	gen     uint64
	visible bool
}

// NewTyping creates a hidden indicator. A non-positive timeout uses the
// default.
func NewTyping(timeout time.Duration) *Typing {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &Typing{timeout: timeout}
}

// Keystroke shows the indicator and returns the generation the caller must
// pass to Expire after Timeout.
func (t *Typing) Keystroke() uint64 {
	t.gen++
	t.visible = true
	return t.gen
}

// Expire hides the indicator if gen is still the latest keystroke. Stale
// generations are ignored and report false.
func (t *Typing) Expire(gen uint64) bool {
	if gen != t.gen {
		return false
	}
	t.visible = false
	return true
}

// Visible reports whether the indicator is shown.
func (t *Typing) Visible() bool {
	return t.visible
}

// Timeout returns the inactivity window.
func (t *Typing) Timeout() time.Duration {
	return t.timeout
}
