package apperrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/palemoky/roomchat/internal/protocol"
)

func TestCodeOf(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("resolve identity: %w", ErrUnauthenticated)
	assert.Equal(t, protocol.ErrCodeUnauthenticated, CodeOf(wrapped))
	assert.Equal(t, protocol.ErrCodeUnknown, CodeOf(fmt.Errorf("plain")))
	assert.Equal(t, protocol.ErrCodeUnknown, CodeOf(nil))
}

func TestFromCode(t *testing.T) {
	t.Parallel()

	assert.Same(t, ErrRoomNotFound, FromCode(protocol.ErrCodeRoomNotFound, "ignored"))

	custom := FromCode(9999, "teapot")
	assert.Equal(t, 9999, custom.Code)
	assert.Equal(t, "teapot", custom.Error())

	assert.Equal(t, protocol.ErrorMessages[protocol.ErrCodeUnknown], FromCode(9998, "").Error())
}

func TestPredefinedMessages(t *testing.T) {
	t.Parallel()

	for _, e := range []*ChatError{ErrEmptyMessage, ErrInvalidPassword, ErrNotMaster} {
		assert.NotEmpty(t, e.Error())
	}
}
