package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/palemoky/roomchat/internal/apperrors"
)

func TestRoomID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		valid bool
	}{
		{"0000", true},
		{"0042", true},
		{"9999", true},
		{"", false},
		{"42", false},
		{"12345", false},
		{"12a4", false},
		{" 123", false},
	}
	for _, tt := range tests {
		err := RoomID(tt.input)
		if tt.valid {
			assert.NoError(t, err, tt.input)
		} else {
			assert.ErrorIs(t, err, apperrors.ErrInvalidRoomID, tt.input)
		}
	}
}
