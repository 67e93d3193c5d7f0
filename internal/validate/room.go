package validate

import (
	"regexp"

	"github.com/palemoky/roomchat/internal/apperrors"
)

var roomIDPattern = regexp.MustCompile(`^[0-9]{4}$`)

// RoomID checks the four digit room id format.
func RoomID(id string) error {
	if !roomIDPattern.MatchString(id) {
		return apperrors.ErrInvalidRoomID
	}
	return nil
}
