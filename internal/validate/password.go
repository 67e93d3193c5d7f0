// Package validate holds the credential format rules used by the signup,
// login and user-menu forms. The server applies the same rules again.
package validate

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/palemoky/roomchat/internal/apperrors"
	"github.com/palemoky/roomchat/internal/protocol"
)

const (
	PasswordMinLen = 8
	PasswordMaxLen = 100
	UsernameMinLen = 1
	UsernameMaxLen = 100
)

// PasswordRule is shown to the user when a password is rejected.
const PasswordRule = "8-100 characters of A-Z a-z 0-9 !@#$%^&*()_+=-, with at least one letter and one digit"

var (
	passwordCharset = regexp.MustCompile(`^[A-Za-z0-9!@#$%^&*()_+=-]{8,100}$`)
	hasLetter       = regexp.MustCompile(`[A-Za-z]`)
	hasDigit        = regexp.MustCompile(`[0-9]`)
)

// Password reports whether pw has at least one letter, at least one digit and
// 8-100 characters from the allowed set.
func Password(pw string) error {
	if !passwordCharset.MatchString(pw) || !hasLetter.MatchString(pw) || !hasDigit.MatchString(pw) {
		return apperrors.ErrInvalidPassword
	}
	return nil
}

// reservedNames appear as senders or roster entries the server itself
// produces, so no account may take them in any letter case.
var reservedNames = []string{protocol.ServerName, protocol.AnonymousName}

// Username checks the display name length in characters and rejects the
// reserved names.
func Username(name string) error {
	n := utf8.RuneCountInString(name)
	if n < UsernameMinLen || n > UsernameMaxLen {
		return apperrors.ErrInvalidUsername
	}
	for _, reserved := range reservedNames {
		if strings.EqualFold(name, reserved) {
			return apperrors.ErrInvalidUsername
		}
	}
	return nil
}

// NewPassword validates a password and its confirmation.
func NewPassword(pw, check string) error {
	if err := Password(pw); err != nil {
		return err
	}
	if pw != check {
		return apperrors.ErrPasswordMismatch
	}
	return nil
}

// IsPasswordError reports whether err is the password format rejection.
func IsPasswordError(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidPassword)
}
