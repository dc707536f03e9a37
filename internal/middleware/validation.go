package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// maxMessageLen bounds a chat message body, ~100KB.
const maxMessageLen = 100000

// ValidateMessage validates a chat message body.
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("message cannot be empty")
	}
	if len(message) > maxMessageLen {
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(message) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}
