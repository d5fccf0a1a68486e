package chat

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxContentBytes = 4096 // 4KB max frame payload
	MaxContentChars = 2000 // max character count
)

// Content validation errors. Callers match with errors.Is to map them to
// protocol error codes.
var (
	ErrContentEmpty   = errors.New("chat: message content is empty")
	ErrContentTooLong = errors.New("chat: message content too long")
	ErrContentInvalid = errors.New("chat: message content is not valid UTF-8")
)

// ValidateContent checks that message content meets the wire requirements
// before it is persisted or relayed.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrContentEmpty
	}
	if len(content) > MaxContentBytes {
		return fmt.Errorf("%w: exceeds %d byte limit", ErrContentTooLong, MaxContentBytes)
	}
	if utf8.RuneCountInString(content) > MaxContentChars {
		return fmt.Errorf("%w: exceeds %d character limit", ErrContentTooLong, MaxContentChars)
	}
	if !utf8.ValidString(content) {
		return ErrContentInvalid
	}
	return nil
}
