package api

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxInputLength bounds the raw user text accepted per turn.
	MaxInputLength = 8192

	// MaxSessionIDLength bounds caller-chosen session identifiers.
	MaxSessionIDLength = 128
)

// ValidateTurnInput checks the raw user text of a turn request.
func ValidateTurnInput(input string) *PipelineError {
	if strings.TrimSpace(input) == "" {
		return NewValidationError("input must not be empty")
	}
	if !utf8.ValidString(input) {
		return NewValidationError("input must be valid UTF-8")
	}
	if utf8.RuneCountInString(input) > MaxInputLength {
		return NewValidationError("input exceeds maximum length")
	}
	return nil
}

// ValidateSessionID checks a caller-chosen session identifier. Empty is
// allowed; the engine substitutes a default session.
func ValidateSessionID(id string) *PipelineError {
	if id == "" {
		return nil
	}
	if len(id) > MaxSessionIDLength {
		return NewValidationError("session_id exceeds maximum length")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == ':', r == '.':
		default:
			return NewValidationError("session_id contains invalid characters")
		}
	}
	return nil
}

// TruncateRunes shortens s to at most max runes and appends marker when
// truncation happened. Truncation never splits a codepoint.
func TruncateRunes(s string, max int, marker string) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + marker
}
