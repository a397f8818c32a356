package authcore

import (
	"strings"

	"github.com/campustrack/authcore/internal"
)

// NormalizeContact trims surrounding whitespace and rejects an empty
// contact identifier. The trimmed string is the natural key used for
// challenge storage and principal lookup.
func NormalizeContact(contact string) (string, error) {
	normalized := strings.TrimSpace(contact)
	if normalized == "" {
		return "", ErrContactInvalid
	}
	return normalized, nil
}

// SplitContact classifies a normalized contact identifier: anything
// containing "@" is treated as an email, everything else as a phone number.
// Exactly one of the returned values is non-empty.
func SplitContact(contact string) (email, phone string) {
	if strings.Contains(contact, "@") {
		return contact, ""
	}
	return "", contact
}

func (e *Engine) checkCode(code string) error {
	if len(code) != e.config.Challenge.Digits || !internal.IsNumeric(code) {
		return ErrCodeInvalid
	}
	return nil
}
