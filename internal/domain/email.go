package domain

import (
	"net/mail"
	"strings"
)

// ValidateEmail checks the RFC 5322–compatible subset accepted by
// net/mail and returns the normalized (trimmed, lower-cased) form.
func ValidateEmail(candidate string) (string, error) {
	addr, err := mail.ParseAddress(candidate)
	if err != nil {
		return "", ErrInvalidInput
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}
