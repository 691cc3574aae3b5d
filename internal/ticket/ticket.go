package ticket

import (
	"crypto/rand"
	"fmt"
)

const (
	charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength is the number of characters in a ticket code.
	CodeLength = 8
)

// Generate produces a ticket code: 8 characters drawn from [A-Z0-9].
// Codes are presented to guests at check-in, so they stay short and readable.
// Uniqueness is enforced by the caller against the store; on collision the
// caller simply generates again.
func Generate() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	code := make([]byte, CodeLength)
	for i, b := range buf {
		code[i] = charset[int(b)%len(charset)]
	}
	return string(code), nil
}
