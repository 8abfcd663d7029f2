package booking

import (
	"crypto/rand"
	"fmt"
)

const (
	CodeLength = 8
	// Letters and digits that survive being read aloud or copied by hand:
	// no 0/O or 1/I.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NewCode returns a random confirmation code. The alphabet has 32 symbols so
// each random byte maps onto it without bias.
func NewCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate confirmation code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
