package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeLength is the fixed length of generated verification codes.
const CodeLength = 6

// NewCode generates a cryptographically random 6-digit numeric code,
// zero-padded ("004219" is a valid code).
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// WellFormed reports whether a submitted value has the shape of a code:
// exactly 6 ASCII digits. Anything else can be rejected without a store
// lookup.
func WellFormed(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
