package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
)

// GenerateSecureToken creates a cryptographically secure random token.
func GenerateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

var participantSpace = big.NewInt(1_000_000_000)

// NewParticipantID returns "P" followed by a random number below 1e9.
// Uniqueness is not enforced beyond randomness.
func NewParticipantID() (string, error) {
	n, err := rand.Int(rand.Reader, participantSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("P%d", n.Int64()), nil
}
