package utils

import (
	"strconv"
	"strings"
	"unicode"
)

const maxParticipantIDLength = 64

// SanitizeParticipantID returns id if it is a usable participant identifier
// (letters, digits, '-' and '_', at most 64 characters), otherwise "".
func SanitizeParticipantID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxParticipantIDLength {
		return ""
	}
	for _, r := range id {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') || r > unicode.MaxASCII {
			return ""
		}
	}
	return id
}

// ParseRating parses a form value as an integer rating. Missing or
// malformed values return 0, which fails the 1-7 range check downstream.
func ParseRating(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return n
}

// IsValidEmail checks if the email string contains an "@" symbol and a dot.
func IsValidEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".")
}

// IsComplexPassword checks if the password meets the complexity requirements.
func IsComplexPassword(password string) bool {
	var (
		hasMinLen  = len(password) >= 8
		hasUpper   = false
		hasLower   = false
		hasNumber  = false
		hasSpecial = false
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	return hasMinLen && hasUpper && hasLower && hasNumber && hasSpecial
}
