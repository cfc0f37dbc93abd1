package utils

import (
	"strings"
	"testing"
)

func TestSanitizeParticipantID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"P123", "P123"},
		{"  abc-DEF_9 ", "abc-DEF_9"},
		{"", ""},
		{"<script>", ""},
		{"a b", ""},
		{"üser", ""},
		{strings.Repeat("x", 65), ""},
	}
	for _, tt := range tests {
		if got := SanitizeParticipantID(tt.in); got != tt.want {
			t.Errorf("SanitizeParticipantID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewParticipantID(t *testing.T) {
	id, err := NewParticipantID()
	if err != nil {
		t.Fatalf("NewParticipantID failed: %v", err)
	}
	if !strings.HasPrefix(id, "P") || len(id) < 2 || len(id) > 10 {
		t.Errorf("Unexpected participant id %q", id)
	}
	if SanitizeParticipantID(id) != id {
		t.Errorf("Generated id %q does not pass sanitization", id)
	}
}

func TestParseRating(t *testing.T) {
	tests := map[string]int{"4": 4, " 7 ": 7, "": 0, "abc": 0, "3.5": 0}
	for in, want := range tests {
		if got := ParseRating(in); got != want {
			t.Errorf("ParseRating(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestIsComplexPassword(t *testing.T) {
	if IsComplexPassword("short") {
		t.Error("Short password accepted")
	}
	if !IsComplexPassword("Str0ng!Pass") {
		t.Error("Complex password rejected")
	}
}
