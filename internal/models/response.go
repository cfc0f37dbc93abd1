package models

import "time"

// TrialResponse is the record emitted once per submitted trial.
type TrialResponse struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	SessionID       string    `gorm:"index" json:"session"`
	ParticipantID   string    `gorm:"index" json:"participant"`
	Voice           string    `json:"voice"`
	Gender          Gender    `json:"gender"`
	Pitch           Pitch     `json:"pitch"`
	Block           int       `json:"block"`
	TrialIndex      int       `json:"trial"`
	Enthusiasm      int       `json:"enthusiasm"`
	Dominance       int       `json:"dominance"`
	ReactionTimeMs  *int64    `json:"rt,omitempty"`
	SeekCorrections int       `json:"seek_corrections"`
	RateCorrections int       `json:"rate_corrections"`
	CompletedAt     time.Time `json:"timestamp"`
}
