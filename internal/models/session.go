package models

import (
	"time"

	"github.com/lib/pq"
)

type SessionStatus string

const (
	SessionStatusConsent   SessionStatus = "consent"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusDeclined  SessionStatus = "declined"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// IsTerminal reports whether no further units will be presented.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusDeclined, SessionStatusCompleted, SessionStatusAbandoned:
		return true
	}
	return false
}

// ExperimentSession is one participant's pass through the timeline.
// StimulusOrder holds indices into the built stimulus set, so the shuffled
// blocks can be rebuilt on every request.
type ExperimentSession struct {
	ID            string `gorm:"primaryKey;type:varchar(36)"`
	ParticipantID string `gorm:"index"`
	Status        SessionStatus
	StimulusOrder pq.Int64Array `gorm:"type:integer[]"`
	Position      int
	ConsentedAt   *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DemographicAnswer stores one questionnaire answer for a session.
type DemographicAnswer struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"index:idx_demographics_session_question,unique"`
	QuestionID string `gorm:"index:idx_demographics_session_question,unique"`
	Value      string
	CreatedAt  time.Time
}
