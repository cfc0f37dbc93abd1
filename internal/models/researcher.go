package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Researcher can view and export collected responses.
type Researcher struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex"`
	Password  string
	CreatedAt time.Time
}

func (r *Researcher) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(r.Password), []byte(password))
	return err == nil
}
