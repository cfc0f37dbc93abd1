package repository

import (
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// Repository is the Postgres-backed store for sessions, responses and researchers.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
