package repository

import (
	"context"

	"voice-rating/internal/models"

	"golang.org/x/crypto/bcrypt"
)

func (r *Repository) CreateResearcher(ctx context.Context, email, password string) (*models.Researcher, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	researcher := &models.Researcher{
		Email:    email,
		Password: string(hashedPassword),
	}
	result := r.db.WithContext(ctx).Create(researcher)
	return researcher, result.Error
}

func (r *Repository) GetResearcherByEmail(ctx context.Context, email string) (*models.Researcher, error) {
	var researcher models.Researcher
	if err := r.db.WithContext(ctx).First(&researcher, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &researcher, nil
}

func (r *Repository) GetResearcherByID(ctx context.Context, id uint) (*models.Researcher, error) {
	var researcher models.Researcher
	if err := r.db.WithContext(ctx).First(&researcher, id).Error; err != nil {
		return nil, translate(err)
	}
	return &researcher, nil
}
