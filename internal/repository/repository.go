package repository

import (
	"errors"

	"wendao-market/internal/models"

	"gorm.io/gorm"
)

// Repository is the gorm-backed market store
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return err
}
