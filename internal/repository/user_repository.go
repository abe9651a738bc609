package repository

import (
	"context"
	"fmt"

	"wendao-market/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetOrCreateUser returns the user, creating it with initialBalance on first sight
func (r *Repository) GetOrCreateUser(ctx context.Context, id string, initialBalance int64) (*models.User, error) {
	user := models.User{ID: id, Balance: initialBalance}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", id, err)
	}
	return r.GetUser(ctx, id)
}

// CreditUserBalance adds amount to a user's balance with a relative UPDATE
func (r *Repository) CreditUserBalance(ctx context.Context, userID string, amount int64) error {
	return creditUser(r.db.WithContext(ctx), userID, amount)
}

func creditUser(db *gorm.DB, userID string, amount int64) error {
	result := db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return fmt.Errorf("failed to credit user %s: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to credit user %s: %w", userID, models.ErrNotFound)
	}
	return nil
}
