package services

import (
	"context"

	"wendao-market/internal/models"
)

// UserService handles user-related business logic
type UserService struct {
	store          UserStore
	initialBalance int64
}

// NewUserService creates a new UserService
func NewUserService(store UserStore, initialBalance int64) *UserService {
	return &UserService{store: store, initialBalance: initialBalance}
}

// GetProfile returns the user, creating it with the starting balance on first access
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.store.GetOrCreateUser(ctx, userID, s.initialBalance)
}

// GetUserBets retrieves the user's bets, newest first
func (s *UserService) GetUserBets(ctx context.Context, userID string, limit, offset int) ([]*models.Bet, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListUserBets(ctx, userID, limit, offset)
}
