package services

import (
	"context"
	"time"

	"wendao-market/internal/models"
	"wendao-market/internal/oracle"
)

// ResolutionStore is the part of the market store the sweep needs.
type ResolutionStore interface {
	ListExpiredUnresolved(ctx context.Context, now time.Time) ([]*models.Market, error)
	TryResolve(ctx context.Context, id string, outcome models.Outcome, at time.Time) (bool, error)
}

// PayoutStore is the part of the market store the distributor needs.
type PayoutStore interface {
	GetMarketByID(ctx context.Context, id string) (*models.Market, error)
	ListBetsForMarket(ctx context.Context, marketID string) ([]*models.Bet, error)
	ClaimAndCredit(ctx context.Context, bet *models.Bet, amount int64, at time.Time) (bool, error)
	ListMarketsPendingPayout(ctx context.Context, limit int) ([]*models.Market, error)
}

// MarketStore covers market creation, listing and bet placement.
type MarketStore interface {
	CreateMarket(ctx context.Context, market *models.Market) error
	GetMarketByID(ctx context.Context, id string) (*models.Market, error)
	ListActiveMarkets(ctx context.Context, limit, offset int) ([]*models.Market, error)
	PlaceBet(ctx context.Context, bet *models.Bet, now time.Time) error
}

// UserStore covers user balances and bet history.
type UserStore interface {
	GetOrCreateUser(ctx context.Context, id string, initialBalance int64) (*models.User, error)
	ListUserBets(ctx context.Context, userID string, limit, offset int) ([]*models.Bet, error)
}

// PriceVerifier decides a price condition. It returns an error wrapping
// oracle.ErrUnavailable when no observation could be made.
type PriceVerifier interface {
	Verify(ctx context.Context, asset string, op models.Operator, threshold float64) (*oracle.Result, error)
}

var _ PriceVerifier = (*oracle.Verifier)(nil)
