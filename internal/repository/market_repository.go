package repository

import (
	"context"
	"fmt"
	"time"

	"wendao-market/internal/models"

	"github.com/google/uuid"
)

// CreateMarket inserts a new active market with empty pools
func (r *Repository) CreateMarket(ctx context.Context, market *models.Market) error {
	if market.ID == "" {
		market.ID = uuid.New().String()
	}
	market.Deadline = market.Deadline.UTC()
	market.Status = models.MarketStatusActive
	market.Outcome = nil
	market.ResolvedAt = nil
	market.TotalYes = 0
	market.TotalNo = 0

	if err := r.db.WithContext(ctx).Create(market).Error; err != nil {
		return fmt.Errorf("failed to create market: %w", err)
	}
	return nil
}

// GetMarketByID retrieves a market by ID
func (r *Repository) GetMarketByID(ctx context.Context, id string) (*models.Market, error) {
	var market models.Market
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&market).Error; err != nil {
		return nil, notFound(err)
	}
	return &market, nil
}

// ListActiveMarkets returns active markets, soonest deadline first
func (r *Repository) ListActiveMarkets(ctx context.Context, limit, offset int) ([]*models.Market, error) {
	var markets []*models.Market
	err := r.db.WithContext(ctx).
		Where("status = ?", models.MarketStatusActive).
		Order("deadline ASC").
		Limit(limit).
		Offset(offset).
		Find(&markets).Error
	if err != nil {
		return nil, err
	}
	return markets, nil
}

// ListExpiredUnresolved returns active markets whose deadline is at or before now
func (r *Repository) ListExpiredUnresolved(ctx context.Context, now time.Time) ([]*models.Market, error) {
	var markets []*models.Market
	err := r.db.WithContext(ctx).
		Where("status = ? AND deadline <= ?", models.MarketStatusActive, now.UTC()).
		Order("deadline ASC").
		Find(&markets).Error
	if err != nil {
		return nil, err
	}
	return markets, nil
}

// TryResolve moves a market from active to resolved in a single conditional
// UPDATE. It reports false, without writing, when the market is not active.
func (r *Repository) TryResolve(ctx context.Context, id string, outcome models.Outcome, at time.Time) (bool, error) {
	resolvedAt := at.UTC()
	result := r.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("id = ? AND status = ?", id, models.MarketStatusActive).
		Updates(map[string]interface{}{
			"status":      models.MarketStatusResolved,
			"outcome":     outcome,
			"resolved_at": resolvedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to resolve market %s: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListMarketsPendingPayout returns resolved markets that still have
// unclaimed bets on the winning side
func (r *Repository) ListMarketsPendingPayout(ctx context.Context, limit int) ([]*models.Market, error) {
	var markets []*models.Market
	err := r.db.WithContext(ctx).
		Where("status = ?", models.MarketStatusResolved).
		Where("EXISTS (SELECT 1 FROM bets WHERE bets.market_id = markets.id AND bets.claimed = ? AND bets.direction = markets.outcome)", false).
		Order("resolved_at ASC").
		Limit(limit).
		Find(&markets).Error
	if err != nil {
		return nil, err
	}
	return markets, nil
}
