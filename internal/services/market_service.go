package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wendao-market/internal/generator"
	"wendao-market/internal/models"

	"github.com/sirupsen/logrus"
)

var marketLog = logrus.WithField("component", "market_service")

// ErrNoGenerator is returned by Generate when no generator is configured
var ErrNoGenerator = errors.New("market generator not configured")

// MarketService handles market listing, creation and betting
type MarketService struct {
	store     MarketStore
	generator generator.Generator
	now       func() time.Time
}

func NewMarketService(store MarketStore, gen generator.Generator) *MarketService {
	return &MarketService{
		store:     store,
		generator: gen,
		now:       time.Now,
	}
}

// ListActive returns open markets, soonest deadline first
func (s *MarketService) ListActive(ctx context.Context, limit, offset int) ([]*models.Market, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListActiveMarkets(ctx, limit, offset)
}

// GetMarket retrieves a market by ID
func (s *MarketService) GetMarket(ctx context.Context, id string) (*models.Market, error) {
	return s.store.GetMarketByID(ctx, id)
}

// CreateFromDraft validates a draft and persists it as an active market
func (s *MarketService) CreateFromDraft(ctx context.Context, draft *generator.Draft) (*models.Market, error) {
	market, err := draft.ToMarket(s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateMarket(ctx, market); err != nil {
		return nil, err
	}

	marketLog.Printf("[Market] Created market %s: %q (deadline %s, type %s)",
		market.ID, market.Question, market.Deadline.Format(time.RFC3339), market.VerifyType)
	return market, nil
}

// Generate asks the generator for a draft and creates the market
func (s *MarketService) Generate(ctx context.Context) (*models.Market, error) {
	if s.generator == nil {
		return nil, ErrNoGenerator
	}
	draft, err := s.generator.Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate market: %w", err)
	}
	return s.CreateFromDraft(ctx, draft)
}

// PlaceBet stakes amount on direction. The bettor is debited and the market
// pool grows in the same store transaction.
func (s *MarketService) PlaceBet(ctx context.Context, userID, marketID string, direction models.Outcome, amount int64) (*models.Bet, error) {
	if userID == "" || marketID == "" {
		return nil, fmt.Errorf("%w: missing user or market", models.ErrInvalidBet)
	}
	if !direction.Valid() {
		return nil, fmt.Errorf("%w: direction must be YES or NO", models.ErrInvalidBet)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrInvalidBet)
	}

	bet := &models.Bet{
		MarketID:  marketID,
		UserID:    userID,
		Direction: direction,
		Amount:    amount,
	}
	if err := s.store.PlaceBet(ctx, bet, s.now()); err != nil {
		return nil, err
	}

	marketLog.Printf("[Market] User %s bet %d on %s in market %s", userID, amount, direction, marketID)
	return bet, nil
}
