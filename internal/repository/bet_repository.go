package repository

import (
	"context"
	"fmt"
	"time"

	"wendao-market/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListBetsForMarket retrieves every bet on a market in placement order
func (r *Repository) ListBetsForMarket(ctx context.Context, marketID string) ([]*models.Bet, error) {
	var bets []*models.Bet
	err := r.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("created_at ASC, id ASC").
		Find(&bets).Error
	if err != nil {
		return nil, err
	}
	return bets, nil
}

// ListUserBets retrieves a user's bets, newest first
func (r *Repository) ListUserBets(ctx context.Context, userID string, limit, offset int) ([]*models.Bet, error) {
	var bets []*models.Bet
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bets).Error
	if err != nil {
		return nil, err
	}
	return bets, nil
}

// PlaceBet debits the bettor, grows the market pool and records the bet in
// one transaction. The market must be active with a deadline after now.
func (r *Repository) PlaceBet(ctx context.Context, bet *models.Bet, now time.Time) error {
	if bet.ID == "" {
		bet.ID = uuid.New().String()
	}
	now = now.UTC()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var market models.Market
		if err := tx.Where("id = ?", bet.MarketID).First(&market).Error; err != nil {
			return notFound(err)
		}
		if market.Status != models.MarketStatusActive || market.Expired(now) {
			return models.ErrMarketNotActive
		}

		debit := tx.Model(&models.User{}).
			Where("id = ? AND balance >= ?", bet.UserID, bet.Amount).
			Update("balance", gorm.Expr("balance - ?", bet.Amount))
		if debit.Error != nil {
			return fmt.Errorf("failed to debit user %s: %w", bet.UserID, debit.Error)
		}
		if debit.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ?", bet.UserID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return models.ErrNotFound
			}
			return models.ErrInsufficientBalance
		}

		column := "total_no"
		if bet.Direction == models.OutcomeYes {
			column = "total_yes"
		}
		grow := tx.Model(&models.Market{}).
			Where("id = ? AND status = ? AND deadline > ?", bet.MarketID, models.MarketStatusActive, now).
			Update(column, gorm.Expr(column+" + ?", bet.Amount))
		if grow.Error != nil {
			return fmt.Errorf("failed to update market totals: %w", grow.Error)
		}
		if grow.RowsAffected == 0 {
			return models.ErrMarketNotActive
		}

		bet.Claimed = false
		bet.Payout = 0
		bet.CreatedAt = now
		if err := tx.Create(bet).Error; err != nil {
			return fmt.Errorf("failed to create bet: %w", err)
		}

		return tx.Create(&models.Transaction{
			UserID:      bet.UserID,
			MarketID:    bet.MarketID,
			BetID:       bet.ID,
			Type:        models.TransactionTypeBetPlaced,
			Amount:      -bet.Amount,
			Description: fmt.Sprintf("bet %d on %s", bet.Amount, bet.Direction),
		}).Error
	})
}

// ClaimAndCredit marks a bet paid and credits amount to its owner
// atomically. It reports false, crediting nothing, when the bet was already
// claimed. A failed credit leaves the bet unclaimed.
func (r *Repository) ClaimAndCredit(ctx context.Context, bet *models.Bet, amount int64, at time.Time) (bool, error) {
	claimedAt := at.UTC()
	applied := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim := tx.Model(&models.Bet{}).
			Where("id = ? AND claimed = ?", bet.ID, false).
			Updates(map[string]interface{}{
				"claimed":    true,
				"payout":     amount,
				"claimed_at": claimedAt,
			})
		if claim.Error != nil {
			return fmt.Errorf("failed to claim bet %s: %w", bet.ID, claim.Error)
		}
		if claim.RowsAffected == 0 {
			return nil
		}

		if err := creditUser(tx, bet.UserID, amount); err != nil {
			return err
		}

		if err := tx.Create(&models.Transaction{
			UserID:      bet.UserID,
			MarketID:    bet.MarketID,
			BetID:       bet.ID,
			Type:        models.TransactionTypeBetWon,
			Amount:      amount,
			Description: fmt.Sprintf("payout for %s bet of %d", bet.Direction, bet.Amount),
		}).Error; err != nil {
			return fmt.Errorf("failed to record payout: %w", err)
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
