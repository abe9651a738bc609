package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"wendao-market/internal/database"
	"wendao-market/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestRepo(t *testing.T) (*Repository, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)

	// One connection keeps every goroutine on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return NewRepository(db), db
}

func createPriceMarket(t *testing.T, r *Repository, deadline time.Time) *models.Market {
	t.Helper()
	m := &models.Market{Question: "Will BTC close above $100k?", Deadline: deadline}
	m.SetSpec(models.PriceSpec{Asset: "btc", Operator: models.OperatorGreater, Threshold: 100000})
	require.NoError(t, r.CreateMarket(context.Background(), m))
	return m
}

func createUser(t *testing.T, r *Repository, id string, balance int64) {
	t.Helper()
	_, err := r.GetOrCreateUser(context.Background(), id, balance)
	require.NoError(t, err)
}

func balanceOf(t *testing.T, r *Repository, id string) int64 {
	t.Helper()
	u, err := r.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u.Balance
}

func TestTryResolveExactlyOnce(t *testing.T) {
	r, _ := setupTestRepo(t)
	ctx := context.Background()
	m := createPriceMarket(t, r, time.Now().Add(-time.Minute))

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []models.Outcome
	)
	for i := 0; i < callers; i++ {
		outcome := models.OutcomeYes
		if i%2 == 1 {
			outcome = models.OutcomeNo
		}
		wg.Add(1)
		go func(outcome models.Outcome) {
			defer wg.Done()
			applied, err := r.TryResolve(ctx, m.ID, outcome, time.Now())
			assert.NoError(t, err)
			if applied {
				mu.Lock()
				winners = append(winners, outcome)
				mu.Unlock()
			}
		}(outcome)
	}
	wg.Wait()

	require.Len(t, winners, 1)

	got, err := r.GetMarketByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MarketStatusResolved, got.Status)
	require.NotNil(t, got.Outcome)
	assert.Equal(t, winners[0], *got.Outcome)
	assert.NotNil(t, got.ResolvedAt)
}

func TestTryResolveAlreadyResolvedWritesNothing(t *testing.T) {
	r, _ := setupTestRepo(t)
	ctx := context.Background()
	m := createPriceMarket(t, r, time.Now().Add(-time.Minute))

	applied, err := r.TryResolve(ctx, m.ID, models.OutcomeNo, time.Now())
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = r.TryResolve(ctx, m.ID, models.OutcomeYes, time.Now())
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := r.GetMarketByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNo, *got.Outcome)
}

func TestPlaceBet(t *testing.T) {
	r, _ := setupTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	m := createPriceMarket(t, r, now.Add(time.Hour))
	createUser(t, r, "alice", 1000)

	bet := &models.Bet{MarketID: m.ID, UserID: "alice", Direction: models.OutcomeYes, Amount: 400}
	require.NoError(t, r.PlaceBet(ctx, bet, now))
	assert.NotEmpty(t, bet.ID)

	assert.Equal(t, int64(600), balanceOf(t, r, "alice"))
	got, err := r.GetMarketByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), got.TotalYes)
	assert.Equal(t, int64(0), got.TotalNo)

	bets, err := r.ListUserBets(ctx, "alice", 10, 0)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.False(t, bets[0].Claimed)

	t.Run("insufficient balance", func(t *testing.T) {
		err := r.PlaceBet(ctx, &models.Bet{MarketID: m.ID, UserID: "alice", Direction: models.OutcomeNo, Amount: 601}, now)
		assert.ErrorIs(t, err, models.ErrInsufficientBalance)
		assert.Equal(t, int64(600), balanceOf(t, r, "alice"))
	})

	t.Run("unknown user", func(t *testing.T) {
		err := r.PlaceBet(ctx, &models.Bet{MarketID: m.ID, UserID: "nobody", Direction: models.OutcomeNo, Amount: 1}, now)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("unknown market", func(t *testing.T) {
		err := r.PlaceBet(ctx, &models.Bet{MarketID: "missing", UserID: "alice", Direction: models.OutcomeNo, Amount: 1}, now)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("past deadline", func(t *testing.T) {
		err := r.PlaceBet(ctx, &models.Bet{MarketID: m.ID, UserID: "alice", Direction: models.OutcomeNo, Amount: 1}, now.Add(2*time.Hour))
		assert.ErrorIs(t, err, models.ErrMarketNotActive)
		assert.Equal(t, int64(600), balanceOf(t, r, "alice"))
	})

	t.Run("resolved market", func(t *testing.T) {
		applied, err := r.TryResolve(ctx, m.ID, models.OutcomeYes, now)
		require.NoError(t, err)
		require.True(t, applied)

		err = r.PlaceBet(ctx, &models.Bet{MarketID: m.ID, UserID: "alice", Direction: models.OutcomeNo, Amount: 1}, now)
		assert.ErrorIs(t, err, models.ErrMarketNotActive)
		assert.Equal(t, int64(600), balanceOf(t, r, "alice"))
	})
}

func TestClaimAndCreditIsIdempotent(t *testing.T) {
	r, db := setupTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	m := createPriceMarket(t, r, now.Add(time.Hour))
	createUser(t, r, "bob", 500)

	bet := &models.Bet{MarketID: m.ID, UserID: "bob", Direction: models.OutcomeYes, Amount: 500}
	require.NoError(t, r.PlaceBet(ctx, bet, now))

	applied, err := r.ClaimAndCredit(ctx, bet, 750, now)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = r.ClaimAndCredit(ctx, bet, 750, now)
	require.NoError(t, err)
	assert.False(t, applied)

	assert.Equal(t, int64(750), balanceOf(t, r, "bob"))

	var won int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("bet_id = ? AND type = ?", bet.ID, models.TransactionTypeBetWon).
		Count(&won).Error)
	assert.Equal(t, int64(1), won)

	var stored models.Bet
	require.NoError(t, db.First(&stored, "id = ?", bet.ID).Error)
	assert.True(t, stored.Claimed)
	assert.Equal(t, int64(750), stored.Payout)
}

func TestClaimAndCreditFailureLeavesBetUnclaimed(t *testing.T) {
	r, db := setupTestRepo(t)
	ctx := context.Background()
	m := createPriceMarket(t, r, time.Now().Add(time.Hour))

	// A bet whose owner row is gone cannot be credited.
	bet := &models.Bet{ID: "orphan-bet", MarketID: m.ID, UserID: "ghost", Direction: models.OutcomeYes, Amount: 10}
	require.NoError(t, db.Create(bet).Error)

	applied, err := r.ClaimAndCredit(ctx, bet, 20, time.Now())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, applied)

	var stored models.Bet
	require.NoError(t, db.First(&stored, "id = ?", bet.ID).Error)
	assert.False(t, stored.Claimed)
}

func TestConcurrentCreditsAreRelative(t *testing.T) {
	r, _ := setupTestRepo(t)
	ctx := context.Background()
	createUser(t, r, "carol", 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.CreditUserBalance(ctx, "carol", 5))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), balanceOf(t, r, "carol"))
}

func TestListExpiredAndPendingPayout(t *testing.T) {
	r, _ := setupTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := createPriceMarket(t, r, now.Add(time.Hour))
	open := createPriceMarket(t, r, now.Add(3*time.Hour))
	createUser(t, r, "dave", 100)
	createUser(t, r, "erin", 100)

	winner := &models.Bet{MarketID: expired.ID, UserID: "dave", Direction: models.OutcomeYes, Amount: 50}
	loser := &models.Bet{MarketID: expired.ID, UserID: "erin", Direction: models.OutcomeNo, Amount: 50}
	require.NoError(t, r.PlaceBet(ctx, winner, now))
	require.NoError(t, r.PlaceBet(ctx, loser, now))

	later := now.Add(2 * time.Hour)
	markets, err := r.ListExpiredUnresolved(ctx, later)
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, expired.ID, markets[0].ID)

	pending, err := r.ListMarketsPendingPayout(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	applied, err := r.TryResolve(ctx, expired.ID, models.OutcomeYes, later)
	require.NoError(t, err)
	require.True(t, applied)

	markets, err = r.ListExpiredUnresolved(ctx, later)
	require.NoError(t, err)
	assert.Empty(t, markets)

	pending, err = r.ListMarketsPendingPayout(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, expired.ID, pending[0].ID)

	// Only the winning side counts as pending.
	_, err = r.ClaimAndCredit(ctx, winner, 100, later)
	require.NoError(t, err)
	pending, err = r.ListMarketsPendingPayout(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	active, err := r.ListActiveMarkets(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, open.ID, active[0].ID)
}

func TestGetOrCreateUserKeepsExistingBalance(t *testing.T) {
	r, _ := setupTestRepo(t)
	ctx := context.Background()

	u, err := r.GetOrCreateUser(ctx, "frank", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), u.Balance)

	require.NoError(t, r.CreditUserBalance(ctx, "frank", 25))

	u, err = r.GetOrCreateUser(ctx, "frank", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1025), u.Balance)

	_, err = r.GetMarketByID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
