package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wendao-market/internal/lock"
	"wendao-market/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var payoutLog = logrus.WithField("component", "payout_service")

// ErrPartialDistribution is returned when some winning bets could not be
// credited. They stay unclaimed and are picked up by the next reconcile.
var ErrPartialDistribution = errors.New("distribution incomplete")

const (
	distributionLockTTL = 5 * time.Minute
	reconcileBatchSize  = 100
)

// Payout is one credited winning bet
type Payout struct {
	UserID string `json:"userId"`
	BetID  string `json:"betId"`
	Amount int64  `json:"amount"`
}

// FailedCredit is a winning bet whose credit failed
type FailedCredit struct {
	UserID string `json:"userId"`
	BetID  string `json:"betId"`
	Error  string `json:"error"`
}

// DistributionResult describes one Distribute call
type DistributionResult struct {
	MarketID    string         `json:"marketId"`
	Outcome     models.Outcome `json:"outcome"`
	TotalPool   int64          `json:"totalPool"`
	WinningPool int64          `json:"winningPool"`
	Paid        []Payout       `json:"paid"`
	Skipped     []string       `json:"skipped"`
	Failed      []FailedCredit `json:"failed,omitempty"`
}

// TotalPaid sums the credited amounts
func (r *DistributionResult) TotalPaid() int64 {
	var sum int64
	for _, p := range r.Paid {
		sum += p.Amount
	}
	return sum
}

// ReconcileReport summarizes a reconciliation pass
type ReconcileReport struct {
	Markets []*DistributionResult `json:"markets"`
	Errors  []MarketError         `json:"errors"`
}

// PayoutService distributes a resolved market's pool to its winning bets.
type PayoutService struct {
	store  PayoutStore
	locker lock.Locker
	now    func() time.Time
}

func NewPayoutService(store PayoutStore, locker lock.Locker) *PayoutService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &PayoutService{
		store:  store,
		locker: locker,
		now:    time.Now,
	}
}

// ComputeShare returns floor(amount / winningPool * totalPool) using exact
// integer arithmetic.
func ComputeShare(amount, winningPool, totalPool int64) int64 {
	if amount <= 0 || winningPool <= 0 || totalPool <= 0 {
		return 0
	}
	q, _ := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(totalPool)).
		QuoRem(decimal.NewFromInt(winningPool), 0)
	return q.IntPart()
}

// Distribute credits every unclaimed winning bet of a resolved market. Each
// bet is credited independently and at most once, so the call is safe to
// repeat. Credits that fail do not stop the others; the result lists them
// and the returned error wraps ErrPartialDistribution.
func (ps *PayoutService) Distribute(ctx context.Context, marketID string) (*DistributionResult, error) {
	unlock, err := ps.locker.Acquire(ctx, "distribute:"+marketID, distributionLockTTL)
	if err != nil {
		return nil, fmt.Errorf("distribute %s: %w", marketID, err)
	}
	defer unlock()

	market, err := ps.store.GetMarketByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market %s: %w", marketID, err)
	}
	if market.Status != models.MarketStatusResolved || market.Outcome == nil {
		return nil, fmt.Errorf("distribute %s: %w", marketID, models.ErrMarketNotResolved)
	}

	outcome := *market.Outcome
	result := &DistributionResult{
		MarketID:    market.ID,
		Outcome:     outcome,
		TotalPool:   market.TotalPool(),
		WinningPool: market.PoolFor(outcome),
		Paid:        []Payout{},
		Skipped:     []string{},
	}

	// Nothing to split, or nobody on the winning side.
	if result.TotalPool == 0 || result.WinningPool == 0 {
		payoutLog.Printf("[Payout] Market %s has no winning pool (total=%d, winning=%d), nothing to distribute",
			market.ID, result.TotalPool, result.WinningPool)
		return result, nil
	}

	bets, err := ps.store.ListBetsForMarket(ctx, market.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets for market %s: %w", market.ID, err)
	}

	for _, bet := range bets {
		if bet.Direction != outcome {
			continue
		}
		if bet.Claimed {
			result.Skipped = append(result.Skipped, bet.UserID)
			continue
		}

		share := ComputeShare(bet.Amount, result.WinningPool, result.TotalPool)
		applied, err := ps.store.ClaimAndCredit(ctx, bet, share, ps.now())
		if err != nil {
			payoutLog.WithError(err).Errorf("[Payout] Failed to credit bet %s of user %s", bet.ID, bet.UserID)
			result.Failed = append(result.Failed, FailedCredit{UserID: bet.UserID, BetID: bet.ID, Error: err.Error()})
			continue
		}
		if !applied {
			result.Skipped = append(result.Skipped, bet.UserID)
			continue
		}

		result.Paid = append(result.Paid, Payout{UserID: bet.UserID, BetID: bet.ID, Amount: share})
		payoutLog.Printf("[Payout] Distributed %d coins to user %s (bet %s)", share, bet.UserID, bet.ID)
	}

	payoutLog.Printf("[Payout] Market %s: outcome=%s pool=%d paid=%d bets (%d coins), skipped=%d, failed=%d",
		market.ID, outcome, result.TotalPool, len(result.Paid), result.TotalPaid(), len(result.Skipped), len(result.Failed))

	if len(result.Failed) > 0 {
		return result, fmt.Errorf("%w: %d credits failed for market %s", ErrPartialDistribution, len(result.Failed), market.ID)
	}
	return result, nil
}

// Reconcile re-runs Distribute for resolved markets that still have unpaid
// winning bets, e.g. after a sweep was interrupted between resolving and
// paying.
func (ps *PayoutService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	markets, err := ps.store.ListMarketsPendingPayout(ctx, reconcileBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list markets pending payout: %w", err)
	}

	report := &ReconcileReport{
		Markets: []*DistributionResult{},
		Errors:  []MarketError{},
	}
	for _, market := range markets {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result, err := ps.Distribute(ctx, market.ID)
		if result != nil {
			report.Markets = append(report.Markets, result)
		}
		if err != nil {
			report.Errors = append(report.Errors, MarketError{
				MarketID: market.ID,
				Error:    err.Error(),
				Soft:     errors.Is(err, lock.ErrLockHeld) || errors.Is(err, ErrPartialDistribution),
			})
		}
	}

	if len(markets) > 0 {
		payoutLog.Printf("[Payout] Reconciled %d markets (%d errors)", len(report.Markets), len(report.Errors))
	}
	return report, nil
}
