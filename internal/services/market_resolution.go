package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wendao-market/internal/lock"
	"wendao-market/internal/models"
	"wendao-market/internal/oracle"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var resolutionLog = logrus.WithField("component", "market_resolution")

// SkipReason explains why an expired market was left unresolved by a sweep
type SkipReason string

const (
	SkipManual          SkipReason = "manual_resolution"
	SkipAlreadyResolved SkipReason = "already_resolved"
)

// ResolvedMarket is one market resolved by a sweep
type ResolvedMarket struct {
	MarketID     string              `json:"marketId"`
	Question     string              `json:"question"`
	Outcome      models.Outcome      `json:"outcome"`
	ActualPrice  float64             `json:"actualPrice"`
	Distribution *DistributionResult `json:"distribution,omitempty"`
}

// SkippedMarket is an expired market the sweep deliberately left alone
type SkippedMarket struct {
	MarketID string     `json:"marketId"`
	Reason   SkipReason `json:"reason"`
}

// MarketError is a per-market failure. Soft errors (oracle unavailable,
// payout still pending) are retried automatically on the next run.
type MarketError struct {
	MarketID string `json:"marketId"`
	Error    string `json:"error"`
	Soft     bool   `json:"soft"`
}

// SweepReport is the outcome of one sweep. It is always returned whole, even
// when individual markets failed.
type SweepReport struct {
	ResolvedCount int               `json:"resolved"`
	Results       []*ResolvedMarket `json:"results"`
	Skipped       []SkippedMarket   `json:"skipped"`
	Errors        []MarketError     `json:"errors"`
	CheckedAt     time.Time         `json:"checkedAt"`
}

// MarketResolutionService runs the resolution sweep. Every resolution goes
// through TryResolve; only the caller whose transition applied distributes.
type MarketResolutionService struct {
	store       ResolutionStore
	verifier    PriceVerifier
	payouts     *PayoutService
	concurrency int
	now         func() time.Time
}

func NewMarketResolutionService(
	store ResolutionStore,
	verifier PriceVerifier,
	payouts *PayoutService,
	concurrency int,
) *MarketResolutionService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &MarketResolutionService{
		store:       store,
		verifier:    verifier,
		payouts:     payouts,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// TryResolve atomically moves an active market to resolved with outcome.
// applied is false when the market was no longer active; nothing is written
// in that case.
func (s *MarketResolutionService) TryResolve(ctx context.Context, marketID string, outcome models.Outcome) (bool, error) {
	if !outcome.Valid() {
		return false, models.ErrInvalidOutcome
	}

	applied, err := s.store.TryResolve(ctx, marketID, outcome, s.now())
	if err != nil {
		return false, err
	}
	if !applied {
		resolutionLog.Printf("[Resolution] Market %s was already resolved, skipping", marketID)
	}
	return applied, nil
}

type marketRun struct {
	resolved *ResolvedMarket
	skipped  *SkippedMarket
	errs     []MarketError
}

// RunSweep resolves every expired, unresolved, oracle-verifiable market.
// Markets are processed independently: a failure on one is recorded in the
// report and never aborts the others. The returned error is non-nil only
// when the expired markets could not be listed at all.
func (s *MarketResolutionService) RunSweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	markets, err := s.store.ListExpiredUnresolved(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired markets: %w", err)
	}

	report := &SweepReport{
		Results:   []*ResolvedMarket{},
		Skipped:   []SkippedMarket{},
		Errors:    []MarketError{},
		CheckedAt: now.UTC(),
	}
	if len(markets) == 0 {
		return report, nil
	}

	resolutionLog.Printf("[Resolution] Checking %d expired markets", len(markets))

	runs := make([]marketRun, len(markets))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, market := range markets {
		g.Go(func() error {
			runs[i] = s.runMarket(ctx, market)
			return nil
		})
	}
	_ = g.Wait()

	for _, run := range runs {
		if run.resolved != nil {
			report.Results = append(report.Results, run.resolved)
		}
		if run.skipped != nil {
			report.Skipped = append(report.Skipped, *run.skipped)
		}
		report.Errors = append(report.Errors, run.errs...)
	}
	report.ResolvedCount = len(report.Results)

	if report.ResolvedCount > 0 || len(report.Errors) > 0 {
		resolutionLog.Printf("[Resolution] Resolved %d markets, skipped %d, errors %d",
			report.ResolvedCount, len(report.Skipped), len(report.Errors))
	}
	return report, nil
}

// runMarket resolves and pays a single market. A panic is confined to this
// market and reported as its error.
func (s *MarketResolutionService) runMarket(ctx context.Context, market *models.Market) (run marketRun) {
	defer func() {
		if r := recover(); r != nil {
			resolutionLog.Errorf("[Resolution] Panic while resolving market %s: %v", market.ID, r)
			run = marketRun{errs: []MarketError{{MarketID: market.ID, Error: fmt.Sprintf("panic: %v", r)}}}
		}
	}()

	spec, err := market.Spec()
	if err != nil {
		resolutionLog.WithError(err).Warnf("[Resolution] Market %s has an unusable verification spec, leaving it for manual resolution", market.ID)
		return marketRun{errs: []MarketError{{MarketID: market.ID, Error: err.Error()}}}
	}

	price, ok := spec.(models.PriceSpec)
	if !ok {
		resolutionLog.Printf("[Resolution] Market %s requires manual resolution (type: %s)", market.ID, spec.Kind())
		return marketRun{skipped: &SkippedMarket{MarketID: market.ID, Reason: SkipManual}}
	}

	verdict, err := s.verifier.Verify(ctx, price.Asset, price.Operator, price.Threshold)
	if err != nil {
		soft := errors.Is(err, oracle.ErrUnavailable)
		resolutionLog.WithError(err).Warnf("[Resolution] Could not verify market %s", market.ID)
		return marketRun{errs: []MarketError{{MarketID: market.ID, Error: err.Error(), Soft: soft}}}
	}

	outcome := models.OutcomeNo
	if verdict.Matched {
		outcome = models.OutcomeYes
	}

	applied, err := s.TryResolve(ctx, market.ID, outcome)
	if err != nil {
		resolutionLog.WithError(err).Errorf("[Resolution] Failed to resolve market %s", market.ID)
		return marketRun{errs: []MarketError{{MarketID: market.ID, Error: err.Error()}}}
	}
	if !applied {
		return marketRun{skipped: &SkippedMarket{MarketID: market.ID, Reason: SkipAlreadyResolved}}
	}

	resolutionLog.Printf("[Resolution] Resolved market %s: %s (price: %v)", market.ID, outcome, verdict.Observed)

	run.resolved = &ResolvedMarket{
		MarketID:    market.ID,
		Question:    market.Question,
		Outcome:     outcome,
		ActualPrice: verdict.Observed,
	}

	dist, err := s.payouts.Distribute(ctx, market.ID)
	run.resolved.Distribution = dist
	if err != nil {
		// The market stays resolved; unpaid bets are left for reconcile.
		resolutionLog.WithError(err).Errorf("[Resolution] Distribution for market %s did not complete", market.ID)
		run.errs = append(run.errs, MarketError{
			MarketID: market.ID,
			Error:    err.Error(),
			Soft:     errors.Is(err, ErrPartialDistribution) || errors.Is(err, lock.ErrLockHeld),
		})
	}
	return run
}
