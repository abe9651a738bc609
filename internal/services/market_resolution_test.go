package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wendao-market/internal/models"
	"wendao-market/internal/oracle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// priceTable is an oracle.Source backed by fixed prices. Assets missing from
// the table fail like an unreachable upstream.
type priceTable map[string]float64

func (p priceTable) Price(_ context.Context, asset string) (float64, error) {
	price, ok := p[asset]
	if !ok {
		return 0, errors.New("upstream timeout")
	}
	return price, nil
}

type panickingVerifier struct {
	PriceVerifier
	asset string
}

func (v panickingVerifier) Verify(ctx context.Context, asset string, op models.Operator, threshold float64) (*oracle.Result, error) {
	if asset == v.asset {
		panic("bad observation")
	}
	return v.PriceVerifier.Verify(ctx, asset, op, threshold)
}

func newResolution(store ResolutionStore, payouts *PayoutService, prices priceTable) *MarketResolutionService {
	return NewMarketResolutionService(store, oracle.NewVerifier(prices, time.Second), payouts, 4)
}

func marketStatus(t *testing.T, store PayoutStore, id string) (models.MarketStatus, *models.Outcome) {
	t.Helper()
	m, err := store.GetMarketByID(context.Background(), id)
	require.NoError(t, err)
	return m.Status, m.Outcome
}

func TestRunSweepResolvesAndPays(t *testing.T) {
	repo, _ := setupTestStore(t)
	ctx := context.Background()
	deadline := time.Now().Add(time.Hour)

	yes := newMarket(t, repo, btcAbove(100000), deadline)
	no := newMarket(t, repo, models.PriceSpec{Asset: "eth", Operator: models.OperatorLess, Threshold: 1000}, deadline)
	placeBet(t, repo, yes.ID, "bull", models.OutcomeYes, 100)
	placeBet(t, repo, yes.ID, "bear", models.OutcomeNo, 100)
	placeBet(t, repo, no.ID, "bear", models.OutcomeNo, 50)
	placeBet(t, repo, no.ID, "bull", models.OutcomeYes, 150)

	payouts := NewPayoutService(repo, nil)
	svc := newResolution(repo, payouts, priceTable{"btc": 100001, "eth": 3500})

	report, err := svc.RunSweep(ctx, deadline.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, report.ResolvedCount)
	assert.Empty(t, report.Errors)
	assert.Equal(t, time.UTC, report.CheckedAt.Location())

	byID := map[string]*ResolvedMarket{}
	for _, r := range report.Results {
		byID[r.MarketID] = r
	}
	require.Contains(t, byID, yes.ID)
	require.Contains(t, byID, no.ID)
	assert.Equal(t, models.OutcomeYes, byID[yes.ID].Outcome)
	assert.Equal(t, 100001.0, byID[yes.ID].ActualPrice)
	assert.Equal(t, models.OutcomeNo, byID[no.ID].Outcome)

	assert.Equal(t, int64(200), balance(t, repo, "bull"))
	assert.Equal(t, int64(200), balance(t, repo, "bear"))
}

func TestRunSweepIsIdempotent(t *testing.T) {
	repo, _ := setupTestStore(t)
	ctx := context.Background()
	deadline := time.Now().Add(time.Hour)

	m := newMarket(t, repo, btcAbove(100000), deadline)
	placeBet(t, repo, m.ID, "winner", models.OutcomeYes, 10)
	placeBet(t, repo, m.ID, "loser", models.OutcomeNo, 30)

	svc := newResolution(repo, NewPayoutService(repo, nil), priceTable{"btc": 120000})
	now := deadline.Add(time.Second)

	first, err := svc.RunSweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ResolvedCount)

	second, err := svc.RunSweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ResolvedCount)
	assert.Empty(t, second.Errors)

	assert.Equal(t, int64(40), balance(t, repo, "winner"))
}

func TestRunSweepIgnoresUnexpiredMarkets(t *testing.T) {
	repo, _ := setupTestStore(t)
	deadline := time.Now().Add(time.Hour)
	m := newMarket(t, repo, btcAbove(1), deadline)

	svc := newResolution(repo, NewPayoutService(repo, nil), priceTable{"btc": 2})
	report, err := svc.RunSweep(context.Background(), deadline.Add(-time.Second))
	require.NoError(t, err)
	assert.Zero(t, report.ResolvedCount)

	status, _ := marketStatus(t, repo, m.ID)
	assert.Equal(t, models.MarketStatusActive, status)
}

func TestRunSweepSkipsManualMarkets(t *testing.T) {
	repo, _ := setupTestStore(t)
	deadline := time.Now().Add(time.Hour)
	m := newMarket(t, repo, models.ManualSpec{Subtype: models.VerifyKindEconomy, Asset: "cpi", Operator: ">", Value: 3}, deadline)

	svc := newResolution(repo, NewPayoutService(repo, nil), priceTable{})
	report, err := svc.RunSweep(context.Background(), deadline.Add(time.Minute))
	require.NoError(t, err)

	assert.Zero(t, report.ResolvedCount)
	assert.Empty(t, report.Errors)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, SkippedMarket{MarketID: m.ID, Reason: SkipManual}, report.Skipped[0])

	status, outcome := marketStatus(t, repo, m.ID)
	assert.Equal(t, models.MarketStatusActive, status)
	assert.Nil(t, outcome)
}

func TestRunSweepIsolatesMarketFailures(t *testing.T) {
	repo, _ := setupTestStore(t)
	ctx := context.Background()
	deadline := time.Now().Add(time.Hour)

	unavailable := newMarket(t, repo, models.PriceSpec{Asset: "doge", Operator: models.OperatorGreater, Threshold: 1}, deadline)
	malformed := &models.Market{
		Question:   "Price market without an asset",
		Deadline:   deadline,
		VerifyType: models.VerifyKindPrice,
		VerifyData: models.VerifyData{Operator: ">", Value: 1},
	}
	require.NoError(t, repo.CreateMarket(ctx, malformed))
	healthy := newMarket(t, repo, btcAbove(1), deadline)

	svc := newResolution(repo, NewPayoutService(repo, nil), priceTable{"btc": 2})
	report, err := svc.RunSweep(ctx, deadline.Add(time.Minute))
	require.NoError(t, err)

	require.Equal(t, 1, report.ResolvedCount)
	assert.Equal(t, healthy.ID, report.Results[0].MarketID)

	errs := map[string]MarketError{}
	for _, e := range report.Errors {
		errs[e.MarketID] = e
	}
	require.Contains(t, errs, unavailable.ID)
	assert.True(t, errs[unavailable.ID].Soft)
	require.Contains(t, errs, malformed.ID)
	assert.False(t, errs[malformed.ID].Soft)

	for _, id := range []string{unavailable.ID, malformed.ID} {
		status, outcome := marketStatus(t, repo, id)
		assert.Equal(t, models.MarketStatusActive, status)
		assert.Nil(t, outcome)
	}
}

func TestRunSweepRecoversFromPanics(t *testing.T) {
	repo, _ := setupTestStore(t)
	deadline := time.Now().Add(time.Hour)

	bad := newMarket(t, repo, models.PriceSpec{Asset: "boom", Operator: models.OperatorGreater, Threshold: 1}, deadline)
	good := newMarket(t, repo, btcAbove(1), deadline)

	verifier := panickingVerifier{
		PriceVerifier: oracle.NewVerifier(priceTable{"btc": 2, "boom": 2}, time.Second),
		asset:         "boom",
	}
	svc := NewMarketResolutionService(repo, verifier, NewPayoutService(repo, nil), 2)

	report, err := svc.RunSweep(context.Background(), deadline.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, report.ResolvedCount)
	assert.Equal(t, good.ID, report.Results[0].MarketID)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, bad.ID, report.Errors[0].MarketID)
	assert.Contains(t, report.Errors[0].Error, "panic")
}

func TestConcurrentSweepsSettleOnce(t *testing.T) {
	repo, _ := setupTestStore(t)
	ctx := context.Background()
	deadline := time.Now().Add(time.Hour)

	var ids []string
	for i := 0; i < 5; i++ {
		m := newMarket(t, repo, btcAbove(1), deadline)
		placeBet(t, repo, m.ID, "winner", models.OutcomeYes, 10)
		placeBet(t, repo, m.ID, "loser", models.OutcomeNo, 10)
		ids = append(ids, m.ID)
	}

	svc := newResolution(repo, NewPayoutService(repo, nil), priceTable{"btc": 2})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		resolved int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := svc.RunSweep(ctx, deadline.Add(time.Minute))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			resolved += report.ResolvedCount
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, len(ids), resolved)
	// Each market pays its 20-coin pool to the single winner exactly once.
	assert.Equal(t, int64(20*len(ids)), balance(t, repo, "winner"))
	assert.Equal(t, int64(0), balance(t, repo, "loser"))
}

func TestTryResolveRejectsInvalidOutcome(t *testing.T) {
	repo, _ := setupTestStore(t)
	m := newMarket(t, repo, btcAbove(1), time.Now().Add(time.Hour))
	svc := newResolution(repo, NewPayoutService(repo, nil), priceTable{})

	_, err := svc.TryResolve(context.Background(), m.ID, models.Outcome("MAYBE"))
	assert.ErrorIs(t, err, models.ErrInvalidOutcome)

	applied, err := svc.TryResolve(context.Background(), m.ID, models.OutcomeNo)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = svc.TryResolve(context.Background(), m.ID, models.OutcomeYes)
	require.NoError(t, err)
	assert.False(t, applied)
}
