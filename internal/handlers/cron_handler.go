package handlers

import (
	"net/http"
	"time"

	"wendao-market/internal/models"
	"wendao-market/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var cronLog = logrus.WithField("component", "cron_handler")

// CronHandler serves the scheduler-triggered endpoints
type CronHandler struct {
	resolution *services.MarketResolutionService
	payouts    *services.PayoutService
	markets    *services.MarketService
	now        func() time.Time
}

func NewCronHandler(
	resolution *services.MarketResolutionService,
	payouts *services.PayoutService,
	markets *services.MarketService,
) *CronHandler {
	return &CronHandler{
		resolution: resolution,
		payouts:    payouts,
		markets:    markets,
		now:        time.Now,
	}
}

type resolvedResult struct {
	MarketID    string         `json:"marketId"`
	Question    string         `json:"question"`
	Outcome     models.Outcome `json:"outcome"`
	ActualPrice float64        `json:"actualPrice"`
}

// ResolveMarkets runs one resolution sweep
// GET /api/cron/resolve
func (h *CronHandler) ResolveMarkets(c *gin.Context) {
	now := h.now().UTC()
	cronLog.Printf("[Cron] Checking for expired markets at %s", now.Format(time.RFC3339))

	report, err := h.resolution.RunSweep(c.Request.Context(), now)
	if err != nil {
		cronLog.WithError(err).Error("[Cron] Resolve markets error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	results := make([]resolvedResult, 0, len(report.Results))
	for _, r := range report.Results {
		results = append(results, resolvedResult{
			MarketID:    r.MarketID,
			Question:    r.Question,
			Outcome:     r.Outcome,
			ActualPrice: r.ActualPrice,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"resolved":  report.ResolvedCount,
		"results":   results,
		"skipped":   report.Skipped,
		"errors":    report.Errors,
		"checkedAt": report.CheckedAt.Format(time.RFC3339),
	})
}

// ReconcilePayouts re-runs distribution for resolved markets with unpaid winners
// GET /api/cron/reconcile
func (h *CronHandler) ReconcilePayouts(c *gin.Context) {
	report, err := h.payouts.Reconcile(c.Request.Context())
	if err != nil {
		cronLog.WithError(err).Error("[Cron] Reconcile payouts error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"markets":   report.Markets,
		"errors":    report.Errors,
		"checkedAt": h.now().UTC().Format(time.RFC3339),
	})
}

// GenerateMarket creates one market from the content generator
// GET /api/cron/generate
func (h *CronHandler) GenerateMarket(c *gin.Context) {
	market, err := h.markets.Generate(c.Request.Context())
	if err != nil {
		cronLog.WithError(err).Error("[Cron] Generate market error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate market"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"market":      market,
		"generatedAt": h.now().UTC().Format(time.RFC3339),
	})
}
