package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"wendao-market/internal/models"
	"wendao-market/internal/oracle"
	"wendao-market/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var oracleLog = logrus.WithField("component", "oracle_handler")

// OracleHandler previews oracle verdicts without touching market state
type OracleHandler struct {
	verifier services.PriceVerifier
}

func NewOracleHandler(verifier services.PriceVerifier) *OracleHandler {
	return &OracleHandler{verifier: verifier}
}

type verifyRequest struct {
	Asset       string   `json:"asset"`
	CoinID      string   `json:"coinId"`
	Operator    string   `json:"operator"`
	TargetValue *float64 `json:"targetValue"`
}

// ResolveMarket evaluates an ad hoc price condition
// POST /api/resolve-market
func (h *OracleHandler) ResolveMarket(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	asset := strings.TrimSpace(req.Asset)
	if asset == "" {
		asset = strings.TrimSpace(req.CoinID)
	}
	if asset == "" || strings.TrimSpace(req.Operator) == "" || req.TargetValue == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	op, err := models.ParseOperator(req.Operator)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	verdict, err := h.verifier.Verify(c.Request.Context(), asset, op, *req.TargetValue)
	if err != nil {
		if !errors.Is(err, oracle.ErrUnavailable) {
			oracleLog.WithError(err).Error("[Oracle] Verify error")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify price"})
		return
	}

	outcome := models.OutcomeNo
	if verdict.Matched {
		outcome = models.OutcomeYes
	}

	c.JSON(http.StatusOK, gin.H{
		"resolved":    true,
		"outcome":     outcome,
		"actualPrice": verdict.Observed,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}
