package handlers

import (
	"net/http"
	"strconv"

	"wendao-market/internal/auth"
	"wendao-market/internal/models"
	"wendao-market/internal/services"

	"github.com/gin-gonic/gin"
)

type MarketHandler struct {
	markets *services.MarketService
	users   *services.UserService
}

func NewMarketHandler(markets *services.MarketService, users *services.UserService) *MarketHandler {
	return &MarketHandler{markets: markets, users: users}
}

// GetMarkets returns active markets, soonest deadline first
// GET /api/markets
func (h *MarketHandler) GetMarkets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	markets, err := h.markets.ListActive(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch markets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    markets,
		"count":   len(markets),
	})
}

// GetMarketByID returns a specific market
// GET /api/markets/:id
func (h *MarketHandler) GetMarketByID(c *gin.Context) {
	market, err := h.markets.GetMarket(c.Request.Context(), c.Param("id"))
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Market not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch market"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    market,
	})
}

// PlaceBet stakes coins on one side of a market
// POST /api/markets/:id/bets
func (h *MarketHandler) PlaceBet(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req models.PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	direction, err := models.ParseOutcome(req.Direction)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.users.GetProfile(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	bet, err := h.markets.PlaceBet(c.Request.Context(), userID, c.Param("id"), direction, req.Amount)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    bet,
	})
}
