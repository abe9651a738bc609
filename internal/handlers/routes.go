package handlers

import (
	"net/http"
	"time"

	"wendao-market/internal/auth"

	"github.com/gin-gonic/gin"
)

// Handlers bundles every route handler
type Handlers struct {
	Cron   *CronHandler
	Oracle *OracleHandler
	Market *MarketHandler
	User   *UserHandler
}

// RegisterRoutes mounts the API on router. Scheduler routes are guarded by
// the shared cron secret, user routes by JWT.
func RegisterRoutes(router *gin.Engine, h Handlers, cronSecret string, tokens *auth.TokenManager) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	cron := router.Group("/api/cron")
	cron.Use(auth.CronAuth(cronSecret))
	{
		cron.GET("/resolve", h.Cron.ResolveMarkets)
		cron.POST("/resolve", h.Cron.ResolveMarkets)
		cron.GET("/reconcile", h.Cron.ReconcilePayouts)
		cron.POST("/reconcile", h.Cron.ReconcilePayouts)
		cron.GET("/generate", h.Cron.GenerateMarket)
		cron.POST("/generate", h.Cron.GenerateMarket)
	}

	router.POST("/api/resolve-market", h.Oracle.ResolveMarket)

	router.GET("/api/markets", h.Market.GetMarkets)
	router.GET("/api/markets/:id", h.Market.GetMarketByID)

	api := router.Group("/api")
	api.Use(tokens.Middleware())
	{
		api.POST("/markets/:id/bets", h.Market.PlaceBet)
		api.GET("/user/profile", h.User.GetProfile)
		api.GET("/user/bets", h.User.GetBets)
	}
}
