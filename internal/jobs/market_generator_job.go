package jobs

import (
	"context"
	"time"

	"wendao-market/internal/services"
)

// NewMarketGeneratorJob creates one generated market per interval
func NewMarketGeneratorJob(markets *services.MarketService, interval time.Duration) *Periodic {
	return newPeriodic("MarketGenerator", interval, func(ctx context.Context) {
		market, err := markets.Generate(ctx)
		if err != nil {
			log.WithError(err).Error("[MarketGenerator] Generate error")
			return
		}
		log.Printf("[MarketGenerator] Created market %s", market.ID)
	})
}
