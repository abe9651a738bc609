package oracle

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// symbolIDs maps common tickers to CoinGecko coin ids.
var symbolIDs = map[string]string{
	"btc":  "bitcoin",
	"eth":  "ethereum",
	"sol":  "solana",
	"bnb":  "binancecoin",
	"xrp":  "ripple",
	"doge": "dogecoin",
	"ton":  "the-open-network",
	"pump": "pump-fun",
}

// CoinGeckoID normalizes an asset to a CoinGecko coin id.
func CoinGeckoID(asset string) string {
	a := strings.ToLower(strings.TrimSpace(asset))
	if id, ok := symbolIDs[a]; ok {
		return id
	}
	return a
}

// CoinGeckoSource reads spot prices from the CoinGecko simple price API.
// Example: GET /simple/price?ids=bitcoin&vs_currencies=usd
// Response: {"bitcoin":{"usd":101234.5}}
type CoinGeckoSource struct {
	client     *resty.Client
	vsCurrency string
}

func NewCoinGeckoSource(baseURL string, timeout time.Duration, vsCurrency string) *CoinGeckoSource {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if vsCurrency == "" {
		vsCurrency = "usd"
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &CoinGeckoSource{client: client, vsCurrency: strings.ToLower(vsCurrency)}
}

// Price returns the current price of asset in the configured currency
func (s *CoinGeckoSource) Price(ctx context.Context, asset string) (float64, error) {
	id := CoinGeckoID(asset)
	if id == "" {
		return 0, ErrAssetNotFound
	}

	var result map[string]map[string]float64
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("ids", id).
		SetQueryParam("vs_currencies", s.vsCurrency).
		SetResult(&result).
		Get("/simple/price")
	if err != nil {
		return 0, fmt.Errorf("coingecko request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("coingecko returned %d: %s", resp.StatusCode(), resp.String())
	}

	quote, ok := result[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAssetNotFound, id)
	}
	price, ok := quote[s.vsCurrency]
	if !ok {
		return 0, fmt.Errorf("%w: %s has no %s quote", ErrAssetNotFound, id, s.vsCurrency)
	}

	log.Debugf("[Oracle] %s price: %f (CoinGecko)", id, price)
	return price, nil
}
