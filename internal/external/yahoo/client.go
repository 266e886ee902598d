// Package yahoo fetches daily OHLCV history from the Yahoo Finance v8 chart
// API. It is the MarketDataProvider used by the screen engine.
package yahoo

import (
	"fmt"
	"net/url"

	"github.com/wonny/sepa/internal/contracts"
	"github.com/wonny/sepa/pkg/httputil"
	"github.com/wonny/sepa/pkg/logger"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Reference index per market.
var indexSymbols = map[contracts.MarketTag]string{
	contracts.MarketUS: "^GSPC",
	contracts.MarketHK: "^HSI",
}

// Client is a Yahoo Finance chart API client. Politeness throttling and retry
// live in the shared httputil client it wraps.
type Client struct {
	http    *httputil.Client
	logger  *logger.Logger
	baseURL string
}

// NewClient creates a new Yahoo Finance client.
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		http:    httpClient,
		logger:  log,
		baseURL: defaultBaseURL,
	}
}

// WithBaseURL overrides the API host. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// IndexSymbol maps a market to its reference index ticker.
func IndexSymbol(market contracts.MarketTag) (string, bool) {
	s, ok := indexSymbols[market]
	return s, ok
}

func (c *Client) chartURL(symbol string, lookbackDays int) string {
	return fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s&events=div%%2Csplit",
		c.baseURL, url.PathEscape(symbol), rangeParam(lookbackDays))
}

// rangeParam picks the smallest Yahoo range covering the requested lookback.
func rangeParam(lookbackDays int) string {
	switch {
	case lookbackDays <= 30:
		return "1mo"
	case lookbackDays <= 90:
		return "3mo"
	case lookbackDays <= 180:
		return "6mo"
	case lookbackDays <= 365:
		return "1y"
	case lookbackDays <= 730:
		return "2y"
	default:
		return "5y"
	}
}
