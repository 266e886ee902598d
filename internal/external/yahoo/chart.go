package yahoo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wonny/sepa/internal/contracts"
)

// FetchHistory returns up to lookbackDays of daily bars for a symbol, oldest
// first. Sessions with a null close (halts, data gaps) are dropped.
func (c *Client) FetchHistory(ctx context.Context, sym contracts.Symbol, lookbackDays int) (contracts.PriceSeries, error) {
	series, err := c.fetchChart(ctx, sym.Ticker, lookbackDays)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": sym.Ticker,
		"bars":   len(series),
	}).Debug("Fetched history")
	return series, nil
}

// FetchIndexHistory returns history for the market's reference index.
func (c *Client) FetchIndexHistory(ctx context.Context, market contracts.MarketTag, lookbackDays int) (contracts.PriceSeries, error) {
	symbol, ok := IndexSymbol(market)
	if !ok {
		return nil, fmt.Errorf("no reference index for market %s", market)
	}
	return c.fetchChart(ctx, symbol, lookbackDays)
}

func (c *Client) fetchChart(ctx context.Context, symbol string, lookbackDays int) (contracts.PriceSeries, error) {
	resp, err := c.http.Get(ctx, c.chartURL(symbol, lookbackDays))
	if err != nil {
		return nil, fmt.Errorf("chart request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}

	return parseChart(body, symbol)
}

// parseChart extracts the bar arrays from the v8 chart payload. The arrays
// are parallel: timestamp[i] pairs with quote.open[i] etc.
func parseChart(body []byte, symbol string) (contracts.PriceSeries, error) {
	if desc := gjson.GetBytes(body, "chart.error.description"); desc.Exists() && desc.String() != "" {
		return nil, fmt.Errorf("chart API error for %s: %s", symbol, desc.String())
	}

	result := gjson.GetBytes(body, "chart.result.0")
	if !result.Exists() {
		return nil, fmt.Errorf("no chart result for %s", symbol)
	}

	timestamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	if len(timestamps) == 0 || len(closes) != len(timestamps) {
		return nil, fmt.Errorf("malformed chart payload for %s", symbol)
	}

	series := make(contracts.PriceSeries, 0, len(timestamps))
	for i := range timestamps {
		if i >= len(opens) || i >= len(highs) || i >= len(lows) || i >= len(volumes) {
			break
		}
		if closes[i].Type == gjson.Null {
			continue
		}
		series = append(series, contracts.PriceBar{
			Date:   time.Unix(timestamps[i].Int(), 0).UTC(),
			Open:   opens[i].Float(),
			High:   highs[i].Float(),
			Low:    lows[i].Float(),
			Close:  closes[i].Float(),
			Volume: volumes[i].Int(),
		})
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("no usable bars for %s", symbol)
	}
	return series, nil
}
