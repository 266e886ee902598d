package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sepa/internal/contracts"
	"github.com/wonny/sepa/pkg/httputil"
	"github.com/wonny/sepa/pkg/logger"
)

const chartPayload = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "NVDA", "currency": "USD"},
      "timestamp": [1756702800, 1756789200, 1756875600],
      "indicators": {
        "quote": [{
          "open":   [118.2, 119.0, null],
          "high":   [120.1, 121.5, null],
          "low":    [117.5, 118.8, null],
          "close":  [119.9, 120.4, null],
          "volume": [250000000, 310000000, null]
        }]
      }
    }],
    "error": null
  }
}`

const errorPayload = `{
  "chart": {
    "result": null,
    "error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}
  }
}`

func TestParseChart(t *testing.T) {
	t.Run("parallel arrays become bars, null closes dropped", func(t *testing.T) {
		series, err := parseChart([]byte(chartPayload), "NVDA")
		require.NoError(t, err)
		require.Len(t, series, 2)

		first := series[0]
		assert.Equal(t, time.Unix(1756702800, 0).UTC(), first.Date)
		assert.InDelta(t, 118.2, first.Open, 1e-9)
		assert.InDelta(t, 120.1, first.High, 1e-9)
		assert.InDelta(t, 117.5, first.Low, 1e-9)
		assert.InDelta(t, 119.9, first.Close, 1e-9)
		assert.Equal(t, int64(250_000_000), first.Volume)

		assert.InDelta(t, 120.4, series.LastClose(), 1e-9)
	})

	t.Run("API error payload", func(t *testing.T) {
		_, err := parseChart([]byte(errorPayload), "GONE")
		assert.ErrorContains(t, err, "delisted")
	})

	t.Run("missing result", func(t *testing.T) {
		_, err := parseChart([]byte(`{"chart":{"result":null,"error":null}}`), "X")
		assert.Error(t, err)
	})

	t.Run("all closes null", func(t *testing.T) {
		payload := `{"chart":{"result":[{"timestamp":[1756702800],
			"indicators":{"quote":[{"open":[1],"high":[1],"low":[1],"close":[null],"volume":[1]}]}}]}}`
		_, err := parseChart([]byte(payload), "X")
		assert.ErrorContains(t, err, "no usable bars")
	})

	t.Run("length mismatch", func(t *testing.T) {
		payload := `{"chart":{"result":[{"timestamp":[1,2,3],
			"indicators":{"quote":[{"open":[1],"high":[1],"low":[1],"close":[1],"volume":[1]}]}}]}}`
		_, err := parseChart([]byte(payload), "X")
		assert.ErrorContains(t, err, "malformed")
	})
}

func TestFetchHistory(t *testing.T) {
	var gotPath, gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.URL.Query().Get("range")
		w.Write([]byte(chartPayload))
	}))
	defer srv.Close()

	client := NewClient(httputil.New(logger.Nop()).DisableRetry(), logger.Nop()).
		WithBaseURL(srv.URL)

	series, err := client.FetchHistory(context.Background(),
		contracts.Symbol{Ticker: "NVDA", Market: contracts.MarketUS}, 400)
	require.NoError(t, err)
	assert.Len(t, series, 2)
	assert.Equal(t, "/v8/finance/chart/NVDA", gotPath)
	assert.Equal(t, "2y", gotRange)
}

func TestFetchIndexHistory(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(chartPayload))
	}))
	defer srv.Close()

	client := NewClient(httputil.New(logger.Nop()).DisableRetry(), logger.Nop()).
		WithBaseURL(srv.URL)

	t.Run("US maps to the S&P 500", func(t *testing.T) {
		_, err := client.FetchIndexHistory(context.Background(), contracts.MarketUS, 400)
		require.NoError(t, err)
		assert.Equal(t, "/v8/finance/chart/^GSPC", gotPath)
	})

	t.Run("HK maps to the Hang Seng", func(t *testing.T) {
		_, err := client.FetchIndexHistory(context.Background(), contracts.MarketHK, 400)
		require.NoError(t, err)
		assert.Equal(t, "/v8/finance/chart/^HSI", gotPath)
	})

	t.Run("unknown market", func(t *testing.T) {
		_, err := client.FetchIndexHistory(context.Background(), contracts.MarketTag("JP"), 400)
		assert.Error(t, err)
	})
}

func TestRangeParam(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{10, "1mo"},
		{60, "3mo"},
		{120, "6mo"},
		{300, "1y"},
		{460, "2y"},
		{900, "5y"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rangeParam(tt.days), "days=%d", tt.days)
	}
}
