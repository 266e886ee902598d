package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8089", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)

	assert.Equal(t, []string{"US"}, cfg.Scan.Markets)
	assert.Equal(t, "0 25 0 * * *", cfg.Scan.Schedule)
	assert.Equal(t, "UTC", cfg.Scan.Timezone)
	assert.False(t, cfg.Scan.OnStart)
	assert.Equal(t, 1000, cfg.Scan.MaxSymbols)
	assert.Equal(t, 10, cfg.Scan.Concurrency)

	assert.InDelta(t, 3_300_000, cfg.Portfolio.Value, 1e-9)
	assert.Equal(t, "HKD", cfg.Portfolio.Currency)
	assert.InDelta(t, 7.8, cfg.Portfolio.HKDUSDRate, 1e-9)

	assert.InDelta(t, 10, cfg.Screen.MinPrice, 1e-9)
	assert.Equal(t, int64(300_000), cfg.Screen.MinAvgVolume)
	assert.Equal(t, 50, cfg.Screen.SMAFast)
	assert.Equal(t, 200, cfg.Screen.SMASlow)
	assert.Equal(t, 252, cfg.Screen.RSWindow)
	assert.Equal(t, 126, cfg.Screen.RSFallbackWindow)
	assert.InDelta(t, 1.3, cfg.Screen.RSMultiple, 1e-9)
	assert.False(t, cfg.Screen.VolumeBiasEnabled)
	assert.Equal(t, "proximity", cfg.Screen.PivotPolicy)
	assert.InDelta(t, 0.005, cfg.Screen.PivotBuffer, 1e-9)
	assert.InDelta(t, 0.98, cfg.Screen.SMASlack, 1e-9)
	assert.InDelta(t, 12, cfg.Screen.MaxRiskPct, 1e-9)
	assert.InDelta(t, 0.005, cfg.Screen.RiskFraction, 1e-9)
	assert.Equal(t, 20, cfg.Screen.MinShares)
	assert.Equal(t, 10, cfg.Screen.ResultLimit)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MARKETS", "US, HK")
	t.Setenv("SCAN_TIMEZONE", "Asia/Hong_Kong")
	t.Setenv("SCAN_ON_START", "true")
	t.Setenv("PORTFOLIO_VALUE", "200000")
	t.Setenv("PORTFOLIO_CURRENCY", "USD")
	t.Setenv("PIVOT_POLICY", "breakout")
	t.Setenv("MAX_RISK_PCT", "8.5")
	t.Setenv("CONCURRENCY", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"US", "HK"}, cfg.Scan.Markets)
	assert.Equal(t, "Asia/Hong_Kong", cfg.Scan.Timezone)
	assert.True(t, cfg.Scan.OnStart)
	assert.Equal(t, "USD", cfg.Portfolio.Currency)
	assert.Equal(t, "breakout", cfg.Screen.PivotPolicy)
	assert.InDelta(t, 8.5, cfg.Screen.MaxRiskPct, 1e-9)
	assert.Equal(t, 4, cfg.Scan.Concurrency)

	// Currency set to USD, value no longer divided by the HKD rate.
	assert.InDelta(t, 200_000, cfg.Portfolio.ValueUSD(), 1e-9)
}

func TestLoad_MalformedNumbersFallBack(t *testing.T) {
	t.Setenv("MAX_SYMBOLS", "plenty")
	t.Setenv("MIN_PRICE", "cheap")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Scan.MaxSymbols)
	assert.InDelta(t, 10, cfg.Screen.MinPrice, 1e-9)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unknown env", key: "ENV", value: "qa"},
		{name: "unknown currency", key: "PORTFOLIO_CURRENCY", value: "EUR"},
		{name: "non-positive portfolio", key: "PORTFOLIO_VALUE", value: "-5"},
		{name: "bad timezone", key: "SCAN_TIMEZONE", value: "Mars/Olympus"},
		{name: "unknown pivot policy", key: "PIVOT_POLICY", value: "hope"},
		{name: "risk fraction out of range", key: "RISK_FRACTION", value: "1.5"},
		{name: "non-positive concurrency", key: "CONCURRENCY", value: "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestPortfolioConfig_ValueUSD(t *testing.T) {
	t.Run("HKD divides by the rate", func(t *testing.T) {
		p := PortfolioConfig{Value: 3_300_000, Currency: "HKD", HKDUSDRate: 7.8}
		assert.InDelta(t, 423_076.92, p.ValueUSD(), 0.01)
	})

	t.Run("case-insensitive currency", func(t *testing.T) {
		p := PortfolioConfig{Value: 780, Currency: "hkd", HKDUSDRate: 7.8}
		assert.InDelta(t, 100, p.ValueUSD(), 1e-9)
	})

	t.Run("USD passes through", func(t *testing.T) {
		p := PortfolioConfig{Value: 100_000, Currency: "USD", HKDUSDRate: 7.8}
		assert.InDelta(t, 100_000, p.ValueUSD(), 1e-9)
	})
}

func TestConfig_Location(t *testing.T) {
	cfg := &Config{Scan: ScanConfig{Timezone: "Asia/Hong_Kong"}}
	loc := cfg.Location()
	require.NotNil(t, loc)
	assert.Equal(t, "Asia/Hong_Kong", loc.String())
}
