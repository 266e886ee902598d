package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// All environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Logging
	LogLevel  string
	LogFormat string

	// Notification (CallMeBot WhatsApp)
	WhatsApp WhatsAppConfig

	// Portfolio / risk base
	Portfolio PortfolioConfig

	// Scan run parameters
	Scan ScanConfig

	// Screen thresholds (filter chain + sizing)
	Screen ScreenConfig
}

// WhatsAppConfig holds CallMeBot credentials. Both fields empty means
// notifications are disabled (the scan still runs and logs its report).
type WhatsAppConfig struct {
	APIKey string
	Phone  string
}

// PortfolioConfig defines the account the sizer works against.
// The portfolio is normalized to USD once at load time; per-symbol code
// never converts currencies.
type PortfolioConfig struct {
	Value      float64 // in Currency
	Currency   string  // HKD or USD
	HKDUSDRate float64 // HKD per USD
}

// ValueUSD returns the portfolio value in USD.
func (p PortfolioConfig) ValueUSD() float64 {
	if strings.EqualFold(p.Currency, "HKD") && p.HKDUSDRate > 0 {
		return p.Value / p.HKDUSDRate
	}
	return p.Value
}

// ScanConfig controls scheduling and run mechanics.
type ScanConfig struct {
	Markets     []string // e.g. ["US"], ["US","HK"]
	Schedule    string   // cron expression with seconds, e.g. "0 25 0 * * *"
	Timezone    string   // IANA name, e.g. "UTC", "Asia/Hong_Kong"
	OnStart     bool     // run one scan immediately after startup
	MaxSymbols  int      // universe cap, 0 = unlimited
	Concurrency int      // bounded fetch workers
	FetchRate   float64  // aggregate requests per second to the data provider
}

// ScreenConfig holds every threshold of the filter chain and sizer.
// Different scan styles are just different instances of this struct.
type ScreenConfig struct {
	MinPrice     float64
	MinAvgVolume int64

	SMAFast int
	SMASlow int

	RSWindow         int
	RSFallbackWindow int     // retried when RSWindow exceeds available history, 0 disables
	RSMultiple       float64 // stock return must beat index return times this

	VolumeBiasEnabled  bool
	VolumeBiasWindow   int
	VolumeBiasMultiple float64
	ContractionStep    float64 // each higher pivot low must sit this fraction above the prior

	BaseWindow    int     // sessions scanned for the base high
	PivotExclude  int     // most recent sessions excluded from the base high
	PivotBuffer   float64 // buy point = base high * (1 + buffer)
	PivotPolicy   string  // "proximity" or "breakout"
	ProximityBand float64

	AvgVolumeWindow int
	VolumeMultiple  float64 // breakout-day volume vs average, breakout policy only

	SwingLowWindow int
	SMASlack       float64 // stop floor = SMAFast * slack

	MaxRiskPct   float64 // percent, e.g. 12.0
	RiskFraction float64 // of portfolio value per trade, e.g. 0.005
	MinShares    int
	ResultLimit  int // 0 keeps every qualifying setup
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		WhatsApp: WhatsAppConfig{
			APIKey: getEnv("WHATSAPP_API_KEY", ""),
			Phone:  getEnv("WHATSAPP_PHONE", ""),
		},

		Portfolio: PortfolioConfig{
			Value:      getEnvAsFloat("PORTFOLIO_VALUE", 3_300_000),
			Currency:   getEnv("PORTFOLIO_CURRENCY", "HKD"),
			HKDUSDRate: getEnvAsFloat("HKD_USD_RATE", 7.8),
		},

		Scan: ScanConfig{
			Markets:     getEnvAsList("MARKETS", []string{"US"}),
			Schedule:    getEnv("SCAN_SCHEDULE", "0 25 0 * * *"), // 00:25 daily, with seconds
			Timezone:    getEnv("SCAN_TIMEZONE", "UTC"),
			OnStart:     getEnvAsBool("SCAN_ON_START", false),
			MaxSymbols:  getEnvAsInt("MAX_SYMBOLS", 1000),
			Concurrency: getEnvAsInt("CONCURRENCY", 10),
			FetchRate:   getEnvAsFloat("FETCH_RATE", 4),
		},

		Screen: ScreenConfig{
			MinPrice:     getEnvAsFloat("MIN_PRICE", 10),
			MinAvgVolume: int64(getEnvAsInt("MIN_AVG_VOLUME", 300_000)),

			SMAFast: getEnvAsInt("SMA_FAST", 50),
			SMASlow: getEnvAsInt("SMA_SLOW", 200),

			RSWindow:         getEnvAsInt("RS_WINDOW", 252),
			RSFallbackWindow: getEnvAsInt("RS_FALLBACK_WINDOW", 126),
			RSMultiple:       getEnvAsFloat("RS_MULTIPLE", 1.3),

			VolumeBiasEnabled:  getEnvAsBool("VOLUME_BIAS_ENABLED", false),
			VolumeBiasWindow:   getEnvAsInt("VOLUME_BIAS_WINDOW", 50),
			VolumeBiasMultiple: getEnvAsFloat("VOLUME_BIAS_MULTIPLE", 1.4),
			ContractionStep:    getEnvAsFloat("CONTRACTION_STEP", 0.02),

			BaseWindow:    getEnvAsInt("BASE_WINDOW", 30),
			PivotExclude:  getEnvAsInt("PIVOT_EXCLUDE", 3),
			PivotBuffer:   getEnvAsFloat("PIVOT_BUFFER", 0.005),
			PivotPolicy:   getEnv("PIVOT_POLICY", "proximity"),
			ProximityBand: getEnvAsFloat("PROXIMITY_BAND", 0.05),

			AvgVolumeWindow: getEnvAsInt("AVG_VOLUME_WINDOW", 50),
			VolumeMultiple:  getEnvAsFloat("VOLUME_MULTIPLE", 1.2),

			SwingLowWindow: getEnvAsInt("SWING_LOW_WINDOW", 20),
			SMASlack:       getEnvAsFloat("SMA_SLACK", 0.98),

			MaxRiskPct:   getEnvAsFloat("MAX_RISK_PCT", 12),
			RiskFraction: getEnvAsFloat("RISK_FRACTION", 0.005),
			MinShares:    getEnvAsInt("MIN_SHARES", 20),
			ResultLimit:  getEnvAsInt("RESULT_LIMIT", 10),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch strings.ToUpper(c.Portfolio.Currency) {
	case "HKD", "USD":
	default:
		return fmt.Errorf("PORTFOLIO_CURRENCY must be HKD or USD")
	}

	if c.Portfolio.Value <= 0 {
		return fmt.Errorf("PORTFOLIO_VALUE must be positive")
	}
	if c.Portfolio.HKDUSDRate <= 0 {
		return fmt.Errorf("HKD_USD_RATE must be positive")
	}

	if _, err := time.LoadLocation(c.Scan.Timezone); err != nil {
		return fmt.Errorf("SCAN_TIMEZONE is not a valid location: %w", err)
	}

	switch c.Screen.PivotPolicy {
	case "proximity", "breakout":
	default:
		return fmt.Errorf("PIVOT_POLICY must be proximity or breakout")
	}

	if c.Screen.RiskFraction <= 0 || c.Screen.RiskFraction >= 1 {
		return fmt.Errorf("RISK_FRACTION must be in (0, 1)")
	}

	if c.Scan.Concurrency <= 0 {
		return fmt.Errorf("CONCURRENCY must be positive")
	}

	return nil
}

// Location resolves the configured scan timezone. validate() guarantees it parses.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scan.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
