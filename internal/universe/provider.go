// Package universe acquires the list of symbols to screen. Sources are
// best-effort: any market whose feeds fail falls back to a small built-in
// list so the daily run never aborts for lack of a universe.
package universe

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/sepa/internal/contracts"
	"github.com/wonny/sepa/pkg/httputil"
	"github.com/wonny/sepa/pkg/logger"
)

// US ticker lists, one CSV per exchange.
const (
	nasdaqTickersURL = "https://raw.githubusercontent.com/rreichel3/US-Stock-Symbols/main/nasdaq/nasdaq_full_tickers.csv"
	nyseTickersURL   = "https://raw.githubusercontent.com/rreichel3/US-Stock-Symbols/main/nyse/nyse_full_tickers.csv"
)

// HK constituents are scraped from the Hang Seng Index article table.
const hangSengURL = "https://en.wikipedia.org/wiki/Hang_Seng_Index"

// fallbackSymbols keeps a scan alive when every source is down.
var fallbackSymbols = map[contracts.MarketTag][]string{
	contracts.MarketUS: {"AAPL", "MSFT", "GOOGL", "NVDA", "APGE", "ZYME", "INDV", "ARQT"},
	contracts.MarketHK: {"0700.HK", "9988.HK", "1299.HK", "0388.HK", "3690.HK"},
}

var hkCodeRe = regexp.MustCompile(`^\d{1,5}$`)

// Provider implements contracts.UniverseProvider over public ticker lists.
type Provider struct {
	http   *httputil.Client
	logger *logger.Logger

	nasdaqURL   string
	nyseURL     string
	hangSengURL string
}

// NewProvider creates a universe provider using the shared HTTP client.
func NewProvider(httpClient *httputil.Client, log *logger.Logger) *Provider {
	return &Provider{
		http:        httpClient,
		logger:      log,
		nasdaqURL:   nasdaqTickersURL,
		nyseURL:     nyseTickersURL,
		hangSengURL: hangSengURL,
	}
}

// WithSources overrides the feed URLs. Used by tests.
func (p *Provider) WithSources(nasdaq, nyse, hangSeng string) *Provider {
	p.nasdaqURL = nasdaq
	p.nyseURL = nyse
	p.hangSengURL = hangSeng
	return p
}

// FetchUniverse returns the deduplicated symbol list for the requested
// markets. Markets whose sources all fail contribute their fallback list.
func (p *Provider) FetchUniverse(ctx context.Context, markets []contracts.MarketTag) ([]contracts.Symbol, error) {
	seen := make(map[contracts.Symbol]struct{})
	var out []contracts.Symbol

	add := func(market contracts.MarketTag, tickers []string) {
		for _, t := range tickers {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			sym := contracts.Symbol{Ticker: t, Market: market}
			if _, dup := seen[sym]; dup {
				continue
			}
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}

	for _, market := range markets {
		var tickers []string
		var err error

		switch market {
		case contracts.MarketUS:
			tickers, err = p.fetchUS(ctx)
		case contracts.MarketHK:
			tickers, err = p.fetchHK(ctx)
		default:
			p.logger.WithField("market", market).Warn("Unknown market requested, skipping")
			continue
		}

		if err != nil || len(tickers) == 0 {
			p.logger.WithFields(map[string]interface{}{
				"market": market,
				"error":  fmt.Sprint(err),
			}).Warn("Universe source failed, using built-in fallback list")
			tickers = fallbackSymbols[market]
		}
		add(market, tickers)
	}

	p.logger.WithField("symbols", len(out)).Info("Universe fetched")
	return out, nil
}

// fetchUS merges the NASDAQ and NYSE full-ticker CSVs. One list failing is
// tolerated as long as the other delivers.
func (p *Provider) fetchUS(ctx context.Context) ([]string, error) {
	var tickers []string
	var lastErr error

	for _, url := range []string{p.nasdaqURL, p.nyseURL} {
		list, err := p.fetchTickerCSV(ctx, url)
		if err != nil {
			lastErr = err
			p.logger.WithFields(map[string]interface{}{
				"url":   url,
				"error": err.Error(),
			}).Warn("Ticker CSV fetch failed")
			continue
		}
		tickers = append(tickers, list...)
	}

	if len(tickers) == 0 {
		return nil, lastErr
	}
	return tickers, nil
}

// fetchTickerCSV reads one exchange CSV and extracts the symbol column.
func (p *Provider) fetchTickerCSV(ctx context.Context, url string) ([]string, error) {
	resp, err := p.http.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch ticker csv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	symCol := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "symbol") {
			symCol = i
			break
		}
	}
	if symCol < 0 {
		return nil, fmt.Errorf("no symbol column in %s", url)
	}

	var tickers []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Tolerate ragged rows, keep what parsed so far.
			continue
		}
		if symCol >= len(record) {
			continue
		}
		t := strings.TrimSpace(record[symCol])
		// Drop units, warrants and anything Yahoo will not chart anyway.
		if t == "" || strings.ContainsAny(t, "^/ ") {
			continue
		}
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// fetchHK scrapes Hang Seng constituent stock codes and renders them as
// Yahoo-style tickers (0700.HK).
func (p *Provider) fetchHK(ctx context.Context) ([]string, error) {
	resp, err := p.http.Get(ctx, p.hangSengURL)
	if err != nil {
		return nil, fmt.Errorf("fetch hang seng page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse hang seng page: %w", err)
	}

	var tickers []string
	doc.Find("table.wikitable tr").Each(func(_ int, row *goquery.Selection) {
		cell := strings.TrimSpace(row.Find("td").First().Text())
		cell = strings.TrimPrefix(cell, "SEHK:")
		cell = strings.TrimSpace(cell)
		if !hkCodeRe.MatchString(cell) {
			return
		}
		code, err := strconv.Atoi(cell)
		if err != nil {
			return
		}
		tickers = append(tickers, fmt.Sprintf("%04d.HK", code))
	})

	if len(tickers) == 0 {
		return nil, fmt.Errorf("no constituent codes found")
	}
	return tickers, nil
}
