// Package report renders a scan result into the plain-text message that goes
// out over the notifier. Pure formatting: no network, no state.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/sepa/internal/contracts"
)

// EmptyMessage is the body line used when a scan found nothing.
const EmptyMessage = "No qualifying setups today."

// Meta carries the account context printed in the header and trailer.
type Meta struct {
	PortfolioValue float64 // USD
	RiskPerTrade   float64 // USD
	RiskFraction   float64 // e.g. 0.005
	Location       *time.Location
}

// Render produces the full report: title, summary, fixed-width table, trailer.
// An empty result renders the defined empty message instead of a bare table.
func Render(result *contracts.ScanResult, meta Meta) string {
	loc := meta.Location
	if loc == nil {
		loc = time.UTC
	}
	date := result.Date.In(loc)

	var b strings.Builder

	fmt.Fprintf(&b, "SEPA BREAKOUT SCAN – %s\n", date.Format("02 Jan 2006"))

	if len(result.Candidates) == 0 {
		b.WriteString(EmptyMessage)
		b.WriteString("\n")
	} else {
		fmt.Fprintf(&b, "%d setups | total exposure %.1f%% of portfolio\n\n",
			len(result.Candidates), result.TotalWeightPct())

		fmt.Fprintf(&b, "%-8s %-4s %8s %8s %8s %6s %7s %11s %6s\n",
			"Tick", "Mkt", "Price", "Buy", "Stop", "Risk%", "Shares", "Capital", "Wt%")
		for _, c := range result.Candidates {
			fmt.Fprintf(&b, "%-8s %-4s %8.2f %8.2f %8.2f %5.1f%% %7d %11s %5.1f%%\n",
				c.Ticker, c.Market, c.Price, c.BuyPoint, c.StopPrice, c.RiskPct,
				c.Shares, "$"+comma(int64(c.Capital)), c.WeightPct)
		}
	}

	fmt.Fprintf(&b, "\nAccount: USD %s | risk/trade USD %s (%.2f%%)\n",
		comma(int64(meta.PortfolioValue)), comma(int64(meta.RiskPerTrade)), meta.RiskFraction*100)
	fmt.Fprintf(&b, "Scanned %d symbols in %s | run at %s",
		result.Scanned, result.Duration.Round(time.Second), date.Format("15:04 MST"))

	return b.String()
}

// comma inserts thousands separators into an integer.
func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}
