package screen

import (
	"github.com/wonny/sepa/internal/contracts"
)

// Indicator helpers over a PriceSeries. All of them treat insufficient data as
// a zero result; callers gate on series length before trusting the numbers.

// sma returns the simple moving average of the last n closes.
func sma(series contracts.PriceSeries, n int) float64 {
	if n <= 0 || len(series) < n {
		return 0
	}
	last := series[len(series)-n:]
	var sum float64
	for i := range last {
		sum += last[i].Close
	}
	return sum / float64(n)
}

// avgVolume returns the mean volume over the last n sessions.
func avgVolume(series contracts.PriceSeries, n int) float64 {
	if n <= 0 {
		return 0
	}
	if len(series) < n {
		n = len(series)
	}
	if n == 0 {
		return 0
	}
	last := series[len(series)-n:]
	var sum float64
	for i := range last {
		sum += float64(last[i].Volume)
	}
	return sum / float64(n)
}

// returnOver computes close[-1]/close[-1-window] - 1. ok is false when the
// series is too short for the window.
func returnOver(series contracts.PriceSeries, window int) (ret float64, ok bool) {
	if window <= 0 || len(series) < window+1 {
		return 0, false
	}
	base := series[len(series)-1-window].Close
	if base <= 0 {
		return 0, false
	}
	return series[len(series)-1].Close/base - 1, true
}

// maxHigh returns the highest high over the last n sessions, excluding the
// final skipLast sessions so a forming pivot does not include itself.
func maxHigh(series contracts.PriceSeries, n, skipLast int) float64 {
	if skipLast < 0 {
		skipLast = 0
	}
	end := len(series) - skipLast
	if end <= 0 {
		return 0
	}
	start := end - n
	if start < 0 {
		start = 0
	}
	var max float64
	for i := start; i < end; i++ {
		if series[i].High > max {
			max = series[i].High
		}
	}
	return max
}

// minLow returns the lowest low over the last n sessions.
func minLow(series contracts.PriceSeries, n int) float64 {
	if len(series) == 0 || n <= 0 {
		return 0
	}
	start := len(series) - n
	if start < 0 {
		start = 0
	}
	min := series[start].Low
	for i := start + 1; i < len(series); i++ {
		if series[i].Low < min {
			min = series[i].Low
		}
	}
	return min
}

// pivotLows collects swing lows inside the trailing window: bars whose low is
// below both neighbours, oldest first.
func pivotLows(series contracts.PriceSeries, window int) []float64 {
	if len(series) < 3 {
		return nil
	}
	start := len(series) - window
	if start < 1 {
		start = 1
	}
	var lows []float64
	for i := start; i < len(series)-1; i++ {
		if series[i].Low < series[i-1].Low && series[i].Low < series[i+1].Low {
			lows = append(lows, series[i].Low)
		}
	}
	return lows
}

// risingPivotLows reports whether the window ends with at least two successive
// higher swing lows, each at least step above the prior one. A lower low in
// between resets the count.
func risingPivotLows(series contracts.PriceSeries, window int, step float64) bool {
	lows := pivotLows(series, window)
	if len(lows) < 3 {
		return false
	}
	rises := 0
	for i := 1; i < len(lows); i++ {
		if lows[i-1] > 0 && lows[i] >= lows[i-1]*(1+step) {
			rises++
		} else {
			rises = 0
		}
	}
	return rises >= 2
}

// upDownVolume splits the trailing window into up sessions (close > open) and
// down sessions (close < open) and returns the mean volume of each.
func upDownVolume(series contracts.PriceSeries, window int) (upMean, downMean float64) {
	start := len(series) - window
	if start < 0 {
		start = 0
	}
	var upSum, downSum float64
	var upN, downN int
	for i := start; i < len(series); i++ {
		switch {
		case series[i].Close > series[i].Open:
			upSum += float64(series[i].Volume)
			upN++
		case series[i].Close < series[i].Open:
			downSum += float64(series[i].Volume)
			downN++
		}
	}
	if upN > 0 {
		upMean = upSum / float64(upN)
	}
	if downN > 0 {
		downMean = downSum / float64(downN)
	}
	return upMean, downMean
}
