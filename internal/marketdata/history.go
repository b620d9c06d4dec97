// Package marketdata provides historical price series retrieval and the
// derived volatility columns the backtest engine prices against.
package marketdata

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/YoByron/optionslab/internal/pricing"
)

// ErrNoData is returned when no observation exists for a requested symbol/date.
var ErrNoData = errors.New("no market data for requested date")

const tradingDaysPerYear = 252

// Rolling windows for the derived historical volatility columns.
const (
	HVWindowShort  = 20
	HVWindowMedium = 30
	HVWindowLong   = 60
)

// PriceBar is a single daily OHLCV observation.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceHistory is a date-ascending daily series for one symbol, with rolling
// annualized historical volatility and a derived implied-volatility estimate
// aligned index-for-index with Bars. Entries before a window fills carry the
// first computable value.
type PriceHistory struct {
	Symbol     string     `json:"symbol"`
	Bars       []PriceBar `json:"bars"`
	HV20       []float64  `json:"hv20"`
	HV30       []float64  `json:"hv30"`
	HV60       []float64  `json:"hv60"`
	IVEstimate []float64  `json:"iv_estimate"` // HV30 x IV premium multiplier
}

// NewPriceHistory derives the volatility columns from raw bars. Bars must be
// date-ascending.
func NewPriceHistory(symbol string, bars []PriceBar) *PriceHistory {
	h := &PriceHistory{Symbol: symbol, Bars: bars}
	h.HV20 = rollingVolatility(bars, HVWindowShort)
	h.HV30 = rollingVolatility(bars, HVWindowMedium)
	h.HV60 = rollingVolatility(bars, HVWindowLong)

	h.IVEstimate = make([]float64, len(bars))
	for i := range bars {
		h.IVEstimate[i] = pricing.ImpliedVolFromHistorical(h.HV30[i], pricing.DefaultIVMultiplier)
	}
	return h
}

// Len returns the number of bars.
func (h *PriceHistory) Len() int { return len(h.Bars) }

// indexAt returns the index of the bar on the given calendar day, or -1.
func (h *PriceHistory) indexAt(date time.Time) int {
	day := date.Truncate(24 * time.Hour)
	for i, bar := range h.Bars {
		if bar.Date.Truncate(24 * time.Hour).Equal(day) {
			return i
		}
	}
	return -1
}

// PriceAt returns the closing price on the given date.
func (h *PriceHistory) PriceAt(date time.Time) (float64, error) {
	i := h.indexAt(date)
	if i < 0 {
		return 0, fmt.Errorf("%s at %s: %w", h.Symbol, date.Format("2006-01-02"), ErrNoData)
	}
	return h.Bars[i].Close, nil
}

// IVAt returns the implied-volatility estimate on the given date.
func (h *PriceHistory) IVAt(date time.Time) (float64, error) {
	i := h.indexAt(date)
	if i < 0 {
		return 0, fmt.Errorf("%s at %s: %w", h.Symbol, date.Format("2006-01-02"), ErrNoData)
	}
	return h.IVEstimate[i], nil
}

// UpTo returns a view of the history truncated to bars at or before date, so
// strategy callbacks never see future data.
func (h *PriceHistory) UpTo(date time.Time) *PriceHistory {
	day := date.Truncate(24 * time.Hour)
	n := 0
	for _, bar := range h.Bars {
		if bar.Date.Truncate(24 * time.Hour).After(day) {
			break
		}
		n++
	}
	return &PriceHistory{
		Symbol:     h.Symbol,
		Bars:       h.Bars[:n],
		HV20:       h.HV20[:n],
		HV30:       h.HV30[:n],
		HV60:       h.HV60[:n],
		IVEstimate: h.IVEstimate[:n],
	}
}

// LastBar returns the most recent bar, or false when the history is empty.
func (h *PriceHistory) LastBar() (PriceBar, bool) {
	if len(h.Bars) == 0 {
		return PriceBar{}, false
	}
	return h.Bars[len(h.Bars)-1], true
}

// DailyReturns converts the close series to simple daily returns.
func (h *PriceHistory) DailyReturns() []float64 {
	if len(h.Bars) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(h.Bars)-1)
	for i := 1; i < len(h.Bars); i++ {
		prev := h.Bars[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, (h.Bars[i].Close-prev)/prev)
	}
	return returns
}

// rollingVolatility computes annualized close-to-close log-return volatility
// over the trailing window, aligned with bars. Indices before the window
// fills are backfilled with the first computed value.
func rollingVolatility(bars []PriceBar, window int) []float64 {
	out := make([]float64, len(bars))
	if len(bars) < 2 {
		return out
	}

	logReturns := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		logReturns[i-1] = math.Log(bars[i].Close / bars[i-1].Close)
	}

	firstComputed := -1
	for i := window; i < len(bars); i++ {
		out[i] = annualizedStd(logReturns[i-window : i])
		if firstComputed < 0 {
			firstComputed = i
		}
	}
	if firstComputed < 0 {
		// series shorter than the window, use everything available
		v := annualizedStd(logReturns)
		for i := range out {
			out[i] = v
		}
		return out
	}
	for i := 0; i < firstComputed; i++ {
		out[i] = out[firstComputed]
	}
	return out
}

func annualizedStd(returns []float64) float64 {
	n := float64(len(returns))
	if n < 2 {
		return 0
	}
	var sum, sumSq float64
	for _, r := range returns {
		sum += r
		sumSq += r * r
	}
	mean := sum / n
	variance := (sumSq/n - mean*mean) * (n / (n - 1))
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * tradingDaysPerYear)
}
