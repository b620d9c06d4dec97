package marketdata

import (
	"context"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// SyntheticProvider generates seeded geometric-Brownian-motion daily bars,
// for tests and for running the pipeline without a data feed. The same seed
// always yields the same series for a symbol.
type SyntheticProvider struct {
	StartPrice float64 // first close, dollars
	Drift      float64 // annualized drift, decimal
	Volatility float64 // annualized volatility, decimal
	Seed       uint64
}

// NewSyntheticProvider returns a provider with SPY-like defaults.
func NewSyntheticProvider(seed uint64) *SyntheticProvider {
	return &SyntheticProvider{
		StartPrice: 450.0,
		Drift:      0.08,
		Volatility: 0.15,
		Seed:       seed,
	}
}

// GetPriceHistory generates weekday bars from start to end inclusive.
func (p *SyntheticProvider) GetPriceHistory(_ context.Context, symbol string, start, end time.Time) (*PriceHistory, error) {
	// per-symbol seed so multi-symbol runs do not share one path
	seed := p.Seed
	for _, c := range symbol {
		seed = seed*31 + uint64(c)
	}
	src := rand.NewSource(seed)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.New(src)}

	dt := 1.0 / tradingDaysPerYear
	muTerm := (p.Drift - 0.5*p.Volatility*p.Volatility) * dt
	sigTerm := p.Volatility * math.Sqrt(dt)

	price := p.StartPrice
	var bars []PriceBar
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		open := price
		price = price * math.Exp(muTerm+sigTerm*normal.Rand())
		high := math.Max(open, price) * (1 + 0.003*math.Abs(normal.Rand()))
		low := math.Min(open, price) * (1 - 0.003*math.Abs(normal.Rand()))
		bars = append(bars, PriceBar{
			Date:   d.UTC().Truncate(24 * time.Hour),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: 50_000_000 + int64(math.Abs(normal.Rand())*10_000_000),
		})
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return NewPriceHistory(symbol, bars), nil
}
