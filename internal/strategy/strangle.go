// Package strategy provides sample entry strategies for the backtest engine.
//
// Each strategy builds positions from historical prices and the
// Black-Scholes pricer only, so backtests stay deterministic and need no
// option-chain data.
package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/YoByron/optionslab/internal/backtest"
	"github.com/YoByron/optionslab/internal/marketdata"
	"github.com/YoByron/optionslab/internal/models"
	"github.com/YoByron/optionslab/internal/pricing"
	"github.com/YoByron/optionslab/internal/util"
)

// StrangleConfig controls the delta-targeted short strangle.
type StrangleConfig struct {
	DTETarget    int     // calendar days to expiration at entry
	DeltaTarget  float64 // absolute delta per leg, e.g. 0.16
	MinIV        float64 // skip entry below this annualized IV
	MinCredit    float64 // skip entry below this per-share credit
	RiskFreeRate float64 // annualized, decimal
	StrikeTick   float64 // strike grid increment, e.g. 1.0 for SPY
	Quantity     int     // contracts per leg
}

// DefaultStrangleConfig mirrors the classic 45-DTE 16-delta setup.
func DefaultStrangleConfig() StrangleConfig {
	return StrangleConfig{
		DTETarget:    45,
		DeltaTarget:  0.16,
		MinIV:        0.10,
		MinCredit:    0.50,
		RiskFreeRate: 0.04,
		StrikeTick:   1.0,
		Quantity:     1,
	}
}

// ShortStrangle sells an OTM put and an OTM call at the configured delta.
type ShortStrangle struct {
	cfg StrangleConfig
}

// NewShortStrangle validates the config and constructs the strategy.
func NewShortStrangle(cfg StrangleConfig) (*ShortStrangle, error) {
	if cfg.DTETarget <= 0 {
		return nil, fmt.Errorf("dte target must be positive, got %d", cfg.DTETarget)
	}
	if cfg.DeltaTarget <= 0 || cfg.DeltaTarget >= 0.5 {
		return nil, fmt.Errorf("delta target must be in (0, 0.5), got %.2f", cfg.DeltaTarget)
	}
	if cfg.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", cfg.Quantity)
	}
	if cfg.StrikeTick <= 0 {
		cfg.StrikeTick = 1.0
	}
	return &ShortStrangle{cfg: cfg}, nil
}

// Func adapts the strategy to the backtest callback contract.
func (s *ShortStrangle) Func() backtest.StrategyFunc {
	return func(symbol string, date time.Time, history *marketdata.PriceHistory) (*models.OptionsPosition, error) {
		return s.Evaluate(symbol, date, history)
	}
}

// Evaluate decides whether to open a strangle on the given date. A nil
// position with nil error means no trade today.
func (s *ShortStrangle) Evaluate(symbol string, date time.Time, history *marketdata.PriceHistory) (*models.OptionsPosition, error) {
	spot, err := history.PriceAt(date)
	if err != nil {
		return nil, nil // no bar today, sit out
	}
	iv, err := history.IVAt(date)
	if err != nil || iv < s.cfg.MinIV {
		return nil, nil
	}

	expiration := nextFriday(date.AddDate(0, 0, s.cfg.DTETarget))
	tte := expiration.Sub(date).Hours() / 24 / 365

	putStrike := strikeForDelta(spot, tte, iv, s.cfg.RiskFreeRate, -s.cfg.DeltaTarget, pricing.Put, s.cfg.StrikeTick)
	callStrike := strikeForDelta(spot, tte, iv, s.cfg.RiskFreeRate, s.cfg.DeltaTarget, pricing.Call, s.cfg.StrikeTick)
	if putStrike >= callStrike {
		return nil, nil // strikes crossed, vol regime too tight for a strangle
	}

	put := pricing.Price(pricing.Input{
		Spot: spot, Strike: putStrike, TimeToExpiry: tte,
		RiskFreeRate: s.cfg.RiskFreeRate, Volatility: iv, Kind: pricing.Put,
	})
	call := pricing.Price(pricing.Input{
		Spot: spot, Strike: callStrike, TimeToExpiry: tte,
		RiskFreeRate: s.cfg.RiskFreeRate, Volatility: iv, Kind: pricing.Call,
	})
	if put.Price+call.Price < s.cfg.MinCredit {
		return nil, nil
	}

	putLeg, err := models.NewOptionLeg(pricing.Put, putStrike, expiration,
		-s.cfg.Quantity, put.Price, toGreeks(put))
	if err != nil {
		return nil, fmt.Errorf("build put leg: %w", err)
	}
	callLeg, err := models.NewOptionLeg(pricing.Call, callStrike, expiration,
		-s.cfg.Quantity, call.Price, toGreeks(call))
	if err != nil {
		return nil, fmt.Errorf("build call leg: %w", err)
	}

	return models.NewPosition(symbol, models.StrategyStrangle,
		[]models.OptionLeg{putLeg, callLeg}, date, spot)
}

// strikeForDelta inverts the Black-Scholes delta for the strike hitting the
// target, then snaps to the strike grid. For a call with delta d,
// K = S * exp(-(z*sigma*sqrt(T) - (r + sigma^2/2)*T)) with z = N^-1(d); the
// put case uses N^-1(1+d) since put delta is negative.
func strikeForDelta(spot, tte, sigma, rate, targetDelta float64, kind pricing.OptionKind, tick float64) float64 {
	var z float64
	if kind == pricing.Call {
		z = normInv(targetDelta)
	} else {
		z = normInv(1 + targetDelta)
	}
	k := spot * math.Exp(-(z*sigma*math.Sqrt(tte) - (rate+sigma*sigma/2)*tte))
	return util.RoundToTick(k, tick)
}

// normInv approximates the standard normal quantile via bisection on the CDF.
// Accuracy is far beyond strike-grid resolution.
func normInv(p float64) float64 {
	lo, hi := -8.0, 8.0
	for i := 0; i < 80; i++ {
		mid := (lo + hi) / 2
		if 0.5*(1+math.Erf(mid/math.Sqrt2)) < p {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

func nextFriday(t time.Time) time.Time {
	for t.Weekday() != time.Friday {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func toGreeks(r pricing.Result) models.Greeks {
	return models.Greeks{Delta: r.Delta, Gamma: r.Gamma, Theta: r.Theta, Vega: r.Vega}
}
