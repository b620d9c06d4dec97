package strategy

import (
	"fmt"
	"time"

	"github.com/YoByron/optionslab/internal/backtest"
	"github.com/YoByron/optionslab/internal/marketdata"
	"github.com/YoByron/optionslab/internal/models"
	"github.com/YoByron/optionslab/internal/pricing"
	"github.com/YoByron/optionslab/internal/util"
)

// SpreadConfig controls the put credit spread.
type SpreadConfig struct {
	DTETarget    int
	DeltaTarget  float64 // absolute delta of the short put
	Width        float64 // dollars between short and long strikes
	MinIV        float64
	MinCredit    float64 // per-share net credit floor
	RiskFreeRate float64
	StrikeTick   float64
	Quantity     int
}

// DefaultSpreadConfig is a 30-DTE 30-delta spread, 5 points wide.
func DefaultSpreadConfig() SpreadConfig {
	return SpreadConfig{
		DTETarget:    30,
		DeltaTarget:  0.30,
		Width:        5.0,
		MinIV:        0.10,
		MinCredit:    0.20,
		RiskFreeRate: 0.04,
		StrikeTick:   1.0,
		Quantity:     1,
	}
}

// PutCreditSpread sells a put at the target delta and buys one Width dollars
// below it, capping the downside.
type PutCreditSpread struct {
	cfg SpreadConfig
}

// NewPutCreditSpread validates the config and constructs the strategy.
func NewPutCreditSpread(cfg SpreadConfig) (*PutCreditSpread, error) {
	if cfg.DTETarget <= 0 {
		return nil, fmt.Errorf("dte target must be positive, got %d", cfg.DTETarget)
	}
	if cfg.DeltaTarget <= 0 || cfg.DeltaTarget >= 0.5 {
		return nil, fmt.Errorf("delta target must be in (0, 0.5), got %.2f", cfg.DeltaTarget)
	}
	if cfg.Width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %.2f", cfg.Width)
	}
	if cfg.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", cfg.Quantity)
	}
	if cfg.StrikeTick <= 0 {
		cfg.StrikeTick = 1.0
	}
	return &PutCreditSpread{cfg: cfg}, nil
}

// Func adapts the strategy to the backtest callback contract.
func (s *PutCreditSpread) Func() backtest.StrategyFunc {
	return func(symbol string, date time.Time, history *marketdata.PriceHistory) (*models.OptionsPosition, error) {
		return s.Evaluate(symbol, date, history)
	}
}

// Evaluate decides whether to open a spread on the given date. A nil position
// with nil error means no trade today.
func (s *PutCreditSpread) Evaluate(symbol string, date time.Time, history *marketdata.PriceHistory) (*models.OptionsPosition, error) {
	spot, err := history.PriceAt(date)
	if err != nil {
		return nil, nil
	}
	iv, err := history.IVAt(date)
	if err != nil || iv < s.cfg.MinIV {
		return nil, nil
	}

	expiration := nextFriday(date.AddDate(0, 0, s.cfg.DTETarget))
	tte := expiration.Sub(date).Hours() / 24 / 365

	shortStrike := strikeForDelta(spot, tte, iv, s.cfg.RiskFreeRate, -s.cfg.DeltaTarget, pricing.Put, s.cfg.StrikeTick)
	longStrike := util.FloorToTick(shortStrike-s.cfg.Width, s.cfg.StrikeTick)
	if longStrike <= 0 {
		return nil, nil
	}

	shortPut := pricing.Price(pricing.Input{
		Spot: spot, Strike: shortStrike, TimeToExpiry: tte,
		RiskFreeRate: s.cfg.RiskFreeRate, Volatility: iv, Kind: pricing.Put,
	})
	longPut := pricing.Price(pricing.Input{
		Spot: spot, Strike: longStrike, TimeToExpiry: tte,
		RiskFreeRate: s.cfg.RiskFreeRate, Volatility: iv, Kind: pricing.Put,
	})
	if shortPut.Price-longPut.Price < s.cfg.MinCredit {
		return nil, nil
	}

	shortLeg, err := models.NewOptionLeg(pricing.Put, shortStrike, expiration,
		-s.cfg.Quantity, shortPut.Price, toGreeks(shortPut))
	if err != nil {
		return nil, fmt.Errorf("build short leg: %w", err)
	}
	longLeg, err := models.NewOptionLeg(pricing.Put, longStrike, expiration,
		s.cfg.Quantity, longPut.Price, toGreeks(longPut))
	if err != nil {
		return nil, fmt.Errorf("build long leg: %w", err)
	}

	return models.NewPosition(symbol, models.StrategyCreditSpread,
		[]models.OptionLeg{shortLeg, longLeg}, date, spot)
}
