// Package backtest simulates historical options trades against a pluggable
// strategy callback and reduces the results into performance metrics.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/YoByron/optionslab/internal/marketdata"
	"github.com/YoByron/optionslab/internal/models"
	"github.com/YoByron/optionslab/internal/pricing"
)

// State is the engine lifecycle state.
type State string

// Engine states, in order.
const (
	StateConfigured State = "configured"
	StateLoaded     State = "loaded"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
)

// Engine errors.
var (
	// ErrNotLoaded is returned when a run is requested before price data is loaded.
	ErrNotLoaded = errors.New("price history not loaded")
	// ErrAlreadyRan is returned when a completed engine is run again.
	ErrAlreadyRan = errors.New("backtest already completed")
)

// StrategyFunc decides whether to open a trade for a symbol on a date. It
// receives only history up to and including that date and returns nil when no
// trade should be opened. The engine treats it as an opaque decision function.
type StrategyFunc func(symbol string, date time.Time, history *marketdata.PriceHistory) (*models.OptionsPosition, error)

// Config holds the engine's run parameters.
type Config struct {
	Start                 time.Time
	End                   time.Time
	InitialCapital        float64 // dollars
	CommissionPerContract float64 // dollars per contract per side
	RiskFreeRate          float64 // annualized, decimal
}

// EquityPoint is one sample of the running equity curve.
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"` // dollars
}

// Engine owns a per-run price cache, the closed-position list, and the equity
// curve. Each instance is independent; concurrent backtests each get their own
// Engine. The day-by-day loop is sequential and must stay that way: each
// equity point depends on every previously recorded trade.
type Engine struct {
	cfg      Config
	provider marketdata.Provider
	logger   *logrus.Logger

	state     State
	histories map[string]*marketdata.PriceHistory
	positions []*models.OptionsPosition
	equity    []EquityPoint
}

// NewEngine creates an engine in the configured state.
func NewEngine(cfg Config, provider marketdata.Provider, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		cfg:       cfg,
		provider:  provider,
		logger:    logger,
		state:     StateConfigured,
		histories: make(map[string]*marketdata.PriceHistory),
	}
}

// State returns the engine lifecycle state.
func (e *Engine) State() State { return e.state }

// LoadPriceHistory fetches and caches daily history for each symbol. The
// cache lives for the engine's lifetime; a symbol is fetched once. A failed
// fetch aborts loading, it is not retried here.
func (e *Engine) LoadPriceHistory(ctx context.Context, symbols ...string) error {
	if e.state == StateCompleted {
		return ErrAlreadyRan
	}
	for _, symbol := range symbols {
		if _, ok := e.histories[symbol]; ok {
			continue
		}
		history, err := e.provider.GetPriceHistory(ctx, symbol, e.cfg.Start, e.cfg.End)
		if err != nil {
			return fmt.Errorf("loading %s: %w", symbol, err)
		}
		e.histories[symbol] = history
		e.logger.WithFields(logrus.Fields{
			"symbol": symbol,
			"bars":   history.Len(),
		}).Info("loaded price history")
	}
	e.state = StateLoaded
	return nil
}

// History returns the cached history for a symbol.
func (e *Engine) History(symbol string) (*marketdata.PriceHistory, bool) {
	h, ok := e.histories[symbol]
	return h, ok
}

// SimulateTrade prices an already-entered position at its exit date and closes
// it. The exit date is the position's explicit exit date when set, otherwise
// the latest leg expiration. It fails when no price data exists at the exit
// date.
func (e *Engine) SimulateTrade(pos *models.OptionsPosition) error {
	history, ok := e.histories[pos.Symbol]
	if !ok {
		return fmt.Errorf("simulate %s: %w", pos.Symbol, ErrNotLoaded)
	}

	exitDate := pos.ExitDate
	if exitDate.IsZero() {
		exitDate = pos.LatestExpiration()
	}

	exitPrice, err := history.PriceAt(exitDate)
	if err != nil {
		return fmt.Errorf("exit price: %w", err)
	}
	exitIV, err := history.IVAt(exitDate)
	if err != nil {
		return fmt.Errorf("exit IV: %w", err)
	}

	exitPremiums := make([]float64, len(pos.Legs))
	for i, leg := range pos.Legs {
		tte := leg.Expiration.Sub(exitDate).Hours() / 24 / 365
		res := pricing.Price(pricing.Input{
			Spot:         exitPrice,
			Strike:       leg.Strike,
			TimeToExpiry: tte,
			RiskFreeRate: e.cfg.RiskFreeRate,
			Volatility:   exitIV,
			Kind:         leg.Kind,
		})
		exitPremiums[i] = res.Price
	}

	return pos.CalculatePnL(exitPremiums, e.cfg.CommissionPerContract, exitDate, exitPrice)
}

// RunBacktest walks calendar days from start to end, skipping weekends, and
// invokes the strategy for each symbol at most once per tradeFrequencyDays.
// Positions the strategy returns are entered, simulated to their exit, and
// recorded. Per-trade simulation failures are logged and skipped; they do not
// abort the run.
func (e *Engine) RunBacktest(ctx context.Context, strategy StrategyFunc, symbols []string, tradeFrequencyDays int) error {
	switch e.state {
	case StateConfigured:
		return ErrNotLoaded
	case StateCompleted:
		return ErrAlreadyRan
	}
	if tradeFrequencyDays < 1 {
		tradeFrequencyDays = 1
	}
	e.state = StateRunning

	var realized float64
	daysSinceTrade := tradeFrequencyDays // trade allowed on the first evaluation day

	for date := e.cfg.Start; !date.After(e.cfg.End); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			continue
		}

		if daysSinceTrade >= tradeFrequencyDays {
			for _, symbol := range symbols {
				history, ok := e.histories[symbol]
				if !ok {
					continue
				}
				visible := history.UpTo(date)
				if visible.Len() == 0 {
					continue
				}

				pos, err := strategy(symbol, date, visible)
				if err != nil {
					e.logger.WithError(err).WithFields(logrus.Fields{
						"symbol": symbol,
						"date":   date.Format("2006-01-02"),
					}).Warn("strategy evaluation failed, skipping")
					continue
				}
				if pos == nil {
					continue
				}

				pos.CalculateEntryCost(e.cfg.CommissionPerContract)
				if err := e.SimulateTrade(pos); err != nil {
					e.logger.WithError(err).WithFields(logrus.Fields{
						"symbol": symbol,
						"date":   date.Format("2006-01-02"),
					}).Warn("trade simulation failed, skipping")
					continue
				}
				e.positions = append(e.positions, pos)
				realized += pos.PnL
			}
			daysSinceTrade = 0
		}
		daysSinceTrade++

		e.equity = append(e.equity, EquityPoint{
			Date:  date,
			Value: e.cfg.InitialCapital + realized,
		})
	}

	e.state = StateCompleted
	e.logger.WithFields(logrus.Fields{
		"trades": len(e.positions),
		"days":   len(e.equity),
	}).Info("backtest complete")
	return nil
}

// Positions returns the recorded closed positions.
func (e *Engine) Positions() []*models.OptionsPosition { return e.positions }

// EquityCurve returns the sampled equity curve.
func (e *Engine) EquityCurve() []EquityPoint { return e.equity }

// EquityValues returns just the dollar values of the equity curve.
func (e *Engine) EquityValues() []float64 {
	values := make([]float64, len(e.equity))
	for i, pt := range e.equity {
		values[i] = pt.Value
	}
	return values
}

// CalculateMetrics reduces the closed positions and equity curve into a
// metrics summary. With zero closed positions it returns an all-zero record.
func (e *Engine) CalculateMetrics() *Metrics {
	return computeMetrics(e.positions, e.equity, e.cfg)
}
