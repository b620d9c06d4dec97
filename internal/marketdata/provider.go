package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Provider is the price-history retrieval boundary. Implementations must be
// safe for concurrent use. A failed fetch is fatal for that symbol's backtest;
// callers do not retry automatically.
type Provider interface {
	GetPriceHistory(ctx context.Context, symbol string, start, end time.Time) (*PriceHistory, error)
}

// BreakerProvider guards a Provider with a circuit breaker so a flapping data
// source fails fast instead of stalling a batch of backtests. Local providers
// rarely need it; anything that crosses the network should be wrapped.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// BreakerSettings tunes when the breaker trips and how it recovers.
type BreakerSettings struct {
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // rolling window for failure counts
	Timeout      time.Duration // how long the circuit stays open
	MinRequests  uint32        // observations required before tripping
	FailureRatio float64       // failure fraction that trips the circuit
}

// NewBreakerProvider wraps provider with default breaker settings: trip at a
// 60% failure rate over at least 5 requests, stay open for 30 seconds.
func NewBreakerProvider(provider Provider, logger *logrus.Logger) *BreakerProvider {
	return NewBreakerProviderWithSettings(provider, BreakerSettings{
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}, logger)
}

// NewBreakerProviderWithSettings wraps provider with explicit settings. State
// transitions are logged through logger at warning level.
func NewBreakerProviderWithSettings(provider Provider, settings BreakerSettings, logger *logrus.Logger) *BreakerProvider {
	if logger == nil {
		logger = logrus.New()
	}
	b := &BreakerProvider{inner: provider, logger: logger}
	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "marketdata",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Data provider circuit breaker state change")
		},
	})
	return b
}

// GetPriceHistory routes the fetch through the circuit breaker. While the
// circuit is open it returns gobreaker.ErrOpenState without touching the
// underlying provider.
func (b *BreakerProvider) GetPriceHistory(ctx context.Context, symbol string, start, end time.Time) (*PriceHistory, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.GetPriceHistory(ctx, symbol, start, end)
	})
	if err != nil {
		return nil, err
	}
	history, ok := res.(*PriceHistory)
	if !ok {
		return nil, errors.New("circuit breaker: type assertion failed")
	}
	return history, nil
}
