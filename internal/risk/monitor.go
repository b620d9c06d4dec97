package risk

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// AlertLevel grades how severe a limit breach is.
type AlertLevel string

// Alert severities in escalating order.
const (
	LevelWarning   AlertLevel = "warning"
	LevelCritical  AlertLevel = "critical"
	LevelEmergency AlertLevel = "emergency"
)

// Alert records one failed risk check. Alerts accumulate in the monitor's
// append-only log for the session.
type Alert struct {
	Time      time.Time  `json:"time"`
	Level     AlertLevel `json:"level"`
	Metric    string     `json:"metric"`
	Value     float64    `json:"value"`
	Threshold float64    `json:"threshold"`
	Action    string     `json:"action"`
}

// Limits are the monitor's thresholds, all expressed as fractions of
// portfolio value.
type Limits struct {
	MaxVaRPct           float64 // daily VaR-95 limit, e.g. 0.02
	MaxDailyLossPct     float64 // loss from the daily baseline, e.g. 0.03
	MaxDrawdownPct      float64 // drawdown from peak equity, e.g. 0.10
	MaxConcentrationPct float64 // single-symbol share of position value, e.g. 0.25
}

// criticalVaRMultiple escalates a VaR breach from warning to critical.
const criticalVaRMultiple = 1.5

// Monitor tracks peak and daily-start equity across checks and raises tiered
// alerts with trade-halt semantics. It is a session object: one monitor per
// portfolio, checked sequentially.
type Monitor struct {
	calc   *Calculator
	limits Limits
	logger *logrus.Logger

	peakValue  float64
	dailyStart float64
	isPaused   bool
	isHalted   bool
	alerts     []Alert
}

// NewMonitor creates a monitor around a VaR calculator.
func NewMonitor(calc *Calculator, limits Limits, logger *logrus.Logger) *Monitor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Monitor{calc: calc, limits: limits, logger: logger}
}

// CheckRisk runs the tiered checks in order: portfolio VaR, daily loss,
// drawdown from peak, and per-symbol concentration. It returns the alerts
// raised by this check; the session log keeps them all.
//
// A short return history is not an alarm: the VaR check is skipped when the
// calculator reports insufficient data.
func (m *Monitor) CheckRisk(portfolioValue float64, returns []float64, positions map[string]float64) []Alert {
	if m.dailyStart == 0 {
		m.dailyStart = portfolioValue
	}
	if portfolioValue > m.peakValue {
		m.peakValue = portfolioValue
	}

	var raised []Alert

	// 1. VaR vs limit
	if result, err := m.calc.CalculateVaR(returns, portfolioValue); err == nil {
		varPct := -result.VaR95 // loss magnitude as a fraction
		if varPct > m.limits.MaxVaRPct*criticalVaRMultiple {
			raised = append(raised, m.raise(LevelCritical, "var_95", varPct, m.limits.MaxVaRPct,
				"reduce position size immediately"))
		} else if varPct > m.limits.MaxVaRPct {
			raised = append(raised, m.raise(LevelWarning, "var_95", varPct, m.limits.MaxVaRPct,
				"review open risk before adding positions"))
		}
	} else if errors.Is(err, ErrInsufficientData) {
		m.logger.Debug("risk check: not enough history for VaR, skipping")
	} else {
		m.logger.WithError(err).Warn("risk check: VaR calculation failed")
	}

	// 2. loss since the daily baseline
	if m.dailyStart > 0 {
		dailyChange := (portfolioValue - m.dailyStart) / m.dailyStart
		if -dailyChange > m.limits.MaxDailyLossPct {
			m.isPaused = true
			raised = append(raised, m.raise(LevelCritical, "daily_loss", -dailyChange, m.limits.MaxDailyLossPct,
				"trading paused until next session"))
		}
	}

	// 3. drawdown from peak equity
	if m.peakValue > 0 {
		drawdown := (m.peakValue - portfolioValue) / m.peakValue
		if drawdown > m.limits.MaxDrawdownPct {
			m.isHalted = true
			raised = append(raised, m.raise(LevelEmergency, "drawdown", drawdown, m.limits.MaxDrawdownPct,
				"halt trading and liquidate to target risk"))
		}
	}

	// 4. single-symbol concentration
	var totalPositionValue float64
	for _, v := range positions {
		totalPositionValue += v
	}
	if totalPositionValue > 0 {
		for symbol, v := range positions {
			share := v / totalPositionValue
			if share > m.limits.MaxConcentrationPct {
				raised = append(raised, m.raise(LevelWarning, "concentration_"+symbol, share, m.limits.MaxConcentrationPct,
					"rebalance exposure away from "+symbol))
			}
		}
	}

	return raised
}

func (m *Monitor) raise(level AlertLevel, metric string, value, threshold float64, action string) Alert {
	alert := Alert{
		Time:      time.Now().UTC(),
		Level:     level,
		Metric:    metric,
		Value:     value,
		Threshold: threshold,
		Action:    action,
	}
	m.alerts = append(m.alerts, alert)
	m.logger.WithFields(logrus.Fields{
		"level":     level,
		"metric":    metric,
		"value":     value,
		"threshold": threshold,
	}).Warn("risk alert")
	return alert
}

// CanTrade returns false while the monitor is halted or paused.
func (m *Monitor) CanTrade() bool {
	return !m.isHalted && !m.isPaused
}

// IsHalted reports the emergency-stop state.
func (m *Monitor) IsHalted() bool { return m.isHalted }

// StartNewDay resets the daily baseline and lifts a pause. A halt survives
// day boundaries and requires manual intervention.
func (m *Monitor) StartNewDay(portfolioValue float64) {
	m.dailyStart = portfolioValue
	m.isPaused = false
}

// Alerts returns the session's append-only alert log.
func (m *Monitor) Alerts() []Alert {
	return m.alerts
}
