package backtest

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/YoByron/optionslab/internal/models"
	"github.com/YoByron/optionslab/internal/pricing"
)

func closedPosition(t *testing.T, category models.StrategyCategory, pnl float64, holdingDays int) *models.OptionsPosition {
	t.Helper()
	entry := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	exit := entry.AddDate(0, 0, holdingDays)

	leg, err := models.NewOptionLeg(pricing.Put, 95, exit, -1, 2.00, models.Greeks{Delta: -0.3, Theta: -0.04, Vega: 0.12})
	if err != nil {
		t.Fatalf("NewOptionLeg: %v", err)
	}
	pos, err := models.NewPosition("SPY", category, []models.OptionLeg{leg}, entry, 100)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	pos.CalculateEntryCost(0.65)

	// force the desired P&L by closing at the implied exit premium
	exitPremium := (-pos.EntryCost - 0.65 - pnl) / 100
	if err := pos.CalculatePnL([]float64{exitPremium}, 0.65, exit, 100); err != nil {
		t.Fatalf("CalculatePnL: %v", err)
	}
	if math.Abs(pos.PnL-pnl) > 1e-6 {
		t.Fatalf("setup produced PnL %.4f, want %.4f", pos.PnL, pnl)
	}
	return pos
}

func TestComputeMetrics_TradeStatistics(t *testing.T) {
	positions := []*models.OptionsPosition{
		closedPosition(t, models.StrategyCreditSpread, 120, 30),
		closedPosition(t, models.StrategyCreditSpread, 80, 20),
		closedPosition(t, models.StrategyStrangle, -50, 10),
	}
	cfg := Config{InitialCapital: 100_000, RiskFreeRate: 0.04}
	equity := []EquityPoint{
		{Date: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), Value: 100_000},
		{Date: time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), Value: 100_150},
		{Date: time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC), Value: 100_150},
	}

	m := computeMetrics(positions, equity, cfg)

	if m.TotalTrades != 3 {
		t.Fatalf("TotalTrades = %d, want 3", m.TotalTrades)
	}
	if m.WinningTrades != 2 || m.LosingTrades != 1 {
		t.Errorf("W/L = %d/%d, want 2/1", m.WinningTrades, m.LosingTrades)
	}
	if math.Abs(m.WinRatePct-100*2.0/3.0) > 1e-9 {
		t.Errorf("WinRatePct = %.4f", m.WinRatePct)
	}
	if math.Abs(m.ProfitFactor-200.0/50.0) > 1e-9 {
		t.Errorf("ProfitFactor = %.4f, want 4", m.ProfitFactor)
	}
	if math.Abs(m.AverageWin-100) > 1e-9 {
		t.Errorf("AverageWin = %.4f, want 100", m.AverageWin)
	}
	if math.Abs(m.AverageLoss-(-50)) > 1e-9 {
		t.Errorf("AverageLoss = %.4f, want -50", m.AverageLoss)
	}
	if m.LargestWin != 120 || m.LargestLoss != -50 {
		t.Errorf("Largest W/L = %.2f/%.2f", m.LargestWin, m.LargestLoss)
	}
	if math.Abs(m.AvgHoldingDays-20) > 1e-9 {
		t.Errorf("AvgHoldingDays = %.2f, want 20", m.AvgHoldingDays)
	}

	spread := m.ByStrategy[models.StrategyCreditSpread]
	if spread.Trades != 2 || spread.Wins != 2 || math.Abs(spread.TotalPnL-200) > 1e-6 {
		t.Errorf("credit_spread stats = %+v", spread)
	}
	strangle := m.ByStrategy[models.StrategyStrangle]
	if strangle.Trades != 1 || strangle.Wins != 0 {
		t.Errorf("strangle stats = %+v", strangle)
	}
}

func TestComputeMetrics_EmptyIsZero(t *testing.T) {
	m := computeMetrics(nil, nil, Config{InitialCapital: 100_000})
	if m.TotalTrades != 0 || m.SharpeRatio != 0 || m.TotalReturnPct != 0 || m.MaxDrawdownPct != 0 {
		t.Fatalf("empty metrics not zero: %+v", m)
	}
}

func TestDrawdownStats(t *testing.T) {
	equity := []EquityPoint{
		{Value: 100}, {Value: 110}, {Value: 99}, {Value: 104.5}, {Value: 120},
	}
	maxDD, _ := drawdownStats(equity)
	if math.Abs(maxDD-0.1) > 1e-9 {
		t.Errorf("maxDD = %.6f, want 0.10 (110 -> 99)", maxDD)
	}
}

func TestSharpe_ZeroVarianceIsZero(t *testing.T) {
	if got := sharpe([]float64{0.001, 0.001, 0.001}, 0); got != 0 {
		t.Errorf("sharpe of constant returns = %.4f, want 0", got)
	}
}

func TestFormatReport_ContainsSections(t *testing.T) {
	positions := []*models.OptionsPosition{closedPosition(t, models.StrategyIronCondor, 75, 14)}
	m := computeMetrics(positions, []EquityPoint{
		{Date: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), Value: 100_000},
		{Date: time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), Value: 100_075},
	}, Config{InitialCapital: 100_000})

	report := FormatReport(m)
	for _, want := range []string{"BACKTEST REPORT", "Returns", "Trades", "Options", "iron_condor"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}
}
