package models

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/YoByron/optionslab/internal/pricing"
)

func mustLeg(t *testing.T, kind pricing.OptionKind, strike float64, qty int, premium float64) OptionLeg {
	t.Helper()
	leg, err := NewOptionLeg(kind, strike, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), qty, premium, Greeks{})
	if err != nil {
		t.Fatalf("NewOptionLeg: %v", err)
	}
	return leg
}

func TestNewOptionLeg_RejectsZeroQuantity(t *testing.T) {
	_, err := NewOptionLeg(pricing.Call, 100, time.Now(), 0, 1.50, Greeks{})
	if !errors.Is(err, ErrZeroQuantity) {
		t.Fatalf("want ErrZeroQuantity, got %v", err)
	}
}

func TestCalculateEntryCost_SignConvention(t *testing.T) {
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		legs     []OptionLeg
		wantSign float64 // -1 credit, +1 debit
	}{
		{
			name:     "single short call is a credit",
			legs:     []OptionLeg{mustLeg(t, pricing.Call, 105, -1, 2.50)},
			wantSign: -1,
		},
		{
			name:     "single long put is a debit",
			legs:     []OptionLeg{mustLeg(t, pricing.Put, 95, 1, 1.80)},
			wantSign: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := NewPosition("SPY", StrategyCreditSpread, tt.legs, entry, 100)
			if err != nil {
				t.Fatalf("NewPosition: %v", err)
			}
			pos.CalculateEntryCost(0.65)
			if tt.wantSign < 0 && pos.EntryCost >= 0 {
				t.Errorf("short position entry cost should be negative (credit), got %.2f", pos.EntryCost)
			}
			if tt.wantSign > 0 && pos.EntryCost <= 0 {
				t.Errorf("long position entry cost should be positive (debit), got %.2f", pos.EntryCost)
			}
		})
	}
}

func TestCalculateEntryCost_PutCreditSpread(t *testing.T) {
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	legs := []OptionLeg{
		mustLeg(t, pricing.Put, 95, -1, 2.00),
		mustLeg(t, pricing.Put, 90, 1, 0.80),
	}
	pos, err := NewPosition("SPY", StrategyCreditSpread, legs, entry, 100)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	pos.CalculateEntryCost(0.65)

	// credit of (2.00-0.80)*100 offset by 2 contracts * $0.65
	want := -(2.00-0.80)*100 + 2*0.65
	if math.Abs(pos.EntryCost-want) > 1e-9 {
		t.Errorf("EntryCost = %.4f, want %.4f", pos.EntryCost, want)
	}
	if math.Abs(pos.Commission-1.30) > 1e-9 {
		t.Errorf("Commission = %.4f, want 1.30", pos.Commission)
	}
}

func TestCalculatePnL_ShortExpiresWorthless(t *testing.T) {
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	exit := time.Date(2024, 2, 16, 0, 0, 0, 0, time.UTC)

	legs := []OptionLeg{mustLeg(t, pricing.Call, 110, -2, 1.50)}
	pos, err := NewPosition("SPY", StrategyCoveredCall, legs, entry, 100)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	pos.CalculateEntryCost(0.65)

	if err := pos.CalculatePnL([]float64{0}, 0.65, exit, 104); err != nil {
		t.Fatalf("CalculatePnL: %v", err)
	}

	// credit received minus commissions on both sides
	want := 2*1.50*100 - 4*0.65
	if math.Abs(pos.PnL-want) > 1e-9 {
		t.Errorf("PnL = %.4f, want %.4f", pos.PnL, want)
	}
	if pos.PnL <= 0 {
		t.Errorf("short option expiring worthless must be profitable, got %.2f", pos.PnL)
	}
	if !pos.IsClosed() {
		t.Error("position should be closed after CalculatePnL")
	}
}

func TestCalculatePnL_Errors(t *testing.T) {
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	exit := entry.AddDate(0, 1, 0)

	legs := []OptionLeg{
		mustLeg(t, pricing.Put, 95, -1, 2.00),
		mustLeg(t, pricing.Put, 90, 1, 0.80),
	}
	pos, err := NewPosition("SPY", StrategyCreditSpread, legs, entry, 100)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	pos.CalculateEntryCost(0.65)

	if err := pos.CalculatePnL([]float64{0.50}, 0.65, exit, 98); !errors.Is(err, ErrLegMismatch) {
		t.Fatalf("want ErrLegMismatch for short premium slice, got %v", err)
	}

	if err := pos.CalculatePnL([]float64{0.50, 0.10}, 0.65, exit, 98); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := pos.CalculatePnL([]float64{0.50, 0.10}, 0.65, exit, 98); !errors.Is(err, ErrPositionClosed) {
		t.Fatalf("want ErrPositionClosed on re-close, got %v", err)
	}
}

func TestNetGreeks_SignedByQuantity(t *testing.T) {
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	exp := entry.AddDate(0, 2, 0)

	short, err := NewOptionLeg(pricing.Call, 105, exp, -1, 2.00,
		Greeks{Delta: 0.35, Gamma: 0.02, Theta: -0.05, Vega: 0.15})
	if err != nil {
		t.Fatalf("NewOptionLeg: %v", err)
	}
	long, err := NewOptionLeg(pricing.Call, 110, exp, 1, 0.90,
		Greeks{Delta: 0.20, Gamma: 0.015, Theta: -0.03, Vega: 0.10})
	if err != nil {
		t.Fatalf("NewOptionLeg: %v", err)
	}

	pos, err := NewPosition("SPY", StrategyCreditSpread, []OptionLeg{short, long}, entry, 100)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	pos.CalculateEntryCost(0)

	if math.Abs(pos.NetGreeks.Delta-(-0.35+0.20)) > 1e-9 {
		t.Errorf("net delta = %.4f, want %.4f", pos.NetGreeks.Delta, -0.15)
	}
	// short theta exposure flips to positive decay collection
	if math.Abs(pos.NetGreeks.Theta-(0.05-0.03)) > 1e-9 {
		t.Errorf("net theta = %.4f, want %.4f", pos.NetGreeks.Theta, 0.02)
	}
}

func TestDaysInTrade(t *testing.T) {
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	exit := time.Date(2024, 1, 32, 0, 0, 0, 0, time.UTC) // normalizes to Feb 1

	legs := []OptionLeg{mustLeg(t, pricing.Put, 95, -1, 2.00)}
	pos, err := NewPosition("SPY", StrategyStrangle, legs, entry, 100)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	pos.CalculateEntryCost(0)
	if err := pos.CalculatePnL([]float64{0.40}, 0, exit, 101); err != nil {
		t.Fatalf("CalculatePnL: %v", err)
	}

	if got := pos.DaysInTrade(); math.Abs(got-30) > 1e-9 {
		t.Errorf("DaysInTrade = %.2f, want 30", got)
	}
}

func TestLatestExpiration(t *testing.T) {
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	near := entry.AddDate(0, 1, 0)
	far := entry.AddDate(0, 2, 0)

	nearLeg, _ := NewOptionLeg(pricing.Call, 100, near, -1, 1.20, Greeks{})
	farLeg, _ := NewOptionLeg(pricing.Call, 100, far, 1, 2.10, Greeks{})

	pos, err := NewPosition("SPY", StrategyCalendar, []OptionLeg{nearLeg, farLeg}, entry, 100)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	if got := pos.LatestExpiration(); !got.Equal(far) {
		t.Errorf("LatestExpiration = %v, want %v", got, far)
	}
}
