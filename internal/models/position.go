// Package models defines the option leg and position types shared across the
// backtest, risk, and validation layers.
package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/YoByron/optionslab/internal/pricing"
)

const sharesPerContract = 100.0

// PositionState is the lifecycle state of a position.
type PositionState string

const (
	// StateOpen means the position has been entered and not yet closed.
	StateOpen PositionState = "open"
	// StateClosed means exit premiums have been applied and P&L is final.
	StateClosed PositionState = "closed"
)

// StrategyCategory names the options structure a position implements.
type StrategyCategory string

// Strategy categories used in metrics breakdowns.
const (
	StrategyCoveredCall  StrategyCategory = "covered_call"
	StrategyCreditSpread StrategyCategory = "credit_spread"
	StrategyIronCondor   StrategyCategory = "iron_condor"
	StrategyStraddle     StrategyCategory = "straddle"
	StrategyStrangle     StrategyCategory = "strangle"
	StrategyCalendar     StrategyCategory = "calendar"
)

// Greeks is a snapshot of an option's sensitivities.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"` // daily decay, dollars per share
	Vega  float64 `json:"vega"`  // per 1 vol point
}

// OptionLeg is one option contract within a position. Quantity is signed:
// positive for long (bought), negative for short (sold). Immutable once
// created.
type OptionLeg struct {
	Kind         pricing.OptionKind `json:"kind"`
	Strike       float64            `json:"strike"`
	Expiration   time.Time          `json:"expiration"`
	Quantity     int                `json:"quantity"`
	EntryPremium float64            `json:"entry_premium"` // per share, dollars
	EntryGreeks  Greeks             `json:"entry_greeks"`
}

// NewOptionLeg validates and constructs a leg.
func NewOptionLeg(kind pricing.OptionKind, strike float64, expiration time.Time,
	quantity int, entryPremium float64, entryGreeks Greeks) (OptionLeg, error) {
	if !kind.Valid() {
		return OptionLeg{}, fmt.Errorf("invalid option kind %q", kind)
	}
	if quantity == 0 {
		return OptionLeg{}, ErrZeroQuantity
	}
	if strike <= 0 {
		return OptionLeg{}, fmt.Errorf("strike must be positive, got %.2f", strike)
	}
	return OptionLeg{
		Kind:         kind,
		Strike:       strike,
		Expiration:   expiration,
		Quantity:     quantity,
		EntryPremium: entryPremium,
		EntryGreeks:  entryGreeks,
	}, nil
}

// IsShort returns true for sold legs.
func (l OptionLeg) IsShort() bool {
	return l.Quantity < 0
}

// OptionsPosition is a possibly multi-leg options trade on a single underlying.
//
// Sign convention: EntryCost is the signed cash flow at open. A net credit
// (more premium sold than bought) yields a negative entry cost; a net debit is
// positive. PnL = ExitValue - EntryCost, net of commissions on both sides.
type OptionsPosition struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	Strategy   StrategyCategory `json:"strategy"`
	Legs       []OptionLeg      `json:"legs"`
	State      PositionState    `json:"state"`
	EntryDate  time.Time        `json:"entry_date"`
	EntryPrice float64          `json:"entry_price"` // underlying at entry
	ExitDate   time.Time        `json:"exit_date,omitempty"`
	ExitPrice  float64          `json:"exit_price,omitempty"` // underlying at exit

	EntryCost  float64 `json:"entry_cost"` // signed dollars, negative = credit
	ExitValue  float64 `json:"exit_value"` // signed dollars
	Commission float64 `json:"commission"` // total paid, entry + exit
	PnL        float64 `json:"pnl"`        // realized, dollars
	NetGreeks  Greeks  `json:"net_greeks"` // per-share exposure x signed contracts
}

// NewPosition creates an open position from its legs.
func NewPosition(symbol string, strategy StrategyCategory, legs []OptionLeg,
	entryDate time.Time, entryPrice float64) (*OptionsPosition, error) {
	if len(legs) == 0 {
		return nil, ErrNoLegs
	}
	for i, leg := range legs {
		if leg.Quantity == 0 {
			return nil, fmt.Errorf("leg %d: %w", i, ErrZeroQuantity)
		}
	}
	return &OptionsPosition{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Strategy:   strategy,
		Legs:       legs,
		State:      StateOpen,
		EntryDate:  entryDate,
		EntryPrice: entryPrice,
	}, nil
}

// CalculateEntryCost computes the signed opening cash flow, entry commission,
// and net Greeks exposure. Short legs contribute credit (negative cost), long
// legs debit (positive cost).
func (p *OptionsPosition) CalculateEntryCost(commissionPerContract float64) {
	var cost float64
	var contracts int
	var net Greeks

	for _, leg := range p.Legs {
		legValue := leg.EntryPremium * sharesPerContract * math.Abs(float64(leg.Quantity))
		if leg.IsShort() {
			cost -= legValue
		} else {
			cost += legValue
		}
		contracts += int(math.Abs(float64(leg.Quantity)))

		qty := float64(leg.Quantity)
		net.Delta += leg.EntryGreeks.Delta * qty
		net.Gamma += leg.EntryGreeks.Gamma * qty
		net.Theta += leg.EntryGreeks.Theta * qty
		net.Vega += leg.EntryGreeks.Vega * qty
	}

	commission := float64(contracts) * commissionPerContract
	p.EntryCost = cost + commission
	p.Commission = commission
	p.NetGreeks = net
}

// CalculatePnL applies exit premiums (one per leg, same order), computes the
// exit cash flow mirroring the entry sign convention, and closes the position.
// Closing an already-closed position returns ErrPositionClosed.
func (p *OptionsPosition) CalculatePnL(exitPremiums []float64, commissionPerContract float64,
	exitDate time.Time, exitPrice float64) error {
	if p.State == StateClosed {
		return fmt.Errorf("position %s: %w", p.ID, ErrPositionClosed)
	}
	if len(exitPremiums) != len(p.Legs) {
		return fmt.Errorf("position %s: got %d exit premiums for %d legs: %w",
			p.ID, len(exitPremiums), len(p.Legs), ErrLegMismatch)
	}

	var value float64
	var contracts int
	for i, leg := range p.Legs {
		legValue := exitPremiums[i] * sharesPerContract * math.Abs(float64(leg.Quantity))
		if leg.IsShort() {
			// buying back the short leg costs money
			value -= legValue
		} else {
			// selling the long leg brings money in
			value += legValue
		}
		contracts += int(math.Abs(float64(leg.Quantity)))
	}

	exitCommission := float64(contracts) * commissionPerContract
	p.ExitValue = value - exitCommission
	p.Commission += exitCommission
	p.PnL = p.ExitValue - p.EntryCost
	p.ExitDate = exitDate
	p.ExitPrice = exitPrice
	p.State = StateClosed
	return nil
}

// IsClosed reports whether P&L has been finalized.
func (p *OptionsPosition) IsClosed() bool {
	return p.State == StateClosed
}

// DaysInTrade returns the holding period in days. For open positions it
// measures against the current time.
func (p *OptionsPosition) DaysInTrade() float64 {
	end := time.Now().UTC()
	if p.IsClosed() {
		end = p.ExitDate
	}
	return end.Sub(p.EntryDate).Hours() / 24
}

// LatestExpiration returns the furthest-out leg expiration, used as the
// default exit date when none is set.
func (p *OptionsPosition) LatestExpiration() time.Time {
	var latest time.Time
	for _, leg := range p.Legs {
		if leg.Expiration.After(latest) {
			latest = leg.Expiration
		}
	}
	return latest
}

// ContractCount returns the total number of contracts across legs.
func (p *OptionsPosition) ContractCount() int {
	var n int
	for _, leg := range p.Legs {
		n += int(math.Abs(float64(leg.Quantity)))
	}
	return n
}
