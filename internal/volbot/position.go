// Package volbot holds the trading core: position lifecycle with take
// profit, stop loss and stale breakeven exits, entry execution, and the
// signal gate that decides whether a volatility signal becomes an order.
package volbot

import (
	"math"
	"time"

	"github.com/google/uuid"

	"poly-volbot/internal/coinbase"
)

type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusClosing Status = "CLOSING"
	StatusClosed  Status = "CLOSED"
)

type ExitReason string

const (
	ExitTakeProfit     ExitReason = "TAKE_PROFIT"
	ExitStopLoss       ExitReason = "STOP_LOSS"
	ExitStaleBreakeven ExitReason = "STALE_BREAKEVEN"
	ExitManual         ExitReason = "MANUAL"
)

// Position is one tracked holding of an outcome token.
type Position struct {
	ID        string
	Direction coinbase.Direction
	TokenID   string

	// EntryPrice is the ask we paid. EntryBid is the bid at entry time and
	// anchors the stop loss; exits sell into the bid, so measuring the stop
	// from the ask would eat the spread twice.
	EntryPrice float64
	EntryBid   float64
	Shares     float64

	TakeProfit float64
	StopLoss   float64

	Status   Status
	OpenedAt time.Time

	// StaleSince is the moment the position was armed for a breakeven exit
	// after sitting between its levels too long. Zero while fresh.
	StaleSince time.Time

	ExitPrice  float64
	ExitTime   time.Time
	ExitReason ExitReason
}

// CostBasis is the total dollars paid for the position.
func (p *Position) CostBasis() float64 {
	return p.EntryPrice * p.Shares
}

// PnL is the unrealized profit at currentBid, or realized profit when the
// position is closed and currentBid is the exit price.
func (p *Position) PnL(currentBid float64) float64 {
	return (currentBid - p.EntryPrice) * p.Shares
}

// PnLPct is PnL as a percentage of the entry price.
func (p *Position) PnLPct(currentBid float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (currentBid - p.EntryPrice) / p.EntryPrice * 100
}

func newPosition(direction coinbase.Direction, tokenID string, entryPrice, entryBid, shares, tpPct, slPct float64, now time.Time) *Position {
	// Take profit measures from the ask we paid. The stop loss measures
	// from the bid at entry when known, since that is the side we exit on.
	tp := round2(entryPrice * (1 + tpPct))
	slRef := entryPrice
	if entryBid > 0 {
		slRef = entryBid
	}
	sl := round2(slRef * (1 - slPct))

	// Keep both levels at least one tick away from their reference so a
	// tight percentage can never produce an instantly-triggering level.
	if tp <= entryPrice {
		tp = round2(entryPrice + 0.01)
	}
	if sl >= slRef {
		sl = round2(slRef - 0.01)
	}

	return &Position{
		ID:         uuid.NewString()[:8],
		Direction:  direction,
		TokenID:    tokenID,
		EntryPrice: entryPrice,
		EntryBid:   entryBid,
		Shares:     shares,
		TakeProfit: tp,
		StopLoss:   sl,
		Status:     StatusOpen,
		OpenedAt:   now,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
