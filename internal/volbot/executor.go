package volbot

import (
	"context"
	"log"

	"poly-volbot/internal/coinbase"
	"poly-volbot/internal/config"
	"poly-volbot/internal/datalog"
	"poly-volbot/internal/pricecache"
)

// A fill below this fraction of the requested size counts as partial.
const fullFillFraction = 0.95

// OrderResult reports an entry attempt.
type OrderResult struct {
	Success         bool
	Direction       coinbase.Direction
	RequestedAmount float64 // dollars
	FilledShares    float64
	FillPrice       float64
	Position        *Position
	ErrorMsg        string
	PartialFill     bool
}

// Executor turns a direction into an immediate market entry and hands the
// resulting fill to the position manager.
type Executor struct {
	venue   Venue
	cache   *pricecache.Cache
	manager *Manager
	events  *datalog.Logger
	tokens  TokenPair

	positionSize  float64
	slippageCents int
}

func NewExecutor(venue Venue, cache *pricecache.Cache, manager *Manager, events *datalog.Logger, tokens TokenPair, params config.Params) *Executor {
	return &Executor{
		venue:         venue,
		cache:         cache,
		manager:       manager,
		events:        events,
		tokens:        tokens,
		positionSize:  params.PositionSize,
		slippageCents: params.SlippageCents,
	}
}

// ExecuteEntry buys the configured dollar amount of the token matching
// direction as a FAK order. Any fill opens a position; the unfilled rest is
// killed by the venue, not retried.
func (e *Executor) ExecuteEntry(ctx context.Context, direction coinbase.Direction) OrderResult {
	return e.ExecuteEntryAmount(ctx, direction, e.positionSize)
}

// ExecuteEntryAmount is ExecuteEntry with an explicit dollar amount.
func (e *Executor) ExecuteEntryAmount(ctx context.Context, direction coinbase.Direction, dollars float64) OrderResult {
	tokenID := e.tokens.For(direction)
	res := OrderResult{Direction: direction, RequestedAmount: dollars}

	bestAsk := e.bestAsk(ctx, tokenID)
	if bestAsk <= 0 {
		res.ErrorMsg = "no asks available in orderbook"
		return res
	}

	rcpt, err := e.venue.PlaceMarketBuy(ctx, tokenID, dollars, bestAsk, e.slippageCents)
	if err != nil {
		res.ErrorMsg = err.Error()
		return res
	}
	if !rcpt.Success {
		res.ErrorMsg = rcpt.ErrorMsg
		if res.ErrorMsg == "" {
			res.ErrorMsg = "order rejected"
		}
		return res
	}

	filled, _ := rcpt.Filled.Float64()
	if filled <= 0 {
		res.ErrorMsg = "order submitted but no fill received"
		return res
	}
	fillPrice, _ := rcpt.Price.Float64()
	if fillPrice <= 0 {
		fillPrice = bestAsk
	}

	// The bid at entry anchors the stop loss. Zero is fine, the position
	// falls back to measuring from the fill price.
	entryBid := 0.0
	if e.cache != nil {
		entryBid, _ = e.cache.BestBid(tokenID)
	}

	pos := e.manager.AddPosition(direction, tokenID, fillPrice, entryBid, filled)

	res.Success = true
	res.FilledShares = filled
	res.FillPrice = fillPrice
	res.Position = &pos
	res.PartialFill = filled < dollars/bestAsk*fullFillFraction
	if res.PartialFill {
		log.Printf("[info] partial fill on entry, rest killed (%.2f of ~%.2f shares)", filled, dollars/bestAsk)
	}

	e.events.Log(EntryEvent{
		Type:        "entry",
		PositionID:  pos.ID,
		Direction:   direction.String(),
		TokenID:     tokenID,
		Requested:   dollars,
		FillPrice:   fillPrice,
		Shares:      filled,
		TakeProfit:  pos.TakeProfit,
		StopLoss:    pos.StopLoss,
		PartialFill: res.PartialFill,
	})
	return res
}

// ExecuteExit manually closes a position by ID.
func (e *Executor) ExecuteExit(ctx context.Context, positionID string) bool {
	return e.manager.ManualExit(ctx, positionID)
}

func (e *Executor) bestAsk(ctx context.Context, tokenID string) float64 {
	if e.cache != nil {
		if ask, ok := e.cache.BestAsk(tokenID); ok {
			return ask
		}
	}
	_, ask, err := e.venue.BestPrices(ctx, tokenID)
	if err != nil {
		log.Printf("[warn] best ask lookup failed: %v", err)
		return 0
	}
	return ask
}
