package volbot

import (
	"context"
	"log"
	"math"
	"sync"

	"poly-volbot/internal/coinbase"
	"poly-volbot/internal/config"
	"poly-volbot/internal/datalog"
	"poly-volbot/internal/pricecache"
)

// Controller gates volatility signals before they become orders. A signal
// executes only when auto trading is enabled, the target token has no open
// position, and its spread is tight enough to not eat the edge.
//
// Every signal is written to the data log with its outcome, skipped ones
// included, so the trigger threshold can be tuned offline.
type Controller struct {
	venue    Venue
	cache    *pricecache.Cache
	executor *Executor
	manager  *Manager
	events   *datalog.Logger
	tokens   TokenPair

	maxSpreadCents float64
	threshold      float64

	mu      sync.Mutex
	enabled bool
}

func NewController(venue Venue, cache *pricecache.Cache, executor *Executor, manager *Manager, events *datalog.Logger, tokens TokenPair, params config.Params) *Controller {
	return &Controller{
		venue:          venue,
		cache:          cache,
		executor:       executor,
		manager:        manager,
		events:         events,
		tokens:         tokens,
		maxSpreadCents: params.MaxSpreadCents,
		threshold:      params.TriggerThreshold,
		enabled:        true,
	}
}

// Enable turns automatic execution back on.
func (c *Controller) Enable() {
	c.mu.Lock()
	c.enabled = true
	c.mu.Unlock()
}

// Disable is the kill switch. Signals keep being logged, none execute.
func (c *Controller) Disable() {
	c.mu.Lock()
	c.enabled = false
	c.mu.Unlock()
}

func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// HandleSignal runs the gate checks for one signal and executes the entry
// when all pass. Returns the entry result; Success is false for skips.
func (c *Controller) HandleSignal(ctx context.Context, sig coinbase.Signal) OrderResult {
	tokenID := c.tokens.For(sig.Direction)

	outcome := "executed"
	switch {
	case !c.Enabled():
		outcome = "skipped_disabled"
	case c.manager.HasOpenPosition(tokenID):
		outcome = "skipped_position_open"
	case !c.spreadOK(ctx, tokenID):
		outcome = "skipped_spread_wide"
	}

	var res OrderResult
	if outcome == "executed" {
		res = c.executor.ExecuteEntry(ctx, sig.Direction)
		if !res.Success {
			outcome = "entry_failed"
			log.Printf("[warn] entry for %s signal failed: %s", sig.Direction, res.ErrorMsg)
		}
	} else {
		res = OrderResult{Direction: sig.Direction}
		log.Printf("[info] %s signal %s", sig.Direction, outcome)
	}

	c.events.Log(SignalEvent{
		Type:         "signal",
		Direction:    sig.Direction.String(),
		Outcome:      outcome,
		PctChange:    sig.PctChange,
		Threshold:    c.threshold,
		WindowTicks:  sig.Ticks,
		SignalTimeMs: sig.AtMs,
		Spread:       c.manager.spreadSnapshot(tokenID),
		Error:        res.ErrorMsg,
	})
	return res
}

// spreadOK checks the spread in cents, preferring the websocket cache and
// falling back to a REST book fetch. No prices means no trade.
func (c *Controller) spreadOK(ctx context.Context, tokenID string) bool {
	if c.cache != nil {
		if _, ok := c.cache.SpreadCents(tokenID); ok {
			return c.cache.SpreadAcceptable(tokenID, c.maxSpreadCents)
		}
	}

	bid, ask, err := c.venue.BestPrices(ctx, tokenID)
	if err != nil || bid <= 0 || ask <= 0 {
		return false
	}
	cents := math.Round((ask-bid)*100*1e6) / 1e6
	return cents <= c.maxSpreadCents
}
