package volbot

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"poly-volbot/internal/coinbase"
	"poly-volbot/internal/config"
	"poly-volbot/internal/datalog"
	"poly-volbot/internal/pricecache"
)

// Shares worth less than this many dollars are dust: not worth hammering
// with FAK retries, a resting GTC sell picks them up instead.
const dustMinDollars = 0.05

// Remainders at or below this share count are ignored entirely. The venue
// rejects sells this small anyway.
const minSellableShares = 0.01

// exitPhase parametrizes one round of the sell retry loop.
type exitPhase struct {
	maxAttempts         int
	maxConsecutiveFails int
	failDelay           time.Duration
}

var (
	// Fast phase right after the trigger, when the move is still fresh.
	fastExitPhase = exitPhase{maxAttempts: 20, maxConsecutiveFails: 5, failDelay: 300 * time.Millisecond}
	// Patient cleanup for a remainder that is still worth real money.
	cleanupExitPhase = exitPhase{maxAttempts: 15, maxConsecutiveFails: 10, failDelay: time.Second}
)

// Manager tracks positions and drives their exits. Exit checks run on every
// price update; a triggered exit claims the position under the lock and then
// sells on its own goroutine so the price feed is never blocked.
type Manager struct {
	venue  Venue
	cache  *pricecache.Cache
	events *datalog.Logger

	takeProfitPct float64
	stopLossPct   float64
	staleAfter    time.Duration

	// OnExitComplete, when set before the first position opens, receives a
	// copy of each position as it finishes closing.
	OnExitComplete func(Position)

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	mu        sync.Mutex
	positions map[string]*Position
	wg        sync.WaitGroup
}

func NewManager(venue Venue, cache *pricecache.Cache, events *datalog.Logger, params config.Params) *Manager {
	return &Manager{
		venue:         venue,
		cache:         cache,
		events:        events,
		takeProfitPct: params.TakeProfitPct,
		stopLossPct:   params.StopLossPct,
		staleAfter:    time.Duration(params.StalePositionSec * float64(time.Second)),
		now:           time.Now,
		sleep:         sleepCtx,
		positions:     make(map[string]*Position),
	}
}

// AddPosition registers a new holding and returns a copy of it.
func (m *Manager) AddPosition(direction coinbase.Direction, tokenID string, entryPrice, entryBid, shares float64) Position {
	p := newPosition(direction, tokenID, entryPrice, entryBid, shares, m.takeProfitPct, m.stopLossPct, m.now())

	m.mu.Lock()
	m.positions[p.ID] = p
	m.mu.Unlock()

	log.Printf("[info] position %s opened: %s %.2f @ $%.2f (TP $%.2f, SL $%.2f)",
		p.ID, direction, shares, entryPrice, p.TakeProfit, p.StopLoss)
	return *p
}

// Get returns a copy of the position with the given ID.
func (m *Manager) Get(positionID string) (Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[positionID]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// OpenPositions returns copies of all open positions, oldest first.
func (m *Manager) OpenPositions() []Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Position
	for _, p := range m.positions {
		if p.Status == StatusOpen {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// HasOpenPosition reports whether any open position holds tokenID.
func (m *Manager) HasOpenPosition(tokenID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.positions {
		if p.TokenID == tokenID && p.Status == StatusOpen {
			return true
		}
	}
	return false
}

// CheckExitConditions runs the exit checks for every open position on
// tokenID against a fresh best bid. Called on every price update.
//
// Priority per position: take profit, stop loss, then the stale path. A
// position that has gone staleAfter without hitting either level is marked
// stale and exits at the first bid one tick above entry, covering the spread
// cost. A stale position underwater keeps waiting for recovery or its stop.
func (m *Manager) CheckExitConditions(ctx context.Context, tokenID string, bestBid float64) {
	if bestBid <= 0 {
		return
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.positions {
		if p.TokenID != tokenID || p.Status != StatusOpen {
			continue
		}

		var reason ExitReason
		switch {
		case bestBid >= p.TakeProfit:
			reason = ExitTakeProfit
		case bestBid <= p.StopLoss:
			reason = ExitStopLoss
		default:
			if p.StaleSince.IsZero() && now.Sub(p.OpenedAt) >= m.staleAfter {
				p.StaleSince = now
				log.Printf("[info] position %s stale, holding for breakeven exit", p.ID)
			}
			if !p.StaleSince.IsZero() && bestBid >= p.EntryPrice+0.01 {
				reason = ExitStaleBreakeven
			}
		}
		if reason == "" {
			continue
		}

		p.Status = StatusClosing
		m.wg.Add(1)
		go m.runExit(ctx, p, reason, bestBid)
	}
}

// ManualExit closes the position with the given ID at market. Returns false
// when the position is unknown or already closing.
func (m *Manager) ManualExit(ctx context.Context, positionID string) bool {
	m.mu.Lock()
	p, ok := m.positions[positionID]
	if !ok || p.Status != StatusOpen {
		m.mu.Unlock()
		return false
	}
	p.Status = StatusClosing
	m.wg.Add(1)
	m.mu.Unlock()

	go m.runExit(ctx, p, ExitManual, 0)
	return true
}

// Wait blocks until all in-flight exits have finished. Used on shutdown.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// runExit sells the position down with aggressive FAK retries. The caller
// has already moved it to CLOSING under the lock.
func (m *Manager) runExit(ctx context.Context, p *Position, reason ExitReason, triggerBid float64) {
	defer m.wg.Done()

	spreadAtTrigger := m.spreadSnapshot(p.TokenID)
	log.Printf("[info] %s triggered for position %s, selling %.2f %s", reason, p.ID, p.Shares, p.Direction)

	remaining := p.Shares
	var fills []fillDetail
	remaining, fills = m.sellPhase(ctx, p, fastExitPhase, remaining, fills)

	if remaining > minSellableShares {
		bestBid := m.bestBid(ctx, p.TokenID)
		if remaining*bestBid >= dustMinDollars {
			remaining, fills = m.sellPhase(ctx, p, cleanupExitPhase, remaining, fills)
		}
		if remaining > minSellableShares && bestBid > 0 {
			m.placeDustSell(ctx, p, remaining, bestBid)
		}
	}

	var totalFilled, totalValue float64
	for _, f := range fills {
		totalFilled += f.Qty
		totalValue += f.Qty * f.Price
	}
	exitPrice := 0.0
	if totalFilled > 0 {
		exitPrice = totalValue / totalFilled
	} else {
		// Nothing sold; mark against the current bid so P&L stays honest.
		exitPrice = m.bestBid(ctx, p.TokenID)
	}

	now := m.now()
	m.mu.Lock()
	if totalFilled > 0 {
		p.Shares = totalFilled
	}
	p.ExitPrice = exitPrice
	p.ExitTime = now
	p.ExitReason = reason
	p.Status = StatusClosed
	closed := *p
	m.mu.Unlock()

	m.logExit(closed, fills, spreadAtTrigger, m.spreadSnapshot(p.TokenID), triggerBid)

	if cb := m.OnExitComplete; cb != nil {
		cb(closed)
	}
}

// sellPhase runs one round of the retry loop: fetch a fresh bid, FAK-sell
// the remainder, retry immediately on a partial fill, back off on failures.
func (m *Manager) sellPhase(ctx context.Context, p *Position, ph exitPhase, remaining float64, fills []fillDetail) (float64, []fillDetail) {
	attempt := 0
	consecutiveFails := 0

	for remaining > minSellableShares && attempt < ph.maxAttempts && consecutiveFails < ph.maxConsecutiveFails {
		if ctx.Err() != nil {
			break
		}
		attempt++

		bid := m.bestBid(ctx, p.TokenID)
		if bid <= 0 {
			consecutiveFails++
			m.sleep(ctx, ph.failDelay)
			continue
		}

		rcpt, err := m.venue.PlaceMarketSell(ctx, p.TokenID, remaining, bid)
		if err != nil {
			log.Printf("[warn] sell attempt for position %s failed: %v", p.ID, err)
		}
		if err == nil && rcpt.AnyFill() {
			filled, _ := rcpt.Filled.Float64()
			price, _ := rcpt.Price.Float64()
			fills = append(fills, fillDetail{Qty: filled, Price: price})
			remaining -= filled
			consecutiveFails = 0

			log.Printf("[info] sold %.2f %s @ $%.2f", filled, p.Direction, price)
			if remaining > minSellableShares {
				log.Printf("[info] %.2f shares unfilled, retrying sell", remaining)
			}
			continue
		}

		consecutiveFails++
		m.sleep(ctx, ph.failDelay)
	}
	return remaining, fills
}

// placeDustSell rests a GTC limit at the bid for a remainder too small to
// keep chasing. Best effort.
func (m *Manager) placeDustSell(ctx context.Context, p *Position, remaining, bestBid float64) {
	rcpt, err := m.venue.PlaceLimitSell(ctx, p.TokenID, remaining, bestBid)
	if err != nil {
		log.Printf("[warn] dust sell for position %s failed: %v", p.ID, err)
		return
	}
	if !rcpt.Success {
		log.Printf("[warn] dust sell for position %s rejected: %s", p.ID, rcpt.ErrorMsg)
		return
	}
	log.Printf("[info] resting GTC sell for %.2f dust shares %s @ $%.2f (~$%.2f)",
		remaining, p.Direction, bestBid, remaining*bestBid)
}

// bestBid returns the freshest known bid: websocket cache first, REST book
// as fallback, zero when neither has one.
func (m *Manager) bestBid(ctx context.Context, tokenID string) float64 {
	if m.cache != nil {
		if bid, ok := m.cache.BestBid(tokenID); ok {
			return bid
		}
	}
	bid, _, err := m.venue.BestPrices(ctx, tokenID)
	if err != nil {
		log.Printf("[warn] best bid lookup failed: %v", err)
		return 0
	}
	return bid
}

func (m *Manager) spreadSnapshot(tokenID string) *SpreadSnapshot {
	if m.cache == nil {
		return nil
	}
	snap, ok := m.cache.Get(tokenID)
	if !ok || snap.BestBid <= 0 || snap.BestAsk <= 0 {
		return nil
	}
	cents, _ := m.cache.SpreadCents(tokenID)
	return &SpreadSnapshot{
		TokenID:     tokenID,
		BestBid:     snap.BestBid,
		BestAsk:     snap.BestAsk,
		SpreadCents: cents,
	}
}

func (m *Manager) logExit(p Position, fills []fillDetail, atTrigger, atFill *SpreadSnapshot, triggerBid float64) {
	ev := ExitEvent{
		Type:            "exit",
		PositionID:      p.ID,
		Direction:       p.Direction.String(),
		TokenID:         p.TokenID,
		Reason:          p.ExitReason,
		EntryPrice:      p.EntryPrice,
		ExitPrice:       p.ExitPrice,
		Shares:          p.Shares,
		Fills:           fills,
		SpreadAtTrigger: atTrigger,
		SpreadAtFill:    atFill,
		TriggerBid:      triggerBid,
	}
	if p.ExitPrice > 0 && p.EntryPrice > 0 {
		ev.PnLDollars = p.PnL(p.ExitPrice)
		ev.PnLPct = p.PnLPct(p.ExitPrice)
	}
	if !p.StaleSince.IsZero() {
		ev.StaleForMs = p.ExitTime.Sub(p.StaleSince).Milliseconds()
	}
	m.events.Log(ev)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
