package volbot

import (
	"poly-volbot/internal/coinbase"
	"poly-volbot/internal/config"
)

// Typed records written to the session data log. Field names are stable so
// downstream analysis can replay sessions across versions.

// SpreadSnapshot captures one token's top of book at a moment of interest.
type SpreadSnapshot struct {
	TokenID     string  `json:"token_id"`
	BestBid     float64 `json:"best_bid"`
	BestAsk     float64 `json:"best_ask"`
	SpreadCents float64 `json:"spread_cents"`
}

type SessionStartEvent struct {
	Type   string           `json:"type"` // "session_start"
	Config config.Params    `json:"config"`
	Market config.MarketMap `json:"market"`
}

// SignalEvent is written for every volatility signal, executed or not.
// Outcome is one of executed, skipped_disabled, skipped_position_open,
// skipped_spread_wide, entry_failed.
type SignalEvent struct {
	Type         string          `json:"type"` // "signal"
	Direction    string          `json:"direction"`
	Outcome      string          `json:"outcome"`
	PctChange    float64         `json:"pct_change"`
	Threshold    float64         `json:"threshold"`
	WindowTicks  []coinbase.Tick `json:"window_ticks"`
	SignalTimeMs int64           `json:"signal_time_ms"`
	Spread       *SpreadSnapshot `json:"polymarket_spread,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// EntryEvent is written once per opened position, whether the entry came
// from a signal or a manual command.
type EntryEvent struct {
	Type        string  `json:"type"` // "entry"
	PositionID  string  `json:"position_id"`
	Direction   string  `json:"direction"`
	TokenID     string  `json:"token_id"`
	Requested   float64 `json:"requested_dollars"`
	FillPrice   float64 `json:"fill_price"`
	Shares      float64 `json:"shares"`
	TakeProfit  float64 `json:"take_profit"`
	StopLoss    float64 `json:"stop_loss"`
	PartialFill bool    `json:"partial_fill,omitempty"`
}

type fillDetail struct {
	Qty   float64 `json:"qty"`
	Price float64 `json:"price"`
}

type ExitEvent struct {
	Type            string          `json:"type"` // "exit"
	PositionID      string          `json:"position_id"`
	Direction       string          `json:"direction"`
	TokenID         string          `json:"token_id"`
	Reason          ExitReason      `json:"reason"`
	EntryPrice      float64         `json:"entry_price"`
	ExitPrice       float64         `json:"exit_price"`
	Shares          float64         `json:"shares"`
	PnLDollars      float64         `json:"pnl_dollars"`
	PnLPct          float64         `json:"pnl_pct"`
	Fills           []fillDetail    `json:"fill_details"`
	SpreadAtTrigger *SpreadSnapshot `json:"polymarket_spread_at_trigger,omitempty"`
	SpreadAtFill    *SpreadSnapshot `json:"polymarket_spread_at_fill,omitempty"`
	TriggerBid      float64         `json:"trigger_bid,omitempty"`

	// StaleForMs is how long the position waited armed for a breakeven
	// exit before closing. Zero for positions that never went stale.
	StaleForMs int64 `json:"stale_for_ms,omitempty"`
}

type SessionEndEvent struct {
	Type          string  `json:"type"` // "session_end"
	TotalPnL      float64 `json:"total_realized_pnl"`
	TradeCount    int     `json:"trade_count"`
	OpenRemaining int     `json:"open_positions_remaining"`
}
