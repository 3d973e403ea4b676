package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultURL = "wss://ws-feed.exchange.coinbase.com"

const DefaultProduct = "BTC-USD"

// reconnectDelay is deliberately fixed: the volatility window is only half a
// second, so growing the delay just extends blindness after a drop.
const reconnectDelay = 1 * time.Second

// Direction is the side of a detected move.
type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "unknown"
	}
}

// Signal is a detected volatility move on the reference feed.
type Signal struct {
	Direction Direction
	PctChange float64
	TickCount int
	AtMs      int64

	// Ticks is the window contents at detection time, oldest first.
	Ticks []Tick
}

// Options configures a Feed. Zero values take defaults.
type Options struct {
	URL     string
	Product string

	// TriggerThreshold is the absolute fractional move that fires a signal.
	TriggerThreshold float64
	WindowMs         int64
	CooldownMs       int64

	QueueSize int
}

func (o Options) withDefaults() Options {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	if o.Product == "" {
		o.Product = DefaultProduct
	}
	if o.TriggerThreshold <= 0 {
		o.TriggerThreshold = 0.00015
	}
	if o.WindowMs <= 0 {
		o.WindowMs = 500
	}
	if o.CooldownMs <= 0 {
		o.CooldownMs = 2000
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	return o
}

type subscribeRequest struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

type matchMessage struct {
	Type  string `json:"type"`
	Price string `json:"price"`
	Time  string `json:"time"`
}

// Feed streams Coinbase trade prints, maintains the rolling window, and
// delivers volatility signals to a handler on a dedicated consumer
// goroutine. Signal delivery never blocks the read loop: when the consumer
// falls behind, new signals are dropped.
type Feed struct {
	opts    Options
	window  *Window
	handler func(Signal)

	signals chan Signal

	// OnConnect fires after each session is established, OnDisconnect
	// after a session drops and a reconnect is pending. Neither fires on
	// context cancellation.
	OnConnect    func()
	OnDisconnect func()

	mu           sync.Mutex
	paused       bool
	connected    bool
	lastSignalMs int64
	lastSignal   *Signal
	lastPriceVal float64

	nowMs func() int64
}

// NewFeed returns a feed that calls handler for every emitted signal.
func NewFeed(opts Options, handler func(Signal)) *Feed {
	opts = opts.withDefaults()
	return &Feed{
		opts:    opts,
		window:  NewWindow(opts.WindowMs),
		handler: handler,
		signals: make(chan Signal, opts.QueueSize),
		nowMs:   func() int64 { return time.Now().UnixMilli() },
	}
}

// Pause stops signal emission. Ticks keep flowing into the window so the
// detector resumes with warm state.
func (f *Feed) Pause() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

// Resume re-enables signal emission.
func (f *Feed) Resume() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
}

// Paused reports whether emission is suppressed.
func (f *Feed) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

// LastSignal returns the most recently emitted signal, or ok=false.
func (f *Feed) LastSignal() (Signal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastSignal == nil {
		return Signal{}, false
	}
	return *f.lastSignal, true
}

// Connected reports whether a session is currently established.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *Feed) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

// LastPrice returns the most recent trade price seen, or ok=false.
func (f *Feed) LastPrice() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastPriceVal <= 0 {
		return 0, false
	}
	return f.lastPriceVal, true
}

// Run connects to the feed and blocks until ctx is cancelled, reconnecting
// on any error after a fixed delay. The window and signal cooldown reset on
// every (re)connect so a gap in the stream cannot fabricate a move.
func (f *Feed) Run(ctx context.Context) {
	go f.consumeSignals(ctx)

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.opts.URL, nil)
		if err != nil {
			log.Printf("[warn] coinbase dial: %v", err)
			sleepCtx(ctx, reconnectDelay)
			continue
		}

		f.window.Clear()
		f.mu.Lock()
		f.lastSignalMs = 0
		f.mu.Unlock()

		f.setConnected(true)
		if f.OnConnect != nil {
			f.OnConnect()
		}
		if err := f.readLoop(ctx, conn); err != nil && ctx.Err() == nil {
			log.Printf("[warn] coinbase stream: %v", err)
		}
		f.setConnected(false)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		if f.OnDisconnect != nil {
			f.OnDisconnect()
		}
		sleepCtx(ctx, reconnectDelay)
	}
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) error {
	sub := subscribeRequest{
		Type:       "subscribe",
		ProductIDs: []string{f.opts.Product},
		Channels:   []string{"matches"},
	}
	subBytes, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("coinbase subscribe marshal: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, subBytes); err != nil {
		return fmt.Errorf("coinbase subscribe write: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("coinbase read: %w", err)
		}
		f.handleMessage(raw)
	}
}

func (f *Feed) handleMessage(raw []byte) {
	var msg matchMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Type != "match" && msg.Type != "last_match" {
		return
	}

	price, timeMs, ok := parseMatch(msg)
	if !ok {
		return
	}

	f.mu.Lock()
	f.lastPriceVal = price
	f.mu.Unlock()

	f.window.Add(timeMs, price)
	f.evaluate()
}

// parseMatch extracts the trade price and timestamp. Malformed prints are
// dropped rather than tearing down the connection.
func parseMatch(msg matchMessage) (price float64, timeMs int64, ok bool) {
	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil || price <= 0 {
		return 0, 0, false
	}
	ts, err := time.Parse(time.RFC3339Nano, msg.Time)
	if err != nil {
		return 0, 0, false
	}
	return price, ts.UnixMilli(), true
}

func (f *Feed) evaluate() {
	pct, ok := f.window.PctChange()
	if !ok {
		return
	}
	if pct < f.opts.TriggerThreshold && pct > -f.opts.TriggerThreshold {
		return
	}

	now := f.nowMs()

	f.mu.Lock()
	if f.paused || (f.lastSignalMs != 0 && now-f.lastSignalMs < f.opts.CooldownMs) {
		f.mu.Unlock()
		return
	}
	f.lastSignalMs = now

	sig := Signal{
		Direction: DirectionUp,
		PctChange: pct,
		TickCount: f.window.Len(),
		AtMs:      now,
		Ticks:     f.window.Ticks(),
	}
	if pct < 0 {
		sig.Direction = DirectionDown
	}
	f.lastSignal = &sig
	f.mu.Unlock()

	select {
	case f.signals <- sig:
	default:
		log.Printf("[warn] signal queue full, dropping %s move of %.5f%%", sig.Direction, pct*100)
	}
}

func (f *Feed) consumeSignals(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-f.signals:
			if f.handler != nil {
				f.handler(sig)
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
