package marketws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"poly-volbot/internal/pricecache"
)

const DefaultURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

const pingInterval = 10 * time.Second

// Positions hang off these prices, so reconnect fast and at a steady rate.
const reconnectDelay = 1 * time.Second

type subscribeRequest struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids"`
}

// Stream subscribes to the market channel for a fixed set of tokens and
// writes every top-of-book change through to the price cache. OnPrice, when
// set, fires after the cache write with the merged snapshot.
type Stream struct {
	url      string
	assetIDs []string
	cache    *pricecache.Cache

	// OnPrice receives the token and its post-update best bid/ask.
	OnPrice func(assetID string, bestBid, bestAsk float64)

	// OnConnect fires after each session is established, OnDisconnect
	// after a session drops and a reconnect is pending. Neither fires on
	// context cancellation.
	OnConnect    func()
	OnDisconnect func()

	mu        sync.Mutex
	connected bool
}

// NewStream returns a stream for the given tokens. url may be empty for the
// production endpoint.
func NewStream(url string, assetIDs []string, cache *pricecache.Cache) *Stream {
	if url == "" {
		url = DefaultURL
	}
	return &Stream{url: url, assetIDs: append([]string(nil), assetIDs...), cache: cache}
}

// Connected reports whether a session is currently established.
func (s *Stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Stream) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

// Run connects and blocks until ctx is cancelled, reconnecting after a
// fixed delay on any failure.
func (s *Stream) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			log.Printf("[warn] market ws dial: %v", err)
			sleepCtx(ctx, reconnectDelay)
			continue
		}

		s.setConnected(true)
		if s.OnConnect != nil {
			s.OnConnect()
		}
		if err := s.runSession(ctx, conn); err != nil && ctx.Err() == nil {
			log.Printf("[warn] market ws: %v", err)
		}
		s.setConnected(false)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		if s.OnDisconnect != nil {
			s.OnDisconnect()
		}
		sleepCtx(ctx, reconnectDelay)
	}
}

func (s *Stream) runSession(ctx context.Context, conn *websocket.Conn) error {
	sub := subscribeRequest{Type: "market", AssetIDs: s.assetIDs}
	subBytes, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("market subscribe marshal: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, subBytes); err != nil {
		return fmt.Errorf("market subscribe write: %w", err)
	}

	var writeMu sync.Mutex
	stop := make(chan struct{})
	var stopOnce sync.Once
	stopAll := func() { stopOnce.Do(func() { close(stop) }) }

	go func() {
		defer stopAll()
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-t.C:
				writeMu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
				werr := conn.WriteMessage(websocket.TextMessage, []byte("PING"))
				writeMu.Unlock()
				if werr != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		typ, raw, err := conn.ReadMessage()
		if err != nil {
			stopAll()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("market ws read: %w", err)
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		if len(raw) == 0 || string(raw) == "PONG" || string(raw) == "PING" {
			continue
		}
		s.apply(parseMessages(raw))
	}
}

func (s *Stream) apply(updates []PriceUpdate) {
	for _, u := range updates {
		if s.cache != nil {
			s.cache.Update(u.AssetID, u.BestBid, u.BestAsk)
		}
		if s.OnPrice != nil {
			bid, ask := u.BestBid, u.BestAsk
			if s.cache != nil {
				if snap, ok := s.cache.Get(u.AssetID); ok {
					bid, ask = snap.BestBid, snap.BestAsk
				}
			}
			s.OnPrice(u.AssetID, bid, ask)
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
