package marketws

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// PriceUpdate is a normalized top-of-book change for one token. A zero side
// means the message did not carry that side.
type PriceUpdate struct {
	AssetID string
	BestBid float64
	BestAsk float64
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type marketMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`

	// Book snapshots arrive either with top-level sides or nested under
	// "book" depending on the endpoint revision.
	Bids []bookLevel `json:"bids"`
	Asks []bookLevel `json:"asks"`
	Book *struct {
		Bids []bookLevel `json:"bids"`
		Asks []bookLevel `json:"asks"`
	} `json:"book"`

	PriceChanges []struct {
		AssetID string `json:"asset_id"`
		BestBid string `json:"best_bid"`
		BestAsk string `json:"best_ask"`
	} `json:"price_changes"`

	// Single trade-price updates carry price plus the aggressor side.
	Price string `json:"price"`
	Side  string `json:"side"`
}

// parseMessages normalizes a raw market-channel frame into price updates.
// Frames may be single objects or arrays of objects; unrecognized shapes
// yield nothing.
func parseMessages(raw []byte) []PriceUpdate {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	if raw[0] == '[' {
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil {
			return nil
		}
		var out []PriceUpdate
		for _, p := range parts {
			out = append(out, parseMessages(p)...)
		}
		return out
	}

	var msg marketMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil
	}
	return parseOne(msg)
}

func parseOne(msg marketMessage) []PriceUpdate {
	if len(msg.PriceChanges) > 0 {
		var out []PriceUpdate
		for _, pc := range msg.PriceChanges {
			u := PriceUpdate{
				AssetID: pc.AssetID,
				BestBid: parsePrice(pc.BestBid),
				BestAsk: parsePrice(pc.BestAsk),
			}
			if u.AssetID != "" && (u.BestBid > 0 || u.BestAsk > 0) {
				out = append(out, u)
			}
		}
		return out
	}

	bids, asks := msg.Bids, msg.Asks
	if msg.Book != nil {
		bids, asks = msg.Book.Bids, msg.Book.Asks
	}
	if len(bids) > 0 || len(asks) > 0 {
		if msg.AssetID == "" {
			return nil
		}
		u := PriceUpdate{
			AssetID: msg.AssetID,
			BestBid: bestOfSide(bids, true),
			BestAsk: bestOfSide(asks, false),
		}
		if u.BestBid > 0 || u.BestAsk > 0 {
			return []PriceUpdate{u}
		}
		return nil
	}

	if msg.Price != "" && msg.AssetID != "" {
		price := parsePrice(msg.Price)
		if price <= 0 {
			return nil
		}
		switch strings.ToUpper(strings.TrimSpace(msg.Side)) {
		case "BUY":
			return []PriceUpdate{{AssetID: msg.AssetID, BestBid: price}}
		case "SELL":
			return []PriceUpdate{{AssetID: msg.AssetID, BestAsk: price}}
		}
	}
	return nil
}

// bestOfSide picks the best price from a book side without assuming the sort
// order: snapshots have arrived both ascending and descending, so compare
// the two ends.
func bestOfSide(levels []bookLevel, isBid bool) float64 {
	if len(levels) == 0 {
		return 0
	}
	first := parsePrice(levels[0].Price)
	last := parsePrice(levels[len(levels)-1].Price)
	if first <= 0 {
		return last
	}
	if last <= 0 {
		return first
	}
	if isBid {
		if first > last {
			return first
		}
		return last
	}
	if first < last {
		return first
	}
	return last
}

func parsePrice(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}
