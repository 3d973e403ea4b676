package clob

import (
	"encoding/json"
	"testing"
)

func TestTickSizeResp_UnmarshalNumber(t *testing.T) {
	var resp tickSizeResp
	if err := json.Unmarshal([]byte(`{"minimum_tick_size":0.01}`), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := string(resp.MinimumTickSize), "0.01"; got != want {
		t.Fatalf("minimum_tick_size mismatch: got %q want %q", got, want)
	}
}

func TestTickSizeResp_UnmarshalStringAndCanonicalize(t *testing.T) {
	var resp tickSizeResp
	if err := json.Unmarshal([]byte(`{"minimum_tick_size":"0.0100"}`), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := string(resp.MinimumTickSize), "0.01"; got != want {
		t.Fatalf("minimum_tick_size mismatch: got %q want %q", got, want)
	}
}

func TestOrderBookBestPrices_AscendingSides(t *testing.T) {
	book := &OrderBookSummary{
		Bids: []OrderSummary{{Price: "0.40"}, {Price: "0.45"}},
		Asks: []OrderSummary{{Price: "0.99"}, {Price: "0.47"}},
	}
	bid, ok := book.BestBid()
	if !ok || bid != 0.45 {
		t.Fatalf("best bid=%v ok=%v want 0.45", bid, ok)
	}
	ask, ok := book.BestAsk()
	if !ok || ask != 0.47 {
		t.Fatalf("best ask=%v ok=%v want 0.47", ask, ok)
	}
}

func TestOrderBookBestPrices_DescendingSides(t *testing.T) {
	book := &OrderBookSummary{
		Bids: []OrderSummary{{Price: "0.45"}, {Price: "0.40"}},
		Asks: []OrderSummary{{Price: "0.47"}, {Price: "0.99"}},
	}
	bid, _ := book.BestBid()
	ask, _ := book.BestAsk()
	if bid != 0.45 || ask != 0.47 {
		t.Fatalf("bid=%v ask=%v want 0.45/0.47", bid, ask)
	}
}

func TestOrderBookBestPrices_EmptySide(t *testing.T) {
	book := &OrderBookSummary{}
	if _, ok := book.BestBid(); ok {
		t.Fatalf("empty bids should report no price")
	}
	if _, ok := book.BestAsk(); ok {
		t.Fatalf("empty asks should report no price")
	}
}
