package marketws

import "testing"

func TestParsePriceChangeEvent(t *testing.T) {
	raw := []byte(`{
		"event_type": "price_change",
		"market": "0xabc",
		"price_changes": [
			{"asset_id": "tok1", "best_bid": "0.45", "best_ask": "0.47"},
			{"asset_id": "tok2", "best_bid": "0.53", "best_ask": "0.55"}
		]
	}`)
	ups := parseMessages(raw)
	if len(ups) != 2 {
		t.Fatalf("updates=%d want 2", len(ups))
	}
	if ups[0].AssetID != "tok1" || ups[0].BestBid != 0.45 || ups[0].BestAsk != 0.47 {
		t.Fatalf("first update mismatch: %+v", ups[0])
	}
	if ups[1].AssetID != "tok2" || ups[1].BestBid != 0.53 {
		t.Fatalf("second update mismatch: %+v", ups[1])
	}
}

func TestParseBookSnapshotAscendingBids(t *testing.T) {
	raw := []byte(`{
		"event_type": "book",
		"asset_id": "tok1",
		"bids": [{"price":"0.40","size":"10"},{"price":"0.45","size":"5"}],
		"asks": [{"price":"0.47","size":"8"},{"price":"0.52","size":"20"}]
	}`)
	ups := parseMessages(raw)
	if len(ups) != 1 {
		t.Fatalf("updates=%d want 1", len(ups))
	}
	if ups[0].BestBid != 0.45 || ups[0].BestAsk != 0.47 {
		t.Fatalf("best-of-book mismatch: %+v", ups[0])
	}
}

func TestParseBookSnapshotDescendingBids(t *testing.T) {
	raw := []byte(`{
		"asset_id": "tok1",
		"book": {
			"bids": [{"price":"0.45","size":"5"},{"price":"0.40","size":"10"}],
			"asks": [{"price":"0.52","size":"20"},{"price":"0.47","size":"8"}]
		}
	}`)
	ups := parseMessages(raw)
	if len(ups) != 1 {
		t.Fatalf("updates=%d want 1", len(ups))
	}
	if ups[0].BestBid != 0.45 || ups[0].BestAsk != 0.47 {
		t.Fatalf("sort detection failed: %+v", ups[0])
	}
}

func TestParseBatchedArray(t *testing.T) {
	raw := []byte(`[
		{"event_type":"price_change","price_changes":[{"asset_id":"tok1","best_bid":"0.45","best_ask":"0.47"}]},
		{"asset_id":"tok2","bids":[{"price":"0.30","size":"1"}],"asks":[{"price":"0.33","size":"1"}]}
	]`)
	ups := parseMessages(raw)
	if len(ups) != 2 {
		t.Fatalf("updates=%d want 2", len(ups))
	}
	if ups[1].AssetID != "tok2" || ups[1].BestBid != 0.30 || ups[1].BestAsk != 0.33 {
		t.Fatalf("batched snapshot mismatch: %+v", ups[1])
	}
}

func TestParseSingleSideTrade(t *testing.T) {
	buy := parseMessages([]byte(`{"asset_id":"tok1","price":"0.46","side":"BUY"}`))
	if len(buy) != 1 || buy[0].BestBid != 0.46 || buy[0].BestAsk != 0 {
		t.Fatalf("buy update mismatch: %+v", buy)
	}
	sell := parseMessages([]byte(`{"asset_id":"tok1","price":"0.48","side":"sell"}`))
	if len(sell) != 1 || sell[0].BestAsk != 0.48 || sell[0].BestBid != 0 {
		t.Fatalf("sell update mismatch: %+v", sell)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{}`),
		[]byte(`{"asset_id":"tok1","price":"-1","side":"BUY"}`),
		[]byte(`{"asset_id":"tok1","price":"0.46","side":"HOLD"}`),
		[]byte(`{"bids":[{"price":"0.40","size":"1"}]}`),
		[]byte(``),
	}
	for _, raw := range cases {
		if ups := parseMessages(raw); len(ups) != 0 {
			t.Fatalf("expected no updates for %q, got %+v", raw, ups)
		}
	}
}
