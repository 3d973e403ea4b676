package volbot

import (
	"bufio"
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"poly-volbot/internal/clob"
	"poly-volbot/internal/coinbase"
	"poly-volbot/internal/datalog"
)

func newTestExecutor(v *fakeVenue) (*Executor, *Manager) {
	m := newTestManager(v)
	e := NewExecutor(v, nil, m, nil, TokenPair{Up: "up-tok", Down: "down-tok"}, testParams())
	return e, m
}

func TestExecuteEntry(t *testing.T) {
	v := &fakeVenue{bid: 0.51, ask: 0.52}
	v.buyReceipts = []clob.Receipt{rcpt(19, 0.52)}
	e, m := newTestExecutor(v)

	res := e.ExecuteEntry(context.Background(), coinbase.DirectionUp)
	if !res.Success {
		t.Fatalf("entry failed: %s", res.ErrorMsg)
	}
	if res.FilledShares != 19 || res.FillPrice != 0.52 {
		t.Fatalf("fill mismatch: %+v", res)
	}
	if res.PartialFill {
		t.Fatalf("19 of ~19.2 shares is a full fill")
	}
	if res.Position == nil || res.Position.TokenID != "up-tok" {
		t.Fatalf("position not opened on up token: %+v", res.Position)
	}
	if !m.HasOpenPosition("up-tok") {
		t.Fatalf("manager does not track the new position")
	}
	if len(v.buys) != 1 || v.buys[0].price != 0.52 {
		t.Fatalf("buy must carry the observed ask as price hint: %+v", v.buys)
	}
}

func TestExecuteEntryDownUsesDownToken(t *testing.T) {
	v := &fakeVenue{bid: 0.47, ask: 0.48}
	v.buyReceipts = []clob.Receipt{rcpt(20, 0.48)}
	e, _ := newTestExecutor(v)

	res := e.ExecuteEntry(context.Background(), coinbase.DirectionDown)
	if !res.Success || v.buys[0].tokenID != "down-tok" {
		t.Fatalf("down signal must buy the down token: %+v", v.buys)
	}
}

func TestExecuteEntryPartialFill(t *testing.T) {
	v := &fakeVenue{bid: 0.51, ask: 0.52}
	v.buyReceipts = []clob.Receipt{rcpt(10, 0.52)}
	e, _ := newTestExecutor(v)

	res := e.ExecuteEntry(context.Background(), coinbase.DirectionUp)
	if !res.Success {
		t.Fatalf("entry failed: %s", res.ErrorMsg)
	}
	// $10 at $0.52 asks for ~19.2 shares; 10 is well under 95% of that.
	if !res.PartialFill {
		t.Fatalf("expected partial fill flag: %+v", res)
	}
	if res.Position == nil || res.Position.Shares != 10 {
		t.Fatalf("position must hold the filled size only: %+v", res.Position)
	}
}

func TestExecuteEntryNoAsks(t *testing.T) {
	v := &fakeVenue{bid: 0.51, ask: 0}
	e, m := newTestExecutor(v)

	res := e.ExecuteEntry(context.Background(), coinbase.DirectionUp)
	if res.Success {
		t.Fatalf("entry must fail without asks")
	}
	if res.ErrorMsg != "no asks available in orderbook" {
		t.Fatalf("error message: %q", res.ErrorMsg)
	}
	if len(v.buys) != 0 {
		t.Fatalf("no order may be placed without a price")
	}
	if m.HasOpenPosition("up-tok") {
		t.Fatalf("failed entry opened a position")
	}
}

func TestExecuteEntryRejected(t *testing.T) {
	v := &fakeVenue{bid: 0.51, ask: 0.52}
	v.buyReceipts = []clob.Receipt{{Success: false, ErrorMsg: "not enough balance"}}
	e, m := newTestExecutor(v)

	res := e.ExecuteEntry(context.Background(), coinbase.DirectionUp)
	if res.Success || res.ErrorMsg != "not enough balance" {
		t.Fatalf("rejection not surfaced: %+v", res)
	}
	if m.HasOpenPosition("up-tok") {
		t.Fatalf("rejected entry opened a position")
	}
}

func TestExecuteEntryWritesDatalogEvent(t *testing.T) {
	dir := t.TempDir()
	events := datalog.New(dir)

	v := &fakeVenue{bid: 0.51, ask: 0.52}
	v.buyReceipts = []clob.Receipt{rcpt(19, 0.52)}
	m := newTestManager(v)
	e := NewExecutor(v, nil, m, events, TokenPair{Up: "up-tok", Down: "down-tok"}, testParams())

	res := e.ExecuteEntry(context.Background(), coinbase.DirectionUp)
	if !res.Success {
		t.Fatalf("entry failed: %s", res.ErrorMsg)
	}
	if err := events.Close(); err != nil {
		t.Fatalf("close logger: %v", err)
	}

	var got EntryEvent
	found := false
	for _, line := range readLogLines(t, dir) {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(line), &head); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		if head.Type != "entry" {
			continue
		}
		if err := json.Unmarshal([]byte(line), &got); err != nil {
			t.Fatalf("decode entry event: %v", err)
		}
		found = true
	}
	if !found {
		t.Fatalf("no entry event in session log")
	}
	if got.PositionID != res.Position.ID {
		t.Fatalf("position id %q, want %q", got.PositionID, res.Position.ID)
	}
	if got.Direction != "up" || got.TokenID != "up-tok" {
		t.Fatalf("event side mismatch: %+v", got)
	}
	if got.Requested != 10 || got.Shares != 19 || got.FillPrice != 0.52 {
		t.Fatalf("event sizing mismatch: %+v", got)
	}
	if got.TakeProfit != res.Position.TakeProfit || got.StopLoss != res.Position.StopLoss {
		t.Fatalf("event levels mismatch: %+v vs %+v", got, res.Position)
	}
	if got.PartialFill {
		t.Fatalf("full fill flagged partial: %+v", got)
	}
}

func readLogLines(t *testing.T, dir string) []string {
	t.Helper()
	var lines []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".jsonl") {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				lines = append(lines, line)
			}
		}
		return sc.Err()
	})
	if err != nil {
		t.Fatalf("read session log: %v", err)
	}
	return lines
}

func TestExecuteEntryKilledWithoutFill(t *testing.T) {
	v := &fakeVenue{bid: 0.51, ask: 0.52}
	v.buyReceipts = []clob.Receipt{rcpt(0, 0)}
	e, m := newTestExecutor(v)

	res := e.ExecuteEntry(context.Background(), coinbase.DirectionUp)
	if res.Success {
		t.Fatalf("zero fill must not succeed")
	}
	if res.ErrorMsg != "order submitted but no fill received" {
		t.Fatalf("error message: %q", res.ErrorMsg)
	}
	if m.HasOpenPosition("up-tok") {
		t.Fatalf("unfilled entry opened a position")
	}
}
