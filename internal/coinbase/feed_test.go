package coinbase

import (
	"fmt"
	"testing"
)

func newTestFeed(t *testing.T) (*Feed, *int64) {
	t.Helper()
	f := NewFeed(Options{
		TriggerThreshold: 0.0002,
		WindowMs:         500,
		CooldownMs:       2000,
	}, nil)
	now := int64(10_000)
	f.nowMs = func() int64 { return now }
	return f, &now
}

// drain collects queued signals synchronously so assertions need no
// goroutine coordination.
func (f *Feed) drain() []Signal {
	var out []Signal
	for {
		select {
		case sig := <-f.signals:
			out = append(out, sig)
		default:
			return out
		}
	}
}

func matchJSON(price, ts string) []byte {
	return []byte(fmt.Sprintf(`{"type":"match","price":%q,"time":%q}`, price, ts))
}

func TestFeedEmitsOnThresholdMove(t *testing.T) {
	f, _ := newTestFeed(t)

	f.handleMessage(matchJSON("50000.00", "2026-08-30T10:00:00.000000Z"))
	f.handleMessage(matchJSON("50011.00", "2026-08-30T10:00:00.250000Z")) // +0.022%

	sigs := f.drain()
	if len(sigs) != 1 {
		t.Fatalf("signals=%d want 1", len(sigs))
	}
	if sigs[0].Direction != DirectionUp {
		t.Fatalf("direction=%v want up", sigs[0].Direction)
	}
	if sigs[0].TickCount != 2 || len(sigs[0].Ticks) != 2 {
		t.Fatalf("tick snapshot missing: count=%d ticks=%d", sigs[0].TickCount, len(sigs[0].Ticks))
	}
}

func TestFeedEmitsDownDirection(t *testing.T) {
	f, _ := newTestFeed(t)

	f.handleMessage(matchJSON("50000.00", "2026-08-30T10:00:00Z"))
	f.handleMessage(matchJSON("49989.00", "2026-08-30T10:00:00.200Z"))

	sigs := f.drain()
	if len(sigs) != 1 || sigs[0].Direction != DirectionDown {
		t.Fatalf("expected one down signal, got %+v", sigs)
	}
}

func TestFeedBelowThresholdSilent(t *testing.T) {
	f, _ := newTestFeed(t)

	f.handleMessage(matchJSON("50000.00", "2026-08-30T10:00:00Z"))
	f.handleMessage(matchJSON("50005.00", "2026-08-30T10:00:00.200Z")) // +0.01%

	if sigs := f.drain(); len(sigs) != 0 {
		t.Fatalf("expected no signals, got %d", len(sigs))
	}
}

func TestFeedCooldownSuppressesSecondSignal(t *testing.T) {
	f, now := newTestFeed(t)

	f.handleMessage(matchJSON("50000.00", "2026-08-30T10:00:00Z"))
	f.handleMessage(matchJSON("50020.00", "2026-08-30T10:00:00.100Z"))

	*now += 500
	f.handleMessage(matchJSON("50045.00", "2026-08-30T10:00:00.300Z"))
	if sigs := f.drain(); len(sigs) != 1 {
		t.Fatalf("cooldown violated: signals=%d want 1", len(sigs))
	}

	*now += 2000
	f.handleMessage(matchJSON("50080.00", "2026-08-30T10:00:00.500Z"))
	if sigs := f.drain(); len(sigs) != 1 {
		t.Fatalf("expected signal after cooldown, got %d", len(sigs))
	}
}

func TestFeedPauseSuppressesEmissionNotIngestion(t *testing.T) {
	f, _ := newTestFeed(t)
	f.Pause()

	f.handleMessage(matchJSON("50000.00", "2026-08-30T10:00:00Z"))
	f.handleMessage(matchJSON("50020.00", "2026-08-30T10:00:00.100Z"))
	if sigs := f.drain(); len(sigs) != 0 {
		t.Fatalf("paused feed emitted %d signals", len(sigs))
	}
	if f.window.Len() != 2 {
		t.Fatalf("paused feed should keep ingesting, window len=%d", f.window.Len())
	}

	f.Resume()
	f.handleMessage(matchJSON("50040.00", "2026-08-30T10:00:00.200Z"))
	if sigs := f.drain(); len(sigs) != 1 {
		t.Fatalf("expected signal after resume, got %d", len(sigs))
	}
}

func TestFeedDropsMalformedMessages(t *testing.T) {
	f, _ := newTestFeed(t)

	f.handleMessage([]byte(`{"type":"match","price":"oops","time":"2026-08-30T10:00:00Z"}`))
	f.handleMessage([]byte(`{"type":"match","price":"50000","time":"not-a-time"}`))
	f.handleMessage([]byte(`{"type":"subscriptions"}`))
	f.handleMessage([]byte(`not json`))

	if f.window.Len() != 0 {
		t.Fatalf("malformed messages reached the window: len=%d", f.window.Len())
	}
}

func TestParseMatchFractionalSeconds(t *testing.T) {
	cases := []string{
		"2026-08-30T10:00:00Z",
		"2026-08-30T10:00:00.5Z",
		"2026-08-30T10:00:00.123456Z",
		"2026-08-30T10:00:00.123456789Z",
	}
	for _, ts := range cases {
		if _, _, ok := parseMatch(matchMessage{Type: "match", Price: "50000", Time: ts}); !ok {
			t.Fatalf("failed to parse timestamp %q", ts)
		}
	}
}
