package marketws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newWsServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitEvent(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestStreamConnectionCallbacks(t *testing.T) {
	hold := make(chan struct{})
	url := newWsServer(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage() // subscription
		<-hold
		_ = conn.Close()
	})

	connects := make(chan struct{}, 4)
	disconnects := make(chan struct{}, 4)
	s := NewStream(url, []string{"1"}, nil)
	s.OnConnect = func() { connects <- struct{}{} }
	s.OnDisconnect = func() { disconnects <- struct{}{} }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitEvent(t, connects, "connect")
	if !s.Connected() {
		t.Fatalf("Connected() false during live session")
	}

	close(hold)
	waitEvent(t, disconnects, "disconnect")
	if s.Connected() {
		t.Fatalf("Connected() true after session dropped")
	}

	// The stream redials after the fixed delay.
	waitEvent(t, connects, "reconnect")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return on cancel")
	}
}
