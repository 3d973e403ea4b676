package datalog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunFilePath(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 1, 2, 0, time.UTC)
	got := RunFilePath("data", now)
	want := filepath.Join("data", "2026-08-30", "run-2026-08-30T18-01-02.jsonl")
	if got != want {
		t.Fatalf("path mismatch: got %q want %q", got, want)
	}
}

func TestLoggerWritesEvents(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	type event struct {
		Type  string `json:"type"`
		Value int    `json:"value"`
	}
	l.Log(event{Type: "signal", Value: 1})
	l.Log(event{Type: "exit", Value: 2})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var path string
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && strings.HasSuffix(p, ".jsonl") {
			path = p
		}
		return err
	})
	if err != nil || path == "" {
		t.Fatalf("no jsonl file written (err=%v)", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var types []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		types = append(types, ev.Type)
	}
	if len(types) != 2 || types[0] != "signal" || types[1] != "exit" {
		t.Fatalf("events mismatch: %v", types)
	}
}

func TestNilLoggerIsNoOp(t *testing.T) {
	var l *Logger
	l.Log("anything")
	if err := l.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
	if l2 := New(""); l2 != nil {
		t.Fatalf("empty base dir should disable logging")
	}
}
