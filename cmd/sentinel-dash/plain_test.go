package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sentinel/pkg/protocol"
	"sentinel/pkg/reconcile"
	"sentinel/pkg/watch"
)

func fixedPrinter(buf *bytes.Buffer) *plainPrinter {
	p := newPlainPrinter(buf)
	p.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return p
}

func TestPlainPrinterRecord(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		uiStatus string
		text     string
		want     string
	}{
		{"log line", protocol.EntryLog, "BLOCKED", reconcile.LineCall, "09:30:00 " + reconcile.LineCall + "\n"},
		{"transition", protocol.EntryTransition, "BLOCKED", "IDLE -> BLOCKED", "09:30:00 == IDLE -> BLOCKED\n"},
		{"reset", protocol.EntryReset, "IDLE", "auto", "09:30:00 == reset to IDLE (auto)\n"},
		{"unknown kind", "other", "IDLE", "ignored", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := fixedPrinter(&buf)

			if err := p.Record(context.Background(), tt.kind, tt.uiStatus, tt.text); err != nil {
				t.Fatalf("Record: %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunPlainReportsConnectivityChanges(t *testing.T) {
	var buf bytes.Buffer
	p := fixedPrinter(&buf)

	updates := make(chan watch.View, 5)
	now := time.Now()
	updates <- watch.View{}
	updates <- watch.View{LastPoll: now}
	updates <- watch.View{LastPoll: now, PollErr: errors.New("connection refused")}
	updates <- watch.View{LastPoll: now, PollErr: errors.New("connection refused")}
	updates <- watch.View{LastPoll: now}
	close(updates)

	if err := runPlain(context.Background(), updates, p); err != nil {
		t.Fatalf("runPlain: %v", err)
	}

	want := "09:30:00 -- backend offline: connection refused\n09:30:00 -- backend online\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRunPlainStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- runPlain(ctx, make(chan watch.View), newPlainPrinter(&bytes.Buffer{})) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runPlain: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runPlain did not return after cancel")
	}
}

func TestIsTerminal(t *testing.T) {
	if isTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
	if !strings.Contains(newRootCmd().Flags().Lookup("plain").Usage, "text") {
		t.Error("--plain should describe the text fallback")
	}
}
