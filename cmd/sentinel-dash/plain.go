package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"sentinel/pkg/protocol"
	"sentinel/pkg/watch"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// plainPrinter streams the session as text lines for pipes and log files.
// It is a watch.Recorder, so feed lines arrive in the order they were appended.
type plainPrinter struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

func newPlainPrinter(w io.Writer) *plainPrinter {
	return &plainPrinter{w: w, now: time.Now}
}

// Record implements watch.Recorder.
func (p *plainPrinter) Record(_ context.Context, kind, uiStatus, text string) error {
	switch kind {
	case protocol.EntryLog:
		return p.printf("%s", text)
	case protocol.EntryTransition:
		return p.printf("== %s", text)
	case protocol.EntryReset:
		return p.printf("== reset to %s (%s)", uiStatus, text)
	}
	return nil
}

func (p *plainPrinter) printf(format string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.w, "%s "+format+"\n", append([]any{p.now().Format(time.TimeOnly)}, args...)...)
	return err
}

// runPlain reports backend connectivity changes until the session stops.
// Feed lines are printed by the plainPrinter recorder.
func runPlain(ctx context.Context, updates <-chan watch.View, p *plainPrinter) error {
	connected := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-updates:
			if !ok {
				return nil
			}
			if v.LastPoll.IsZero() || v.Connected() == connected {
				continue
			}
			connected = v.Connected()
			if connected {
				_ = p.printf("-- backend online")
			} else {
				_ = p.printf("-- backend offline: %v", v.PollErr)
			}
		}
	}
}
