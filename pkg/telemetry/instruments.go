package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments are the counters the session loop feeds.
type Instruments struct {
	polls       metric.Int64Counter
	pollErrors  metric.Int64Counter
	stale       metric.Int64Counter
	logLines    metric.Int64Counter
	transitions metric.Int64Counter
}

// NewInstruments creates the console's counters on the global meter
// provider. It must run after Setup to export anything.
func NewInstruments() (*Instruments, error) {
	return newInstruments(otel.Meter(ScopeName))
}

func newInstruments(meter metric.Meter) (*Instruments, error) {
	var (
		in  Instruments
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&in.polls, "sentinel.polls", "Status fetches completed", "{poll}"},
		{&in.pollErrors, "sentinel.poll_errors", "Status fetches that failed and were swallowed", "{poll}"},
		{&in.stale, "sentinel.stale_snapshots", "Fetch results dropped because a newer one was already applied", "{snapshot}"},
		{&in.logLines, "sentinel.log_lines", "Lines appended to the log feed", "{line}"},
		{&in.transitions, "sentinel.transitions", "UI status transitions", "{transition}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, err
		}
	}
	return &in, nil
}

// Poll counts a completed fetch, successful or not.
func (in *Instruments) Poll(ctx context.Context, err error) {
	if in == nil {
		return
	}
	in.polls.Add(ctx, 1)
	if err != nil {
		in.pollErrors.Add(ctx, 1)
	}
}

// Stale counts a fetch result that arrived after a newer one.
func (in *Instruments) Stale(ctx context.Context) {
	if in == nil {
		return
	}
	in.stale.Add(ctx, 1)
}

// LogLine counts an appended feed line.
func (in *Instruments) LogLine(ctx context.Context) {
	if in == nil {
		return
	}
	in.logLines.Add(ctx, 1)
}

// Transition counts a UI status change.
func (in *Instruments) Transition(ctx context.Context, from, to string) {
	if in == nil {
		return
	}
	in.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}
