package runner

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Sink receives raw timeline records.
type Sink interface {
	Feed(data []byte)
}

// Page is the sink a runner drives. Done is closed when the page view ends
// on its own, e.g. after an unload record.
type Page interface {
	Sink
	Done() <-chan struct{}
}

// Source streams timeline records into a sink.
type Source interface {
	Stream(ctx context.Context, sink Sink) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, sink Sink) error

func (f SourceFunc) Stream(ctx context.Context, sink Sink) error { return f(ctx, sink) }

// Options configure the Runner.
type Options struct {
	Source         Source                          // record source (required)
	Page           Page                            // page fed by the source (required)
	Duration       time.Duration                   // page lifetime cap (0 means until the source ends)
	RatePerSecond  float64                         // records per second pacing (0 means unpaced)
	Logger         *slog.Logger                    // optional
	LimiterFactory func(rps float64) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps float64) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one keeps replayed records evenly spaced.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}
