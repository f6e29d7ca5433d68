package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// EndReason says why a page view ended.
type EndReason string

const (
	EndSourceDone EndReason = "source ended"
	EndUnloaded   EndReason = "page unloaded"
	EndDuration   EndReason = "duration elapsed"
	EndCancelled  EndReason = "cancelled"
	EndFailed     EndReason = "source failed"
)

// Result captures the page view summary.
type Result struct {
	Records  int64
	Duration time.Duration
	End      EndReason
	Err      error // set only when End is EndFailed
}

// Runner feeds one page from one source.
type Runner struct {
	opt Options
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// Run streams the source into the page and returns when the page view ends.
// It does not unload the page; the caller decides what ending means.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	parent := ctx

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var deadline <-chan struct{}
	if r.opt.Duration > 0 {
		deadlineCtx, deadlineCancel := context.WithTimeout(ctx, r.opt.Duration)
		ctx = deadlineCtx
		deadline = deadlineCtx.Done()
		defer deadlineCancel()
	}

	go func() {
		select {
		case <-r.opt.Page.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	sink := &pacedSink{
		ctx:     ctx,
		inner:   r.opt.Page,
		limiter: r.opt.LimiterFactory(r.opt.RatePerSecond),
	}
	r.opt.Logger.Debug("page view started", "duration", r.opt.Duration, "rate", r.opt.RatePerSecond)
	err := r.opt.Source.Stream(ctx, sink)

	res := Result{
		Records:  atomic.LoadInt64(&sink.fed),
		Duration: time.Since(start),
	}
	switch {
	case closed(r.opt.Page.Done()):
		res.End = EndUnloaded
	case parent.Err() != nil:
		res.End = EndCancelled
	case closed(deadline):
		res.End = EndDuration
	case err != nil && !errors.Is(err, context.Canceled):
		res.End = EndFailed
		res.Err = err
	default:
		res.End = EndSourceDone
	}
	r.opt.Logger.Debug("page view ended", "reason", string(res.End), "records", res.Records)
	return res
}

func closed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// pacedSink delays each record until the limiter admits it. Records arriving
// after the page view ended are dropped.
type pacedSink struct {
	ctx     context.Context
	inner   Sink
	limiter *rate.Limiter
	fed     int64
}

func (s *pacedSink) Feed(data []byte) {
	if s.limiter != nil {
		if err := s.limiter.Wait(s.ctx); err != nil {
			return
		}
	}
	if s.ctx.Err() != nil {
		return
	}
	atomic.AddInt64(&s.fed, 1)
	s.inner.Feed(data)
}
