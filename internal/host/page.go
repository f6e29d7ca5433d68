// Package host models the page side of a page view: a performance timeline
// that host adapters feed with relayed records and that the vitals collector
// reads through its timing facility and instrumentation stream.
package host

import (
	"sync"

	"github.com/torosent/vitalscope/internal/vitals"
	"github.com/torosent/vitalscope/internal/wire"
)

// Options describes which facilities the page exposes.
type Options struct {
	// NoTiming hides navigation and paint timing, as on a host without a
	// timing API.
	NoTiming bool
	// NoInstrumentation makes Subscribe fail with vitals.ErrUnavailable.
	NoInstrumentation bool
	// Unbuffered subscriptions only see entries recorded after Subscribe.
	Unbuffered bool
}

// Page is an in-process performance timeline for one page view.
type Page struct {
	opts Options

	mu        sync.Mutex
	loaded    bool
	waiters   map[int]func()
	nextID    int
	nav       *vitals.NavigationTiming
	paints    map[string]float64
	timeline  []vitals.Entry
	subs      map[int]*subscription
	malformed int
	unloaded  bool
	done      chan struct{}
}

// NewPage creates an empty page that has not loaded yet.
func NewPage(opts Options) *Page {
	return &Page{
		opts:    opts,
		waiters: make(map[int]func()),
		paints:  make(map[string]float64),
		subs:    make(map[int]*subscription),
		done:    make(chan struct{}),
	}
}

// Feed decodes raw relay data (one record or an array) and ingests it.
func (p *Page) Feed(data []byte) {
	records, malformed := wire.DecodeAll(data)
	if malformed > 0 {
		p.mu.Lock()
		p.malformed += malformed
		p.mu.Unlock()
	}
	for _, rec := range records {
		p.Ingest(rec)
	}
}

// Ingest records one timeline record.
func (p *Page) Ingest(rec wire.Record) {
	switch rec.Kind {
	case wire.KindNavigation:
		nav := rec.Navigation
		p.mu.Lock()
		p.nav = &nav
		p.mu.Unlock()
	case wire.KindPaint:
		p.mu.Lock()
		if _, ok := p.paints[rec.Paint.Name]; !ok {
			p.paints[rec.Paint.Name] = rec.Paint.StartTime
		}
		p.mu.Unlock()
	case wire.KindLoad:
		p.MarkLoaded()
	case wire.KindUnload:
		p.Unload()
	case wire.KindEntry:
		p.record(rec.Entry)
	}
}

// MarkLoaded signals load completion and runs pending OnLoad callbacks.
func (p *Page) MarkLoaded() {
	p.mu.Lock()
	if p.loaded {
		p.mu.Unlock()
		return
	}
	p.loaded = true
	waiters := make([]func(), 0, len(p.waiters))
	for _, fn := range p.waiters {
		waiters = append(waiters, fn)
	}
	p.waiters = make(map[int]func())
	p.mu.Unlock()

	for _, fn := range waiters {
		fn()
	}
}

// Unload ends the page view. Done is closed; later records are still
// accepted but nobody is expected to wait for them.
func (p *Page) Unload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unloaded {
		return
	}
	p.unloaded = true
	close(p.done)
}

// Done is closed when the page view ends.
func (p *Page) Done() <-chan struct{} {
	return p.done
}

// Malformed returns the number of relay records that could not be decoded.
func (p *Page) Malformed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.malformed
}

// LoadComplete implements vitals.TimingSource.
func (p *Page) LoadComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// OnLoad implements vitals.TimingSource.
func (p *Page) OnLoad(fn func()) func() {
	p.mu.Lock()
	if p.loaded {
		p.mu.Unlock()
		fn()
		return func() {}
	}
	id := p.nextID
	p.nextID++
	p.waiters[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.waiters, id)
	}
}

// Navigation implements vitals.TimingSource.
func (p *Page) Navigation() (vitals.NavigationTiming, bool) {
	if p.opts.NoTiming {
		return vitals.NavigationTiming{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nav == nil {
		return vitals.NavigationTiming{}, false
	}
	return *p.nav, true
}

// FirstContentfulPaint implements vitals.TimingSource.
func (p *Page) FirstContentfulPaint() (float64, bool) {
	if p.opts.NoTiming {
		return 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.paints[wire.FirstContentfulPaint]
	return v, ok
}

// Subscribe implements vitals.EntryStream. Unless the page is unbuffered,
// entries recorded before the call are delivered first, in order.
// Unsubscribe must not be called from inside fn.
func (p *Page) Subscribe(fn func(vitals.Entry)) (vitals.Subscription, error) {
	if p.opts.NoInstrumentation {
		return nil, vitals.ErrUnavailable
	}

	sub := &subscription{page: p, fn: fn, active: true}
	p.mu.Lock()
	sub.id = p.nextID
	p.nextID++
	p.subs[sub.id] = sub
	var backlog []vitals.Entry
	if !p.opts.Unbuffered {
		backlog = append(backlog, p.timeline...)
	}
	// Hold the subscription lock across the backlog so live entries queue
	// behind it.
	sub.mu.Lock()
	p.mu.Unlock()

	for _, e := range backlog {
		sub.fn(e)
	}
	sub.mu.Unlock()
	return sub, nil
}

func (p *Page) record(e vitals.Entry) {
	p.mu.Lock()
	p.timeline = append(p.timeline, e)
	subs := make([]*subscription, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	for _, s := range subs {
		s.deliver(e)
	}
}

type subscription struct {
	page   *Page
	id     int
	fn     func(vitals.Entry)
	mu     sync.Mutex
	active bool
}

func (s *subscription) deliver(e vitals.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.fn(e)
	}
}

// Unsubscribe waits for an in-flight delivery to finish, then stops delivery.
func (s *subscription) Unsubscribe() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()

	s.page.mu.Lock()
	delete(s.page.subs, s.id)
	s.page.mu.Unlock()
}
