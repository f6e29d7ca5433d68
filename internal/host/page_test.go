package host

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/torosent/vitalscope/internal/vitals"
	"github.com/torosent/vitalscope/internal/wire"
)

func TestPageTimingFacility(t *testing.T) {
	p := NewPage(Options{})
	if _, ok := p.Navigation(); ok {
		t.Fatal("navigation should be missing before it is recorded")
	}

	p.Feed([]byte(`{"entryType":"navigation","requestStart":10,"responseStart":250}`))
	p.Feed([]byte(`{"entryType":"paint","name":"first-paint","startTime":300}`))
	p.Feed([]byte(`{"entryType":"paint","name":"first-contentful-paint","startTime":420}`))
	p.Feed([]byte(`{"entryType":"paint","name":"first-contentful-paint","startTime":999}`))

	nav, ok := p.Navigation()
	if !ok || nav.TTFB() != 240 {
		t.Fatalf("navigation = %+v, %v", nav, ok)
	}
	fcp, ok := p.FirstContentfulPaint()
	if !ok || fcp != 420 {
		t.Fatalf("fcp = %v, %v; first paint entry wins", fcp, ok)
	}
}

func TestPageNoTiming(t *testing.T) {
	p := NewPage(Options{NoTiming: true})
	p.Feed([]byte(`{"entryType":"navigation","requestStart":10,"responseStart":250}`))
	if _, ok := p.Navigation(); ok {
		t.Fatal("timing should be hidden")
	}
	if _, ok := p.FirstContentfulPaint(); ok {
		t.Fatal("paint should be hidden")
	}
}

func TestPageOnLoad(t *testing.T) {
	p := NewPage(Options{})
	calls := 0
	cancelled := 0
	p.OnLoad(func() { calls++ })
	cancel := p.OnLoad(func() { cancelled++ })
	cancel()

	if p.LoadComplete() {
		t.Fatal("page should not be loaded yet")
	}
	p.Feed([]byte(`{"kind":"load"}`))
	p.MarkLoaded()

	if calls != 1 || cancelled != 0 {
		t.Fatalf("calls=%d cancelled=%d", calls, cancelled)
	}

	late := 0
	p.OnLoad(func() { late++ })
	if late != 1 {
		t.Fatal("OnLoad after load should run immediately")
	}
}

func TestPageSubscribeBuffered(t *testing.T) {
	p := NewPage(Options{})
	p.Ingest(wire.Record{Kind: wire.KindEntry, Entry: vitals.Entry{Type: vitals.EntryLargestContentfulPaint, StartTime: 1}})
	p.Ingest(wire.Record{Kind: wire.KindEntry, Entry: vitals.Entry{Type: vitals.EntryLayoutShift, Value: 0.1}})

	var got []vitals.Entry
	sub, err := p.Subscribe(func(e vitals.Entry) { got = append(got, e) })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	p.Ingest(wire.Record{Kind: wire.KindEntry, Entry: vitals.Entry{Type: vitals.EntryFirstInput, StartTime: 5, ProcessingStart: 9}})
	sub.Unsubscribe()
	p.Ingest(wire.Record{Kind: wire.KindEntry, Entry: vitals.Entry{Type: vitals.EntryLayoutShift, Value: 0.2}})

	if len(got) != 3 {
		t.Fatalf("delivered %d entries, want 3", len(got))
	}
	if got[0].Type != vitals.EntryLargestContentfulPaint || got[2].Type != vitals.EntryFirstInput {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestPageSubscribeUnbuffered(t *testing.T) {
	p := NewPage(Options{Unbuffered: true})
	p.Feed([]byte(`{"entryType":"layout-shift","value":0.1}`))

	count := 0
	sub, err := p.Subscribe(func(vitals.Entry) { count++ })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	p.Feed([]byte(`{"entryType":"layout-shift","value":0.1}`))

	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestPageNoInstrumentation(t *testing.T) {
	p := NewPage(Options{NoInstrumentation: true})
	_, err := p.Subscribe(func(vitals.Entry) {})
	if !errors.Is(err, vitals.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestPageUnsubscribeWaitsForDelivery(t *testing.T) {
	p := NewPage(Options{})
	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	delivered := 0

	sub, _ := p.Subscribe(func(vitals.Entry) {
		close(started)
		<-release
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	go p.Feed([]byte(`{"entryType":"layout-shift","value":0.1}`))
	<-started

	unsubscribed := make(chan struct{})
	go func() {
		sub.Unsubscribe()
		close(unsubscribed)
	}()

	select {
	case <-unsubscribed:
		t.Fatal("Unsubscribe returned while a delivery was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-unsubscribed

	mu.Lock()
	defer mu.Unlock()
	if delivered != 1 {
		t.Fatalf("delivered = %d", delivered)
	}
}

func TestPageMalformedAndUnload(t *testing.T) {
	p := NewPage(Options{})
	p.Feed([]byte(`garbage`))
	p.Feed([]byte(`[{"kind":"load"},{"nope":1}]`))
	if p.Malformed() != 2 {
		t.Fatalf("malformed = %d, want 2", p.Malformed())
	}
	if !p.LoadComplete() {
		t.Fatal("load record in batch should be applied")
	}

	p.Unload()
	p.Unload()
	select {
	case <-p.Done():
	default:
		t.Fatal("Done should be closed after Unload")
	}
}

func TestPageUnloadRecord(t *testing.T) {
	p := NewPage(Options{})
	p.Feed([]byte(`{"kind":"unload"}`))
	select {
	case <-p.Done():
	default:
		t.Fatal("unload record should end the page view")
	}
}

func TestPageWithCollector(t *testing.T) {
	p := NewPage(Options{})
	c := vitals.NewCollector(vitals.Options{Timing: p, Entries: p})
	c.Activate()
	defer c.Close()

	p.Feed([]byte(`{"entryType":"largest-contentful-paint","startTime":900}`))
	p.Feed([]byte(`{"entryType":"navigation","requestStart":0,"responseStart":600}`))
	p.Feed([]byte(`{"entryType":"paint","name":"first-contentful-paint","startTime":1200}`))
	if _, ok := c.Snapshot(); ok {
		t.Fatal("snapshot before load")
	}
	p.Feed([]byte(`{"kind":"load"}`))
	p.Feed([]byte(`{"entryType":"largest-contentful-paint","startTime":2600}`))
	p.Feed([]byte(`{"entryType":"layout-shift","value":0.05,"hadRecentInput":false}`))
	p.Feed([]byte(`{"entryType":"layout-shift","value":0.03,"hadRecentInput":true}`))

	snap, ok := c.Snapshot()
	if !ok {
		t.Fatal("expected snapshot")
	}
	if snap.FCP != 1200 || snap.TTFB != 600 || snap.LCP == nil || *snap.LCP != 2600 || snap.FID != nil || snap.CLS != 0.05 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestPageIncompleteEntriesCountAsMalformed(t *testing.T) {
	p := NewPage(Options{})
	c := vitals.NewCollector(vitals.Options{Timing: p, Entries: p})
	c.Activate()
	defer c.Close()

	p.Feed([]byte(`{"entryType":"navigation","requestStart":0,"responseStart":100}`))
	p.Feed([]byte(`{"kind":"load"}`))
	p.Feed([]byte(`{"entryType":"first-input","startTime":500}`))
	p.Feed([]byte(`{"entryType":"layout-shift","startTime":600}`))
	p.Feed([]byte(`{"entryType":"first-input","startTime":700,"processingStart":740}`))

	if p.Malformed() != 2 {
		t.Fatalf("malformed = %d, want 2", p.Malformed())
	}
	snap, ok := c.Snapshot()
	if !ok {
		t.Fatal("expected snapshot")
	}
	if snap.FID == nil || *snap.FID != 40 {
		t.Fatalf("fid = %v, want 40", snap.FID)
	}
	if snap.CLS != 0 || snap.Entries != 1 {
		t.Fatalf("cls = %v entries = %d, want 0 and 1", snap.CLS, snap.Entries)
	}
}
