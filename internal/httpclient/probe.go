package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/torosent/vitalscope/internal/auth"
	"github.com/torosent/vitalscope/internal/runner"
	"github.com/torosent/vitalscope/internal/vitals"
	"github.com/torosent/vitalscope/internal/wire"
)

// StatusError reports a page load answered with an error status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("page load returned status %d", e.Code)
}

// HTTPStatus lets the runner's retry policy classify the failure.
func (e *StatusError) HTTPStatus() int { return e.Code }

// Measurement is one page load placed on the page clock, in milliseconds
// since the request was issued.
type Measurement struct {
	Navigation vitals.NavigationTiming
	DNS        float64
	Connect    float64
	TLS        float64
	Load       float64
	Status     int
	Bytes      int64
}

// Probe loads a live page over HTTP and relays the navigation timing it
// observed. A probe has no paint or entry instrumentation.
type Probe struct {
	builder *RequestBuilder
	auth    auth.Provider
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewProbe validates cfg and prepares the client.
func NewProbe(cfg Config, logger *slog.Logger) (*Probe, error) {
	builder, err := NewRequestBuilder(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Probe{
		builder: builder,
		auth:    cfg.Auth,
		client:  NewClient(cfg.Timeout),
		logger:  logger.With("component", "probe", "url", builder.target),
		now:     time.Now,
	}, nil
}

// Measure performs one page load.
func (p *Probe) Measure(ctx context.Context) (Measurement, error) {
	req, err := p.builder.Build(ctx)
	if err != nil {
		return Measurement{}, err
	}
	// Token fetches happen before the page clock starts.
	if p.auth != nil {
		if err := p.auth.InjectHeader(ctx, req.Header); err != nil {
			return Measurement{}, fmt.Errorf("authorize: %w", err)
		}
	}

	var (
		mu                  sync.Mutex
		dnsStart, dnsDone   time.Time
		connStart, connDone time.Time
		tlsStart, tlsDone   time.Time
		gotConn, firstByte  time.Time
	)
	mark := func(t *time.Time) {
		mu.Lock()
		if t.IsZero() {
			*t = p.now()
		}
		mu.Unlock()
	}
	trace := &httptrace.ClientTrace{
		DNSStart:             func(httptrace.DNSStartInfo) { mark(&dnsStart) },
		DNSDone:              func(httptrace.DNSDoneInfo) { mark(&dnsDone) },
		ConnectStart:         func(string, string) { mark(&connStart) },
		ConnectDone:          func(string, string, error) { mark(&connDone) },
		TLSHandshakeStart:    func() { mark(&tlsStart) },
		TLSHandshakeDone:     func(tls.ConnectionState, error) { mark(&tlsDone) },
		GotConn:              func(httptrace.GotConnInfo) { mark(&gotConn) },
		GotFirstResponseByte: func() { mark(&firstByte) },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	start := p.now()
	resp, err := p.client.Do(req)
	if err != nil {
		return Measurement{}, fmt.Errorf("load %s: %w", p.builder.target, err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return Measurement{}, fmt.Errorf("read %s: %w", p.builder.target, err)
	}
	end := p.now()

	if resp.StatusCode >= http.StatusBadRequest {
		return Measurement{}, &StatusError{Code: resp.StatusCode}
	}

	mu.Lock()
	defer mu.Unlock()
	if gotConn.IsZero() {
		gotConn = start
	}
	if firstByte.IsZero() {
		firstByte = end
	}
	return Measurement{
		Navigation: vitals.NavigationTiming{
			RequestStart:  millis(gotConn.Sub(start)),
			ResponseStart: millis(firstByte.Sub(start)),
		},
		DNS:     span(dnsStart, dnsDone),
		Connect: span(connStart, connDone),
		TLS:     span(tlsStart, tlsDone),
		Load:    millis(end.Sub(start)),
		Status:  resp.StatusCode,
		Bytes:   n,
	}, nil
}

// Stream implements runner.Source: one page load, relayed as a navigation
// record followed by a load record.
func (p *Probe) Stream(ctx context.Context, sink runner.Sink) error {
	m, err := p.Measure(ctx)
	if err != nil {
		return err
	}
	p.logger.Debug("page loaded",
		"status", m.Status,
		"bytes", m.Bytes,
		"ttfb_ms", m.Navigation.ResponseStart-m.Navigation.RequestStart,
		"load_ms", m.Load,
	)

	for _, rec := range []wire.Record{
		{Kind: wire.KindNavigation, Navigation: m.Navigation},
		{Kind: wire.KindLoad},
	} {
		data, err := wire.Encode(rec)
		if err != nil {
			return fmt.Errorf("encode %s record: %w", rec.Kind, err)
		}
		sink.Feed(data)
	}
	return nil
}

// Close releases idle connections.
func (p *Probe) Close() {
	p.client.CloseIdleConnections()
}

func millis(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

func span(from, to time.Time) float64 {
	if from.IsZero() || to.IsZero() {
		return 0
	}
	return millis(to.Sub(from))
}
