package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/torosent/vitalscope/internal/auth"
)

const (
	documentAccept   = "text/html,application/xhtml+xml,*/*;q=0.8"
	defaultUserAgent = "vitalscope-probe/1"
	maxRedirects     = 5
)

// Config describes the page a probe loads.
type Config struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
	Auth    auth.Provider // optional
}

// RequestBuilder builds the document request for a page load.
type RequestBuilder struct {
	target  string
	headers http.Header
}

func NewRequestBuilder(cfg Config) (*RequestBuilder, error) {
	target := strings.TrimSpace(cfg.URL)
	if target == "" {
		return nil, errors.New("target URL is required")
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("target URL must be http or https, got %q", u.Scheme)
	}

	headers, err := documentHeaders(cfg.Headers)
	if err != nil {
		return nil, err
	}
	return &RequestBuilder{target: u.String(), headers: headers}, nil
}

// documentHeaders canonicalizes user headers and fills in what a browser
// sends with a top-level navigation.
func documentHeaders(in map[string]string) (http.Header, error) {
	h := make(http.Header, len(in)+2)
	for key, value := range in {
		k := strings.TrimSpace(key)
		if k == "" || strings.ContainsAny(k, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		k = http.CanonicalHeaderKey(k)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", k)
		}
		h.Set(k, value)
	}
	if h.Get("Accept") == "" {
		h.Set("Accept", documentAccept)
	}
	if h.Get("User-Agent") == "" {
		h.Set("User-Agent", defaultUserAgent)
	}
	return h, nil
}

// Build returns a fresh GET request for the page.
func (b *RequestBuilder) Build(ctx context.Context) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.target, nil)
	if err != nil {
		return nil, err
	}
	req.Header = b.headers.Clone()
	return req, nil
}

// NewClient returns a client that opens a new connection for every page load,
// so each probe pays for DNS, connect and TLS the way a first navigation does.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}
