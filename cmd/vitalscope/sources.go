package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/torosent/vitalscope/internal/auth"
	"github.com/torosent/vitalscope/internal/clientmetrics"
	"github.com/torosent/vitalscope/internal/config"
	"github.com/torosent/vitalscope/internal/extractor"
	"github.com/torosent/vitalscope/internal/har"
	"github.com/torosent/vitalscope/internal/host"
	"github.com/torosent/vitalscope/internal/httpclient"
	"github.com/torosent/vitalscope/internal/replay"
	"github.com/torosent/vitalscope/internal/runner"
	"github.com/torosent/vitalscope/internal/sse"
	"github.com/torosent/vitalscope/internal/websocket"
)

// newAuthProvider returns nil when no credentials are configured.
func newAuthProvider(a config.AuthConfig) (auth.Provider, error) {
	switch {
	case a.Token != "":
		return auth.NewStaticTokenProvider(a.Token), nil
	case a.TokenURL != "":
		p, err := auth.NewClientCredentialsProvider(auth.ClientCredentials{
			TokenURL:            a.TokenURL,
			ClientID:            a.ClientID,
			ClientSecret:        a.ClientSecret,
			Scopes:              a.Scopes,
			RefreshBeforeExpiry: 30 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("oauth2: %w", err)
		}
		return p, nil
	default:
		return nil, nil
	}
}

// newSource builds the host adapter named by cfg. relay is non-nil only for
// sources holding a relay connection.
func newSource(cfg *config.Config, provider auth.Provider, logger *slog.Logger) (src runner.Source, relay func() clientmetrics.Snapshot, err error) {
	sc := cfg.Source
	switch sc.Type {
	case config.SourceReplay:
		return replay.NewSource(sc.Path, logger), nil, nil
	case config.SourceHAR:
		return har.NewSource(sc.Path, har.Options{}, logger), nil, nil
	case config.SourceSSE:
		s := sse.NewSource(sse.Config{
			URL:     sc.URL,
			Headers: makeHeaders(sc.Headers),
			Timeout: sc.Timeout,
			Auth:    provider,
		}, logger)
		return s, s.Stats, nil
	case config.SourceWebSocket:
		s := websocket.NewSource(websocket.Config{
			URL:              sc.URL,
			Headers:          makeHeaders(sc.Headers),
			HandshakeTimeout: sc.Timeout,
			Subscribe:        sc.Subscribe,
			Auth:             provider,
		}, logger)
		return s, s.Stats, nil
	case config.SourceProbe:
		p, err := httpclient.NewProbe(httpclient.Config{
			URL:     sc.URL,
			Headers: sc.Headers,
			Timeout: sc.Timeout,
			Auth:    provider,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("probe: %w", err)
		}
		return p, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported source %q", sc.Type)
	}
}

// wrapSource adds envelope unwrapping, logging and, for network sources,
// reconnects.
func wrapSource(src runner.Source, cfg *config.Config, logger *slog.Logger) runner.Source {
	if cfg.Source.RecordPath != "" {
		src = extractor.Source(src, cfg.Source.RecordPath, logger)
	}
	src = runner.WithLogging(src, logger)
	switch cfg.Source.Type {
	case config.SourceSSE, config.SourceWebSocket, config.SourceProbe:
		if cfg.Source.Retries > 0 {
			src = runner.WithRetry(src, runner.NewRetryPolicy(cfg.Source.Retries, cfg.Source.RetryDelay))
		}
	}
	return src
}

// pageOptions maps the configured host facilities onto the page. HAR
// archives and probes never carry an entry stream.
func pageOptions(cfg *config.Config) host.Options {
	sc := cfg.Source
	noInstrumentation := !sc.Instrumentation
	if sc.Type == config.SourceHAR || sc.Type == config.SourceProbe {
		noInstrumentation = true
	}
	return host.Options{
		NoTiming:          !sc.Timing,
		NoInstrumentation: noInstrumentation,
		Unbuffered:        !sc.Buffered,
	}
}

func makeHeaders(m map[string]string) http.Header {
	h := http.Header{}
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}
