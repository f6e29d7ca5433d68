package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type SourceType string

const (
	SourceReplay    SourceType = "replay"
	SourceSSE       SourceType = "sse"
	SourceWebSocket SourceType = "websocket"
	SourceHAR       SourceType = "har"
	SourceProbe     SourceType = "probe"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHTML Format = "html"
)

const (
	DefaultMode       = "development"
	DefaultToggleKey  = "<C-p>"
	DefaultDismissKey = "<Escape>"
)

type Config struct {
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	Source          SourceConfig  `mapstructure:"source"`
	Dashboard       bool          `mapstructure:"dashboard"`
	Show            bool          `mapstructure:"show"`
	ToggleKey       string        `mapstructure:"toggle_key"`
	DismissKey      string        `mapstructure:"dismiss_key"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Format          Format        `mapstructure:"format"`
	Output          string        `mapstructure:"output"`
	Duration        time.Duration `mapstructure:"duration"`
	Thresholds      []string      `mapstructure:"thresholds"`
	ConfigFile      string        `mapstructure:"-"`
	// ModePinned is set when a flag or VITALSCOPE_MODE chose the mode, so
	// config file reloads must leave it alone.
	ModePinned bool `mapstructure:"-"`
}

// SourceConfig selects the host adapter feeding the page and the facilities
// the page exposes.
type SourceConfig struct {
	Type            SourceType        `mapstructure:"type"`
	Path            string            `mapstructure:"path"` // trace or HAR file, "-" for stdin
	URL             string            `mapstructure:"url"`
	Headers         map[string]string `mapstructure:"headers"`
	Subscribe       string            `mapstructure:"subscribe"` // sent after a websocket relay connects
	// RecordPath is a gjson path unwrapping relayed envelopes.
	RecordPath      string            `mapstructure:"record_path"`
	Auth            AuthConfig        `mapstructure:"auth"`
	Timing          bool              `mapstructure:"timing"`
	Instrumentation bool              `mapstructure:"instrumentation"`
	Buffered        bool              `mapstructure:"buffered"`
	Rate            float64           `mapstructure:"rate"` // replayed records per second, 0 = unpaced
	Timeout         time.Duration     `mapstructure:"timeout"`
	Retries         int               `mapstructure:"retries"` // relay reconnect attempts
	RetryDelay      time.Duration     `mapstructure:"retry_delay"`
}

// AuthConfig authorizes relay and probe connections. A static token wins
// over the client credentials grant.
type AuthConfig struct {
	Token        string   `mapstructure:"token"`
	TokenURL     string   `mapstructure:"token_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Scopes       []string `mapstructure:"scopes"`
}

// Enabled reports whether any credentials are configured.
func (a AuthConfig) Enabled() bool {
	return a.Token != "" || a.TokenURL != ""
}

// Defaults returns the configuration used before any file, env or flag
// settings are applied.
func Defaults() *Config {
	return &Config{
		Mode:            DefaultMode,
		LogLevel:        "info",
		Source:          SourceConfig{Type: SourceReplay, Timing: true, Instrumentation: true, Buffered: true, Timeout: 30 * time.Second, RetryDelay: time.Second, Headers: map[string]string{}},
		ToggleKey:       DefaultToggleKey,
		DismissKey:      DefaultDismissKey,
		RefreshInterval: 500 * time.Millisecond,
		Format:          FormatText,
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case "development", "dev", "diagnostic", "production":
	default:
		issues = append(issues, fmt.Sprintf("mode must be development or production, got %q", c.Mode))
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	switch c.Format {
	case "", FormatText, FormatJSON, FormatYAML, FormatHTML:
	default:
		issues = append(issues, fmt.Sprintf("format must be text, json, yaml or html, got %q", c.Format))
	}
	if c.Format == FormatHTML && strings.TrimSpace(c.Output) == "" {
		issues = append(issues, "html format requires --output")
	}

	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.RefreshInterval < 0 {
		issues = append(issues, "refresh_interval must be >= 0")
	}
	if c.Dashboard {
		if strings.TrimSpace(c.ToggleKey) == "" {
			issues = append(issues, "toggle_key must not be empty")
		}
		if strings.TrimSpace(c.DismissKey) == "" {
			issues = append(issues, "dismiss_key must not be empty")
		}
		if c.ToggleKey != "" && c.ToggleKey == c.DismissKey {
			issues = append(issues, "toggle_key and dismiss_key must differ")
		}
	}

	issues = append(issues, validateSourceConfig(c.Source)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateSourceConfig(src SourceConfig) []string {
	var issues []string

	if src.Rate < 0 {
		issues = append(issues, "source.rate must be >= 0")
	}
	if src.Timeout < 0 {
		issues = append(issues, "source.timeout must be >= 0")
	}
	if src.Retries < 0 {
		issues = append(issues, "source.retries must be >= 0")
	}
	if src.RetryDelay < 0 {
		issues = append(issues, "source.retry_delay must be >= 0")
	}

	if src.Auth.TokenURL != "" {
		if _, err := url.Parse(src.Auth.TokenURL); err != nil || !strings.HasPrefix(strings.ToLower(src.Auth.TokenURL), "http") {
			issues = append(issues, fmt.Sprintf("source.auth.token_url %q is invalid", src.Auth.TokenURL))
		}
		if src.Auth.ClientID == "" {
			issues = append(issues, "source.auth.client_id is required with token_url")
		}
	}
	if src.Auth.Enabled() && (src.Type == SourceReplay || src.Type == SourceHAR) {
		issues = append(issues, fmt.Sprintf("source.auth does not apply to %s sources", src.Type))
	}
	if src.RecordPath != "" && src.Type != SourceSSE && src.Type != SourceWebSocket {
		issues = append(issues, "source.record_path only applies to sse and websocket relays")
	}

	switch src.Type {
	case SourceReplay:
		if strings.TrimSpace(src.Path) == "" {
			issues = append(issues, "replay source requires a trace file (use - for stdin)")
		}
	case SourceHAR:
		if strings.TrimSpace(src.Path) == "" || src.Path == "-" {
			issues = append(issues, "har source requires a file path")
		}
	case SourceSSE, SourceProbe:
		issues = append(issues, validateURL(src.Type, src.URL, "http", "https")...)
	case SourceWebSocket:
		issues = append(issues, validateURL(src.Type, src.URL, "ws", "wss")...)
	default:
		issues = append(issues, fmt.Sprintf("source must be replay, sse, websocket, har or probe, got %q", src.Type))
	}
	return issues
}

func validateURL(kind SourceType, raw string, schemes ...string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{fmt.Sprintf("%s source requires a url", kind)}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return []string{fmt.Sprintf("%s url %q is invalid", kind, raw)}
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return nil
		}
	}
	return []string{fmt.Sprintf("%s url must use %s", kind, strings.Join(schemes, " or "))}
}
