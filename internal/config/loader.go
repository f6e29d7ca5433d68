package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. VITALSCOPE_MODE or
// VITALSCOPE_SOURCE_URL.
const EnvPrefix = "VITALSCOPE"

// envKeys are the settings that may be overridden from the environment.
var envKeys = []string{
	"mode",
	"log_level",
	"dashboard",
	"show",
	"toggle_key",
	"dismiss_key",
	"refresh_interval",
	"format",
	"output",
	"duration",
	"thresholds",
	"source.type",
	"source.path",
	"source.url",
	"source.subscribe",
	"source.record_path",
	"source.auth.token",
	"source.auth.token_url",
	"source.auth.client_id",
	"source.auth.client_secret",
	"source.auth.scopes",
	"source.timing",
	"source.instrumentation",
	"source.buffered",
	"source.rate",
	"source.timeout",
	"source.retries",
	"source.retry_delay",
}

// Loader handles loading configuration from files, the environment and
// command-line arguments.
type Loader struct {
	environ func() []string
}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{environ: os.Environ}
}

// Load parses command-line arguments, the config file and VITALSCOPE_
// environment variables to produce a Config. Flags take precedence over the
// environment, which takes precedence over the file.
func (l *Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" && !l.envConfigured() {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfgViper := newViper()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.ModePinned = flagSet.Changed("mode") || l.lookupEnv(EnvPrefix+"_MODE")
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.Source.Type = SourceType(strings.ToLower(strings.TrimSpace(string(cfg.Source.Type))))
	cfg.Source.Path = strings.TrimSpace(cfg.Source.Path)
	cfg.Source.URL = strings.TrimSpace(cfg.Source.URL)
	cfg.Format = Format(strings.ToLower(strings.TrimSpace(string(cfg.Format))))
	if cfg.Source.Headers == nil {
		cfg.Source.Headers = map[string]string{}
	}

	return cfg, nil
}

func (l *Loader) envConfigured() bool {
	for _, kv := range l.env() {
		if strings.HasPrefix(kv, EnvPrefix+"_") {
			return true
		}
	}
	return false
}

func (l *Loader) lookupEnv(name string) bool {
	for _, kv := range l.env() {
		if strings.HasPrefix(kv, name+"=") {
			return true
		}
	}
	return false
}

func (l *Loader) env() []string {
	if l.environ == nil {
		return os.Environ()
	}
	return l.environ()
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// WatchMode reloads the config file whenever it changes and reports the mode
// it now names. Only the mode is live; every other setting is fixed at
// startup. An environment or flag override pins the mode, so callers only
// watch when neither is set.
func WatchMode(path string, onChange func(mode string)) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("watch: no config file")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	last := strings.ToLower(strings.TrimSpace(v.GetString("mode")))
	v.OnConfigChange(func(fsnotify.Event) {
		mode := strings.ToLower(strings.TrimSpace(v.GetString("mode")))
		if mode == "" {
			mode = DefaultMode
		}
		if mode == last {
			return
		}
		last = mode
		onChange(mode)
	})
	v.WatchConfig()
	return nil
}

// applyConfigSettings applies settings from a config file and the environment
// to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "mode"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		if val != "" {
			cfg.Mode = val
		}
	}

	if raw, ok := lookupSetting(settings, "loglevel", "log_level", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		if val != "" {
			cfg.LogLevel = val
		}
	}

	if raw, ok := lookupSetting(settings, "source"); ok {
		if err := applySourceSettings(&cfg.Source, raw); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "show"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("show: %w", err)
		}
		cfg.Show = val
	}

	if raw, ok := lookupSetting(settings, "togglekey", "toggle_key", "toggle-key"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("toggle_key: %w", err)
		}
		cfg.ToggleKey = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "dismisskey", "dismiss_key", "dismiss-key"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("dismiss_key: %w", err)
		}
		cfg.DismissKey = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "refreshinterval", "refresh_interval", "refresh-interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("refresh_interval: %w", err)
		}
		cfg.RefreshInterval = dur
	}

	if raw, ok := lookupSetting(settings, "format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("format: %w", err)
		}
		if val != "" {
			cfg.Format = Format(val)
		}
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		cfg.Output = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = dur
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		vals, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = splitList(vals)
	}

	return nil
}

func applySourceSettings(src *SourceConfig, value interface{}) error {
	// A bare string names the source type.
	if s, ok := value.(string); ok {
		src.Type = SourceType(s)
		return nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}

	if raw, ok := lookupSetting(settings, "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("type: %w", err)
		}
		if val != "" {
			src.Type = SourceType(val)
		}
	}
	if raw, ok := lookupSetting(settings, "path", "file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("path: %w", err)
		}
		src.Path = val
	}
	if raw, ok := lookupSetting(settings, "url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("url: %w", err)
		}
		src.URL = val
	}
	if raw, ok := lookupSetting(settings, "subscribe"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		src.Subscribe = val
	}
	if raw, ok := lookupSetting(settings, "recordpath", "record_path", "record-path"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("record_path: %w", err)
		}
		src.RecordPath = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "auth"); ok {
		if err := applyAuthSettings(&src.Auth, raw); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if src.Headers == nil {
			src.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			src.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}
	if raw, ok := lookupSetting(settings, "timing"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("timing: %w", err)
		}
		src.Timing = val
	}
	if raw, ok := lookupSetting(settings, "instrumentation"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("instrumentation: %w", err)
		}
		src.Instrumentation = val
	}
	if raw, ok := lookupSetting(settings, "buffered"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("buffered: %w", err)
		}
		src.Buffered = val
	}
	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		src.Rate = val
	}
	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		src.Timeout = dur
	}
	if raw, ok := lookupSetting(settings, "retries"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("retries: %w", err)
		}
		src.Retries = val
	}
	if raw, ok := lookupSetting(settings, "retrydelay", "retry_delay", "retry-delay"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("retry_delay: %w", err)
		}
		src.RetryDelay = dur
	}
	return nil
}

func applyAuthSettings(a *AuthConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "token"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("token: %w", err)
		}
		a.Token = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "tokenurl", "token_url", "token-url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("token_url: %w", err)
		}
		a.TokenURL = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "clientid", "client_id", "client-id"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("client_id: %w", err)
		}
		a.ClientID = val
	}
	if raw, ok := lookupSetting(settings, "clientsecret", "client_secret", "client-secret"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("client_secret: %w", err)
		}
		a.ClientSecret = val
	}
	if raw, ok := lookupSetting(settings, "scopes"); ok {
		vals, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("scopes: %w", err)
		}
		a.Scopes = splitList(vals)
	}
	return nil
}

// splitList accepts a list or a single comma-separated string, as an
// environment variable delivers it.
func splitList(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
