package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vitalscope",
		Short:         "Observe a page view's web vitals from a relayed performance timeline",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.String("mode", DefaultMode, "Deployment mode: 'development' shows diagnostics, 'production' disables them")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")

	// Source flags
	flags.StringP("source", "s", string(SourceReplay), "Page source: 'replay', 'sse', 'websocket', 'har' or 'probe'")
	flags.StringP("file", "f", "", "Trace file for replay (- for stdin) or HAR archive for har")
	flags.StringP("url", "u", "", "Relay URL for sse/websocket or page URL for probe")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("subscribe", "", "Message sent after a websocket relay connects")
	flags.String("record-path", "", "gjson path to the record inside each relayed message (e.g. 'payload' or 'batch.entries')")
	flags.String("auth-token", "", "Bearer token for the relay or probed page")
	flags.String("auth-token-url", "", "OAuth2 token endpoint for the client credentials grant")
	flags.String("auth-client-id", "", "OAuth2 client ID")
	flags.String("auth-client-secret", "", "OAuth2 client secret")
	flags.StringSlice("auth-scopes", nil, "OAuth2 scopes")
	flags.Bool("no-timing", false, "Hide the page's navigation and paint timing")
	flags.Bool("no-instrumentation", false, "Hide the page's performance entry stream")
	flags.Bool("unbuffered", false, "Do not replay entries recorded before the observer subscribed")
	flags.Float64("replay-rate", 0, "Replayed records per second (0 means unpaced)")
	flags.Duration("timeout", 30*time.Second, "Connect and request timeout")
	flags.Int("retries", 0, "Relay reconnect attempts after a dropped connection")
	flags.Duration("retry-delay", time.Second, "Base delay between relay reconnect attempts")

	// Lifetime flags
	flags.DurationP("duration", "d", 0, "How long to observe the page (e.g. 30s, 1m; 0 means until the source ends)")

	// Display flags
	flags.Bool("dashboard", false, "Show the live terminal overlay")
	flags.Bool("show", false, "Start with the diagnostic display shown")
	flags.String("toggle-key", DefaultToggleKey, "Dashboard key that toggles the overlay")
	flags.String("dismiss-key", DefaultDismissKey, "Dashboard key that dismisses the overlay")
	flags.Duration("refresh-interval", 500*time.Millisecond, "Progress and dashboard refresh interval")

	// Report flags
	flags.String("format", string(FormatText), "Final report format: text, json, yaml or html")
	flags.StringP("output", "o", "", "Write the final report to this file instead of stdout")
	flags.StringSlice("threshold", nil, "Threshold assertion (repeatable, e.g. 'lcp < 2500' or 'interaction_delay:p99 < 100')")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
	fmt.Fprintf(out, "\nEnvironment variables prefixed with %s_ override the config file (e.g. %s_MODE=production).\n", EnvPrefix, EnvPrefix)
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and the environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("mode") {
		val, err := fs.GetString("mode")
		if err != nil {
			return err
		}
		cfg.Mode = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = val
	}

	if fs.Changed("source") {
		val, err := fs.GetString("source")
		if err != nil {
			return err
		}
		cfg.Source.Type = SourceType(val)
	}
	if fs.Changed("file") {
		val, err := fs.GetString("file")
		if err != nil {
			return err
		}
		cfg.Source.Path = strings.TrimSpace(val)
	}
	if fs.Changed("url") {
		val, err := fs.GetString("url")
		if err != nil {
			return err
		}
		cfg.Source.URL = strings.TrimSpace(val)
	}
	if fs.Changed("subscribe") {
		val, err := fs.GetString("subscribe")
		if err != nil {
			return err
		}
		cfg.Source.Subscribe = val
	}
	if fs.Changed("record-path") {
		val, err := fs.GetString("record-path")
		if err != nil {
			return err
		}
		cfg.Source.RecordPath = strings.TrimSpace(val)
	}
	if fs.Changed("auth-token") {
		val, err := fs.GetString("auth-token")
		if err != nil {
			return err
		}
		cfg.Source.Auth.Token = strings.TrimSpace(val)
	}
	if fs.Changed("auth-token-url") {
		val, err := fs.GetString("auth-token-url")
		if err != nil {
			return err
		}
		cfg.Source.Auth.TokenURL = strings.TrimSpace(val)
	}
	if fs.Changed("auth-client-id") {
		val, err := fs.GetString("auth-client-id")
		if err != nil {
			return err
		}
		cfg.Source.Auth.ClientID = val
	}
	if fs.Changed("auth-client-secret") {
		val, err := fs.GetString("auth-client-secret")
		if err != nil {
			return err
		}
		cfg.Source.Auth.ClientSecret = val
	}
	if fs.Changed("auth-scopes") {
		vals, err := fs.GetStringSlice("auth-scopes")
		if err != nil {
			return err
		}
		cfg.Source.Auth.Scopes = vals
	}
	if fs.Changed("no-timing") {
		val, err := fs.GetBool("no-timing")
		if err != nil {
			return err
		}
		cfg.Source.Timing = !val
	}
	if fs.Changed("no-instrumentation") {
		val, err := fs.GetBool("no-instrumentation")
		if err != nil {
			return err
		}
		cfg.Source.Instrumentation = !val
	}
	if fs.Changed("unbuffered") {
		val, err := fs.GetBool("unbuffered")
		if err != nil {
			return err
		}
		cfg.Source.Buffered = !val
	}
	if fs.Changed("replay-rate") {
		val, err := fs.GetFloat64("replay-rate")
		if err != nil {
			return err
		}
		cfg.Source.Rate = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Source.Timeout = val
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Source.Retries = val
	}
	if fs.Changed("retry-delay") {
		val, err := fs.GetDuration("retry-delay")
		if err != nil {
			return err
		}
		cfg.Source.RetryDelay = val
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Source.Headers == nil {
			cfg.Source.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Source.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}

	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("show") {
		val, err := fs.GetBool("show")
		if err != nil {
			return err
		}
		cfg.Show = val
	}
	if fs.Changed("toggle-key") {
		val, err := fs.GetString("toggle-key")
		if err != nil {
			return err
		}
		cfg.ToggleKey = strings.TrimSpace(val)
	}
	if fs.Changed("dismiss-key") {
		val, err := fs.GetString("dismiss-key")
		if err != nil {
			return err
		}
		cfg.DismissKey = strings.TrimSpace(val)
	}
	if fs.Changed("refresh-interval") {
		val, err := fs.GetDuration("refresh-interval")
		if err != nil {
			return err
		}
		cfg.RefreshInterval = val
	}

	if fs.Changed("format") {
		val, err := fs.GetString("format")
		if err != nil {
			return err
		}
		cfg.Format = Format(val)
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = strings.TrimSpace(val)
	}

	if fs.Changed("threshold") {
		vals, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = append(cfg.Thresholds, vals...)
	}

	return nil
}
