// Package runner drives one page view: it streams records from a host
// adapter into the page's timeline until the source ends, the page unloads,
// the configured lifetime elapses or the caller cancels.
//
// # Sources
//
// A [Source] delivers raw timeline records to a [Sink]:
//
//	type Source interface {
//		Stream(ctx context.Context, sink Sink) error
//	}
//
// Stream returns nil when the source ended cleanly (end of trace, relay
// closed the stream) and an error when it failed.
//
// # Pacing
//
// Options.RatePerSecond paces delivery through a rate.Limiter, which turns a
// recorded trace into a replay at a fixed record rate. Zero means unpaced.
//
// # Middleware
//
// Enhance sources with middleware:
//   - [WithRetry]: reconnect a dropped relay with backoff and jitter
//   - [WithLogging]: log stream failures
//
// # Error Handling
//
// Sources that fail on an HTTP status implement [StatusCoder] so the default
// retry policy can tell a throttled or failing relay (429, 5xx) from a
// misconfigured one.
package runner
