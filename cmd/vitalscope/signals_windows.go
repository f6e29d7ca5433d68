//go:build windows

package main

import (
	"log/slog"

	"github.com/torosent/vitalscope/internal/visibility"
)

// watchOperatorSignals is a no-op: Windows has no user signals, so the
// display there follows --show only.
func watchOperatorSignals(*visibility.Controller, *slog.Logger) func() {
	return func() {}
}
