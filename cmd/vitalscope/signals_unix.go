//go:build !windows

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/torosent/vitalscope/internal/visibility"
)

// watchOperatorSignals maps SIGUSR1 to toggle and SIGUSR2 to dismiss while
// the line reporter owns the display. The returned func stops watching.
func watchOperatorSignals(controller *visibility.Controller, logger *slog.Logger) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigs:
				var state visibility.State
				if sig == syscall.SIGUSR1 {
					state = controller.Toggle()
				} else {
					state = controller.Dismiss()
				}
				logger.Debug("operator command", "signal", sig.String(), "state", state.String())
			}
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
