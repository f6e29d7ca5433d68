package vitals

// Activate starts metric acquisition. It runs immediately when the page has
// already loaded and otherwise waits for the host's load signal. Acquisition
// happens at most once; the observer starts after it.
func (c *Collector) Activate() {
	if c.timing == nil {
		c.logger.Debug("timing facility unavailable")
		return
	}
	if c.timing.LoadComplete() {
		c.acquire()
		return
	}

	cancel := c.timing.OnLoad(c.acquire)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}
	c.cancelLoad = cancel
	c.mu.Unlock()
}

func (c *Collector) acquire() {
	c.once.Do(func() {
		nav, ok := c.timing.Navigation()
		if !ok {
			c.logger.Debug("navigation timing unavailable")
			return
		}
		// A missing paint entry leaves fcp at zero.
		fcp, _ := c.timing.FirstContentfulPaint()
		snap := Seed(c.id, fcp, nav)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.snap = &snap
		c.mu.Unlock()

		c.logger.Debug("snapshot seeded", "fcp", snap.FCP, "ttfb", snap.TTFB)
		c.changed()
		c.observe()
	})
}
