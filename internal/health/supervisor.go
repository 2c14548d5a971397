// Package health implements the Health Supervisor (C2): one
// independent TCP-connect prober per backend, maintaining each
// backend's liveness flag in the shared registry.
package health

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/shoreline-labs/lb/internal/metrics"
	"github.com/shoreline-labs/lb/internal/registry"
	"github.com/shoreline-labs/lb/logger"
)

// Config carries the health-check tunables. A zero Timeout/Interval
// falls back to a conservative default so a supervisor can never spin
// a tight probe loop from an empty configuration.
type Config struct {
	Timeout            time.Duration
	Interval           time.Duration
	HealthyThreshold   int
	UnhealthyThreshold int
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 2 * time.Second
	}
	return c.Timeout
}

func (c Config) interval() time.Duration {
	if c.Interval <= 0 {
		return 10 * time.Second
	}
	return c.Interval
}

func (c Config) healthyThreshold() int {
	if c.HealthyThreshold < 1 {
		return 1
	}
	return c.HealthyThreshold
}

func (c Config) unhealthyThreshold() int {
	if c.UnhealthyThreshold < 1 {
		return 1
	}
	return c.UnhealthyThreshold
}

// Supervisor runs one independent TCP-connect probe loop per backend.
// It never terminates the process on probe failure.
type Supervisor struct {
	reg *registry.Registry
	cfg Config
}

// New constructs a supervisor for reg using cfg. Run must be called to
// start probing; construction performs no I/O.
func New(reg *registry.Registry, cfg Config) *Supervisor {
	return &Supervisor{reg: reg, cfg: cfg}
}

// Run spawns one probe goroutine per backend and blocks until ctx is
// cancelled, at which point all probe goroutines exit. Intended to be
// called from its own goroutine by the caller (see main.go).
func (s *Supervisor) Run(ctx context.Context) {
	backends := s.reg.List()
	var wg sync.WaitGroup
	wg.Add(len(backends))
	for _, b := range backends {
		go func(b *registry.Backend) {
			defer wg.Done()
			s.probeLoop(ctx, b)
		}(b)
	}
	wg.Wait()
}

// probeLoop runs the per-backend probe algorithm: connect with a
// deadline, update consecutive streaks, transition status at threshold
// crossings, then sleep until the next interval.
func (s *Supervisor) probeLoop(ctx context.Context, b *registry.Backend) {
	var upStreak, downStreak int
	dialer := &net.Dialer{}

	for {
		t0 := time.Now()
		s.probeOnce(ctx, dialer, b, &upStreak, &downStreak)

		sleep := time.Until(t0.Add(s.cfg.interval()))
		if sleep < 0 {
			sleep = 0
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Supervisor) probeOnce(ctx context.Context, dialer *net.Dialer, b *registry.Backend, upStreak, downStreak *int) {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.timeout())
	defer cancel()

	conn, err := dialer.DialContext(probeCtx, "tcp", b.Address())
	if err != nil {
		*downStreak++
		*upStreak = 0
		metrics.HealthProbesTotal.WithLabelValues(b.Name, "failure").Inc()
		if probeCtx.Err() == context.DeadlineExceeded {
			logger.Warn("health.probe", "probe timed out", "backend", b.Name, "address", b.Address())
		} else {
			logger.Warn("health.probe", "probe failed", "backend", b.Name, "address", b.Address(), "error", err.Error())
		}
		if *downStreak >= s.cfg.unhealthyThreshold() && b.Status() != registry.Dead {
			b.SetStatus(registry.Dead)
			*downStreak = 0
			logger.Info("health.probe", "backend marked dead", "backend", b.Name)
			metrics.BackendStatus.WithLabelValues(b.Name).Set(float64(registry.Dead))
		}
		return
	}

	// Release the socket on success; a graceful close is sufficient
	// for a plain connectivity probe.
	conn.Close()

	*upStreak++
	*downStreak = 0
	metrics.HealthProbesTotal.WithLabelValues(b.Name, "success").Inc()
	if *upStreak >= s.cfg.healthyThreshold() && b.Status() != registry.Alive {
		b.SetStatus(registry.Alive)
		*upStreak = 0
		logger.Info("health.probe", "backend marked alive", "backend", b.Name)
		metrics.BackendStatus.WithLabelValues(b.Name).Set(float64(registry.Alive))
	}
}
