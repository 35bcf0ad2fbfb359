package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/deskhost/internal/platform"
)

// pingTimeout bounds the liveness check of an attached backend.
const pingTimeout = 2 * time.Second

// Opener connects to a display. platform.Open satisfies it.
type Opener func(display string) (platform.Backend, func(), error)

// ReconnectorConfig holds configuration for the reconnector.
type ReconnectorConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconnector keeps trying to connect the host to its display while no
// backend is attached, e.g. when the daemon starts before the X server. An
// attached backend that stops answering (the X server restarted) is dropped
// and reconnected on the same tick.
type Reconnector struct {
	interval time.Duration
	host     *Host
	open     Opener
	logger   *slog.Logger

	mu      sync.Mutex
	lastErr string
}

// NewReconnector creates a new reconnector for host.
func NewReconnector(cfg ReconnectorConfig, host *Host, open Opener) *Reconnector {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconnector{
		interval: interval,
		host:     host,
		open:     open,
		logger:   logger,
	}
}

// Run starts the reconnect loop. Blocks until context is cancelled.
func (r *Reconnector) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconnector started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconnector stopped")
			return
		case <-ticker.C:
			r.reconnect()
		}
	}
}

// ReconnectNow makes an immediate connection attempt and reports whether a
// backend is attached afterwards.
func (r *Reconnector) ReconnectNow() bool {
	r.reconnect()
	return r.host.HasBackend()
}

func (r *Reconnector) reconnect() {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconnector panic recovered", "error", err)
		}
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.host.CheckBackend(pingTimeout) {
		return
	}

	display := r.host.Config().Display
	backend, closer, err := r.open(display)
	if err != nil {
		// Log once per distinct failure.
		if msg := err.Error(); msg != r.lastErr {
			r.lastErr = msg
			r.logger.Warn("window backend unavailable", "display", display, "error", err)
		}
		return
	}

	r.lastErr = ""
	if r.host.Config().Display != display {
		// Config was reloaded while connecting.
		if closer != nil {
			closer()
		}
		return
	}
	r.host.SetBackend(backend, closer)
	r.logger.Info("window backend connected", "display", display)
}
