// Package connectivity tracks whether the remote store is reachable by
// pinging it on a ticker.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/logging"
)

type Mode string

const (
	ModeUnknown Mode = ""
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// DefaultPingTimeout bounds a single probe.
const DefaultPingTimeout = 3 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type Watcher struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger

	mu        sync.Mutex
	mode      Mode
	listeners []func(Mode)
}

func New(p Pinger, interval time.Duration, l logging.Logger) *Watcher {
	return &Watcher{pinger: p, interval: interval, timeout: DefaultPingTimeout, logger: l.With("module", "connectivity")}
}

func (w *Watcher) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Online reports false only after a failed probe. Before the first probe
// the remote is assumed reachable.
func (w *Watcher) Online() bool {
	return w.Mode() != ModeOffline
}

// OnChange registers fn to be called after every mode switch.
func (w *Watcher) OnChange(fn func(Mode)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

func (w *Watcher) setMode(ctx context.Context, mode Mode) {
	w.mu.Lock()
	if w.mode == mode {
		w.mu.Unlock()
		return
	}
	w.mode = mode
	listeners := append([]func(Mode){}, w.listeners...)
	w.mu.Unlock()

	w.logger.Info(ctx, "Switched mode", "mode", string(mode))
	for _, fn := range listeners {
		fn(mode)
	}
}

// Check probes once and returns the resulting mode.
func (w *Watcher) Check(ctx context.Context) Mode {
	pctx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.pinger.Ping(pctx)
	cancel()

	if err != nil {
		w.logger.Debug(ctx, "ping failed", "error", err)
		w.setMode(ctx, ModeOffline)
	} else {
		w.setMode(ctx, ModeOnline)
	}
	return w.Mode()
}

// Run probes immediately and then on every tick until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}
