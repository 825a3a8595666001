// Package autobackup implements the periodic metadata-only export loop.
// It replaces the page-close auto-export of the browser version: while
// running, the current recipe document is exported on a fixed interval so
// a recent copy always sits in the download directory. It operates
// independently from the app Service request path.
package autobackup

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Backupper performs one metadata-only export cycle and returns the
// delivered filename.
type Backupper interface {
	ExportMetadataOnly(ctx context.Context) (string, error)
}

// Config holds tunables for the Runner.
type Config struct {
	Interval time.Duration // how often a cycle begins
	Logger   *slog.Logger  // optional logger (defaults to slog.Default())
}

// Metrics accumulates counters (in-memory) for operational insight.
type Metrics struct {
	mu                  sync.Mutex
	Cycles              uint64
	Failures            uint64
	LastFilename        string
	CycleLastDurationMS int64
}

// MetricsView is a read-only snapshot safe to copy.
type MetricsView struct {
	Cycles              uint64
	Failures            uint64
	LastFilename        string
	CycleLastDurationMS int64
}

// Runner encapsulates the background auto-backup loop.
type Runner struct {
	backupper Backupper
	cfg       Config
	metrics   *Metrics

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New constructs but does not start a Runner.
func New(b Backupper, cfg Config) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		backupper: b,
		cfg:       cfg,
		metrics:   &Metrics{},
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the auto-backup loop in a new goroutine.
func (r *Runner) Start(ctx context.Context) {
	if r.ticker != nil {
		return
	} // already started
	r.ticker = time.NewTicker(r.cfg.Interval)
	go r.loop(ctx)
}

// Stop signals the loop to exit, runs one final export so the freshest
// state is on disk, and waits for completion.
func (r *Runner) Stop(ctx context.Context) {
	r.once.Do(func() { close(r.stopCh) })
	<-r.doneCh
	r.runCycle(ctx)
}

// MetricsSnapshot returns a copy of current metrics.
func (r *Runner) MetricsSnapshot() MetricsView {
	r.metrics.mu.Lock()
	defer r.metrics.mu.Unlock()
	return MetricsView{
		Cycles:              r.metrics.Cycles,
		Failures:            r.metrics.Failures,
		LastFilename:        r.metrics.LastFilename,
		CycleLastDurationMS: r.metrics.CycleLastDurationMS,
	}
}

func (r *Runner) loop(ctx context.Context) {
	log := r.cfg.Logger.With("domain", "autobackup")
	defer func() {
		if r.ticker != nil {
			r.ticker.Stop()
		}
		close(r.doneCh)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("autobackup stop", "reason", "context_cancel")
			return
		case <-r.stopCh:
			log.Info("autobackup stop", "reason", "stop_signal")
			return
		case <-r.ticker.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle performs one metadata-only export.
func (r *Runner) runCycle(ctx context.Context) {
	start := time.Now()
	log := r.cfg.Logger.With("domain", "autobackup", "action", "cycle")
	name, err := r.backupper.ExportMetadataOnly(ctx)
	r.metrics.mu.Lock()
	r.metrics.Cycles++
	if err != nil {
		r.metrics.Failures++
	} else {
		r.metrics.LastFilename = name
	}
	r.metrics.CycleLastDurationMS = time.Since(start).Milliseconds()
	r.metrics.mu.Unlock()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("export", "error", err)
		return
	}
	log.Info("cycle complete", "file", name, "ms", time.Since(start).Milliseconds())
}
