// Package metrics provides a lightweight persistent usage counter
// manager. It batches in-memory counter and summary observations and
// periodically flushes them to the shared SQLite database holding the
// image store. Only monotonic counters and simple (count,sum,min,max)
// summaries are supported.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Summary names.
const (
	SummaryOptimizeSavedBytes = "optimize_saved_bytes"
	SummaryExportImageCount   = "export_image_count"
)

// Config controls flush cadence and logging.
type Config struct {
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Manager aggregates metric events and flushes them.
type Manager struct {
	cfg     Config
	db      *sql.DB
	events  chan event
	stop    chan struct{}
	done    chan struct{}
	started bool

	// in-memory deltas (protected by mu)
	mu        sync.Mutex
	counters  map[string]int64
	summaries map[string]*summaryAgg
}

type eventKind int

const (
	eventInc eventKind = iota + 1
	eventObserve
)

type event struct {
	kind eventKind
	name string
	v    int64
}

type summaryAgg struct {
	count int64
	sum   int64
	min   int64
	max   int64
}

// New creates a Manager. Call Start to begin background flushing.
func New(db *sql.DB, cfg Config) *Manager {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		db:        db,
		events:    make(chan event, 1024),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		counters:  make(map[string]int64),
		summaries: make(map[string]*summaryAgg),
	}
}

// InitSchema ensures the metrics tables exist.
func (m *Manager) InitSchema(ctx context.Context) error {
	ddlCounters := `CREATE TABLE IF NOT EXISTS metrics_counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);`
	ddlSummaries := `CREATE TABLE IF NOT EXISTS metrics_summaries (
		name TEXT PRIMARY KEY,
		count INTEGER NOT NULL,
		sum INTEGER NOT NULL,
		min INTEGER NOT NULL,
		max INTEGER NOT NULL
	);`
	if _, err := m.db.ExecContext(ctx, ddlCounters); err != nil {
		return err
	}
	_, err := m.db.ExecContext(ctx, ddlSummaries)
	return err
}

// Start launches the background flush loop.
func (m *Manager) Start(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true
	go m.loop(ctx)
}

// Stop signals the flush loop to exit and performs a final flush.
func (m *Manager) Stop(ctx context.Context) {
	if !m.started {
		m.drain()
		_ = m.flush(ctx)
		return
	}
	close(m.stop)
	<-m.done
	m.drain()
	_ = m.flush(ctx)
}

// Inc increments a counter by delta (>=1).
func (m *Manager) Inc(name string, delta int64) {
	if delta <= 0 {
		return
	}
	select {
	case m.events <- event{kind: eventInc, name: name, v: delta}:
	default:
		// channel full; best-effort drop
	}
}

// Observe records a summary observation.
func (m *Manager) Observe(name string, value int64) {
	select {
	case m.events <- event{kind: eventObserve, name: name, v: value}:
	default:
	}
}

func (m *Manager) loop(ctx context.Context) {
	log := m.cfg.Logger.With("domain", "metrics")
	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer func() {
		ticker.Stop()
		close(m.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case ev := <-m.events:
			m.apply(ev)
		case <-ticker.C:
			if err := m.flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("flush", "error", err)
			}
		}
	}
}

// drain applies any events still queued, used on Stop.
func (m *Manager) drain() {
	for {
		select {
		case ev := <-m.events:
			m.apply(ev)
		default:
			return
		}
	}
}

func (m *Manager) apply(ev event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ev.kind {
	case eventInc:
		m.counters[ev.name] += ev.v
	case eventObserve:
		agg := m.summaries[ev.name]
		if agg == nil {
			m.summaries[ev.name] = &summaryAgg{count: 1, sum: ev.v, min: ev.v, max: ev.v}
			return
		}
		agg.count++
		agg.sum += ev.v
		if ev.v < agg.min {
			agg.min = ev.v
		}
		if ev.v > agg.max {
			agg.max = ev.v
		}
	}
}

// flush upserts in-memory deltas into SQLite and resets them.
func (m *Manager) flush(ctx context.Context) error {
	m.mu.Lock()
	counters := m.counters
	summaries := m.summaries
	m.counters = make(map[string]int64)
	m.summaries = make(map[string]*summaryAgg)
	m.mu.Unlock()
	if len(counters) == 0 && len(summaries) == 0 {
		return nil
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	const upCounter = `INSERT INTO metrics_counters (name, value) VALUES (?,?)
ON CONFLICT(name) DO UPDATE SET value = value + excluded.value`
	for name, v := range counters {
		if _, err = tx.ExecContext(ctx, upCounter, name, v); err != nil {
			return err
		}
	}
	const upSummary = `INSERT INTO metrics_summaries (name, count, sum, min, max) VALUES (?,?,?,?,?)
ON CONFLICT(name) DO UPDATE SET count = count + excluded.count, sum = sum + excluded.sum,
min = MIN(min, excluded.min), max = MAX(max, excluded.max)`
	for name, agg := range summaries {
		if _, err = tx.ExecContext(ctx, upSummary, name, agg.count, agg.sum, agg.min, agg.max); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// CounterView is one persisted counter row.
type CounterView struct {
	Name  string
	Value int64
}

// Counters returns the persisted counters in name order.
func (m *Manager) Counters(ctx context.Context) ([]CounterView, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT name, value FROM metrics_counters ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CounterView
	for rows.Next() {
		var cv CounterView
		if err = rows.Scan(&cv.Name, &cv.Value); err != nil {
			return nil, err
		}
		out = append(out, cv)
	}
	return out, rows.Err()
}
