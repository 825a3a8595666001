package metrics

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCountersFlushOnStop(t *testing.T) {
	ctx := context.Background()
	m := New(openTestDB(t), Config{FlushInterval: time.Hour})
	require.NoError(t, m.InitSchema(ctx))
	m.Start(ctx)

	m.Inc("recipes_saved_total", 1)
	m.Inc("recipes_saved_total", 2)
	m.Inc("images_stored_total", 5)
	m.Inc("ignored", 0)
	m.Inc("ignored", -3)
	m.Stop(ctx)

	got, err := m.Counters(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, CounterView{Name: "images_stored_total", Value: 5}, got[0])
	assert.Equal(t, CounterView{Name: "recipes_saved_total", Value: 3}, got[1])
}

func TestCountersAccumulateAcrossSessions(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for i := 0; i < 2; i++ {
		m := New(db, Config{FlushInterval: time.Hour})
		require.NoError(t, m.InitSchema(ctx))
		m.Start(ctx)
		m.Inc("optimize_runs_total", 2)
		m.Stop(ctx)
	}

	m := New(db, Config{FlushInterval: time.Hour})
	got, err := m.Counters(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(4), got[0].Value)
}

func TestSummariesAggregate(t *testing.T) {
	ctx := context.Background()
	m := New(openTestDB(t), Config{FlushInterval: time.Hour})
	require.NoError(t, m.InitSchema(ctx))
	m.Start(ctx)

	m.Observe(SummaryOptimizeSavedBytes, 100)
	m.Observe(SummaryOptimizeSavedBytes, 40)
	m.Observe(SummaryOptimizeSavedBytes, 700)
	m.Stop(ctx)

	var count, sum, min, max int64
	row := m.db.QueryRowContext(ctx,
		`SELECT count, sum, min, max FROM metrics_summaries WHERE name = ?`, SummaryOptimizeSavedBytes)
	require.NoError(t, row.Scan(&count, &sum, &min, &max))
	assert.Equal(t, int64(3), count)
	assert.Equal(t, int64(840), sum)
	assert.Equal(t, int64(40), min)
	assert.Equal(t, int64(700), max)
}

func TestStopWithoutStartFlushesQueuedEvents(t *testing.T) {
	ctx := context.Background()
	m := New(openTestDB(t), Config{})
	require.NoError(t, m.InitSchema(ctx))

	m.Inc("backups_exported_total", 1)
	m.Stop(ctx)

	got, err := m.Counters(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Value)
}
