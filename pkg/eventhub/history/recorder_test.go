package history_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/history"
)

type recorderFactory struct {
	name string
	new  func(t *testing.T) history.Recorder
}

func recorders() []recorderFactory {
	return []recorderFactory{
		{"memory", func(t *testing.T) history.Recorder {
			return history.NewMemoryRecorder()
		}},
		{"sqlite", func(t *testing.T) history.Recorder {
			r, err := history.NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
			require.NoError(t, err)
			return r
		}},
	}
}

func masked(ts time.Time, value string) *event.Event {
	return event.New("Analytics", "analytics", "track", map[string]any{"action": value, "other": ts.UnixNano()},
		event.WithMask("action"),
		event.WithTimestamp(ts),
	)
}

func TestRecorder_CountWindow(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, f := range recorders() {
		t.Run(f.name, func(t *testing.T) {
			r := f.new(t)
			defer r.Close()

			for i := 0; i < 5; i++ {
				require.NoError(t, r.Record(ctx, masked(base.Add(time.Duration(i)*time.Minute), "click")))
			}
			require.NoError(t, r.Record(ctx, masked(base, "view")))

			hash := masked(base, "click").Fingerprint()

			n, err := r.Count(ctx, hash, base, time.Time{})
			require.NoError(t, err)
			assert.Equal(t, 5, n)

			n, err = r.Count(ctx, hash, base.Add(time.Minute), base.Add(3*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, 3, n, "window bounds are inclusive")

			n, err = r.Count(ctx, hash, base.Add(time.Hour), time.Time{})
			require.NoError(t, err)
			assert.Zero(t, n)

			n, err = r.Count(ctx, masked(base, "view").Fingerprint(), time.Time{}, time.Time{})
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestRecorder_IgnoresUnfingerprinted(t *testing.T) {
	ctx := context.Background()

	r := history.NewMemoryRecorder()
	defer r.Close()

	require.NoError(t, r.Record(ctx, event.New("a", "t", "s", map[string]any{"k": "v"})))
	require.NoError(t, r.Record(ctx, event.New("a", "t", "s", map[string]any{"k": "v"}, event.WithMask("missing"))))
	assert.Zero(t, r.Len())
}

func TestRecorder_Closed(t *testing.T) {
	ctx := context.Background()

	for _, f := range recorders() {
		t.Run(f.name, func(t *testing.T) {
			r := f.new(t)
			require.NoError(t, r.Close())
			require.NoError(t, r.Close(), "close is idempotent")

			assert.ErrorIs(t, r.Record(ctx, masked(time.Now(), "x")), history.ErrRecorderClosed)
			_, err := r.Count(ctx, 1, time.Time{}, time.Time{})
			assert.ErrorIs(t, err, history.ErrRecorderClosed)
		})
	}
}

func TestRecorder_SummaryAndPrune(t *testing.T) {
	ctx := context.Background()
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	type summarizer interface {
		history.Recorder
		Summary(ctx context.Context) ([]history.TypeCount, error)
		Prune(ctx context.Context, before time.Time) (int64, error)
	}

	for _, f := range recorders() {
		t.Run(f.name, func(t *testing.T) {
			r := f.new(t).(summarizer)
			defer r.Close()

			require.NoError(t, r.Record(ctx, masked(old, "a")))
			require.NoError(t, r.Record(ctx, masked(recent, "b")))
			require.NoError(t, r.Record(ctx, event.New("x", "lifecycle", "start", map[string]any{"k": 1},
				event.WithMask(), event.WithTimestamp(recent))))

			summary, err := r.Summary(ctx)
			require.NoError(t, err)
			assert.Equal(t, []history.TypeCount{
				{Type: "analytics", Source: "track", Count: 2},
				{Type: "lifecycle", Source: "start", Count: 1},
			}, summary)

			removed, err := r.Prune(ctx, recent)
			require.NoError(t, err)
			assert.Equal(t, int64(1), removed)

			summary, err = r.Summary(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, summary[0].Count)
		})
	}
}

func TestSQLiteRecorder_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	r1, err := history.NewSQLiteRecorder(path)
	require.NoError(t, err)
	require.NoError(t, r1.Record(ctx, masked(ts, "persist")))
	require.NoError(t, r1.Close())

	r2, err := history.NewSQLiteRecorder(path, history.WithRetry(0, 0))
	require.NoError(t, err)
	defer r2.Close()

	n, err := r2.Count(ctx, masked(ts, "persist").Fingerprint(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteRecorder_InvalidPath(t *testing.T) {
	_, err := history.NewSQLiteRecorder("/nonexistent/path/history.db")
	assert.Error(t, err)
}

func TestSQLiteRecorder_Concurrent(t *testing.T) {
	ctx := context.Background()
	r, err := history.NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer r.Close()

	const goroutines = 10
	const records = 10
	ts := time.Now()

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < records; i++ {
				assert.NoError(t, r.Record(ctx, masked(ts, "same")))
			}
		}()
	}
	wg.Wait()

	n, err := r.Count(ctx, masked(ts, "same").Fingerprint(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, goroutines*records, n)
}
