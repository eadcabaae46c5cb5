package runlog_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mobiqc/internal/runlog"
)

func openStore(t *testing.T) *runlog.Store {
	t.Helper()
	store, err := runlog.OpenPath(filepath.Join(t.TempDir(), "state", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStartAndFinish(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run, err := store.Start(ctx, " P0004 ", "/data/sub-P0004/rec.xdf")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	require.Equal(t, "P0004", run.Subject)

	fetched, err := store.Get(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, runlog.StatusRunning, fetched.Status)
	require.True(t, math.IsNaN(fetched.PercentGood))
	require.True(t, fetched.FinishedAt.IsZero())

	run.PercentGood = 95
	run.Columns = 42
	require.NoError(t, store.Finish(ctx, run, runlog.StatusSaved, nil))

	fetched, err = store.Get(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, runlog.StatusSaved, fetched.Status)
	require.Equal(t, 95.0, fetched.PercentGood)
	require.Equal(t, 42, fetched.Columns)
	require.Empty(t, fetched.Error)
	require.False(t, fetched.FinishedAt.IsZero())
	require.GreaterOrEqual(t, fetched.Elapsed(), time.Duration(0))
}

func TestFinishRecordsFailure(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run, err := store.Start(ctx, "P1", "rec.xdf")
	require.NoError(t, err)
	require.NoError(t, store.Finish(ctx, run, runlog.StatusFailed, errors.New("webcam adapter: not found")))

	runs, err := store.ForSubject(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, runlog.StatusFailed, runs[0].Status)
	require.Equal(t, "webcam adapter: not found", runs[0].Error)

	missing, err := store.Get(ctx, "no-such-run")
	require.NoError(t, err)
	require.Nil(t, missing)
	require.Error(t, store.Finish(ctx, &runlog.Run{ID: "no-such-run"}, runlog.StatusSaved, nil))
}

func TestRecentNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for _, subject := range []string{"A", "B", "C"} {
		_, err := store.Start(ctx, subject, subject+".xdf")
		require.NoError(t, err)
	}

	runs, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "C", runs[0].Subject)
	require.Equal(t, "B", runs[1].Subject)

	all, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestMarkInterrupted(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	done, err := store.Start(ctx, "A", "a.xdf")
	require.NoError(t, err)
	require.NoError(t, store.Finish(ctx, done, runlog.StatusExists, nil))
	stuck, err := store.Start(ctx, "B", "b.xdf")
	require.NoError(t, err)

	n, err := store.MarkInterrupted(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	fetched, err := store.Get(ctx, stuck.ID)
	require.NoError(t, err)
	require.Equal(t, runlog.StatusFailed, fetched.Status)
	require.Equal(t, "interrupted", fetched.Error)

	kept, err := store.Get(ctx, done.ID)
	require.NoError(t, err)
	require.Equal(t, runlog.StatusExists, kept.Status)
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := runlog.OpenPath(path)
	require.NoError(t, err)
	_, err = store.Start(context.Background(), "A", "a.xdf")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = runlog.OpenPath(path)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}
