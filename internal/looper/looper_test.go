package looper

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/mediaroute-go/internal/errors"
)

func newTestLooper(t *testing.T) *Looper {
	t.Helper()

	l := New(slog.Default(), t.Name())
	l.Start()
	t.Cleanup(l.Stop)

	return l
}

func TestLooper_RunsTasksInPostOrder(t *testing.T) {
	l := newTestLooper(t)

	var got []int

	for i := range 100 {
		require.True(t, l.Post(func() { got = append(got, i) }))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, l.Flush(ctx))
	require.Len(t, got, 100)

	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLooper_TaskPostedFromTaskRunsAfterQueuedTasks(t *testing.T) {
	l := newTestLooper(t)

	var order []string

	gate := make(chan struct{})

	l.Post(func() { <-gate })
	l.Post(func() {
		order = append(order, "first")
		l.Post(func() { order = append(order, "deferred") })
	})
	l.Post(func() { order = append(order, "second") })
	close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, l.Flush(ctx))
	require.NoError(t, l.Flush(ctx))
	require.Equal(t, []string{"first", "second", "deferred"}, order)
}

func TestLooper_ConcurrentPosters(t *testing.T) {
	l := newTestLooper(t)

	var (
		wg    sync.WaitGroup
		count int
	)

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				l.Post(func() { count++ })
			}
		}()
	}

	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, l.Flush(ctx))
	require.Equal(t, 1000, count)
}

func TestLooper_PostAfterStop(t *testing.T) {
	l := New(slog.Default(), "stopped")
	l.Start()
	l.Stop()
	l.Stop()

	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Call(context.Background(), func() {}), errors.ErrLooperStopped)

	select {
	case <-l.Done():
	default:
		t.Fatal("Done channel should be closed after Stop")
	}
}

func TestLooper_CallHonoursContext(t *testing.T) {
	l := newTestLooper(t)

	release := make(chan struct{})
	defer close(release)

	l.Post(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Call(ctx, func() {})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
