package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasks(t *testing.T) {
	pool := NewPool(2, 8)
	pool.Start(context.Background())
	defer pool.Stop()

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		ok := pool.Submit(func(ctx context.Context) {
			defer wg.Done()
			count.Add(1)
		})
		require.True(t, ok)
	}
	wg.Wait()
	require.EqualValues(t, 5, count.Load())
}

func TestPoolRejectsWhenFull(t *testing.T) {
	pool := NewPool(1, 1)
	// Not started, so the single queue slot fills and the rest are rejected.
	require.True(t, pool.Submit(func(ctx context.Context) {}))
	require.False(t, pool.Submit(func(ctx context.Context) {}))
}

func TestPoolStopCancelsContext(t *testing.T) {
	pool := NewPool(1, 1)
	pool.Start(context.Background())

	started := make(chan struct{})
	done := make(chan struct{})
	require.True(t, pool.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(done)
	}))
	<-started
	pool.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled on stop")
	}
}
