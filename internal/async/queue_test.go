package async

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsAllTasks(t *testing.T) {
	p := NewPool(nil, WithWorkers(3), WithQueueSize(2))
	var n atomic.Int32
	for i := 0; i < 50; i++ {
		require.NoError(t, p.Submit(context.Background(), "inc", func(context.Context) { n.Add(1) }))
	}
	p.Shutdown(context.Background())
	assert.Equal(t, int32(50), n.Load())
	assert.Equal(t, 3, p.Workers())
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	p := NewPool(nil)
	p.Shutdown(context.Background())
	p.Shutdown(context.Background())
	err := p.Submit(context.Background(), "late", func(context.Context) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPool_TaskTimeout(t *testing.T) {
	p := NewPool(nil, WithWorkers(1), WithTaskTimeout(10*time.Millisecond))
	defer p.Shutdown(context.Background())

	done := make(chan error, 1)
	require.NoError(t, p.Submit(context.Background(), "slow", func(ctx context.Context) {
		<-ctx.Done()
		done <- ctx.Err()
	}))
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("task was not bounded by timeout")
	}
}

func TestPool_SubmitBlockedHonoursContext(t *testing.T) {
	p := NewPool(nil, WithWorkers(1), WithQueueSize(1))
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, p.Submit(context.Background(), "hold", func(context.Context) {
		wg.Done()
		<-release
	}))
	wg.Wait()
	require.NoError(t, p.Submit(context.Background(), "queued", func(context.Context) {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, "blocked", func(context.Context) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	p.Shutdown(context.Background())
}

func TestPool_RecoversPanics(t *testing.T) {
	p := NewPool(nil, WithWorkers(1))
	var ran atomic.Bool
	require.NoError(t, p.Submit(context.Background(), "boom", func(context.Context) { panic("boom") }))
	require.NoError(t, p.Submit(context.Background(), "after", func(context.Context) { ran.Store(true) }))
	p.Shutdown(context.Background())
	assert.True(t, ran.Load())
}
