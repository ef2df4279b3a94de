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

func TestPoolRunsEveryTaskAndDrains(t *testing.T) {
	p := NewPool(nil, WithWorkers(3), WithQueueSize(2))
	assert.Equal(t, 3, p.Workers())

	var n atomic.Int32
	for i := 0; i < 50; i++ {
		require.NoError(t, p.Submit(context.Background(), func(int) { n.Add(1) }))
	}
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(50), n.Load())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(nil, WithWorkers(2))

	var cur, peak atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(context.Background(), func(int) {
			c := cur.Add(1)
			for {
				old := peak.Load()
				if c <= old || peak.CompareAndSwap(old, c) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			cur.Add(-1)
		}))
	}
	require.NoError(t, p.Shutdown(context.Background()))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestSubmitAfterShutdown(t *testing.T) {
	p := NewPool(nil)
	require.NoError(t, p.Shutdown(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))

	err := p.Submit(context.Background(), func(int) {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestSubmitGivesUpWhenContextEnds(t *testing.T) {
	p := NewPool(nil, WithWorkers(1), WithQueueSize(1))
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit(context.Background(), func(int) { close(started); <-release }))
	<-started
	require.NoError(t, p.Submit(context.Background(), func(int) {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func(int) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPanickingTaskDoesNotKillWorker(t *testing.T) {
	p := NewPool(nil, WithWorkers(1))
	var wg sync.WaitGroup
	wg.Add(1)

	require.NoError(t, p.Submit(context.Background(), func(int) { panic("boom") }))
	require.NoError(t, p.Submit(context.Background(), func(id int) {
		assert.Equal(t, 1, id)
		wg.Done()
	}))
	wg.Wait()
	require.NoError(t, p.Shutdown(context.Background()))
}
