package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func TestLoop_DoExecutesAndWaits(t *testing.T) {
	l := startLoop(t)

	ran := false
	require.NoError(t, l.Do(func() { ran = true }))
	assert.True(t, ran, "Do must not return before the task ran")
}

func TestLoop_TasksRunInFIFOOrder(t *testing.T) {
	l := startLoop(t)

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		l.Submit(func() { order = append(order, i) })
	}
	// Do acts as a barrier: everything submitted before it has run.
	require.NoError(t, l.Do(func() {}))

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestLoop_SerializesConcurrentSubmitters(t *testing.T) {
	l := startLoop(t)

	// Shared counter mutated without its own lock; the loop is the only
	// writer, so the final count must still be exact.
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Do(func() { count++ }))
		}()
	}
	wg.Wait()

	require.NoError(t, l.Do(func() {}))
	assert.Equal(t, 50, count)
}

func TestLoop_DoAfterStop(t *testing.T) {
	l := NewLoop()
	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()

	l.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.ErrorIs(t, l.Do(func() {}), ErrStopped)
	assert.False(t, l.Submit(func() {}))
}

func TestLoop_PanickingTaskDoesNotKillLoop(t *testing.T) {
	l := startLoop(t)

	l.Submit(func() { panic("bad snapshot") })

	ran := false
	require.NoError(t, l.Do(func() { ran = true }))
	assert.True(t, ran)
}
