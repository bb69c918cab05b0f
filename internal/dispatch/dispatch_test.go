package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestImmediate_RunsInPlace(t *testing.T) {
	ran := false
	Immediate{}.Post(func() { ran = true })
	assert.True(t, ran)

	assert.NotPanics(t, func() { Immediate{}.Post(nil) })
}

func TestLoop_RunsCallbacksInOrderOnOneGoroutine(t *testing.T) {
	loop := NewLoop(8, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = loop.Run(ctx) }()

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		n := i
		loop.Post(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		})
	}
	wg.Wait()

	for i := range order {
		assert.Equal(t, i, order[i])
	}
}

func TestLoop_StopsOnContextCancel(t *testing.T) {
	loop := NewLoop(1, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}

	select {
	case <-loop.Done():
	default:
		t.Fatal("Done should be closed after Run returns")
	}

	// posting after stop must not block
	assert.NotPanics(t, func() { loop.Post(func() {}) })
}

func TestAwait(t *testing.T) {
	t.Run("immediate", func(t *testing.T) {
		ran := false
		err := Await(context.Background(), Immediate{}, func() { ran = true })
		require.NoError(t, err)
		assert.True(t, ran)
	})

	t.Run("loop", func(t *testing.T) {
		loop := NewLoop(4, testLogger())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = loop.Run(ctx) }()

		ran := false
		err := Await(context.Background(), loop, func() { ran = true })
		require.NoError(t, err)
		assert.True(t, ran)
	})

	t.Run("context expires while loop is not running", func(t *testing.T) {
		loop := NewLoop(4, testLogger())
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := Await(ctx, loop, func() {})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("loop already stopped", func(t *testing.T) {
		loop := NewLoop(4, testLogger())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, loop.Run(ctx))

		err := Await(context.Background(), loop, func() {})
		assert.ErrorIs(t, err, ErrLoopClosed)
	})
}
