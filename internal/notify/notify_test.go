package notify

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardCountsAccumulate(t *testing.T) {
	b := NewBoard(3)

	b.Signal(1)
	b.Signal(1)
	b.Signal(1)

	assert.Equal(t, int64(3), b.Pending(1))
	assert.Equal(t, int64(0), b.Pending(0))

	for range 3 {
		assert.True(t, b.Take(1))
	}
	assert.False(t, b.Take(1))
	assert.False(t, b.Take(0))
}

func TestBoardNotifyRange(t *testing.T) {
	b := NewBoard(2)
	require.NoError(t, b.Notify(1))
	assert.Error(t, b.Notify(2))
	assert.Error(t, b.Notify(-1))
}

func TestBoardWaitAfterSignal(t *testing.T) {
	b := NewBoard(1)
	b.Signal(0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.Wait(ctx))
}

func TestBoardWaitBlocksUntilSignal(t *testing.T) {
	b := NewBoard(2)
	done := make(chan error, 1)

	go func() {
		done <- b.Wait(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before any signal")
	case <-time.After(20 * time.Millisecond):
	}

	b.Signal(1)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Wait to return")
	}
}

func TestBoardWaitCancelled(t *testing.T) {
	b := NewBoard(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, b.Wait(ctx), context.Canceled)
}

func TestBoardConcurrentSignals(t *testing.T) {
	const workers = 4
	const perWorker = 250
	b := NewBoard(workers)

	var wg sync.WaitGroup
	for id := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				b.Signal(id)
			}
		}()
	}
	wg.Wait()

	for id := range workers {
		assert.Equal(t, int64(perWorker), b.Pending(id))
	}
}

func TestPipeNotifierAndRelay(t *testing.T) {
	var wire bytes.Buffer
	n := NewPipeNotifier(&wire)
	require.NoError(t, n.Notify(2))
	require.NoError(t, n.Notify(2))

	b := NewBoard(3)
	require.NoError(t, Relay(&wire, 2, b))
	assert.Equal(t, int64(2), b.Pending(2))
}

func TestRelayIgnoresForeignTags(t *testing.T) {
	b := NewBoard(2)
	require.NoError(t, Relay(strings.NewReader("1\x00x\x000\x00"), 0, b))

	assert.Equal(t, int64(1), b.Pending(0))
	assert.Equal(t, int64(0), b.Pending(1))
}

func TestRelayTruncatedStream(t *testing.T) {
	b := NewBoard(1)
	err := Relay(strings.NewReader("0\x000"), 0, b)
	assert.Error(t, err)
	assert.Equal(t, int64(1), b.Pending(0))
}
