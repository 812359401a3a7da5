package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsSingleTaskOnSchedule(t *testing.T) {
	mock := clock.NewMock()
	var runs int32
	q := NewQueue(mock, func(ctx context.Context, task DumpsysTask) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	q.Schedule(ctx, &wg, DumpsysTask{Name: "wifi", Interval: 2 * time.Second, StartDelay: 0})

	mock.Add(time.Millisecond) // let the goroutine observe StartDelay==0 and run immediately
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))

	mock.Add(2 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))

	counters := q.Counters()
	require.Contains(t, counters, "wifi")
	assert.Equal(t, 2, counters["wifi"].Runs)
	assert.Equal(t, 2, counters["wifi"].OK)
}

func TestQueueSkipsBusyTick(t *testing.T) {
	mock := clock.NewMock()
	started := make(chan struct{})
	release := make(chan struct{})
	q := NewQueue(mock, func(ctx context.Context, task DumpsysTask) error {
		close(started)
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	q.Schedule(ctx, &wg, DumpsysTask{Name: "slow", Interval: time.Second, StartDelay: 0})

	mock.Add(time.Millisecond)
	<-started

	// Manually invoke a second tick while the first is still running; it
	// must be recorded as skipped rather than queued.
	q.tick(ctx, DumpsysTask{Name: "slow", Interval: time.Second})
	close(release)
	time.Sleep(10 * time.Millisecond)

	counters := q.Counters()
	assert.Equal(t, 1, counters["slow"].Skipped)
	assert.Equal(t, 1, counters["slow"].OK)
}

func TestQueueStopMarksSubsequentTicksSkipped(t *testing.T) {
	mock := clock.NewMock()
	q := NewQueue(mock, func(ctx context.Context, task DumpsysTask) error { return nil })
	q.Stop()

	ctx := context.Background()
	q.tick(ctx, DumpsysTask{Name: "wifi"})

	counters := q.Counters()
	assert.Equal(t, 1, counters["wifi"].Skipped)
	assert.Equal(t, 0, counters["wifi"].Runs)
}

func TestDefaultDumpsysTasksStaggerOffsets(t *testing.T) {
	tasks := DefaultDumpsysTasks()
	require.Len(t, tasks, 6)
	expectedDelays := []time.Duration{0, 400 * time.Millisecond, 800 * time.Millisecond, 1200 * time.Millisecond, 1600 * time.Millisecond, 2000 * time.Millisecond}
	for i, task := range tasks {
		assert.Equal(t, expectedDelays[i], task.StartDelay)
	}
}
