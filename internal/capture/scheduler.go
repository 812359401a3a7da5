package capture

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DumpsysTask is one of the six periodic dumpsys polls.
type DumpsysTask struct {
	Name       string
	Service    string
	Interval   time.Duration
	StartDelay time.Duration
}

// DefaultDumpsysTasks is the fixed six-task schedule: intervals
// 2s/10s/10s/10s/30s/30s, start offsets staggered 0/400/800/1200/1600/2000ms.
func DefaultDumpsysTasks() []DumpsysTask {
	return []DumpsysTask{
		{Name: "wifi", Service: "wifi", Interval: 2 * time.Second, StartDelay: 0},
		{Name: "conn", Service: "connectivity", Interval: 10 * time.Second, StartDelay: 400 * time.Millisecond},
		{Name: "deviceidle", Service: "deviceidle", Interval: 10 * time.Second, StartDelay: 800 * time.Millisecond},
		{Name: "power", Service: "power", Interval: 10 * time.Second, StartDelay: 1200 * time.Millisecond},
		{Name: "alarm", Service: "alarm", Interval: 30 * time.Second, StartDelay: 1600 * time.Millisecond},
		{Name: "jobs", Service: "jobscheduler", Interval: 30 * time.Second, StartDelay: 2000 * time.Millisecond},
	}
}

// TaskRunner executes one dumpsys task tick; returning the snapshot's
// outcome counters field to update.
type TaskRunner func(ctx context.Context, task DumpsysTask) error

// Queue serializes dumpsys ticks through a single-concurrency worker: a
// tick that finds the queue busy is dropped and counted `SKIPPED
// reason=busy`, never enqueued.
type Queue struct {
	clock clock.Clock
	run   TaskRunner

	mu        sync.Mutex
	busy      bool
	stopping  bool
	countersM sync.Mutex
	counters  map[string]*TaskCounters
}

// NewQueue builds a task queue bound to clk (use clock.New() for real time,
// a *clock.Mock in tests).
func NewQueue(clk clock.Clock, run TaskRunner) *Queue {
	return &Queue{
		clock:    clk,
		run:      run,
		counters: map[string]*TaskCounters{},
	}
}

// Stop raises the cooperative stopping flag; every tick after this point
// records SKIPPED reason=stopping and returns without running.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopping = true
	q.mu.Unlock()
}

// Counters returns a snapshot copy of the per-task counters, for manifest
// writes.
func (q *Queue) Counters() map[string]TaskCounters {
	q.countersM.Lock()
	defer q.countersM.Unlock()
	out := make(map[string]TaskCounters, len(q.counters))
	for k, v := range q.counters {
		out[k] = *v
	}
	return out
}

func (q *Queue) counterFor(name string) *TaskCounters {
	q.countersM.Lock()
	defer q.countersM.Unlock()
	c, ok := q.counters[name]
	if !ok {
		c = &TaskCounters{}
		q.counters[name] = c
	}
	return c
}

// Schedule launches a ticker for task and runs ticks against the shared
// single-concurrency gate until ctx is cancelled.
func (q *Queue) Schedule(ctx context.Context, wg *sync.WaitGroup, task DumpsysTask) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		if task.StartDelay > 0 {
			t := q.clock.Timer(task.StartDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}

		ticker := q.clock.Ticker(task.Interval)
		defer ticker.Stop()

		q.tick(ctx, task)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				q.tick(ctx, task)
			}
		}
	}()
}

func (q *Queue) tick(ctx context.Context, task DumpsysTask) {
	q.mu.Lock()
	if q.stopping {
		q.mu.Unlock()
		c := q.counterFor(task.Name)
		q.countersM.Lock()
		c.Skipped++
		q.countersM.Unlock()
		return
	}
	if q.busy {
		q.mu.Unlock()
		c := q.counterFor(task.Name)
		q.countersM.Lock()
		c.Skipped++
		q.countersM.Unlock()
		return
	}
	q.busy = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.busy = false
		q.mu.Unlock()
	}()

	c := q.counterFor(task.Name)
	q.countersM.Lock()
	c.Runs++
	q.countersM.Unlock()

	start := q.clock.Now()
	err := q.run(ctx, task)
	dur := q.clock.Now().Sub(start)

	q.countersM.Lock()
	c.LastDurationMs = dur.Milliseconds()
	switch {
	case err == nil:
		c.OK++
	case err == context.DeadlineExceeded:
		c.Timeout++
	default:
		c.Error++
	}
	q.countersM.Unlock()
}
