// Package refresh is the control plane for the per-stream ingestion
// pipelines: it runs them on demand under an at-most-one-concurrent
// guard and exposes a consistent progress snapshot.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/metrics"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/runner"
)

// TaskFunc runs one stream's pipeline and reports how many records it
// ingested.
type TaskFunc func(ctx context.Context) (int, error)

// Task binds a stream to its pipeline.
type Task struct {
	Stream pulse.Stream
	Run    TaskFunc
}

// Coordinator owns the fetch-status state and the single-refresh
// invariant. All snapshot mutation happens under mu; readers get
// copies.
type Coordinator struct {
	mu       sync.Mutex
	active   bool
	statuses map[pulse.Stream]pulse.FetchStatus

	tasks  []Task
	budget time.Duration
	runner *runner.Runner
	logger *zap.Logger
	now    func() time.Time
}

// New builds a Coordinator over the registered stream tasks. A nil
// runner executes tasks directly; otherwise each task goes through
// the retry policy. budget bounds one whole refresh pass; zero means
// unbounded.
func New(tasks []Task, budget time.Duration, r *runner.Runner, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	statuses := make(map[pulse.Stream]pulse.FetchStatus, len(tasks))
	for _, t := range tasks {
		statuses[t.Stream] = pulse.FetchStatus{Status: pulse.FetchIdle}
	}
	return &Coordinator{
		statuses: statuses,
		tasks:    tasks,
		budget:   budget,
		runner:   r,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// TriggerAll starts an asynchronous refresh of every registered
// stream and returns immediately. The second concurrent trigger
// returns false and mutates nothing. ctx must outlive the call; it is
// the shutdown signal for the background work.
func (c *Coordinator) TriggerAll(ctx context.Context) bool {
	return c.Trigger(ctx, nil)
}

// Trigger refreshes the named streams (all registered streams when
// the slice is empty). Returns false when a refresh is already in
// flight.
func (c *Coordinator) Trigger(ctx context.Context, streams []pulse.Stream) bool {
	selected := c.selectTasks(streams)
	if len(selected) == 0 {
		return false
	}

	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return false
	}
	c.active = true
	start := c.now()
	for _, t := range selected {
		c.statuses[t.Stream] = pulse.FetchStatus{
			Status:    pulse.FetchRunning,
			LastStart: &start,
		}
	}
	c.mu.Unlock()

	go c.run(ctx, selected)
	return true
}

func (c *Coordinator) selectTasks(streams []pulse.Stream) []Task {
	if len(streams) == 0 {
		return c.tasks
	}
	wanted := make(map[pulse.Stream]struct{}, len(streams))
	for _, s := range streams {
		wanted[s] = struct{}{}
	}
	var out []Task
	for _, t := range c.tasks {
		if _, ok := wanted[t.Stream]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (c *Coordinator) run(ctx context.Context, tasks []Task) {
	if c.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.budget)
		defer cancel()
	}

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			c.runStream(ctx, t)
		}(t)
	}
	wg.Wait()

	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
	c.logger.Info("refresh pass finished")
}

func (c *Coordinator) runStream(ctx context.Context, t Task) {
	name := "refresh-" + string(t.Stream)

	var ingested int
	task := func(ctx context.Context) error {
		n, err := t.Run(ctx)
		if err != nil {
			return err
		}
		ingested = n
		return nil
	}

	var err error
	if c.runner != nil {
		err = c.runner.Run(ctx, name, task)
	} else {
		err = task(ctx)
	}

	finish := c.now()
	c.mu.Lock()
	status := c.statuses[t.Stream]
	status.LastFinish = &finish
	if err != nil {
		status.Status = pulse.FetchError
		status.LastError = pulse.TruncateError(reason(err))
		status.RecordsIngested = 0
	} else {
		status.Status = pulse.FetchSuccess
		status.LastError = ""
		status.RecordsIngested = ingested
	}
	started := status.LastStart
	c.statuses[t.Stream] = status
	c.mu.Unlock()

	elapsed := time.Duration(0)
	if started != nil {
		elapsed = finish.Sub(*started)
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ObserveRefresh(string(t.Stream), outcome, elapsed)
	metrics.ObserveIngest(string(t.Stream), ingested)

	if err != nil {
		c.logger.Error("stream refresh failed",
			zap.String("stream", string(t.Stream)),
			zap.Error(err),
		)
		return
	}
	c.logger.Info("stream refresh finished",
		zap.String("stream", string(t.Stream)),
		zap.Int("records", ingested),
	)
}

// reason collapses budget exhaustion to the documented "timeout"
// marker; everything else keeps its message.
func reason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return err.Error()
}

// Status returns the coordinator snapshot. Running is derived from
// the per-stream states under the same lock, so a reader never sees
// running=false alongside a running stream.
func (c *Coordinator) Status() pulse.RefreshState {
	c.mu.Lock()
	defer c.mu.Unlock()
	anyRunning := false
	for _, st := range c.statuses {
		if st.Status == pulse.FetchRunning {
			anyRunning = true
			break
		}
	}
	return pulse.RefreshState{
		Running: anyRunning,
		Papers:  c.statuses[pulse.StreamPapers],
		Jobs:    c.statuses[pulse.StreamJobs],
		News:    c.statuses[pulse.StreamNews],
	}
}

// StreamStatus returns one stream's snapshot.
func (c *Coordinator) StreamStatus(s pulse.Stream) (pulse.FetchStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.statuses[s]
	return st, ok
}
