package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/docgen/internal/domain"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory job queue
	QueueSize int

	// StuckTaskAge defines how long an unfinished task may go without an
	// update before it is considered stuck and requeued
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            10,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// unfinishedStates are the states recovery and the stuck monitor requeue.
var unfinishedStates = []domain.TaskState{
	domain.TaskStatePending,
	domain.TaskStateProcessing,
	domain.TaskStateRetrying,
}

// TaskRunner manages background task processing: a bounded queue drained by
// a worker pool, recovery of unfinished tasks on start, and a monitor that
// requeues tasks stuck after a crash.
type TaskRunner struct {
	store   TaskStore
	queue   *JobQueue
	pool    *WorkerPool
	factory JobFactory
	config  TaskRunnerConfig
	logger  *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// NewTaskRunner creates a new TaskRunner. factory rebuilds jobs for tasks
// found in the store.
func NewTaskRunner(store TaskStore, factory JobFactory, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	logger = logger.With("component", "task_runner")

	queue := NewJobQueue(config.QueueSize, logger)
	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		store:      store,
		queue:      queue,
		pool:       NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger),
		factory:    factory,
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(job Job, err error)) {
	r.pool.SetErrorHandler(handler)
}

// Submit adds a job to the queue without blocking.
func (r *TaskRunner) Submit(job Job) error {
	return r.queue.Enqueue(job)
}

// Start recovers unfinished tasks, then starts the workers and the stuck
// task monitor.
func (r *TaskRunner) Start(ctx context.Context) error {
	if err := r.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	r.pool.Start()

	if r.config.StuckTaskAge > 0 {
		r.wg.Add(1)
		go r.stuckTaskMonitor()
	}
	return nil
}

// Stop gracefully shuts down the task runner. Jobs still running see their
// context cancelled and are left for recovery.
func (r *TaskRunner) Stop() {
	r.stopOnce.Do(func() {
		r.cancelFunc()
		r.wg.Wait()
		r.pool.Stop()
		r.queue.Close()
	})
}

// Recover requeues every unfinished task in the store.
func (r *TaskRunner) Recover(ctx context.Context) error {
	counts := make(map[domain.TaskState]int, len(unfinishedStates))
	for _, state := range unfinishedStates {
		tasks, err := r.store.ListByState(ctx, state, 0)
		if err != nil {
			return fmt.Errorf("failed to list %s tasks: %w", state, err)
		}
		counts[state] = len(tasks)
		r.requeue(ctx, tasks, "recovered")
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", counts[domain.TaskStatePending],
		"processing_count", counts[domain.TaskStateProcessing],
		"retrying_count", counts[domain.TaskStateRetrying])
	return nil
}

func (r *TaskRunner) requeue(ctx context.Context, tasks []*domain.GenerationTask, reason string) {
	for _, t := range tasks {
		job, ok := r.factory(ctx, t)
		if !ok {
			continue
		}
		if err := r.queue.Enqueue(job); err != nil {
			r.logger.Error("failed to requeue task",
				"task_id", t.ID,
				"state", t.State,
				"reason", reason,
				"error", err)
			continue
		}
		r.logger.Info("requeued task", "task_id", t.ID, "state", t.State, "reason", reason)
	}
}

// stuckTaskMonitor periodically requeues unfinished tasks that stopped
// making progress.
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.checkStuckTasks(r.ctx)
		}
	}
}

func (r *TaskRunner) checkStuckTasks(ctx context.Context) {
	for _, state := range unfinishedStates {
		stuck, err := r.store.ListByState(ctx, state, r.config.StuckTaskAge)
		if err != nil {
			r.logger.Error("failed to check for stuck tasks", "state", state, "error", err)
			continue
		}
		if len(stuck) > 0 {
			r.logger.Info("found stuck tasks", "state", state, "count", len(stuck))
			r.requeue(ctx, stuck, "stuck")
		}
	}
}
