package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/authoring"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/domain/keys"
	"github.com/phrazzld/docgen/internal/events"
	"github.com/phrazzld/docgen/internal/identity"
	"github.com/phrazzld/docgen/internal/metrics"
	"github.com/phrazzld/docgen/internal/placeholder"
	"github.com/phrazzld/docgen/internal/retry"
	"github.com/phrazzld/docgen/internal/store"
)

// Errors returned by the Orchestrator
var (
	// ErrCancelled ends a task whose cancellation was observed.
	ErrCancelled = errors.New("generation task cancelled")

	// ErrNotCancellable is returned when cancelling a finished task.
	ErrNotCancellable = errors.New("generation task cannot be cancelled")

	// ErrTaskNotOwned is returned when cancelling an unfinished task that is
	// executed by another process.
	ErrTaskNotOwned = errors.New("generation task is owned by another process")
)

// SubmitRequest is a request to generate a document.
type SubmitRequest struct {
	TemplateID  uuid.UUID
	FormData    map[string]any
	RequesterID string
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Templates  store.TemplateStore
	Documents  store.DocumentStore
	Tasks      TaskStore
	Registry   *placeholder.Registry
	Identity   *identity.Engine
	Normalizer *keys.Normalizer
	// Authoring should be wrapped in an authoring.Guarded.
	Authoring authoring.Client
	Sink      events.Sink
	Metrics   metrics.Recorder
	// Aliases maps normalized form keys to identity fields. Nil uses
	// identity.DefaultAliases.
	Aliases map[string]identity.Field
}

// Orchestrator accepts generation requests and drives them to a terminal
// state on the runner's workers. Only the Orchestrator mutates tasks.
type Orchestrator struct {
	Deps
	policy retry.Policy
	runner *TaskRunner
	logger *slog.Logger

	mu   sync.Mutex
	live map[uuid.UUID]*taskHandle
}

// taskHandle is the in-process state of a task owned by this orchestrator.
// mu serializes writers; snapshot lets readers skip the lock. cancelReq is
// closed once cancellation is requested.
type taskHandle struct {
	mu         sync.Mutex
	task       *domain.GenerationTask
	snapshot   atomic.Pointer[domain.TaskSnapshot]
	cancelled  atomic.Bool
	cancelReq  chan struct{}
	cancelOnce sync.Once
}

func newTaskHandle(t *domain.GenerationTask) *taskHandle {
	h := &taskHandle{task: t, cancelReq: make(chan struct{})}
	snap := t.Snapshot()
	h.snapshot.Store(&snap)
	return h
}

func (h *taskHandle) requestCancel() {
	h.cancelled.Store(true)
	h.cancelOnce.Do(func() { close(h.cancelReq) })
}

// NewOrchestrator creates an Orchestrator and its TaskRunner. policy.Classifier
// defaults to authoring.Classify.
func NewOrchestrator(deps Deps, policy retry.Policy, runnerCfg TaskRunnerConfig, logger *slog.Logger) *Orchestrator {
	if policy.Classifier == nil {
		policy.Classifier = authoring.Classify
	}
	if deps.Sink == nil {
		deps.Sink = events.Discard
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Normalizer == nil {
		deps.Normalizer = keys.NewNormalizer(keys.DefaultFallback)
	}
	if deps.Aliases == nil {
		deps.Aliases = identity.DefaultAliases
	}

	o := &Orchestrator{
		Deps:   deps,
		policy: policy,
		logger: logger.With("component", "orchestrator"),
		live:   make(map[uuid.UUID]*taskHandle),
	}
	o.runner = NewTaskRunner(deps.Tasks, o.recoverJob, runnerCfg, logger)
	return o
}

// Start recovers unfinished tasks and starts the workers.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.runner.Start(ctx)
}

// Stop stops the workers. Interrupted tasks stay unfinished in the store and
// are recovered on the next Start.
func (o *Orchestrator) Stop() {
	o.runner.Stop()
}

// Submit validates a request, persists a pending task and queues it. The
// template must be published; national ids in the form must pass their
// checksum and the form must bind to the template's placeholders. These
// errors are returned synchronously and nothing is persisted.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (uuid.UUID, error) {
	tpl, err := o.Templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		return uuid.Nil, err
	}
	if tpl.Status != domain.TemplateStatusPublished {
		return uuid.Nil, fmt.Errorf("%w: template %s is %s", domain.ErrTemplateNotPublished, tpl.ID, tpl.Status)
	}

	if _, err := o.Identity.Incoming(o.candidates(req.FormData)); err != nil {
		return uuid.Nil, err
	}
	if _, err := o.Registry.Bind(ctx, tpl, req.FormData); err != nil {
		return uuid.Nil, err
	}

	t := domain.NewGenerationTask(tpl, req.RequesterID, req.FormData)
	if err := o.Tasks.Create(ctx, t); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save task: %w", err)
	}

	h := newTaskHandle(t)
	o.track(h)
	o.publish(ctx, *h.snapshot.Load())
	if err := o.runner.Submit(o.newJob(h)); err != nil {
		o.reject(ctx, h, err)
		return uuid.Nil, err
	}

	o.logger.InfoContext(ctx, "generation task submitted",
		"task_id", t.ID,
		"template_id", tpl.ID,
		"template_version", tpl.Version)
	return t.ID, nil
}

// reject fails a task the queue refused.
func (o *Orchestrator) reject(ctx context.Context, h *taskHandle, cause error) {
	o.update(ctx, h, func(t *domain.GenerationTask) error {
		t.ErrorClass = domain.ErrorClassInternal
		t.StatusMessage = "rejected: task queue is full"
		return domain.TaskLifecycle.Apply(t, domain.TaskStateFailure)
	})
	o.release(h.task.ID)
	o.logger.WarnContext(ctx, "generation task rejected", "task_id", h.task.ID, "error", cause)
}

// GetStatus returns the task's current snapshot. Tasks run by this process
// are read from memory without waiting on their worker; others are loaded
// from the store.
func (o *Orchestrator) GetStatus(ctx context.Context, id uuid.UUID) (domain.TaskSnapshot, error) {
	if h := o.handle(id); h != nil {
		return *h.snapshot.Load(), nil
	}
	t, err := o.Tasks.GetByID(ctx, id)
	if err != nil {
		return domain.TaskSnapshot{}, err
	}
	return t.Snapshot(), nil
}

// Cancel requests cancellation. A pending task is cancelled at once. A
// running task is flagged: the flag is checked between phases and before
// every attempt, a retry backoff in progress is cut short, and the result
// of an attempt already in flight is discarded. Finished tasks fail with
// ErrNotCancellable.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) error {
	h := o.handle(id)
	if h == nil {
		t, err := o.Tasks.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if t.IsTerminal() {
			return fmt.Errorf("%w: task is %s", ErrNotCancellable, t.State)
		}
		return ErrTaskNotOwned
	}

	h.mu.Lock()
	state := h.task.State
	if domain.TaskLifecycle.IsTerminal(state) {
		h.mu.Unlock()
		return fmt.Errorf("%w: task is %s", ErrNotCancellable, state)
	}
	h.requestCancel()
	h.mu.Unlock()

	if state == domain.TaskStatePending {
		o.update(ctx, h, func(t *domain.GenerationTask) error {
			if t.State != domain.TaskStatePending {
				// A worker picked it up meanwhile; the flag takes over.
				return errSkipUpdate
			}
			t.ErrorClass = domain.ErrorClassCancelled
			t.StatusMessage = "cancelled before start"
			return domain.TaskLifecycle.Apply(t, domain.TaskStateCancelled)
		})
	}
	o.logger.InfoContext(ctx, "generation task cancellation requested", "task_id", id, "state", state)
	return nil
}

// errSkipUpdate aborts an update without logging.
var errSkipUpdate = errors.New("skip update")

// update mutates the task under its lock, then persists the change and
// publishes the new snapshot. It reports whether the mutation was applied.
func (o *Orchestrator) update(ctx context.Context, h *taskHandle, mutate func(t *domain.GenerationTask) error) bool {
	h.mu.Lock()
	if err := mutate(h.task); err != nil {
		h.mu.Unlock()
		if !errors.Is(err, errSkipUpdate) {
			o.logger.ErrorContext(ctx, "invalid task update", "task_id", h.task.ID, "error", err)
		}
		return false
	}
	h.task.Touch(time.Now().UTC())
	snap := h.task.Snapshot()
	h.snapshot.Store(&snap)
	persisted := *h.task
	h.mu.Unlock()

	// Status writes must land even when the job's context is gone.
	ctx = context.WithoutCancel(ctx)
	if err := o.Tasks.Update(ctx, &persisted); err != nil {
		o.logger.ErrorContext(ctx, "failed to persist task state",
			"task_id", persisted.ID,
			"state", persisted.State,
			"error", err)
	}
	o.publish(ctx, snap)
	return true
}

func (o *Orchestrator) publish(ctx context.Context, snap domain.TaskSnapshot) {
	if err := o.Sink.Publish(ctx, events.NewProgressEvent(snap)); err != nil {
		o.logger.WarnContext(ctx, "failed to publish progress", "task_id", snap.TaskID, "error", err)
	}
}

func (o *Orchestrator) candidates(form map[string]any) []identity.Candidate {
	return identity.CandidatesFromForm(form, o.Normalizer.Normalize, o.Aliases)
}

func (o *Orchestrator) track(h *taskHandle) {
	o.mu.Lock()
	o.live[h.task.ID] = h
	o.mu.Unlock()
}

func (o *Orchestrator) handle(id uuid.UUID) *taskHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.live[id]
}

func (o *Orchestrator) release(id uuid.UUID) {
	o.mu.Lock()
	delete(o.live, id)
	o.mu.Unlock()
}

// recoverJob is the runner's JobFactory. Tasks already live in this process
// are skipped.
func (o *Orchestrator) recoverJob(_ context.Context, t *domain.GenerationTask) (Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.live[t.ID]; ok || t.IsTerminal() {
		return nil, false
	}
	h := newTaskHandle(t)
	o.live[t.ID] = h
	return o.newJob(h), true
}
