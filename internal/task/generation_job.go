package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/authoring"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/identity"
	"github.com/phrazzld/docgen/internal/retry"
	"github.com/phrazzld/docgen/internal/store"
)

// Progress reached at the end of each execution phase.
const (
	progressClientResolved = 10
	progressBound          = 25
	progressGenerated      = 90
	progressDone           = 100
)

// generationJob executes one GenerationTask.
type generationJob struct {
	o *Orchestrator
	h *taskHandle
	id uuid.UUID
}

func (o *Orchestrator) newJob(h *taskHandle) *generationJob {
	return &generationJob{o: o, h: h, id: h.task.ID}
}

// ID implements Job.
func (j *generationJob) ID() uuid.UUID { return j.id }

// authoringError marks errors raised by the authoring phase.
type authoringError struct{ err error }

func (e *authoringError) Error() string { return e.err.Error() }
func (e *authoringError) Unwrap() error { return e.err }

// Execute implements Job. It returns the error that ended the task; the task
// itself records the outcome.
func (j *generationJob) Execute(ctx context.Context) error {
	o := j.o
	logger := o.logger.With("task_id", j.id)

	if !j.begin(ctx) {
		o.release(j.id)
		return nil
	}

	o.Metrics.TaskStarted()
	started := time.Now()

	err := j.run(ctx)

	if err != nil && ctx.Err() != nil && !j.h.cancelled.Load() {
		// The runner is stopping: leave the task unfinished for recovery.
		o.Metrics.TaskFinished("interrupted", time.Since(started), j.attempts())
		o.release(j.id)
		logger.WarnContext(ctx, "generation task interrupted by shutdown", "error", err)
		return nil
	}

	state := j.finish(ctx, err)
	o.Metrics.TaskFinished(string(state), time.Since(started), j.attempts())
	o.release(j.id)

	if err != nil {
		logger.InfoContext(ctx, "generation task ended", "state", state, "error", err)
		return err
	}
	logger.InfoContext(ctx, "generation task succeeded", "duration", time.Since(started))
	return nil
}

// begin moves the task into Processing. Tasks recovered in Processing pass
// through Retrying first so the restart is visible. It returns false when
// the task was cancelled or finished before it could start.
func (j *generationJob) begin(ctx context.Context) bool {
	return j.o.update(ctx, j.h, func(t *domain.GenerationTask) error {
		switch t.State {
		case domain.TaskStateProcessing:
			if err := domain.TaskLifecycle.Apply(t, domain.TaskStateRetrying); err != nil {
				return err
			}
			t.StatusMessage = "resumed after restart"
		case domain.TaskStatePending, domain.TaskStateRetrying:
			t.StatusMessage = "processing"
		default:
			return errSkipUpdate
		}
		return domain.TaskLifecycle.Apply(t, domain.TaskStateProcessing)
	})
}

func (j *generationJob) run(ctx context.Context) error {
	o := j.o
	task := j.task()

	tpl, err := o.Templates.GetByID(ctx, task.TemplateID)
	if err != nil {
		return err
	}
	if tpl.Status != domain.TemplateStatusPublished {
		return fmt.Errorf("%w: template %s is %s", domain.ErrTemplateNotPublished, tpl.ID, tpl.Status)
	}
	if err := j.checkCancelled(); err != nil {
		return err
	}

	// (1) client
	client, err := j.resolveClient(ctx, task.FormData)
	if err != nil {
		return err
	}
	j.advance(ctx, progressClientResolved, "client resolved", func(t *domain.GenerationTask) {
		if client != nil {
			id := client.ID
			t.ClientID = &id
		}
	})
	if err := j.checkCancelled(); err != nil {
		return err
	}

	// (2) substitutions
	binding, err := o.Registry.Bind(ctx, tpl, task.FormData)
	if err != nil {
		return err
	}
	j.advance(ctx, progressBound, "substitutions built", nil)
	if err := j.checkCancelled(); err != nil {
		return err
	}

	// (3) authoring
	artifactRef, err := j.generate(ctx, tpl, client, binding.Substitutions)
	if err != nil {
		j.cleanup(ctx, artifactRef)
		return err
	}
	if err := j.checkCancelled(); err != nil {
		j.cleanup(ctx, artifactRef)
		return err
	}
	j.advance(ctx, progressGenerated, "document generated", nil)

	// (4) document
	current := j.task()
	doc, err := domain.NewDocument(&current, artifactRef)
	if err != nil {
		j.cleanup(ctx, artifactRef)
		return err
	}
	if err := o.Documents.Create(context.WithoutCancel(ctx), doc); err != nil {
		j.cleanup(ctx, artifactRef)
		return fmt.Errorf("failed to save document: %w", err)
	}
	j.advance(ctx, progressDone, "document saved", func(t *domain.GenerationTask) {
		id := doc.ID
		t.DocumentID = &id
	})
	return nil
}

func (j *generationJob) resolveClient(ctx context.Context, form map[string]any) (*domain.Client, error) {
	client, created, err := j.o.Identity.Resolve(ctx, j.o.candidates(form))
	if errors.Is(err, identity.ErrNoIdentifier) {
		j.o.logger.WarnContext(ctx, "submission has no client identifier, generating without client", "task_id", j.id)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.o.logger.DebugContext(ctx, "client resolved", "task_id", j.id, "client_id", client.ID, "created", created)
	return client, nil
}

// generate copies the template and applies the substitutions under the retry
// policy. The copy is made once and reused by later attempts. The returned
// artifact reference is set whenever a copy exists, even on error.
func (j *generationJob) generate(
	ctx context.Context,
	tpl *domain.Template,
	client *domain.Client,
	substitutions map[string]string,
) (string, error) {
	o := j.o
	var artifactRef string

	span := progressGenerated - progressBound
	maxAttempts := max(o.policy.MaxAttempts, 1)

	policy := o.policy
	policy.Sleep = j.cancellableSleep(policy.Sleep)

	attempts, err := retry.Do(ctx, policy, func(ctx context.Context) error {
		if artifactRef == "" {
			ref, err := o.Authoring.CopyTemplate(ctx, tpl.SourceRef, artifactName(tpl, client, j.id))
			if err != nil {
				return err
			}
			artifactRef = ref
		}
		return o.Authoring.ApplySubstitutions(ctx, artifactRef, substitutions)
	}, retry.Hooks{
		BeforeAttempt: func(ctx context.Context, attempt int) error {
			if err := j.checkCancelled(); err != nil {
				return err
			}
			o.update(ctx, j.h, func(t *domain.GenerationTask) error {
				if t.State == domain.TaskStateRetrying {
					if err := domain.TaskLifecycle.Apply(t, domain.TaskStateProcessing); err != nil {
						return err
					}
				}
				t.Attempts = attempt
				t.Progress = max(t.Progress, progressBound+span*(attempt-1)/maxAttempts)
				t.StatusMessage = fmt.Sprintf("generating document (attempt %d of %d)", attempt, maxAttempts)
				return nil
			})
			return nil
		},
		OnRetry: func(ctx context.Context, attempt int, err error, delay time.Duration) {
			o.update(ctx, j.h, func(t *domain.GenerationTask) error {
				t.StatusMessage = fmt.Sprintf("attempt %d failed, retrying in %s", attempt, delay.Round(time.Millisecond))
				return domain.TaskLifecycle.Apply(t, domain.TaskStateRetrying)
			})
			o.logger.WarnContext(ctx, "authoring attempt failed",
				"task_id", j.id,
				"attempt", attempt,
				"retry_in", delay,
				"error", err)
		},
	})

	j.setAttempts(attempts)
	if err != nil && !errors.Is(err, ErrCancelled) {
		return artifactRef, &authoringError{err: err}
	}
	return artifactRef, err
}

// cancellableSleep wraps the policy's backoff sleep so that it returns
// ErrCancelled as soon as the task is cancelled.
func (j *generationJob) cancellableSleep(
	sleep func(ctx context.Context, d time.Duration) error,
) func(ctx context.Context, d time.Duration) error {
	if sleep == nil {
		sleep = retry.SleepContext
	}
	return func(ctx context.Context, d time.Duration) error {
		sleepCtx, stop := context.WithCancelCause(ctx)
		defer stop(nil)
		go func() {
			select {
			case <-j.h.cancelReq:
				stop(ErrCancelled)
			case <-sleepCtx.Done():
			}
		}()

		err := sleep(sleepCtx, d)
		if errors.Is(context.Cause(sleepCtx), ErrCancelled) {
			return ErrCancelled
		}
		return err
	}
}

func artifactName(tpl *domain.Template, client *domain.Client, taskID uuid.UUID) string {
	subject := taskID.String()[:8]
	if client != nil && client.Name != "" {
		subject = client.Name
	}
	return fmt.Sprintf("%s - %s", tpl.Name, subject)
}

// cleanup deletes an artifact left by a failed or cancelled task. Failures
// are only logged.
func (j *generationJob) cleanup(ctx context.Context, artifactRef string) {
	if artifactRef == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := j.o.Authoring.DeleteArtifact(ctx, artifactRef); err != nil {
		j.o.logger.WarnContext(ctx, "failed to delete artifact", "task_id", j.id, "artifact_ref", artifactRef, "error", err)
	}
}

// finish records the terminal state for err and returns it.
func (j *generationJob) finish(ctx context.Context, err error) domain.TaskState {
	state, class := outcome(err)
	j.o.update(ctx, j.h, func(t *domain.GenerationTask) error {
		t.ErrorClass = class
		t.StatusMessage = statusMessage(class, t.Attempts, err)
		if state == domain.TaskStateSuccess {
			t.Progress = progressDone
		}
		return domain.TaskLifecycle.Apply(t, state)
	})
	return state
}

func (j *generationJob) advance(ctx context.Context, progress int, message string, mutate func(t *domain.GenerationTask)) {
	j.o.update(ctx, j.h, func(t *domain.GenerationTask) error {
		t.Progress = max(t.Progress, progress)
		t.StatusMessage = message
		if mutate != nil {
			mutate(t)
		}
		return nil
	})
}

func (j *generationJob) checkCancelled() error {
	if j.h.cancelled.Load() {
		return ErrCancelled
	}
	return nil
}

func (j *generationJob) task() domain.GenerationTask {
	j.h.mu.Lock()
	defer j.h.mu.Unlock()
	return *j.h.task
}

func (j *generationJob) attempts() int {
	return j.h.snapshot.Load().Attempts
}

func (j *generationJob) setAttempts(n int) {
	j.o.update(context.Background(), j.h, func(t *domain.GenerationTask) error {
		if t.Attempts == n {
			return errSkipUpdate
		}
		t.Attempts = n
		return nil
	})
}

// outcome maps the error that ended execution to a terminal state and class.
func outcome(err error) (domain.TaskState, domain.ErrorClass) {
	var (
		early   *retry.CircuitOpenEarlyError
		authErr *authoringError
	)
	switch {
	case err == nil:
		return domain.TaskStateSuccess, domain.ErrorClassNone
	case errors.Is(err, ErrCancelled):
		return domain.TaskStateCancelled, domain.ErrorClassCancelled
	case errors.As(err, &early):
		return domain.TaskStateFailure, domain.ErrorClassRetryable
	case errors.Is(err, retry.ErrRetryExhausted):
		return domain.TaskStateFailure, domain.ErrorClassRetryExhausted
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrMissingRequiredField),
		errors.Is(err, domain.ErrInvalidFieldValue),
		errors.Is(err, domain.ErrUnknownField),
		errors.Is(err, domain.ErrInvalidChecksum),
		errors.Is(err, domain.ErrTemplateNotPublished):
		return domain.TaskStateFailure, domain.ErrorClassValidation
	case store.IsNotFoundError(err), errors.Is(err, authoring.ErrNotFound):
		return domain.TaskStateFailure, domain.ErrorClassNotFound
	case errors.Is(err, authoring.ErrPermission):
		return domain.TaskStateFailure, domain.ErrorClassPermission
	case errors.As(err, &authErr):
		return domain.TaskStateFailure, domain.ErrorClassFatal
	default:
		return domain.TaskStateFailure, domain.ErrorClassInternal
	}
}

// statusMessage is the human-readable outcome. Only validation errors are
// shown verbatim since they describe the caller's own input.
func statusMessage(class domain.ErrorClass, attempts int, err error) string {
	switch class {
	case domain.ErrorClassNone:
		return "document generated"
	case domain.ErrorClassCancelled:
		return "cancelled"
	case domain.ErrorClassValidation:
		return "invalid submission: " + err.Error()
	case domain.ErrorClassNotFound:
		return "template source or document not found"
	case domain.ErrorClassPermission:
		return "authoring service denied access"
	case domain.ErrorClassRetryable:
		return "authoring service unavailable (circuit open), try again later"
	case domain.ErrorClassRetryExhausted:
		return fmt.Sprintf("authoring service failed after %d attempts", attempts)
	case domain.ErrorClassFatal:
		return "authoring service rejected the request"
	default:
		return "internal error"
	}
}
