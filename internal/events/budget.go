package events

import (
	"context"
	"log/slog"
	"time"
)

// DefaultLatencyBudget is the target time from emission to observer receipt.
const DefaultLatencyBudget = 500 * time.Millisecond

// BudgetedSink bounds each Publish of the wrapped sink by a latency budget.
// The sink sees a context with the budget as deadline; overruns are logged.
type BudgetedSink struct {
	sink   Sink
	budget time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// WithBudget wraps sink. A non-positive budget uses DefaultLatencyBudget.
func WithBudget(sink Sink, budget time.Duration, logger *slog.Logger) *BudgetedSink {
	if budget <= 0 {
		budget = DefaultLatencyBudget
	}
	return &BudgetedSink{
		sink:   sink,
		budget: budget,
		logger: logger.With("component", "budgeted_sink"),
		now:    time.Now,
	}
}

// Budget returns the configured budget.
func (b *BudgetedSink) Budget() time.Duration { return b.budget }

// Publish implements Sink.
func (b *BudgetedSink) Publish(ctx context.Context, event ProgressEvent) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.budget)
	defer cancel()

	start := b.now()
	err := b.sink.Publish(ctx, event)
	if elapsed := b.now().Sub(start); elapsed > b.budget {
		b.logger.WarnContext(ctx, "progress delivery exceeded latency budget",
			"task_id", event.TaskID,
			"elapsed", elapsed,
			"budget", b.budget)
	}
	return err
}
