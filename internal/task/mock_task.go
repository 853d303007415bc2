package task

import (
	"context"

	"github.com/google/uuid"
)

// MockJob is a simple implementation of the Job interface for testing
type MockJob struct {
	JobID     uuid.UUID
	ExecuteFn func(ctx context.Context) error
}

// NewMockJob creates a MockJob with a fresh id that succeeds
func NewMockJob() *MockJob {
	return &MockJob{
		JobID:     uuid.New(),
		ExecuteFn: func(ctx context.Context) error { return nil },
	}
}

// ID returns the job's identifier
func (j *MockJob) ID() uuid.UUID {
	return j.JobID
}

// Execute runs the job logic
func (j *MockJob) Execute(ctx context.Context) error {
	return j.ExecuteFn(ctx)
}
