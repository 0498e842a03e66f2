package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Job asks a worker to execute one run of a statement.
type Job struct {
	StatementID uuid.UUID
	RunID       uuid.UUID
	SubmittedAt time.Time
}

// ErrQueueClosed is returned by Enqueue after Shutdown started.
var ErrQueueClosed = errors.New("queue is shutting down")

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Runner executes a single statement run to a terminal status.
type Runner interface {
	Run(ctx context.Context, statementID, runID uuid.UUID) error
}
