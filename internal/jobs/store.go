package jobs

import (
	"context"
	"time"
)

// Store persists jobs. Implementations assign the id on Create, stamp
// UpdatedAt on every Update and refuse to mutate finalised jobs. Feedback on
// completed jobs is the one change allowed after finalisation.
type Store interface {
	Create(ctx context.Context, job *Job) (string, error)
	// Update applies u and reports whether a record was modified.
	Update(ctx context.Context, id string, u Update) (bool, error)
	// SaveFeedback records f on a completed job and returns the stored job.
	// Unknown ids yield ErrNotFound.
	SaveFeedback(ctx context.Context, id string, f Feedback) (*Job, error)
	FindByID(ctx context.Context, id string) (*Job, error)
	// FindByOwner returns the owner's jobs, newest first.
	FindByOwner(ctx context.Context, owner string) ([]*Job, error)
	FindLatestByOwner(ctx context.Context, owner string) (*Job, error)
	// FindStale returns jobs in status whose UpdatedAt is before the cutoff.
	FindStale(ctx context.Context, status Status, before time.Time) ([]*Job, error)
}
