package jobs

import (
	"context"

	"github.com/MimeLyc/srs-generator/pkg/log"
)

// Recorder wraps a Store with a best-effort policy: failures are logged and
// swallowed so that callers never abort on persistence problems. A nil store
// turns every call into a no-op.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Enabled reports whether a backing store is configured.
func (r *Recorder) Enabled() bool {
	return r != nil && r.store != nil
}

// Create persists job and returns its id, or nil when nothing was recorded.
func (r *Recorder) Create(ctx context.Context, job *Job) *string {
	if !r.Enabled() || job == nil {
		return nil
	}
	id, err := r.store.Create(ctx, job)
	if err != nil {
		log.Error("Failed to create job record for owner %q: %v", job.Owner, err)
		return nil
	}
	return &id
}

// Update applies u to the job with the given id. It returns false when there
// is no record, the store refused the update or nothing was modified.
func (r *Recorder) Update(ctx context.Context, id *string, u Update) bool {
	if !r.Enabled() || id == nil {
		return false
	}
	ok, err := r.store.Update(ctx, *id, u)
	if err != nil {
		log.Error("Failed to update job %s: %v", *id, err)
		return false
	}
	if !ok {
		log.Warn("Job %s was not modified", *id)
	}
	return ok
}
