package jobs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MinRating = 1
	MaxRating = 5
)

// ErrNotReviewable is returned when feedback targets a job that has not completed.
var ErrNotReviewable = errors.New("only completed jobs accept feedback")

// Feedback is a review of a completed job. It only touches Rating and
// Annotations; the lifecycle fields stay as the pipeline left them. A nil
// Annotations slice keeps the stored list, an empty one clears it.
type Feedback struct {
	Rating      *int
	Annotations []string
}

func (f Feedback) Validate() error {
	if f.Rating == nil && f.Annotations == nil {
		return ErrEmptyUpdate
	}
	if f.Rating != nil && (*f.Rating < MinRating || *f.Rating > MaxRating) {
		return fmt.Errorf("rating must be between %d and %d", MinRating, MaxRating)
	}
	for _, a := range f.Annotations {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("annotations must not be blank")
		}
	}
	return nil
}

// Apply validates f against job and records it in place.
func (f Feedback) Apply(job *Job, now time.Time) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if job.Status != StatusCompleted {
		return fmt.Errorf("%w: job is %s", ErrNotReviewable, job.Status)
	}
	if f.Rating != nil {
		rating := *f.Rating
		job.Rating = &rating
	}
	if f.Annotations != nil {
		job.Annotations = make([]string, 0, len(f.Annotations))
		for _, a := range f.Annotations {
			job.Annotations = append(job.Annotations, strings.TrimSpace(a))
		}
	}
	job.UpdatedAt = now
	return nil
}
