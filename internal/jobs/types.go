package jobs

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

const (
	// PlaceholderName is the job name until a title has been generated.
	PlaceholderName = "Generating..."
	// RefNone marks an output reference of a failed job.
	RefNone = "none"
)

var (
	ErrNotFound     = errors.New("job not found")
	ErrInvalidID    = errors.New("invalid job id")
	ErrFinalized    = errors.New("job is finalized")
	ErrInvalidState = errors.New("invalid status transition")
	ErrEmptyUpdate  = errors.New("update carries no fields")
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further mutation is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return -1
}

// CanTransition reports whether status may move from one value to another.
// Status only advances: Pending -> Processing -> {Completed|Failed}. Staying in
// a non-terminal status is allowed; Pending may fail directly.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	return to.rank() >= from.rank()
}

// Job is the persisted record of one generation request.
type Job struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	PdfRef      string    `json:"pdfRef"`
	WordRef     string    `json:"wordRef"`
	Rating      *int      `json:"rating,omitempty"`
	Annotations []string  `json:"annotations"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasOutputs reports whether both references point at rendered files.
func (j *Job) HasOutputs() bool {
	return isRef(j.PdfRef) && isRef(j.WordRef)
}

func isRef(ref string) bool {
	return ref != "" && ref != RefNone
}

// NewProcessingJob builds the record created when a pipeline starts.
func NewProcessingJob(owner, description string) *Job {
	return &Job{
		Owner:       NormalizeOwner(owner),
		Name:        PlaceholderName,
		Description: description,
		Status:      StatusProcessing,
		Annotations: []string{},
	}
}

// Update is a partial mutation. Nil fields are left untouched; UpdatedAt is
// always stamped by the store.
type Update struct {
	Name    *string
	Status  *Status
	PdfRef  *string
	WordRef *string
}

// CompletedUpdate finalises a job with its title and both file references.
func CompletedUpdate(name, pdfRef, wordRef string) Update {
	status := StatusCompleted
	return Update{Name: &name, Status: &status, PdfRef: &pdfRef, WordRef: &wordRef}
}

// FailedUpdate finalises a job without outputs.
func FailedUpdate() Update {
	status := StatusFailed
	none := RefNone
	return Update{Status: &status, PdfRef: &none, WordRef: &none}
}

// Validate checks the update on its own: a known status, real references on
// completion and the none sentinel on failure.
func (u Update) Validate() error {
	if u.Name == nil && u.Status == nil && u.PdfRef == nil && u.WordRef == nil {
		return ErrEmptyUpdate
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return fmt.Errorf("name must not be empty")
	}
	if u.Status == nil {
		if u.PdfRef != nil || u.WordRef != nil {
			return fmt.Errorf("output references require a terminal status")
		}
		return nil
	}
	switch *u.Status {
	case StatusCompleted:
		if u.PdfRef == nil || u.WordRef == nil || !isRef(*u.PdfRef) || !isRef(*u.WordRef) {
			return fmt.Errorf("completed job requires both output references")
		}
	case StatusFailed:
		if (u.PdfRef != nil && *u.PdfRef != RefNone) || (u.WordRef != nil && *u.WordRef != RefNone) {
			return fmt.Errorf("failed job must not reference outputs")
		}
	case StatusPending, StatusProcessing:
		if u.PdfRef != nil || u.WordRef != nil {
			return fmt.Errorf("output references require a terminal status")
		}
	default:
		return fmt.Errorf("unknown status %q", *u.Status)
	}
	return nil
}

// Apply validates u against the current state of job and mutates it in place.
func (u Update) Apply(job *Job, now time.Time) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrFinalized
	}
	if u.Status != nil && !CanTransition(job.Status, *u.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, job.Status, *u.Status)
	}
	if u.Name != nil {
		job.Name = *u.Name
	}
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.PdfRef != nil {
		job.PdfRef = *u.PdfRef
	}
	if u.WordRef != nil {
		job.WordRef = *u.WordRef
	}
	job.UpdatedAt = now
	return nil
}

var objectIDPattern = regexp.MustCompile(`^[0-9A-Fa-f]{24}$`)

// NormalizeOwner returns the canonical lower-case form of a 24-character
// hexadecimal identifier and any other owner unchanged.
func NormalizeOwner(owner string) string {
	if objectIDPattern.MatchString(owner) {
		return strings.ToLower(owner)
	}
	return owner
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	if job.Rating != nil {
		rating := *job.Rating
		tmp.Rating = &rating
	}
	tmp.Annotations = append([]string{}, job.Annotations...)
	return &tmp
}
