package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MimeLyc/srs-generator/internal/render"
	"github.com/MimeLyc/srs-generator/internal/srs"
)

// ErrNotConfigured is reported before any stage runs when no generation
// service is available.
var ErrNotConfigured = errors.New("generation service is not configured")

// Stage is a state of one pipeline run.
type Stage string

const (
	StageInitiated     Stage = "initiated"
	StageRecordCreated Stage = "record_created"
	StageModelInvoked  Stage = "model_invoked"
	StageContentParsed Stage = "content_parsed"
	StagePdfRendered   Stage = "pdf_rendered"
	StageWordRendered  Stage = "word_rendered"
	StageCompleted     Stage = "completed"
	StageFailed        Stage = "failed"
)

func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Reason classifies a stage failure.
type Reason string

const (
	ReasonConfig     Reason = "config"
	ReasonGeneration Reason = "generation"
	ReasonParse      Reason = "parse"
	ReasonRender     Reason = "render"
	ReasonInternal   Reason = "internal"
)

// StageError is the failed outcome of one stage.
type StageError struct {
	Stage  Stage
	Reason Reason
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage, e.Reason, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type EventStatus string

const (
	EventInitiated  EventStatus = "initiated"
	EventProcessing EventStatus = "processing"
	EventCompleted  EventStatus = "completed"
	EventError      EventStatus = "error"
)

// Event is one progress notification of a run. Exactly one event per run has
// a terminal status (completed or error) and it is always the last one.
type Event struct {
	Status   EventStatus `json:"status"`
	Message  string      `json:"message"`
	Stage    Stage       `json:"stage,omitempty"`
	Title    string      `json:"title,omitempty"`
	PdfName  string      `json:"pdfName,omitempty"`
	WordName string      `json:"wordName,omitempty"`
	PdfPath  string      `json:"pdfPath,omitempty"`
	WordPath string      `json:"wordPath,omitempty"`
	Text     string      `json:"text,omitempty"`
	// JobID is set on the completed event; nil when no record was persisted.
	JobID *string `json:"-"`
}

func (e Event) Terminal() bool {
	return e.Status == EventCompleted || e.Status == EventError
}

// MarshalJSON writes jobId on completed events only, as null when absent.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	if e.Status != EventCompleted {
		return json.Marshal(plain(e))
	}
	return json.Marshal(struct {
		plain
		JobID *string `json:"jobId"`
	}{plain(e), e.JobID})
}

// Request is one streamed generation.
type Request struct {
	Requirements srs.Requirements
	// Owner is recorded on the job; it may be empty.
	Owner string
	// Namespace is the storage owner of the rendered files.
	Namespace string
}

// Draft is the parsed output of a generation call.
type Draft struct {
	Title string
	Body  string
}

// Documents are the two rendered files of one draft.
type Documents struct {
	PDF  render.Output
	Word render.Output
}
