package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MimeLyc/srs-generator/internal/jobs"
	"github.com/MimeLyc/srs-generator/internal/render"
	"github.com/MimeLyc/srs-generator/internal/srs"
	"github.com/MimeLyc/srs-generator/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/MimeLyc/srs-generator/internal/pipeline"

	// initiated, five stages and the terminal event
	eventBuffer = 8
)

// Generator is the external text-generation call.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// Orchestrator sequences one generation run: record, generate, parse, render
// PDF, render Word, finalise. It holds no per-run state and may be shared.
type Orchestrator struct {
	generator Generator
	recorder  *jobs.Recorder
	pdf       render.Renderer
	word      render.Renderer
	tracer    trace.Tracer
}

type Option func(*Orchestrator)

// WithRecorder persists runs through r. Without it runs leave no record.
func WithRecorder(r *jobs.Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

// New builds an Orchestrator. generator may be nil, in which case every run
// fails with ErrNotConfigured before any stage.
func New(generator Generator, pdf, word render.Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		generator: generator,
		recorder:  jobs.NewRecorder(nil),
		pdf:       pdf,
		word:      word,
		tracer:    otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Configured reports whether a generation service is available.
func (o *Orchestrator) Configured() bool {
	return o.generator != nil
}

// run is the mutable state of one pipeline execution.
type run struct {
	req   Request
	state Stage
	jobID *string
	raw   string
	draft Draft
	docs  Documents
}

type step struct {
	stage   Stage
	reason  Reason
	message func(*run) string
	do      func(context.Context, *run) error
}

func (o *Orchestrator) steps() []step {
	return []step{
		{
			stage:   StageRecordCreated,
			reason:  ReasonInternal,
			message: func(*run) string { return "Creating SRS record..." },
			do:      o.createRecord,
		},
		{
			stage:   StageModelInvoked,
			reason:  ReasonGeneration,
			message: func(*run) string { return "Generating SRS content with AI..." },
			do:      o.invokeModel,
		},
		{
			stage:   StageContentParsed,
			reason:  ReasonParse,
			message: func(*run) string { return "Processing generated content..." },
			do:      o.parseContent,
		},
		{
			stage:   StagePdfRendered,
			reason:  ReasonRender,
			message: func(r *run) string { return fmt.Sprintf("SRS generated: %s. Creating PDF document...", r.draft.Title) },
			do:      o.renderPDF,
		},
		{
			stage:   StageWordRendered,
			reason:  ReasonRender,
			message: func(*run) string { return "Creating Word document..." },
			do:      o.renderWord,
		},
	}
}

// Start launches a run and returns its event stream. The channel is buffered
// for the whole run and closed after the terminal event, so an abandoned
// consumer never stalls the run. The run is detached from ctx cancellation:
// once started it always reaches a terminal state.
func (o *Orchestrator) Start(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, eventBuffer)
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(events)
		o.execute(ctx, req, func(e Event) { events <- e })
	}()
	return events
}

func (o *Orchestrator) execute(ctx context.Context, req Request, emit func(Event)) {
	ctx, span := o.tracer.Start(ctx, "srs.generate", trace.WithAttributes(
		attribute.String("srs.owner", req.Owner),
		attribute.String("srs.namespace", req.Namespace),
	))
	defer span.End()

	r := &run{req: req, state: StageInitiated}
	emit(Event{Status: EventInitiated, Stage: StageInitiated, Message: "Starting SRS generation..."})

	if o.generator == nil {
		o.fail(ctx, span, r, &StageError{Stage: StageInitiated, Reason: ReasonConfig, Err: ErrNotConfigured}, emit)
		return
	}

	for _, s := range o.steps() {
		emit(Event{Status: EventProcessing, Stage: s.stage, Title: r.draft.Title, Message: s.message(r)})
		if err := o.runStage(ctx, r, s); err != nil {
			o.fail(ctx, span, r, err, emit)
			return
		}
		r.state = s.stage
	}
	o.complete(ctx, span, r, emit)
}

// runStage executes one step and converts any error or panic into a
// StageError tagged with the step.
func (o *Orchestrator) runStage(ctx context.Context, r *run, s step) (stageErr *StageError) {
	ctx, span := o.tracer.Start(ctx, "srs.stage."+string(s.stage))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			stageErr = &StageError{Stage: s.stage, Reason: s.reason, Err: fmt.Errorf("panic: %v", p)}
		}
		if stageErr != nil {
			span.RecordError(stageErr)
			span.SetStatus(codes.Error, stageErr.Error())
		}
	}()

	log.Debug("[job %s] stage %s started", jobLabel(r.jobID), s.stage)
	if err := s.do(ctx, r); err != nil {
		var se *StageError
		if errors.As(err, &se) {
			return se
		}
		return &StageError{Stage: s.stage, Reason: s.reason, Err: err}
	}
	log.Debug("[job %s] stage %s finished", jobLabel(r.jobID), s.stage)
	return nil
}

func (o *Orchestrator) createRecord(ctx context.Context, r *run) error {
	job := jobs.NewProcessingJob(r.req.Owner, r.req.Requirements.Description())
	r.jobID = o.recorder.Create(ctx, job)
	if r.jobID != nil {
		log.Info("[job %s] record created for owner %q", *r.jobID, job.Owner)
	}
	return nil
}

func (o *Orchestrator) invokeModel(ctx context.Context, r *run) error {
	raw, err := o.generator.Generate(ctx, srs.SystemPrompt, r.req.Requirements.Prompt())
	if err != nil {
		return err
	}
	r.raw = raw
	return nil
}

func (o *Orchestrator) parseContent(_ context.Context, r *run) error {
	draft, err := parse(r.raw)
	if err != nil {
		return err
	}
	r.draft = draft
	return nil
}

func (o *Orchestrator) renderPDF(ctx context.Context, r *run) error {
	out, err := o.pdf.Render(ctx, r.draft.Title, r.draft.Body, r.req.Namespace)
	if err != nil {
		return err
	}
	r.docs.PDF = out
	return nil
}

func (o *Orchestrator) renderWord(ctx context.Context, r *run) error {
	out, err := o.word.Render(ctx, r.draft.Title, r.draft.Body, r.req.Namespace)
	if err != nil {
		return err
	}
	r.docs.Word = out
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, span trace.Span, r *run, emit func(Event)) {
	o.recorder.Update(ctx, r.jobID, jobs.CompletedUpdate(r.draft.Title, r.docs.PDF.Name, r.docs.Word.Name))
	r.state = StageCompleted
	span.SetAttributes(attribute.String("srs.title", r.draft.Title))
	log.Info("[job %s] completed: %s", jobLabel(r.jobID), r.draft.Title)

	emit(Event{
		Status:   EventCompleted,
		Stage:    StageCompleted,
		Message:  "SRS generation completed successfully!",
		Title:    r.draft.Title,
		PdfName:  r.docs.PDF.Name,
		WordName: r.docs.Word.Name,
		PdfPath:  r.docs.PDF.RelPath,
		WordPath: r.docs.Word.RelPath,
		Text:     r.draft.Body,
		JobID:    r.jobID,
	})
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, r *run, err *StageError, emit func(Event)) {
	o.recorder.Update(ctx, r.jobID, jobs.FailedUpdate())
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.Error("[job %s] failed after %s: %v", jobLabel(r.jobID), r.state, err)
	r.state = StageFailed

	emit(Event{
		Status:  EventError,
		Stage:   err.Stage,
		Message: "Error during SRS generation: " + err.Err.Error(),
	})
}

// Generate runs the generation call and title extraction without recording a
// job or rendering anything.
func (o *Orchestrator) Generate(ctx context.Context, req srs.Requirements) (Draft, error) {
	if o.generator == nil {
		return Draft{}, &StageError{Stage: StageInitiated, Reason: ReasonConfig, Err: ErrNotConfigured}
	}
	ctx, span := o.tracer.Start(ctx, "srs.draft")
	defer span.End()

	raw, err := o.generator.Generate(ctx, srs.SystemPrompt, req.Prompt())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Draft{}, &StageError{Stage: StageModelInvoked, Reason: ReasonGeneration, Err: err}
	}
	draft, err := parse(raw)
	if err != nil {
		return Draft{}, &StageError{Stage: StageContentParsed, Reason: ReasonParse, Err: err}
	}
	return draft, nil
}

// RenderAll writes the PDF and then the Word document of one draft for owner.
func (o *Orchestrator) RenderAll(ctx context.Context, draft Draft, owner string) (Documents, error) {
	ctx, span := o.tracer.Start(ctx, "srs.render", trace.WithAttributes(attribute.String("srs.namespace", owner)))
	defer span.End()

	var docs Documents
	var err error
	if docs.PDF, err = o.pdf.Render(ctx, draft.Title, draft.Body, owner); err != nil {
		span.RecordError(err)
		return Documents{}, &StageError{Stage: StagePdfRendered, Reason: ReasonRender, Err: err}
	}
	if docs.Word, err = o.word.Render(ctx, draft.Title, draft.Body, owner); err != nil {
		span.RecordError(err)
		return Documents{}, &StageError{Stage: StageWordRendered, Reason: ReasonRender, Err: err}
	}
	return docs, nil
}

func parse(raw string) (Draft, error) {
	if strings.TrimSpace(raw) == "" {
		return Draft{}, fmt.Errorf("generated content is empty")
	}
	title, body := srs.ExtractTitle(raw)
	return Draft{Title: title, Body: body}, nil
}

func jobLabel(id *string) string {
	if id == nil {
		return "-"
	}
	return *id
}
