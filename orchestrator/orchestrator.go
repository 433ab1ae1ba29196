// Package orchestrator drives one generation request through the pipeline:
// planner, three concurrent experts, curator and synthesizer. A single
// coordinating goroutine owns the progress state and emits a snapshot on
// every step transition, followed by exactly one terminal event.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sweetpotato0/studygen/cache"
	"github.com/sweetpotato0/studygen/content"
	serrors "github.com/sweetpotato0/studygen/errors"
	"github.com/sweetpotato0/studygen/expert"
	"github.com/sweetpotato0/studygen/pkg/logging"
	"github.com/sweetpotato0/studygen/pkg/telemetry"
	"github.com/sweetpotato0/studygen/runner"
	"github.com/sweetpotato0/studygen/synthesizer"
)

// DefaultTimeout bounds a whole run.
const DefaultTimeout = 5 * time.Minute

// Catalog resolves topic ids.
type Catalog interface {
	Lookup(id string) (content.Topic, error)
}

// Planner produces the strategic plan for a topic.
type Planner interface {
	Plan(topic content.Topic, now time.Time) content.StrategicPlan
}

// Curator scores the drafts.
type Curator interface {
	Curate(ctx context.Context, drafts []content.ExpertOutput) (*content.CurationReport, error)
}

// Synthesizer merges drafts into the final document.
type Synthesizer interface {
	Synthesize(ctx context.Context, in synthesizer.Input) (*content.GeneratedTopicContent, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Catalog     Catalog
	Planner     Planner
	Experts     []expert.Expert
	Curator     Curator
	Synthesizer Synthesizer
	Cache       cache.Store
}

// Request identifies one generation.
type Request struct {
	UserID  string
	TopicID string
	// Force skips the cached artifact.
	Force bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRegistry shares a cancel registry between orchestrators.
func WithRegistry(r *Registry) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.registry = r
		}
	}
}

// Orchestrator runs generation requests. It is safe for concurrent use;
// each request is coordinated by the goroutine that calls Generate.
type Orchestrator struct {
	deps     Deps
	experts  map[content.Role]expert.Expert
	runner   *runner.ParallelRunner[content.ExpertOutput]
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New validates deps and returns an orchestrator.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Catalog == nil:
		return nil, fmt.Errorf("orchestrator: catalog is required: %w", serrors.ErrInvalidInput)
	case deps.Planner == nil:
		return nil, fmt.Errorf("orchestrator: planner is required: %w", serrors.ErrInvalidInput)
	case deps.Curator == nil:
		return nil, fmt.Errorf("orchestrator: curator is required: %w", serrors.ErrInvalidInput)
	case deps.Synthesizer == nil:
		return nil, fmt.Errorf("orchestrator: synthesizer is required: %w", serrors.ErrInvalidInput)
	case deps.Cache == nil:
		return nil, fmt.Errorf("orchestrator: cache is required: %w", serrors.ErrInvalidInput)
	}

	experts := make(map[content.Role]expert.Expert, len(content.ExpertRoles))
	for _, e := range deps.Experts {
		if e == nil {
			continue
		}
		if _, dup := experts[e.Role()]; dup {
			return nil, fmt.Errorf("orchestrator: duplicate expert %q: %w", e.Role(), serrors.ErrInvalidInput)
		}
		experts[e.Role()] = e
	}
	for _, role := range content.ExpertRoles {
		if experts[role] == nil {
			return nil, fmt.Errorf("orchestrator: missing expert %q: %w", role, serrors.ErrInvalidInput)
		}
	}

	o := &Orchestrator{
		deps:     deps,
		experts:  experts,
		runner:   runner.NewParallelRunner[content.ExpertOutput](len(content.ExpertRoles)),
		registry: NewRegistry(),
		timeout:  DefaultTimeout,
		logger:   logging.WithComponent("orchestrator"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Registry exposes the cancel handles of in-flight runs.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Cancel stops every in-flight run for topicID. Cancelling a topic with
// nothing in flight is a no-op.
func (o *Orchestrator) Cancel(topicID string) bool {
	n := o.registry.CancelTopic(topicID)
	if n > 0 {
		o.logger.Info("generation cancelled", "topic", topicID, "runs", n)
	}
	return n > 0
}

// Cached returns the stored artifact for the pair, wrapping ErrNotFound
// when there is none.
func (o *Orchestrator) Cached(ctx context.Context, userID, topicID string) (*content.GeneratedTopicContent, error) {
	return o.deps.Cache.Get(ctx, userID, topicID)
}

// Generate runs the pipeline for req, reporting progress to emit. emit is
// called only from the calling goroutine and receives exactly one terminal
// event. A cancelled run returns an error wrapping ErrCancelled.
func (o *Orchestrator) Generate(ctx context.Context, req Request, emit Emitter) (*content.GeneratedTopicContent, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	started := o.now()
	runID := uuid.NewString()
	logger := o.logger.With("run", runID, "topic", req.TopicID, "user", req.UserID)

	if strings.TrimSpace(req.TopicID) == "" {
		err := fmt.Errorf("topic id is required: %w", serrors.ErrInvalidInput)
		emit(Event{Type: EventError, Error: &ErrorPayload{Message: err.Error()}, Summary: &Summary{RunID: runID}})
		return nil, err
	}

	if !req.Force {
		doc, err := o.deps.Cache.Get(ctx, req.UserID, req.TopicID)
		switch {
		case err == nil:
			logger.Info("serving cached artifact")
			emit(Event{Type: EventDone, Content: doc, Summary: &Summary{
				RunID:         runID,
				ElapsedMs:     o.now().Sub(started).Milliseconds(),
				Cached:        true,
				QualityStatus: doc.QualityStatus,
				Health:        &doc.Metadata.Health,
				Warnings:      doc.Warnings,
			}})
			return doc, nil
		case !errors.Is(err, serrors.ErrNotFound):
			logger.Warn("cache read failed, regenerating", "error", err)
		}
	}

	ctx, span := telemetry.Start(ctx, "orchestrator.generate",
		telemetry.TopicKey.String(req.TopicID),
		telemetry.RunKey.String(runID),
	)

	runCtx, handle := o.registry.Acquire(ctx, Key{UserID: req.UserID, TopicID: req.TopicID})
	defer handle.Release()
	runCtx, stop := context.WithTimeoutCause(runCtx, o.timeout, errTimeout)
	defer stop()

	r := &run{
		o:       o,
		ctx:     runCtx,
		handle:  handle,
		state:   newState(runID, req.TopicID),
		emit:    emit,
		logger:  logger,
		started: started,
	}
	doc, err := r.execute(req)
	telemetry.End(span, err)
	return doc, err
}

// run is the coordinator of one request. Its fields are touched only by the
// goroutine executing Generate.
type run struct {
	o       *Orchestrator
	ctx     context.Context
	handle  *Handle
	state   *State
	emit    Emitter
	logger  *slog.Logger
	started time.Time
	retries int
}

func (r *run) execute(req Request) (*content.GeneratedTopicContent, error) {
	r.state.Status = StatusRunning
	r.publish()

	topic, err := r.o.deps.Catalog.Lookup(req.TopicID)
	if err != nil {
		return nil, r.fail(content.RolePlanner, err)
	}

	plan, err := r.plan(topic)
	if err != nil {
		return nil, err
	}
	if err := r.checkpoint(); err != nil {
		return nil, err
	}

	drafts := r.draft(topic, plan)
	if err := r.checkpoint(); err != nil {
		return nil, err
	}

	report, err := r.curate(drafts)
	if err != nil {
		return nil, err
	}
	if err := r.checkpoint(); err != nil {
		return nil, err
	}

	doc, err := r.synthesize(topic, plan, drafts, report)
	if err != nil {
		return nil, err
	}

	// Past this point a cancel request no longer affects the run.
	if !r.handle.Commit() {
		return nil, r.cancelled()
	}
	if err := r.o.deps.Cache.Put(context.WithoutCancel(r.ctx), req.UserID, req.TopicID, doc); err != nil {
		r.logger.Error("cache write failed", "error", err)
	}

	r.state.Status = StatusCompleted
	r.state.CurrentStep = nil
	r.publish()
	r.logger.Info("generation completed",
		"words", doc.Metadata.Health.TotalWords,
		"quality", doc.QualityStatus,
		"elapsed", r.o.now().Sub(r.started),
	)
	r.emit(Event{Type: EventDone, Content: doc, Summary: r.summary(doc)})
	return doc, nil
}

// guard turns a panic in the collaborator behind role into a fatal step
// error. It must be deferred directly.
func (r *run) guard(role content.Role, err *error) {
	if p := recover(); p != nil {
		*err = r.fail(role, fmt.Errorf("%s panic: %v: %w", role, p, serrors.ErrInternal))
	}
}

func (r *run) plan(topic content.Topic) (plan content.StrategicPlan, err error) {
	r.start(content.RolePlanner, map[string]any{"topic": topic.Title})
	defer r.guard(content.RolePlanner, &err)
	plan = r.o.deps.Planner.Plan(topic, r.o.now())
	step := r.state.Step(content.RolePlanner)
	step.Reasoning = plan.Rationale
	r.complete(content.RolePlanner, map[string]any{
		"targetWords":      plan.TargetWords,
		"targetSections":   plan.TargetSections,
		"complexity":       plan.Complexity,
		"strategy":         plan.Strategy,
		"practiceExamples": len(plan.PracticeExamples),
	})
	return plan, nil
}

// draft fans the experts out and collects every result before returning,
// in role order. Each expert's step is updated as its result arrives.
func (r *run) draft(topic content.Topic, plan content.StrategicPlan) []content.ExpertOutput {
	req := expert.Request{Topic: topic, Plan: plan}
	tasks := make([]runner.Task[content.ExpertOutput], 0, len(content.ExpertRoles))
	for _, role := range content.ExpertRoles {
		e := r.o.experts[role]
		r.start(role, map[string]any{"topic": topic.Title, "targetWords": plan.TargetWords})
		tasks = append(tasks, runner.Task[content.ExpertOutput]{
			ID:  string(role),
			Run: func(ctx context.Context) (content.ExpertOutput, error) { return e.Draft(ctx, req) },
		})
	}

	byRole := make(map[content.Role]content.ExpertOutput, len(tasks))
	for res := range r.o.runner.Stream(r.ctx, tasks) {
		role := content.Role(res.TaskID)
		out := res.Output
		if out.Metadata.Source == "" {
			// The task never produced a draft: panic or skipped on cancel.
			out = stub(topic, role, res.Error)
		}
		byRole[role] = out

		summary := map[string]any{
			"words":      out.Metadata.WordCount,
			"confidence": out.Confidence,
		}
		if res.Error != nil {
			r.logger.Warn("expert degraded", "role", role, "error", res.Error)
			r.state.Step(role).Output = summary
			r.finishStep(role, StepError, res.Error.Error())
			continue
		}
		r.state.Step(role).Reasoning = strings.Join(out.Gaps, "; ")
		r.complete(role, summary)
	}

	drafts := make([]content.ExpertOutput, 0, len(content.ExpertRoles))
	for _, role := range content.ExpertRoles {
		drafts = append(drafts, byRole[role])
	}
	return drafts
}

func (r *run) curate(drafts []content.ExpertOutput) (_ *content.CurationReport, err error) {
	r.start(content.RoleCurator, map[string]any{"drafts": len(drafts)})
	defer r.guard(content.RoleCurator, &err)
	report, err := r.o.deps.Curator.Curate(r.ctx, drafts)
	if err != nil {
		if serrors.IsCancelled(err) {
			return nil, r.cancelled()
		}
		return nil, r.fail(content.RoleCurator, err)
	}
	r.complete(content.RoleCurator, map[string]any{
		"critical":          report.Summary.Critical,
		"droppable":         report.Summary.Droppable,
		"practiceReadiness": report.PracticeReadiness,
	})
	return report, nil
}

func (r *run) synthesize(topic content.Topic, plan content.StrategicPlan, drafts []content.ExpertOutput, report *content.CurationReport) (_ *content.GeneratedTopicContent, err error) {
	r.start(content.RoleStrategist, map[string]any{
		"targetWords":    plan.TargetWords,
		"targetSections": plan.TargetSections,
	})
	defer r.guard(content.RoleStrategist, &err)
	doc, err := r.o.deps.Synthesizer.Synthesize(r.ctx, synthesizer.Input{
		Topic:  topic,
		Plan:   plan,
		Drafts: drafts,
		Report: report,
	})
	if err != nil {
		if serrors.IsCancelled(err) || context.Cause(r.ctx) != nil {
			return nil, r.cancelled()
		}
		return nil, r.fail(content.RoleStrategist, err)
	}
	// A result that lands after cancellation is discarded.
	if err := r.checkpoint(); err != nil {
		return nil, err
	}

	if n := doc.Metadata.Synthesis.Attempts; n > 1 {
		r.retries = n - 1
	}
	step := r.state.Step(content.RoleStrategist)
	step.Reasoning = strings.Join(doc.Warnings, "; ")
	r.complete(content.RoleStrategist, map[string]any{
		"finalWords":        doc.Metadata.Health.TotalWords,
		"sections":          len(doc.Sections),
		"widgets":           len(doc.Widgets),
		"practiceReadiness": doc.Metadata.PracticeMetrics.PracticeReadiness,
		"qualityStatus":     doc.QualityStatus,
		"attempts":          doc.Metadata.Synthesis.Attempts,
	})
	return doc, nil
}

// checkpoint ends the run as cancelled once its context is done.
func (r *run) checkpoint() error {
	if context.Cause(r.ctx) == nil {
		return nil
	}
	return r.cancelled()
}

func (r *run) start(role content.Role, input map[string]any) {
	step := r.state.Step(role)
	now := r.o.now()
	step.Status = StepRunning
	step.Input = input
	step.StartedAt = &now
	current := role
	r.state.CurrentStep = &current
	r.publish()
}

func (r *run) complete(role content.Role, output map[string]any) {
	r.state.Step(role).Output = output
	r.finishStep(role, StepCompleted, "")
}

func (r *run) finishStep(role content.Role, status StepStatus, msg string) {
	step := r.state.Step(role)
	now := r.o.now()
	step.Status = status
	step.Error = msg
	step.CompletedAt = &now
	r.publish()
}

// fail ends the run as error. The failing step, and any step still
// running, is marked as errored.
func (r *run) fail(role content.Role, err error) error {
	stepErr := &serrors.StepError{Step: string(role), Fatal: true, Err: err}
	r.logger.Error("generation failed", "step", role, "error", err)
	r.abortSteps(role, err.Error())
	r.state.Status = StatusError
	r.state.CurrentStep = nil
	r.publish()
	r.emit(Event{
		Type:    EventError,
		Error:   &ErrorPayload{Message: stepErr.Error()},
		Summary: r.summary(nil),
	})
	return stepErr
}

func (r *run) cancelled() error {
	cause := context.Cause(r.ctx)
	if cause == nil {
		cause = serrors.ErrCancelled
	}
	msg := "cancelled"
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, errTimeout) {
		msg = "timeout"
	} else if errors.Is(cause, errReplaced) {
		msg = "superseded"
	}
	r.logger.Info("generation cancelled", "reason", msg)
	r.abortSteps("", msg)
	r.state.Status = StatusCancelled
	r.state.CurrentStep = nil
	r.publish()
	r.emit(Event{
		Type:    EventError,
		Error:   &ErrorPayload{Message: msg, Cancelled: true},
		Summary: r.summary(nil),
	})
	if errors.Is(cause, serrors.ErrCancelled) {
		return cause
	}
	return fmt.Errorf("%s: %w: %w", msg, serrors.ErrCancelled, cause)
}

func (r *run) abortSteps(role content.Role, msg string) {
	now := r.o.now()
	for i := range r.state.Steps {
		step := &r.state.Steps[i]
		if step.Role != role && step.Status != StepRunning {
			continue
		}
		if step.StartedAt == nil {
			step.StartedAt = &now
		}
		step.Status = StepError
		step.Error = msg
		step.CompletedAt = &now
	}
}

func (r *run) publish() {
	r.emit(Event{Type: EventState, State: r.state.Clone()})
}

func (r *run) summary(doc *content.GeneratedTopicContent) *Summary {
	s := &Summary{
		RunID:     r.state.RunID,
		ElapsedMs: r.o.now().Sub(r.started).Milliseconds(),
		Retries:   r.retries,
	}
	for _, step := range r.state.Steps {
		s.Steps = append(s.Steps, StepTiming{
			Role:       step.Role,
			Status:     step.Status,
			DurationMs: step.Duration().Milliseconds(),
		})
	}
	if doc != nil {
		s.QualityStatus = doc.QualityStatus
		s.Health = &doc.Metadata.Health
		s.Warnings = doc.Warnings
	}
	return s
}

// stub stands in for an expert that returned nothing at all.
func stub(topic content.Topic, role content.Role, err error) content.ExpertOutput {
	gap := "sin borrador"
	msg := ""
	if err != nil {
		gap = "sin borrador: " + err.Error()
		msg = err.Error()
	}
	return content.ExpertOutput{
		Content:    fmt.Sprintf("## %s\n\nBorrador no disponible.", topic.Title),
		References: []string{},
		Confidence: expert.FailedConfidence,
		Gaps:       []string{gap},
		Metadata:   content.ExpertMetadata{Source: role},
		Degraded:   true,
		Error:      msg,
	}
}
