package orchestrator

import (
	"time"

	"github.com/sweetpotato0/studygen/content"
)

// Status is the lifecycle of a run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// StepStatus is the lifecycle of one pipeline step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
)

// AgentStep reports one role's progress.
type AgentStep struct {
	Role        content.Role   `json:"role"`
	Status      StepStatus     `json:"status"`
	Input       map[string]any `json:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Reasoning   string         `json:"reasoning,omitempty"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Duration is the time between start and completion, zero while running.
func (s AgentStep) Duration() time.Duration {
	if s.StartedAt == nil || s.CompletedAt == nil {
		return 0
	}
	return s.CompletedAt.Sub(*s.StartedAt)
}

// State is the progress of one run. Only the coordinating goroutine mutates
// it; subscribers receive copies.
type State struct {
	RunID       string        `json:"runId"`
	TopicID     string        `json:"topicId"`
	Status      Status        `json:"status"`
	CurrentStep *content.Role `json:"currentStep"`
	Steps       []AgentStep   `json:"steps"`
}

func newState(runID, topicID string) *State {
	s := &State{RunID: runID, TopicID: topicID, Status: StatusIdle}
	for _, role := range content.Roles {
		s.Steps = append(s.Steps, AgentStep{Role: role, Status: StepPending})
	}
	return s
}

// Step returns the step for role, or nil.
func (s *State) Step(role content.Role) *AgentStep {
	for i := range s.Steps {
		if s.Steps[i].Role == role {
			return &s.Steps[i]
		}
	}
	return nil
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *State) Clone() *State {
	out := *s
	if s.CurrentStep != nil {
		role := *s.CurrentStep
		out.CurrentStep = &role
	}
	out.Steps = make([]AgentStep, len(s.Steps))
	for i, step := range s.Steps {
		step.Input = cloneMap(step.Input)
		step.Output = cloneMap(step.Output)
		if step.StartedAt != nil {
			t := *step.StartedAt
			step.StartedAt = &t
		}
		if step.CompletedAt != nil {
			t := *step.CompletedAt
			step.CompletedAt = &t
		}
		out.Steps[i] = step
	}
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// EventType names a streamed event.
type EventType string

const (
	EventState EventType = "state"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is one message of the progress stream. Exactly one terminal event
// (done or error) ends every stream.
type Event struct {
	Type    EventType                      `json:"type"`
	State   *State                         `json:"state,omitempty"`
	Content *content.GeneratedTopicContent `json:"content,omitempty"`
	Summary *Summary                       `json:"summary,omitempty"`
	Error   *ErrorPayload                  `json:"error,omitempty"`
}

// ErrorPayload describes a failed or cancelled run.
type ErrorPayload struct {
	Message   string `json:"message"`
	Cancelled bool   `json:"cancelled"`
}

// Summary is the telemetry attached to terminal events.
type Summary struct {
	RunID         string                `json:"runId"`
	ElapsedMs     int64                 `json:"elapsedMs"`
	Cached        bool                  `json:"cached,omitempty"`
	QualityStatus content.QualityStatus `json:"qualityStatus,omitempty"`
	Health        *content.Health       `json:"health,omitempty"`
	Warnings      []string              `json:"warnings,omitempty"`
	Retries       int                   `json:"retries"`
	Steps         []StepTiming          `json:"steps,omitempty"`
}

// StepTiming is the per-step part of a Summary.
type StepTiming struct {
	Role       content.Role `json:"role"`
	Status     StepStatus   `json:"status"`
	DurationMs int64        `json:"durationMs"`
}

// Emitter receives events in order from the coordinating goroutine.
type Emitter func(Event)
