// Package plan defines the orchestrator's mutable record of a goal and
// the tasks attempted toward it.
package plan

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a delegated sub-task.
type State string

const (
	StatePending       State = "pending"
	StateRunning       State = "running"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
	StateCancelled     State = "cancelled"
	StateInputRequired State = "input_required"
)

// GoalStatus tracks whether the plan's goal has been reached.
type GoalStatus string

const (
	GoalIncomplete GoalStatus = "incomplete"
	GoalCompleted  GoalStatus = "completed"
)

// Task is one delegated sub-task of a plan. A task is mutated only by
// the engine executing it; one task has exactly one execution.
type Task struct {
	ID               string    `json:"id"`
	Description      string    `json:"description"`
	RecommendedAgent string    `json:"recommended_agent,omitempty"`
	State            State     `json:"state"`
	Output           string    `json:"output,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewTask creates a pending task.
func NewTask(description, agent string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:               uuid.NewString(),
		Description:      description,
		RecommendedAgent: agent,
		State:            StatePending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// SetState transitions the task and stamps the update time.
func (t *Task) SetState(state State) {
	t.State = state
	t.UpdatedAt = time.Now().UTC()
}

// Complete marks the task completed with its output.
func (t *Task) Complete(output string) {
	t.Output = output
	t.SetState(StateCompleted)
}

// Fail marks the task failed with an error message.
func (t *Task) Fail(errMsg string) {
	t.ErrorMessage = errMsg
	t.SetState(StateFailed)
}

// RequireInput marks the task as paused waiting for user input, keeping
// whatever output the agent produced so far.
func (t *Task) RequireInput(output string) {
	t.Output = output
	t.SetState(StateInputRequired)
}

// Plan records a goal and the ordered tasks attempted toward it.
// The task list is append-only; insertion order is execution order.
type Plan struct {
	Goal       GoalText   `json:"goal"`
	GoalStatus GoalStatus `json:"goal_status"`
	Tasks      []*Task    `json:"tasks"`

	// Workflow and WorkflowGoal carry the original workflow text across
	// a human-input pause so the deterministic path can resume.
	Workflow     string `json:"workflow,omitempty"`
	WorkflowGoal string `json:"workflow_goal,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GoalText is the free-text goal. A named type so follow-up merging has
// one obvious home.
type GoalText string

// Merge appends a user follow-up to the goal text.
func (g GoalText) Merge(followUp string) GoalText {
	if g == "" {
		return GoalText(followUp)
	}
	return g + "\n\nFollow-up: " + GoalText(followUp)
}

// New creates an incomplete plan for a goal.
func New(goal string) *Plan {
	now := time.Now().UTC()
	return &Plan{
		Goal:       GoalText(goal),
		GoalStatus: GoalIncomplete,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Append adds tasks to the plan in order.
func (p *Plan) Append(tasks ...*Task) {
	p.Tasks = append(p.Tasks, tasks...)
	p.UpdatedAt = time.Now().UTC()
}

// InputRequiredTask returns the first task paused for user input, if any.
func (p *Plan) InputRequiredTask() *Task {
	for _, t := range p.Tasks {
		if t.State == StateInputRequired {
			return t
		}
	}
	return nil
}

// TasksForAgent returns the tasks recommended to the given agent.
func (p *Plan) TasksForAgent(agent string) []*Task {
	var tasks []*Task
	for _, t := range p.Tasks {
		if t.RecommendedAgent == agent {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// Outputs returns the outputs of completed tasks in execution order.
func (p *Plan) Outputs() []string {
	var outputs []string
	for _, t := range p.Tasks {
		if t.State == StateCompleted && t.Output != "" {
			outputs = append(outputs, t.Output)
		}
	}
	return outputs
}

// MarkCompleted sets the goal status to completed.
func (p *Plan) MarkCompleted() {
	p.GoalStatus = GoalCompleted
	p.UpdatedAt = time.Now().UTC()
}
