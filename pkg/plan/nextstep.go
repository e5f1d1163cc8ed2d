package plan

import (
	"encoding/json"
	"fmt"
)

// ProposedTask is one task proposed by the planner.
type ProposedTask struct {
	Description string `json:"description"`
	Agent       string `json:"agent,omitempty"`
}

// NextStep is the planner's output for one iteration: either a single
// next task or an ordered batch of tasks to run in parallel.
type NextStep struct {
	GoalStatus GoalStatus     `json:"goal_status"`
	NextTask   *ProposedTask  `json:"next_task,omitempty"`
	NextTasks  []ProposedTask `json:"next_tasks,omitempty"`
	Parallel   bool           `json:"parallel,omitempty"`
	Reasoning  string         `json:"reasoning,omitempty"`
}

// Validate enforces the NextStep invariant: if Parallel is set,
// NextTasks is non-empty and NextTask is absent, and vice versa.
func (s *NextStep) Validate() error {
	switch s.GoalStatus {
	case GoalIncomplete, GoalCompleted:
	default:
		return fmt.Errorf("invalid goal_status %q", s.GoalStatus)
	}

	if s.Parallel {
		if len(s.NextTasks) == 0 {
			return fmt.Errorf("parallel step requires next_tasks")
		}
		if s.NextTask != nil {
			return fmt.Errorf("parallel step cannot carry next_task")
		}
		return nil
	}

	if s.NextTask != nil && len(s.NextTasks) > 0 {
		return fmt.Errorf("next_task and next_tasks are mutually exclusive")
	}
	if s.GoalStatus == GoalIncomplete && s.NextTask == nil && len(s.NextTasks) == 0 {
		return fmt.Errorf("incomplete goal requires a next task")
	}
	return nil
}

// Proposed returns the proposed tasks in order, regardless of variant.
func (s *NextStep) Proposed() []ProposedTask {
	if s.NextTask != nil {
		return []ProposedTask{*s.NextTask}
	}
	return s.NextTasks
}

// DecodeNextStep decodes and validates a planner response document.
func DecodeNextStep(data []byte) (*NextStep, error) {
	var step NextStep
	if err := json.Unmarshal(data, &step); err != nil {
		return nil, fmt.Errorf("failed to decode next step: %w", err)
	}
	if step.GoalStatus == "" {
		step.GoalStatus = GoalIncomplete
	}
	if err := step.Validate(); err != nil {
		return nil, fmt.Errorf("invalid next step: %w", err)
	}
	return &step, nil
}
