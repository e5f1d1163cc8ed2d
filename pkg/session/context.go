// Package session tracks per-conversation orchestration state: one task
// id and state per agent, per-agent rate-limit cooldowns, the pending
// human-input marker, and the paused plan awaiting resume.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/voletro/fleet/pkg/a2a"
	"github.com/voletro/fleet/pkg/plan"
)

// Context is the per-conversation state shared by concurrently executing
// sibling tasks. All access goes through the mutex: siblings in a
// parallel group mutate different agent keys in the common case, but the
// maps themselves must be guarded.
type Context struct {
	id string

	mu                 sync.RWMutex
	taskIDs            map[string]string
	taskStates         map[string]a2a.TaskState
	cooldowns          map[string]time.Time
	pendingInputAgent  string
	pendingInputTaskID string
	plan               *plan.Plan
	recentFiles        []a2a.FilePart
}

// NewContext creates an empty conversation context.
func NewContext(id string) *Context {
	return &Context{
		id:         id,
		taskIDs:    make(map[string]string),
		taskStates: make(map[string]a2a.TaskState),
		cooldowns:  make(map[string]time.Time),
	}
}

// ID returns the conversation id.
func (c *Context) ID() string { return c.id }

// Task returns the last known task id and state for an agent.
func (c *Context) Task(agent string) (string, a2a.TaskState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.taskIDs[agent]
	if !ok {
		return "", a2a.TaskStateUnknown, false
	}
	return id, c.taskStates[agent], true
}

// SetTask records the task id and state for an agent.
func (c *Context) SetTask(agent, taskID string, state a2a.TaskState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.taskIDs[agent] = taskID
	c.taskStates[agent] = state
}

// ClearTask forgets an agent's task, forcing the next call to start fresh.
func (c *Context) ClearTask(agent string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.taskIDs, agent)
	delete(c.taskStates, agent)
}

// Cooldown returns the time before which the agent must not be called.
func (c *Context) Cooldown(agent string) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cooldowns[agent]
}

// SetCooldown records a rate-limit cooldown for an agent.
func (c *Context) SetCooldown(agent string, until time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cooldowns[agent] = until
}

// PendingInput returns the agent and task waiting for human input.
func (c *Context) PendingInput() (agent, taskID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pendingInputAgent, c.pendingInputTaskID
}

// SetPendingInput marks an agent as waiting for human input.
func (c *Context) SetPendingInput(agent, taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingInputAgent = agent
	c.pendingInputTaskID = taskID
}

// ClearPendingInput clears the human-input marker.
func (c *Context) ClearPendingInput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingInputAgent = ""
	c.pendingInputTaskID = ""
}

// Plan returns the paused plan, if one is stored.
func (c *Context) Plan() *plan.Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.plan
}

// SetPlan stores the paused plan for later resume.
func (c *Context) SetPlan(p *plan.Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plan = p
}

// TakePlan returns the paused plan and clears the slot. The slot is
// cleared exactly when the paused step's answer is consumed on resume.
func (c *Context) TakePlan() *plan.Plan {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.plan
	c.plan = nil
	return p
}

// RecentFiles returns the most recent artifact files produced by a step.
func (c *Context) RecentFiles() []a2a.FilePart {
	c.mu.RLock()
	defer c.mu.RUnlock()

	files := make([]a2a.FilePart, len(c.recentFiles))
	copy(files, c.recentFiles)
	return files
}

// SetRecentFiles replaces the session-level most-recent-files slot.
func (c *Context) SetRecentFiles(files []a2a.FilePart) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recentFiles = make([]a2a.FilePart, len(files))
	copy(c.recentFiles, files)
}

// TakeRecentFiles returns the most-recent-files slot and clears it.
// Files ride along on exactly one follow-up dispatch.
func (c *Context) TakeRecentFiles() []a2a.FilePart {
	c.mu.Lock()
	defer c.mu.Unlock()

	files := c.recentFiles
	c.recentFiles = nil
	return files
}

// contextJSON is the serialized form of a Context.
type contextJSON struct {
	ID                 string                   `json:"id"`
	TaskIDs            map[string]string        `json:"task_ids,omitempty"`
	TaskStates         map[string]a2a.TaskState `json:"task_states,omitempty"`
	Cooldowns          map[string]time.Time     `json:"cooldowns,omitempty"`
	PendingInputAgent  string                   `json:"pending_input_agent,omitempty"`
	PendingInputTaskID string                   `json:"pending_input_task_id,omitempty"`
	Plan               *plan.Plan               `json:"current_plan,omitempty"`
	RecentFiles        []a2a.FilePart           `json:"recent_files,omitempty"`
}

// MarshalJSON serializes a consistent snapshot of the context.
func (c *Context) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return json.Marshal(contextJSON{
		ID:                 c.id,
		TaskIDs:            c.taskIDs,
		TaskStates:         c.taskStates,
		Cooldowns:          c.cooldowns,
		PendingInputAgent:  c.pendingInputAgent,
		PendingInputTaskID: c.pendingInputTaskID,
		Plan:               c.plan,
		RecentFiles:        c.recentFiles,
	})
}

// UnmarshalJSON restores a serialized context.
func (c *Context) UnmarshalJSON(data []byte) error {
	var snap contextJSON
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.id = snap.ID
	c.taskIDs = snap.TaskIDs
	c.taskStates = snap.TaskStates
	c.cooldowns = snap.Cooldowns
	if c.taskIDs == nil {
		c.taskIDs = make(map[string]string)
	}
	if c.taskStates == nil {
		c.taskStates = make(map[string]a2a.TaskState)
	}
	if c.cooldowns == nil {
		c.cooldowns = make(map[string]time.Time)
	}
	c.pendingInputAgent = snap.PendingInputAgent
	c.pendingInputTaskID = snap.PendingInputTaskID
	c.plan = snap.Plan
	c.recentFiles = snap.RecentFiles
	return nil
}
