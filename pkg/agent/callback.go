// Package agent provides the remote agent connection layer: one
// connection per registered agent, with streaming support and a
// per-agent in-flight task table.
package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voletro/fleet/pkg/a2a"
)

// TaskCallback reduces protocol events into one canonical in-flight task
// per agent name. It is the only writer of the per-agent task slot;
// callers read a consistent snapshot after the event loop for a call
// returns.
type TaskCallback struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.Task
}

func NewTaskCallback() *TaskCallback {
	return &TaskCallback{
		tasks: make(map[string]*a2a.Task),
	}
}

// OnTask replaces the stored task for an agent outright.
func (c *TaskCallback) OnTask(agent string, task *a2a.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks[agent] = cloneTask(task)
}

// OnStatusUpdate merges a status-update event into the stored task,
// fabricating a minimal placeholder if none exists yet.
func (c *TaskCallback) OnStatusUpdate(agent string, ev *a2a.TaskStatusUpdateEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	task := c.tasks[agent]
	if task == nil {
		task = c.placeholder(ev.TaskID, ev.ContextID)
		c.tasks[agent] = task
	}
	task.Status = ev.Status
	if task.Status.Timestamp.IsZero() {
		task.Status.Timestamp = time.Now().UTC()
	}
}

// OnArtifact appends an artifact-update event to the stored task,
// fabricating a placeholder if none exists yet.
func (c *TaskCallback) OnArtifact(agent string, ev *a2a.TaskArtifactUpdateEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	task := c.tasks[agent]
	if task == nil {
		task = c.placeholder(ev.TaskID, ev.ContextID)
		c.tasks[agent] = task
	}
	task.Artifacts = append(task.Artifacts, ev.Artifact)
}

// Task returns a snapshot of the agent's in-flight task.
func (c *TaskCallback) Task(agent string) (*a2a.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	task, ok := c.tasks[agent]
	if !ok {
		return nil, false
	}
	return cloneTask(task), true
}

// Clear forgets the agent's in-flight task.
func (c *TaskCallback) Clear(agent string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tasks, agent)
}

func (c *TaskCallback) placeholder(taskID, contextID string) *a2a.Task {
	if taskID == "" {
		taskID = uuid.NewString()
	}
	if contextID == "" {
		contextID = uuid.NewString()
	}
	return &a2a.Task{
		Kind:      a2a.KindTask,
		ID:        taskID,
		ContextID: contextID,
		Status:    a2a.TaskStatus{State: a2a.TaskStateSubmitted, Timestamp: time.Now().UTC()},
	}
}

func cloneTask(task *a2a.Task) *a2a.Task {
	if task == nil {
		return nil
	}

	clone := *task
	clone.Artifacts = make([]a2a.Artifact, len(task.Artifacts))
	copy(clone.Artifacts, task.Artifacts)
	clone.History = make([]a2a.Message, len(task.History))
	copy(clone.History, task.History)
	return &clone
}
