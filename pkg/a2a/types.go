// Package a2a implements the client side of the Agent-to-Agent (A2A)
// protocol: JSON-RPC requests over HTTP with optional server-sent-event
// streaming. Specification: https://a2a-protocol.org/
package a2a

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// AGENT CARD - Agent Discovery & Capability Advertisement
// ============================================================================

// AgentCard advertises an agent's identity and capabilities.
// Served from /.well-known/agent-card.json on the agent's base URL.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	URL                string            `json:"url"`
	Version            string            `json:"version,omitempty"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	Skills             []AgentSkill      `json:"skills,omitempty"`
	DefaultInputModes  []string          `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string          `json:"defaultOutputModes,omitempty"`
}

// AgentCapabilities describes optional protocol features an agent supports.
type AgentCapabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"pushNotifications,omitempty"`
}

// AgentSkill describes one capability the agent advertises.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ============================================================================
// TASK - Unit of Work
// ============================================================================

// TaskState is the lifecycle state of a remote task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateUnknown       TaskState = "unknown"
)

// Terminal reports whether the state ends the task.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}
	return false
}

// AcceptsContinuation reports whether a follow-up message may reuse the
// task's id. Any terminal state forces a fresh task.
func (s TaskState) AcceptsContinuation() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired:
		return true
	}
	return false
}

// Task is a unit of work tracked by a remote agent.
type Task struct {
	Kind      string         `json:"kind"` // always "task"
	ID        string         `json:"id"`
	ContextID string         `json:"contextId,omitempty"`
	Status    TaskStatus     `json:"status"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	History   []Message      `json:"history,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TaskStatus pairs a state with the message that produced it.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ============================================================================
// MESSAGE & PARTS
// ============================================================================

// Role identifies the message sender.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message is a single protocol message.
type Message struct {
	Kind      string `json:"kind"` // always "message"
	MessageID string `json:"messageId"`
	ContextID string `json:"contextId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
	Role      Role   `json:"role"`
	Parts     []Part `json:"parts"`
}

// Part is a union of text, file, and structured-data content.
// Kind discriminates which member is populated.
type Part struct {
	Kind string         `json:"kind"` // "text", "file", "data"
	Text string         `json:"text,omitempty"`
	File *FilePart      `json:"file,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

const (
	PartKindText = "text"
	PartKindFile = "file"
	PartKindData = "data"
)

// FilePart references file content by bytes or URI.
type FilePart struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Bytes    []byte `json:"bytes,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// Artifact is an output produced by a task.
type Artifact struct {
	ArtifactID  string `json:"artifactId"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Parts       []Part `json:"parts"`
}

// ============================================================================
// RPC PARAMETERS
// ============================================================================

// MessageSendParams are the params of message/send and message/stream.
type MessageSendParams struct {
	Message       Message            `json:"message"`
	Configuration *SendConfiguration `json:"configuration,omitempty"`
}

// SendConfiguration constrains how the agent responds.
type SendConfiguration struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`
	Blocking            bool     `json:"blocking,omitempty"`
}

// TaskQueryParams are the params of tasks/get.
type TaskQueryParams struct {
	ID string `json:"id"`
}

// TaskIDParams are the params of tasks/cancel.
type TaskIDParams struct {
	ID string `json:"id"`
}

// ============================================================================
// RESULT UNION
// ============================================================================

// SendResult is the decoded result of message/send: either a terminal
// Message or a Task. Exactly one member is non-nil.
type SendResult struct {
	Message *Message
	Task    *Task
}

// State returns the task state carried by the result. Terminal messages
// report completed.
func (r *SendResult) State() TaskState {
	if r.Task != nil {
		return r.Task.Status.State
	}
	if r.Message != nil {
		return TaskStateCompleted
	}
	return TaskStateUnknown
}

// StreamEvent is one decoded event from a message/stream response.
// Exactly one member is non-nil.
type StreamEvent struct {
	Message        *Message
	Task           *Task
	StatusUpdate   *TaskStatusUpdateEvent
	ArtifactUpdate *TaskArtifactUpdateEvent
	Err            error
}

// Final reports whether the event terminates the stream.
func (e StreamEvent) Final() bool {
	switch {
	case e.Err != nil:
		return true
	case e.Message != nil:
		return true
	case e.Task != nil:
		return e.Task.Status.State.Terminal() || e.Task.Status.State == TaskStateInputRequired
	case e.StatusUpdate != nil:
		return e.StatusUpdate.Final
	}
	return false
}

// TaskStatusUpdateEvent reports a task state change during streaming.
type TaskStatusUpdateEvent struct {
	Kind      string     `json:"kind"` // always "status-update"
	TaskID    string     `json:"taskId"`
	ContextID string     `json:"contextId,omitempty"`
	Status    TaskStatus `json:"status"`
	Final     bool       `json:"final"`
}

// TaskArtifactUpdateEvent delivers an artifact during streaming.
type TaskArtifactUpdateEvent struct {
	Kind      string   `json:"kind"` // always "artifact-update"
	TaskID    string   `json:"taskId"`
	ContextID string   `json:"contextId,omitempty"`
	Artifact  Artifact `json:"artifact"`
	Append    bool     `json:"append,omitempty"`
	LastChunk bool     `json:"lastChunk,omitempty"`
}

// Kind discriminator values used on the wire.
const (
	KindMessage        = "message"
	KindTask           = "task"
	KindStatusUpdate   = "status-update"
	KindArtifactUpdate = "artifact-update"
)

// decodeResult decodes a message/send result into its union variant.
func decodeResult(raw json.RawMessage) (*SendResult, error) {
	kind, err := peekKind(raw)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindMessage:
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message result: %w", err)
		}
		return &SendResult{Message: &msg}, nil
	case KindTask:
		var task Task
		if err := json.Unmarshal(raw, &task); err != nil {
			return nil, fmt.Errorf("failed to decode task result: %w", err)
		}
		return &SendResult{Task: &task}, nil
	default:
		return nil, fmt.Errorf("unexpected result kind %q", kind)
	}
}

// decodeStreamEvent decodes one streaming result into its union variant.
func decodeStreamEvent(raw json.RawMessage) (StreamEvent, error) {
	kind, err := peekKind(raw)
	if err != nil {
		return StreamEvent{}, err
	}

	switch kind {
	case KindMessage:
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return StreamEvent{}, fmt.Errorf("failed to decode message event: %w", err)
		}
		return StreamEvent{Message: &msg}, nil
	case KindTask:
		var task Task
		if err := json.Unmarshal(raw, &task); err != nil {
			return StreamEvent{}, fmt.Errorf("failed to decode task event: %w", err)
		}
		return StreamEvent{Task: &task}, nil
	case KindStatusUpdate:
		var ev TaskStatusUpdateEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return StreamEvent{}, fmt.Errorf("failed to decode status update: %w", err)
		}
		return StreamEvent{StatusUpdate: &ev}, nil
	case KindArtifactUpdate:
		var ev TaskArtifactUpdateEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return StreamEvent{}, fmt.Errorf("failed to decode artifact update: %w", err)
		}
		return StreamEvent{ArtifactUpdate: &ev}, nil
	default:
		return StreamEvent{}, fmt.Errorf("unexpected event kind %q", kind)
	}
}

func peekKind(raw json.RawMessage) (string, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", fmt.Errorf("failed to probe result kind: %w", err)
	}
	return probe.Kind, nil
}
