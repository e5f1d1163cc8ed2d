package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/voletro/fleet/pkg/a2a"
)

// DefaultCallTimeout is the hard ceiling on one remote agent call.
const DefaultCallTimeout = 180 * time.Second

// ErrTimeout marks a remote call that exceeded the call ceiling. It is
// a distinct failure kind, not a generic transport error.
var ErrTimeout = errors.New("remote agent call timed out")

// Connection is the per-agent protocol connection. It decides streaming
// versus non-streaming per the agent's advertised capability and folds
// inbound events into the shared task callback.
type Connection struct {
	card     *a2a.AgentCard
	client   *a2a.Client
	callback *TaskCallback
	timeout  time.Duration

	// streamingBroken is set permanently when the agent returns an
	// invalid streaming response; the agent is downgraded to
	// non-streaming for the remainder of the process.
	streamingBroken atomic.Bool
}

// ConnectionConfig configures a Connection.
type ConnectionConfig struct {
	Card     *a2a.AgentCard
	Client   *a2a.Client
	Callback *TaskCallback

	// Timeout overrides DefaultCallTimeout when positive.
	Timeout time.Duration
}

// NewConnection creates a connection for one remote agent.
func NewConnection(cfg ConnectionConfig) (*Connection, error) {
	if cfg.Card == nil || cfg.Card.Name == "" {
		return nil, fmt.Errorf("agent card with name is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("protocol client is required")
	}
	if cfg.Callback == nil {
		cfg.Callback = NewTaskCallback()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCallTimeout
	}

	return &Connection{
		card:     cfg.Card,
		client:   cfg.Client,
		callback: cfg.Callback,
		timeout:  cfg.Timeout,
	}, nil
}

// Name returns the agent's advertised name.
func (c *Connection) Name() string { return c.card.Name }

// Card returns the agent's card.
func (c *Connection) Card() *a2a.AgentCard { return c.card }

// Callback returns the task callback this connection reports into.
func (c *Connection) Callback() *TaskCallback { return c.callback }

// Streaming reports whether the next call will use streaming.
func (c *Connection) Streaming() bool {
	return c.card.Capabilities.Streaming && !c.streamingBroken.Load()
}

// Send delivers a message to the remote agent and returns the decoded
// result. Streaming is used when supported, with graceful fallback to a
// single non-streaming request. The call is bounded by the connection
// timeout; exceeding it yields ErrTimeout.
func (c *Connection) Send(ctx context.Context, params *a2a.MessageSendParams) (*a2a.SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.Streaming() {
		res, err := c.sendStreaming(ctx, params)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, a2a.ErrInvalidStream) {
			c.streamingBroken.Store(true)
			slog.Warn("agent downgraded to non-streaming",
				"agent", c.card.Name, "error", err)
			// Fall through to a plain request.
		} else {
			return nil, c.classify(ctx, err)
		}
	}

	res, err := c.client.SendMessage(ctx, params)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	if res.Task != nil {
		c.callback.OnTask(c.card.Name, res.Task)
	}
	return res, nil
}

// sendStreaming opens a streaming call and folds every inbound event
// into the task callback, returning the reduced final result.
func (c *Connection) sendStreaming(ctx context.Context, params *a2a.MessageSendParams) (*a2a.SendResult, error) {
	events, err := c.client.StreamMessage(ctx, params)
	if err != nil {
		return nil, err
	}

	var terminal *a2a.Message
	for event := range events {
		switch {
		case event.Err != nil:
			return nil, event.Err
		case event.Task != nil:
			c.callback.OnTask(c.card.Name, event.Task)
		case event.StatusUpdate != nil:
			c.callback.OnStatusUpdate(c.card.Name, event.StatusUpdate)
		case event.ArtifactUpdate != nil:
			c.callback.OnArtifact(c.card.Name, event.ArtifactUpdate)
		case event.Message != nil:
			terminal = event.Message
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, c.classify(ctx, err)
	}

	if terminal != nil {
		return &a2a.SendResult{Message: terminal}, nil
	}
	if task, ok := c.callback.Task(c.card.Name); ok {
		return &a2a.SendResult{Task: task}, nil
	}
	return nil, fmt.Errorf("stream from agent %s ended without a result", c.card.Name)
}

// Cancel requests cancellation of a task. Best effort: unsupported or
// failed cancellation is logged and ignored.
func (c *Connection) Cancel(ctx context.Context, taskID string) {
	if taskID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.client.CancelTask(ctx, taskID); err != nil {
		slog.Debug("task cancellation ignored",
			"agent", c.card.Name, "task", taskID, "error", err)
	}
}

// classify maps a context deadline into the named timeout failure.
func (c *Connection) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: agent %s after %s", ErrTimeout, c.card.Name, c.timeout)
	}
	return err
}
