package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/voletro/fleet/pkg/a2a"
	"github.com/voletro/fleet/pkg/agent"
	"github.com/voletro/fleet/pkg/observability"
	"github.com/voletro/fleet/pkg/session"
)

const (
	// maxRateLimitAttempts bounds total send attempts when the remote
	// agent keeps reporting a rate limit.
	maxRateLimitAttempts = 3

	// DefaultCooldownCap bounds a single cooldown wait.
	DefaultCooldownCap = 60 * time.Second
)

// Dispatcher sends one message to one agent: it decides task-id
// continuation, honors active cooldowns, and retries rate-limited
// failures with a fresh task.
type Dispatcher struct {
	agents      *agent.Registry
	events      observability.Sink
	metrics     *observability.Metrics
	cooldownCap time.Duration
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Agents  *agent.Registry
	Events  observability.Sink
	Metrics *observability.Metrics

	// CooldownCap overrides DefaultCooldownCap when positive.
	CooldownCap time.Duration
}

// NewDispatcher creates a Dispatcher over a session's agent registry.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Agents == nil {
		return nil, fmt.Errorf("agent registry is required")
	}
	if cfg.CooldownCap <= 0 {
		cfg.CooldownCap = DefaultCooldownCap
	}
	return &Dispatcher{
		agents:      cfg.Agents,
		events:      cfg.Events,
		metrics:     cfg.Metrics,
		cooldownCap: cfg.CooldownCap,
	}, nil
}

// SendMessage dispatches text to the named agent within a session.
//
// An existing task id is continued only while the agent's last known
// state accepts continuation; any terminal state forces a fresh task.
// A failed result carrying a rate-limit signal sets the agent's
// cooldown and resubmits with a new message and no task id, up to
// maxRateLimitAttempts total attempts.
func (d *Dispatcher) SendMessage(ctx context.Context, sess *session.Context, agentName, text string) (*a2a.SendResult, error) {
	conn, ok := d.agents.Resolve(agentName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAgentNotFound, agentName)
	}
	name := conn.Name()

	if err := d.awaitCooldown(ctx, sess, name); err != nil {
		return nil, err
	}

	taskID := ""
	if id, state, ok := sess.Task(name); ok && state.AcceptsContinuation() {
		taskID = id
	}

	// Artifact files recorded by the previous step ride along on this
	// dispatch. The slot is consumed; a rate-limit resubmit reuses the
	// same files.
	files := sess.TakeRecentFiles()

	var lastRes *a2a.SendResult
	for attempt := 1; attempt <= maxRateLimitAttempts; attempt++ {
		msg := a2a.NewUserMessage(sess.ID(), taskID, text)
		for i := range files {
			msg.Parts = append(msg.Parts, a2a.Part{Kind: a2a.PartKindFile, File: &files[i]})
		}
		params := &a2a.MessageSendParams{
			Message: msg,
			Configuration: &a2a.SendConfiguration{
				AcceptedOutputModes: []string{"text"},
				Blocking:            true,
			},
		}

		spanCtx, span := observability.StartSpan(ctx, "agent.dispatch",
			attribute.String("agent", name),
			attribute.Int("attempt", attempt))
		start := time.Now()
		res, err := conn.Send(spanCtx, params)
		observability.EndSpan(span, err)
		if err != nil {
			d.metrics.ObserveDispatch(name, "error", time.Since(start))
			if ctx.Err() != nil {
				// The run was canceled; tell the agent to stop the
				// in-flight task rather than let it run to completion.
				conn.Cancel(context.WithoutCancel(ctx), taskID)
			}
			return nil, err
		}
		lastRes = res

		state := res.State()
		if res.Task != nil {
			sess.SetTask(name, res.Task.ID, state)
		}

		switch state {
		case a2a.TaskStateInputRequired:
			id := taskID
			if res.Task != nil {
				id = res.Task.ID
			}
			sess.SetPendingInput(name, id)
			d.metrics.ObserveDispatch(name, "input_required", time.Since(start))
			return res, nil

		case a2a.TaskStateFailed:
			failure := a2a.ExtractResultText(res)
			rle, limited := ParseRateLimit(name, failure)
			if !limited {
				d.metrics.ObserveDispatch(name, "failed", time.Since(start))
				return res, &ProtocolError{Agent: name, Message: failure}
			}

			d.metrics.ObserveDispatch(name, "rate_limited", time.Since(start))
			if attempt == maxRateLimitAttempts {
				return res, rle
			}

			// Abandon the failed task and resubmit fresh after the
			// suggested wait.
			sess.ClearTask(name)
			taskID = ""
			sess.SetCooldown(name, time.Now().Add(rle.RetryAfter))
			d.metrics.ObserveRetry(name)
			if err := d.awaitCooldown(ctx, sess, name); err != nil {
				return lastRes, err
			}

		default:
			d.metrics.ObserveDispatch(name, "ok", time.Since(start))
			return res, nil
		}
	}

	return lastRes, &RateLimitError{Agent: name, Message: "rate limit retries exhausted"}
}

// awaitCooldown blocks until the agent's cooldown elapses. Each wait is
// capped so one throttled agent cannot stall a step indefinitely.
func (d *Dispatcher) awaitCooldown(ctx context.Context, sess *session.Context, agentName string) error {
	wait := time.Until(sess.Cooldown(agentName))
	if wait <= 0 {
		return nil
	}
	if wait > d.cooldownCap {
		wait = d.cooldownCap
	}

	observability.Emit(d.events, observability.Event{
		Type:    observability.EventThrottled,
		Agent:   agentName,
		Message: fmt.Sprintf("waiting %s for agent cooldown", wait.Round(time.Second)),
	})
	d.metrics.ObserveCooldownWait()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
