package orchestrator

import (
	"context"
	"fmt"

	"github.com/voletro/fleet/pkg/a2a"
	"github.com/voletro/fleet/pkg/agent"
	"github.com/voletro/fleet/pkg/observability"
	"github.com/voletro/fleet/pkg/plan"
	"github.com/voletro/fleet/pkg/session"
)

// stepResult is one step's outcome inside a group.
type stepResult struct {
	output string
	paused bool
	err    error
}

// executeStep resolves a task's agent, builds the outbound message with
// one selected prior output as context, dispatches it, and interprets
// the result. Failures are captured on the task, never propagated as a
// panic of the surrounding loop.
func (e *Engine) executeStep(ctx context.Context, sess *session.Context, task *plan.Task, prior []string) stepResult {
	task.SetState(plan.StateRunning)
	observability.Emit(e.events, observability.Event{
		Type:    observability.EventTaskStart,
		Agent:   task.RecommendedAgent,
		Message: task.Description,
	})

	conn, err := e.resolveAgent(ctx, task)
	if err != nil {
		task.Fail(err.Error())
		observability.Emit(e.events, observability.Event{
			Type:    observability.EventTaskError,
			Agent:   task.RecommendedAgent,
			Message: err.Error(),
		})
		return stepResult{err: err}
	}
	name := conn.Name()
	task.RecommendedAgent = name

	text := task.Description
	if ctxText := SelectContext(prior); ctxText != "" {
		text += "\n\nContext from previous step:\n" + ctxText
	}

	res, err := e.dispatcher.SendMessage(ctx, sess, name, text)
	pending, _ := sess.PendingInput()

	if err != nil {
		if pending == name {
			// The transport can error after the pause signal was
			// already recorded; treat it as the pause it is.
			return e.pauseStep(sess, task, a2a.ExtractResultText(res))
		}
		task.Fail(err.Error())
		observability.Emit(e.events, observability.Event{
			Type:    observability.EventTaskError,
			Agent:   name,
			Message: err.Error(),
		})
		return stepResult{err: err}
	}

	output := a2a.ExtractResultText(res)
	if pending == name {
		return e.pauseStep(sess, task, output)
	}

	if res.Task != nil {
		if files := a2a.FileParts(res.Task); len(files) > 0 {
			sess.SetRecentFiles(files)
		}
	}

	task.Complete(output)
	observability.Emit(e.events, observability.Event{
		Type:    observability.EventTaskComplete,
		Agent:   name,
		Message: task.Description,
	})
	return stepResult{output: output}
}

// pauseStep marks the task as waiting for user input. The pending-input
// marker stays set; it is consumed on resume.
func (e *Engine) pauseStep(sess *session.Context, task *plan.Task, output string) stepResult {
	task.RequireInput(output)
	observability.Emit(e.events, observability.Event{
		Type:    observability.EventInputRequired,
		Agent:   task.RecommendedAgent,
		Message: output,
	})
	return stepResult{output: output, paused: true}
}

// resolveAgent finds the connection for a task: the explicit hint
// against the session registry first, then the catalog (registering on
// demand), then the external selector as a last resort.
func (e *Engine) resolveAgent(ctx context.Context, task *plan.Task) (*agent.Connection, error) {
	if hint := task.RecommendedAgent; hint != "" {
		if conn, ok := e.lookup(hint); ok {
			return conn, nil
		}
	}

	if e.selector != nil {
		infos := e.agentInfos()
		if len(infos) > 0 {
			name, err := e.selector.Select(ctx, task.Description, infos)
			if err == nil {
				if conn, ok := e.lookup(name); ok {
					return conn, nil
				}
			}
		}
	}

	hint := task.RecommendedAgent
	if hint == "" {
		hint = task.Description
	}
	return nil, fmt.Errorf("%w: %q", ErrAgentNotFound, hint)
}

// lookup resolves a name against the session registry, falling back to
// the catalog and registering the catalog entry for the session.
func (e *Engine) lookup(name string) (*agent.Connection, bool) {
	if conn, ok := e.agents.Resolve(name); ok {
		return conn, true
	}
	if e.catalog != nil {
		if conn, ok := e.catalog.Resolve(name); ok {
			_ = e.agents.Register(conn.Name(), conn)
			return conn, true
		}
	}
	return nil, false
}
