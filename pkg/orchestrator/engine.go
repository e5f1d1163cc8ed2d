// Package orchestrator coordinates a fleet of remote agents: it walks
// parsed workflows or an iterative planning loop, dispatches each task
// to its agent through the Dispatcher, and pauses and resumes plans
// across human-input turns.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voletro/fleet/pkg/agent"
	"github.com/voletro/fleet/pkg/memory"
	"github.com/voletro/fleet/pkg/observability"
	"github.com/voletro/fleet/pkg/plan"
	"github.com/voletro/fleet/pkg/planner"
	"github.com/voletro/fleet/pkg/session"
	"github.com/voletro/fleet/pkg/workflow"
)

const (
	// DefaultMaxIterations is the planning loop's hard safety ceiling.
	DefaultMaxIterations = 20

	// DefaultRetryBudget is how many non-rate-limit protocol failures
	// a run absorbs before surfacing recovery options.
	DefaultRetryBudget = 2
)

// Engine runs plans against a registry of remote agent connections.
type Engine struct {
	agents     *agent.Registry
	catalog    *agent.Registry
	sessions   session.Service
	dispatcher *Dispatcher
	planner    planner.Planner
	selector   planner.Selector
	memory     memory.Store
	events     observability.Sink
	metrics    *observability.Metrics

	maxIterations int
	retryBudget   int
}

// Config configures an Engine.
type Config struct {
	// Agents is the session-scoped registry of connected agents.
	Agents *agent.Registry

	// Catalog optionally holds additional agents registered on demand
	// when a step resolves to one of them.
	Catalog *agent.Registry

	// Sessions defaults to the in-memory service.
	Sessions session.Service

	// Planner drives the planner-guided path. Optional; RunWorkflow
	// works without it.
	Planner planner.Planner

	// Selector resolves agents when no hint matches. Defaults to the
	// lexical keyword selector.
	Selector planner.Selector

	// Memory records interactions best-effort. Defaults to a no-op.
	Memory memory.Store

	Events  observability.Sink
	Metrics *observability.Metrics

	MaxIterations int
	RetryBudget   int
	CooldownCap   time.Duration
}

// NewEngine creates an orchestration engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Agents == nil {
		return nil, fmt.Errorf("agent registry is required")
	}
	if cfg.Sessions == nil {
		cfg.Sessions = session.InMemoryService()
	}
	if cfg.Selector == nil {
		cfg.Selector = planner.KeywordSelector{}
	}
	if cfg.Memory == nil {
		cfg.Memory = memory.Nop{}
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = DefaultRetryBudget
	}

	dispatcher, err := NewDispatcher(DispatcherConfig{
		Agents:      cfg.Agents,
		Events:      cfg.Events,
		Metrics:     cfg.Metrics,
		CooldownCap: cfg.CooldownCap,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		agents:        cfg.Agents,
		catalog:       cfg.Catalog,
		sessions:      cfg.Sessions,
		dispatcher:    dispatcher,
		planner:       cfg.Planner,
		selector:      cfg.Selector,
		memory:        cfg.Memory,
		events:        cfg.Events,
		metrics:       cfg.Metrics,
		maxIterations: cfg.MaxIterations,
		retryBudget:   cfg.RetryBudget,
	}, nil
}

// Result is the outcome of one engine turn.
type Result struct {
	Plan    *plan.Plan
	Outputs []string

	// Paused reports a human-input pause; PausedAgent names the agent
	// waiting for input.
	Paused      bool
	PausedAgent string

	// Warning carries a user-facing explanation when the run stopped
	// short of its goal without a hard error.
	Warning string
}

// RunWorkflow executes a human-authored workflow deterministically:
// groups in ascending order, parallel steps joined before the next
// group starts.
func (e *Engine) RunWorkflow(ctx context.Context, sessionID, goal, workflowText string) (*Result, error) {
	sess, err := e.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	wf := workflow.Parse(workflowText)
	for _, warning := range wf.Warnings {
		slog.Warn("skipping malformed workflow line", "line", warning)
	}
	if len(wf.Groups) == 0 {
		return nil, fmt.Errorf("workflow has no parseable steps")
	}

	p := plan.New(goal)
	p.Workflow = workflowText
	p.WorkflowGoal = goal

	ctx, span := observability.StartSpan(ctx, "orchestrator.workflow")
	res, err := e.runWorkflowFrom(ctx, sess, p, wf, 0)
	observability.EndSpan(span, err)
	return res, err
}

// RunGoal executes the planner-guided path for a free-text goal.
func (e *Engine) RunGoal(ctx context.Context, sessionID, goal string) (*Result, error) {
	if e.planner == nil {
		return nil, fmt.Errorf("no planner configured")
	}
	sess, err := e.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Advisory recall; a hit only informs the operator's logs, the
	// planner owns its own context.
	if recalled := e.memory.SearchSimilar(ctx, goal, sessionID, 3); len(recalled) > 0 {
		slog.Debug("recalled similar interactions", "session", sessionID, "count", len(recalled))
	}

	ctx, span := observability.StartSpan(ctx, "orchestrator.goal")
	res, err := e.runPlannerLoop(ctx, sess, plan.New(goal))
	observability.EndSpan(span, err)
	return res, err
}

// Resume continues a plan paused for human input. The follow-up is
// merged into the goal and recorded as the paused task's output; the
// run then continues from the next unexecuted step.
func (e *Engine) Resume(ctx context.Context, sessionID, followUp string) (*Result, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	p := sess.TakePlan()
	if p == nil {
		return nil, fmt.Errorf("session %q has no paused plan", sessionID)
	}

	p.Goal = p.Goal.Merge(followUp)
	if t := p.InputRequiredTask(); t != nil {
		t.Complete(followUp)
	}
	sess.ClearPendingInput()

	if p.Workflow != "" {
		wf := workflow.Parse(p.Workflow)
		return e.runWorkflowFrom(ctx, sess, p, wf, len(p.Tasks))
	}
	if e.planner == nil {
		return nil, fmt.Errorf("no planner configured")
	}
	return e.runPlannerLoop(ctx, sess, p)
}

// runWorkflowFrom walks the workflow's groups, skipping the first skip
// steps (already executed before a pause).
func (e *Engine) runWorkflowFrom(ctx context.Context, sess *session.Context, p *plan.Plan, wf *workflow.Workflow, skip int) (*Result, error) {
	seen := 0
	for _, group := range wf.Groups {
		steps := group.Steps
		if seen+len(steps) <= skip {
			seen += len(steps)
			continue
		}
		if skip > seen {
			steps = steps[skip-seen:]
		}
		seen += len(group.Steps)

		if group.Type == workflow.GroupParallel {
			observability.Emit(e.events, observability.Event{
				Type:    observability.EventGroupStart,
				Message: fmt.Sprintf("running %d parallel steps in group %d", len(steps), group.Number),
			})
		}

		snapshot := p.Outputs()
		tasks := make([]*plan.Task, len(steps))
		for i, step := range steps {
			tasks[i] = plan.NewTask(step.Description, step.AgentHint)
		}
		p.Append(tasks...)

		results := e.runGroup(ctx, sess, tasks, snapshot)

		if group.Type == workflow.GroupParallel {
			observability.Emit(e.events, observability.Event{
				Type:    observability.EventGroupEnd,
				Message: fmt.Sprintf("group %d complete", group.Number),
			})
		}

		if anyPaused(results) {
			return e.pause(ctx, sess, p)
		}
	}
	return e.finish(ctx, sess, p, "")
}

// runPlannerLoop iterates planner proposals until the goal completes, a
// step pauses for input, or a safety ceiling trips.
func (e *Engine) runPlannerLoop(ctx context.Context, sess *session.Context, p *plan.Plan) (*Result, error) {
	failures := 0
	for iteration := 1; iteration <= e.maxIterations; iteration++ {
		e.metrics.ObservePlannerIteration()
		observability.Emit(e.events, observability.Event{
			Type:    observability.EventPlanning,
			Message: fmt.Sprintf("planning iteration %d", iteration),
		})

		if agentName, looping := detectLoop(p); looping {
			slog.Warn("stopping planning loop", "agent", agentName,
				"reason", ErrPlannerLoopDetected)
			warning := fmt.Sprintf(
				"%s: agent %q was assigned repeated retry/reauthentication tasks; stopping to avoid an infinite loop",
				ErrPlannerLoopDetected, agentName)
			return e.finish(ctx, sess, p, warning)
		}

		step, err := e.planner.Next(ctx, p, e.agentInfos())
		if err != nil {
			return &Result{Plan: p, Outputs: p.Outputs()}, fmt.Errorf("planner: %w", err)
		}
		if err := step.Validate(); err != nil {
			return &Result{Plan: p, Outputs: p.Outputs()}, fmt.Errorf("planner returned invalid step: %w", err)
		}

		if step.GoalStatus == plan.GoalCompleted {
			if p.InputRequiredTask() != nil {
				return e.pause(ctx, sess, p)
			}
			return e.finish(ctx, sess, p, "")
		}

		proposed := step.Proposed()
		snapshot := p.Outputs()
		tasks := make([]*plan.Task, len(proposed))
		for i, pt := range proposed {
			tasks[i] = plan.NewTask(pt.Description, pt.Agent)
		}
		p.Append(tasks...)

		if step.Parallel && len(tasks) > 1 {
			observability.Emit(e.events, observability.Event{
				Type:    observability.EventGroupStart,
				Message: fmt.Sprintf("running %d parallel tasks", len(tasks)),
			})
		}
		results := e.runGroup(ctx, sess, tasks, snapshot)
		if step.Parallel && len(tasks) > 1 {
			observability.Emit(e.events, observability.Event{
				Type:    observability.EventGroupEnd,
				Message: "parallel tasks complete",
			})
		}

		if anyPaused(results) {
			return e.pause(ctx, sess, p)
		}

		for _, r := range results {
			if r.err == nil {
				continue
			}
			var perr *ProtocolError
			if errors.As(r.err, &perr) || errors.Is(r.err, agent.ErrTimeout) {
				failures++
			}
		}
		if failures > e.retryBudget {
			return e.finish(ctx, sess, p, recoveryOptions())
		}
	}

	slog.Warn("planning loop reached iteration ceiling", "iterations", e.maxIterations)
	return e.finish(ctx, sess, p,
		"stopped after reaching the planning iteration ceiling; results may be partial")
}

// runGroup executes tasks against the same prior-output snapshot.
// Parallel siblings are joined without cancelling each other; every
// result is collected before the group completes.
func (e *Engine) runGroup(ctx context.Context, sess *session.Context, tasks []*plan.Task, prior []string) []stepResult {
	// A marker still set when a new group starts was left by an
	// abandoned earlier pause: a live pause returns before the next
	// group. Clearing here, before any sibling dispatches, cannot race
	// a fresh marker set mid-group.
	if pending, _ := sess.PendingInput(); pending != "" {
		sess.ClearPendingInput()
	}

	results := make([]stepResult, len(tasks))
	if len(tasks) == 1 {
		results[0] = e.executeStep(ctx, sess, tasks[0], prior)
		return results
	}

	var g errgroup.Group
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			results[i] = e.executeStep(ctx, sess, task, prior)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// pause persists the plan into the session and reports the waiting
// agent to the caller.
func (e *Engine) pause(ctx context.Context, sess *session.Context, p *plan.Plan) (*Result, error) {
	sess.SetPlan(p)
	if err := e.sessions.Save(ctx, sess); err != nil {
		slog.Warn("failed to persist paused plan", "session", sess.ID(), "error", err)
	}
	agentName, _ := sess.PendingInput()
	return &Result{
		Plan:        p,
		Outputs:     p.Outputs(),
		Paused:      true,
		PausedAgent: agentName,
	}, nil
}

func (e *Engine) finish(ctx context.Context, sess *session.Context, p *plan.Plan, warning string) (*Result, error) {
	p.MarkCompleted()
	observability.Emit(e.events, observability.Event{
		Type:    observability.EventGoalComplete,
		Message: string(p.Goal),
	})
	if err := e.sessions.Save(ctx, sess); err != nil {
		slog.Warn("failed to persist session", "session", sess.ID(), "error", err)
	}

	// Fire and forget; memory failures never affect orchestration.
	outputs := p.Outputs()
	go e.memory.StoreInteraction(context.WithoutCancel(ctx), memory.Interaction{
		SessionID: sess.ID(),
		Input:     string(p.Goal),
		Output:    strings.Join(outputs, "\n"),
		CreatedAt: time.Now().UTC(),
	})

	return &Result{Plan: p, Outputs: outputs, Warning: warning}, nil
}

// agentInfos describes the session's agents plus the catalog for the
// planner and selector.
func (e *Engine) agentInfos() []planner.AgentInfo {
	seen := make(map[string]bool)
	var infos []planner.AgentInfo
	add := func(conn *agent.Connection) {
		card := conn.Card()
		if seen[card.Name] {
			return
		}
		seen[card.Name] = true
		skills := make([]string, 0, len(card.Skills))
		for _, skill := range card.Skills {
			skills = append(skills, skill.Name)
		}
		infos = append(infos, planner.AgentInfo{
			Name:        card.Name,
			Description: card.Description,
			Skills:      skills,
		})
	}
	for _, conn := range e.agents.List() {
		add(conn)
	}
	if e.catalog != nil {
		for _, conn := range e.catalog.List() {
			add(conn)
		}
	}
	return infos
}

func anyPaused(results []stepResult) bool {
	for _, r := range results {
		if r.paused {
			return true
		}
	}
	return false
}

// loopKeywords flag planner proposals that suggest the planner is stuck
// retrying a persistently failing agent.
var loopKeywords = []string{"retry", "re-auth", "reauth", "authenticate", "token", "login", "credential"}

// detectLoop reports an agent assigned three or more retry-flavored
// tasks in one plan.
func detectLoop(p *plan.Plan) (string, bool) {
	counts := make(map[string]int)
	for _, t := range p.Tasks {
		if t.RecommendedAgent == "" {
			continue
		}
		desc := strings.ToLower(t.Description)
		for _, kw := range loopKeywords {
			if strings.Contains(desc, kw) {
				counts[t.RecommendedAgent]++
				break
			}
		}
	}
	for agentName, n := range counts {
		if n >= 3 {
			return agentName, true
		}
	}
	return "", false
}

func recoveryOptions() string {
	return "Unable to complete the last step after repeated attempts. Options:\n" +
		"- Rephrase the request or try a different approach\n" +
		"- Route the step to a different agent\n" +
		"- Split the request into smaller steps\n" +
		"- Wait a while and retry"
}
