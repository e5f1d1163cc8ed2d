package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/voletro/fleet/pkg/a2a"
	"github.com/voletro/fleet/pkg/agent"
	"github.com/voletro/fleet/pkg/config"
	"github.com/voletro/fleet/pkg/memory"
	"github.com/voletro/fleet/pkg/observability"
	"github.com/voletro/fleet/pkg/orchestrator"
	"github.com/voletro/fleet/pkg/plan"
	"github.com/voletro/fleet/pkg/planner"
	"github.com/voletro/fleet/pkg/session"
)

// RunCmd runs a goal or workflow against the configured agents.
type RunCmd struct {
	Goal     string `help:"Free-text goal for the planner-guided path."`
	Workflow string `help:"Path to a workflow text file." type:"path"`
	Plan     string `help:"Path to a scripted plan JSON file (replayed instead of a live planner)." type:"path"`
	Session  string `help:"Session id. A fresh id is generated when empty."`
}

func (c *RunCmd) Run(cli *CLI) error {
	if c.Goal == "" && c.Workflow == "" {
		return fmt.Errorf("either --goal or --workflow is required")
	}

	ctx, cancel := signalContext()
	defer cancel()

	rt, err := buildRuntime(ctx, cli, c.Plan)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessionID := c.Session
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var res *orchestrator.Result
	if c.Workflow != "" {
		text, err := os.ReadFile(c.Workflow)
		if err != nil {
			return fmt.Errorf("failed to read workflow: %w", err)
		}
		goal := c.Goal
		if goal == "" {
			goal = "Execute the provided workflow"
		}
		res, err = rt.engine.RunWorkflow(ctx, sessionID, goal, string(text))
		if err != nil {
			return err
		}
	} else {
		res, err = rt.engine.RunGoal(ctx, sessionID, c.Goal)
		if err != nil {
			return err
		}
	}

	printResult(sessionID, res)
	return nil
}

// ResumeCmd resumes a plan paused for human input.
type ResumeCmd struct {
	Session  string `help:"Session id of the paused plan." required:""`
	FollowUp string `arg:"" help:"Answer to the agent's request for input."`
	Plan     string `help:"Path to a scripted plan JSON file." type:"path"`
}

func (c *ResumeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := buildRuntime(ctx, cli, c.Plan)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.engine.Resume(ctx, c.Session, c.FollowUp)
	if err != nil {
		return err
	}
	printResult(c.Session, res)
	return nil
}

// runtime bundles the wired engine with its closable backends.
type runtime struct {
	engine   *orchestrator.Engine
	sessions session.Service
}

func (r *runtime) Close() {
	if err := r.sessions.Close(); err != nil {
		slog.Warn("failed to close session store", "error", err)
	}
}

// buildRuntime loads the config, connects the agents, and assembles the
// engine.
func buildRuntime(ctx context.Context, cli *CLI, planPath string) (*runtime, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if len(cfg.Agents) == 0 {
		return nil, fmt.Errorf("no agents configured")
	}

	sessions, err := openSessions(cfg.Session)
	if err != nil {
		return nil, err
	}

	agents := agent.NewRegistry()
	callback := agent.NewTaskCallback()
	for _, ac := range cfg.Agents {
		conn, err := connectAgent(ctx, ac, callback, cfg.Orchestrator.RequestTimeout)
		if err != nil {
			sessions.Close()
			return nil, fmt.Errorf("agent %q: %w", ac.Name, err)
		}
		if err := agents.Register(conn.Name(), conn); err != nil {
			sessions.Close()
			return nil, err
		}
	}

	var p planner.Planner
	if planPath != "" {
		p, err = loadScriptedPlanner(planPath)
		if err != nil {
			sessions.Close()
			return nil, err
		}
	}

	engine, err := orchestrator.NewEngine(orchestrator.Config{
		Agents:        agents,
		Sessions:      sessions,
		Planner:       p,
		Memory:        memory.NewInMemory(),
		Events:        observability.SlogSink{},
		Metrics:       observability.NewMetrics(prometheus.DefaultRegisterer),
		MaxIterations: cfg.Orchestrator.MaxIterations,
		RetryBudget:   cfg.Orchestrator.RetryBudget,
		CooldownCap:   cfg.Orchestrator.CooldownCap,
	})
	if err != nil {
		sessions.Close()
		return nil, err
	}

	return &runtime{engine: engine, sessions: sessions}, nil
}

func openSessions(cfg config.SessionConfig) (session.Service, error) {
	if cfg.Backend == "sqlite" {
		return session.NewSQLService(cfg.Path)
	}
	return session.InMemoryService(), nil
}

// connectAgent discovers the agent's card, falling back to the
// configured fields when discovery fails.
func connectAgent(ctx context.Context, ac *config.AgentConfig, callback *agent.TaskCallback, timeout time.Duration) (*agent.Connection, error) {
	client := a2a.NewClient(a2a.ClientConfig{
		Endpoint: ac.URL,
		Auth:     authConfig(ac.Auth),
	})

	discoverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	card, err := client.Discover(discoverCtx)
	cancel()
	if err != nil {
		slog.Warn("agent card discovery failed, using configured card",
			"agent", ac.Name, "error", err)
		card = &a2a.AgentCard{
			Name:        ac.Name,
			Description: ac.Description,
			URL:         ac.URL,
		}
		for _, skill := range ac.Skills {
			card.Skills = append(card.Skills, a2a.AgentSkill{ID: skill, Name: skill})
		}
	}
	if card.Name == "" {
		card.Name = ac.Name
	}

	return agent.NewConnection(agent.ConnectionConfig{
		Card:     card,
		Client:   client,
		Callback: callback,
		Timeout:  timeout,
	})
}

func authConfig(ac *config.AuthConfig) *a2a.AuthCredentials {
	if ac == nil {
		return nil
	}
	if ac.Type == "api_key" {
		return &a2a.AuthCredentials{
			Type:         "apiKey",
			APIKey:       ac.Token,
			APIKeyHeader: ac.Header,
		}
	}
	return &a2a.AuthCredentials{Type: ac.Type, Token: ac.Token}
}

// loadScriptedPlanner reads a JSON array of next-step documents and
// replays them in order.
func loadScriptedPlanner(path string) (planner.Planner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	var steps []*plan.NextStep
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}
	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("plan step %d: %w", i+1, err)
		}
	}
	return planner.NewScripted(steps...), nil
}

func printResult(sessionID string, res *orchestrator.Result) {
	for i, out := range res.Outputs {
		if out == "" {
			continue
		}
		fmt.Printf("--- step %d ---\n%s\n", i+1, out)
	}
	if res.Warning != "" {
		fmt.Printf("\nWarning: %s\n", res.Warning)
	}
	if res.Paused {
		fmt.Printf("\nAgent %q needs more input. Resume with:\n  fleet resume --session %s \"<your answer>\"\n",
			res.PausedAgent, sessionID)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()
	return ctx, cancel
}
