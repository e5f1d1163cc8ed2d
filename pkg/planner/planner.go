// Package planner defines the interfaces the orchestration engine
// consumes for LLM-guided planning and agent selection. The services
// behind them are external; only the control-flow contract lives here.
package planner

import (
	"context"
	"strings"
	"sync"

	"github.com/voletro/fleet/pkg/plan"
)

// AgentInfo describes one available agent to the planner.
type AgentInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Skills      []string `json:"skills,omitempty"`
}

// Planner proposes the next task(s) for a plan. Called synchronously
// once per engine iteration.
type Planner interface {
	Next(ctx context.Context, p *plan.Plan, agents []AgentInfo) (*plan.NextStep, error)
}

// Selector picks the best-matched agent for a task description when no
// hint resolves.
type Selector interface {
	Select(ctx context.Context, description string, agents []AgentInfo) (string, error)
}

// ============================================================================
// SCRIPTED PLANNER - deterministic planning for tests and offline runs
// ============================================================================

// Scripted replays a fixed sequence of next steps, then reports the
// goal completed.
type Scripted struct {
	mu    sync.Mutex
	steps []*plan.NextStep
	pos   int
}

func NewScripted(steps ...*plan.NextStep) *Scripted {
	return &Scripted{steps: steps}
}

func (s *Scripted) Next(ctx context.Context, p *plan.Plan, agents []AgentInfo) (*plan.NextStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.steps) {
		return &plan.NextStep{GoalStatus: plan.GoalCompleted}, nil
	}
	step := s.steps[s.pos]
	s.pos++
	return step, nil
}

// ============================================================================
// KEYWORD SELECTOR - lexical fallback agent selection
// ============================================================================

// KeywordSelector scores agents by word overlap between the task
// description and the agent's name and description.
type KeywordSelector struct{}

func (KeywordSelector) Select(ctx context.Context, description string, agents []AgentInfo) (string, error) {
	if len(agents) == 0 {
		return "", ErrNoAgents
	}

	words := tokenize(description)
	best := agents[0].Name
	bestScore := -1

	for _, agent := range agents {
		haystack := strings.ToLower(agent.Name + " " + agent.Description + " " + strings.Join(agent.Skills, " "))
		score := 0
		for word := range words {
			if strings.Contains(haystack, word) {
				score++
			}
		}
		if score > bestScore {
			best = agent.Name
			bestScore = score
		}
	}
	return best, nil
}

func tokenize(s string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,:;!?\"'()")
		if len(word) > 2 {
			words[word] = struct{}{}
		}
	}
	return words
}
