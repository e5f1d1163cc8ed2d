// Package workflow parses human-authored workflow text into ordered
// sequential and parallel step groups.
//
// Each line describes one step as "<number><optional letter>. <text>",
// e.g. "1. Fetch the invoice" or "2a. Review legal terms". Steps sharing
// a leading number form one group; a group with more than one step runs
// its steps concurrently.
package workflow

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// GroupType distinguishes sequential from parallel groups.
type GroupType string

const (
	GroupSequential GroupType = "sequential"
	GroupParallel   GroupType = "parallel"
)

// Step is one parsed workflow line.
type Step struct {
	// Label is the step's original label, e.g. "1" or "2a".
	Label       string
	Number      int
	Letter      string
	Description string

	// AgentHint is the agent name extracted from a "use the X agent"
	// phrase, or empty. Resolution happens at execution time.
	AgentHint string
}

// Group is an ordered set of steps sharing one leading number.
type Group struct {
	Number int
	Type   GroupType
	Steps  []Step
}

// Workflow is the parsed form of a workflow description.
type Workflow struct {
	Groups []Group

	// Warnings lists lines that did not parse as steps. Malformed lines
	// are dropped, not fatal.
	Warnings []string
}

var (
	stepRe      = regexp.MustCompile(`^\s*(\d+)([a-z]?)[.)]\s+(.+?)\s*$`)
	agentHintRe = regexp.MustCompile(`(?i)\buse\s+(?:the\s+)?([A-Za-z][\w-]*)\s+agent\b`)
)

// Parse parses workflow text into ordered groups. Groups are ordered by
// ascending leading number regardless of source order; steps within a
// group keep their source order.
func Parse(text string) *Workflow {
	wf := &Workflow{}
	byNumber := make(map[int][]Step)

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		m := stepRe.FindStringSubmatch(line)
		if m == nil {
			wf.Warnings = append(wf.Warnings, trimmed)
			continue
		}

		number, err := strconv.Atoi(m[1])
		if err != nil {
			wf.Warnings = append(wf.Warnings, trimmed)
			continue
		}

		step := Step{
			Label:       m[1] + m[2],
			Number:      number,
			Letter:      m[2],
			Description: m[3],
			AgentHint:   extractAgentHint(m[3]),
		}
		byNumber[number] = append(byNumber[number], step)
	}

	numbers := make([]int, 0, len(byNumber))
	for n := range byNumber {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	for _, n := range numbers {
		steps := byNumber[n]
		groupType := GroupSequential
		if len(steps) > 1 {
			groupType = GroupParallel
		}
		wf.Groups = append(wf.Groups, Group{
			Number: n,
			Type:   groupType,
			Steps:  steps,
		})
	}

	return wf
}

// extractAgentHint returns the first "use (the) <Name> agent" match.
func extractAgentHint(description string) string {
	m := agentHintRe.FindStringSubmatch(description)
	if m == nil {
		return ""
	}
	return m[1]
}

// Text re-serializes the workflow to its line form. Parsing the result
// yields an identical structure (warnings excluded).
func (w *Workflow) Text() string {
	var b strings.Builder
	for _, group := range w.Groups {
		for _, step := range group.Steps {
			fmt.Fprintf(&b, "%s. %s\n", step.Label, step.Description)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Steps returns all steps in execution order.
func (w *Workflow) Steps() []Step {
	var steps []Step
	for _, group := range w.Groups {
		steps = append(steps, group.Steps...)
	}
	return steps
}
