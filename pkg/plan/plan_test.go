package plan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_Transitions(t *testing.T) {
	task := NewTask("review the contract", "Legal")
	assert.Equal(t, StatePending, task.State)
	assert.NotEmpty(t, task.ID)

	task.SetState(StateRunning)
	assert.Equal(t, StateRunning, task.State)

	task.Complete("looks fine")
	assert.Equal(t, StateCompleted, task.State)
	assert.Equal(t, "looks fine", task.Output)

	failed := NewTask("x", "")
	failed.Fail("connection refused")
	assert.Equal(t, StateFailed, failed.State)
	assert.Equal(t, "connection refused", failed.ErrorMessage)

	waiting := NewTask("y", "")
	waiting.RequireInput("which account?")
	assert.Equal(t, StateInputRequired, waiting.State)
	assert.Equal(t, "which account?", waiting.Output)
}

func TestPlan_AppendAndOutputs(t *testing.T) {
	p := New("close the books")
	assert.Equal(t, GoalIncomplete, p.GoalStatus)

	a := NewTask("collect invoices", "Finance")
	a.Complete("17 invoices")
	b := NewTask("reconcile", "Finance")
	b.Fail("ledger locked")
	p.Append(a, b)

	// Only completed tasks contribute outputs.
	outputs := p.Outputs()
	require.Len(t, outputs, 1)
	assert.Equal(t, "17 invoices", outputs[0])
}

func TestPlan_InputRequiredTask(t *testing.T) {
	p := New("goal")
	assert.Nil(t, p.InputRequiredTask())

	a := NewTask("a", "")
	a.Complete("done")
	b := NewTask("b", "")
	b.RequireInput("need the account id")
	p.Append(a, b)

	got := p.InputRequiredTask()
	require.NotNil(t, got)
	assert.Equal(t, b.ID, got.ID)
}

func TestPlan_TasksForAgent(t *testing.T) {
	p := New("goal")
	p.Append(NewTask("a", "Legal"), NewTask("b", "Finance"), NewTask("c", "Legal"))
	assert.Len(t, p.TasksForAgent("Legal"), 2)
	assert.Len(t, p.TasksForAgent("Reporter"), 0)
}

func TestGoalText_Merge(t *testing.T) {
	g := GoalText("close the books")
	merged := g.Merge("use the March ledger")
	assert.Contains(t, string(merged), "close the books")
	assert.Contains(t, string(merged), "Follow-up: use the March ledger")

	assert.Equal(t, GoalText("hello"), GoalText("").Merge("hello"))
}

func TestPlan_JSONRoundTrip(t *testing.T) {
	p := New("goal")
	p.Workflow = "1. do the thing"
	p.WorkflowGoal = "goal"
	task := NewTask("do the thing", "Worker")
	task.RequireInput("which thing?")
	p.Append(task)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var back Plan
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p.Goal, back.Goal)
	assert.Equal(t, p.Workflow, back.Workflow)
	require.Len(t, back.Tasks, 1)
	assert.Equal(t, StateInputRequired, back.Tasks[0].State)
	assert.Equal(t, "which thing?", back.Tasks[0].Output)
}
