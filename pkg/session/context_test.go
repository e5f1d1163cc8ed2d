package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voletro/fleet/pkg/a2a"
	"github.com/voletro/fleet/pkg/plan"
)

func TestContext_TaskTracking(t *testing.T) {
	c := NewContext("conv-1")

	_, _, ok := c.Task("Legal")
	assert.False(t, ok)

	c.SetTask("Legal", "t1", a2a.TaskStateWorking)
	id, state, ok := c.Task("Legal")
	require.True(t, ok)
	assert.Equal(t, "t1", id)
	assert.Equal(t, a2a.TaskStateWorking, state)

	c.ClearTask("Legal")
	_, _, ok = c.Task("Legal")
	assert.False(t, ok)
}

func TestContext_PendingInput(t *testing.T) {
	c := NewContext("conv-1")

	agent, taskID := c.PendingInput()
	assert.Empty(t, agent)
	assert.Empty(t, taskID)

	c.SetPendingInput("Clarifier", "t9")
	agent, taskID = c.PendingInput()
	assert.Equal(t, "Clarifier", agent)
	assert.Equal(t, "t9", taskID)

	c.ClearPendingInput()
	agent, _ = c.PendingInput()
	assert.Empty(t, agent)
}

func TestContext_TakePlanClearsSlot(t *testing.T) {
	c := NewContext("conv-1")
	assert.Nil(t, c.TakePlan())

	p := plan.New("goal")
	c.SetPlan(p)
	require.NotNil(t, c.Plan())

	got := c.TakePlan()
	assert.Same(t, p, got)
	assert.Nil(t, c.Plan())
}

func TestContext_RecentFilesCopied(t *testing.T) {
	c := NewContext("conv-1")
	files := []a2a.FilePart{{Name: "report.pdf", MimeType: "application/pdf"}}
	c.SetRecentFiles(files)

	files[0].Name = "mutated.pdf"
	got := c.RecentFiles()
	require.Len(t, got, 1)
	assert.Equal(t, "report.pdf", got[0].Name)
}

func TestContext_TakeRecentFilesConsumesSlot(t *testing.T) {
	c := NewContext("conv-1")
	c.SetRecentFiles([]a2a.FilePart{{Name: "report.pdf"}})

	got := c.TakeRecentFiles()
	require.Len(t, got, 1)
	assert.Equal(t, "report.pdf", got[0].Name)

	assert.Empty(t, c.RecentFiles())
	assert.Empty(t, c.TakeRecentFiles())
}

func TestContext_JSONRoundTrip(t *testing.T) {
	c := NewContext("conv-1")
	c.SetTask("Legal", "t1", a2a.TaskStateInputRequired)
	c.SetCooldown("Finance", time.Now().Add(30*time.Second).UTC())
	c.SetPendingInput("Legal", "t1")

	p := plan.New("close the books")
	task := plan.NewTask("collect invoices", "Finance")
	task.RequireInput("which quarter?")
	p.Append(task)
	c.SetPlan(p)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	restored := &Context{}
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, "conv-1", restored.ID())
	id, state, ok := restored.Task("Legal")
	require.True(t, ok)
	assert.Equal(t, "t1", id)
	assert.Equal(t, a2a.TaskStateInputRequired, state)

	agent, taskID := restored.PendingInput()
	assert.Equal(t, "Legal", agent)
	assert.Equal(t, "t1", taskID)

	rp := restored.Plan()
	require.NotNil(t, rp)
	assert.Equal(t, plan.GoalText("close the books"), rp.Goal)
	require.Len(t, rp.Tasks, 1)
	assert.Equal(t, plan.StateInputRequired, rp.Tasks[0].State)
}

func TestContext_ConcurrentAccess(t *testing.T) {
	c := NewContext("conv-1")
	done := make(chan struct{})

	agents := []string{"Legal", "Finance", "Reporter", "Classifier"}
	for _, name := range agents {
		name := name
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				c.SetTask(name, "t", a2a.TaskStateWorking)
				c.Task(name)
				c.SetCooldown(name, time.Now())
				c.Cooldown(name)
			}
		}()
	}
	for range agents {
		<-done
	}
}
