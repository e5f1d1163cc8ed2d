package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voletro/fleet/pkg/a2a"
)

func TestTaskCallback_OnTaskReplaces(t *testing.T) {
	cb := NewTaskCallback()

	cb.OnTask("Legal", &a2a.Task{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}})
	cb.OnTask("Legal", &a2a.Task{ID: "t2", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}})

	task, ok := cb.Task("Legal")
	require.True(t, ok)
	assert.Equal(t, "t2", task.ID)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
}

func TestTaskCallback_StatusUpdateMerges(t *testing.T) {
	cb := NewTaskCallback()
	cb.OnTask("Legal", &a2a.Task{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateSubmitted}})

	cb.OnStatusUpdate("Legal", &a2a.TaskStatusUpdateEvent{
		TaskID: "t1",
		Status: a2a.TaskStatus{State: a2a.TaskStateWorking},
	})

	task, ok := cb.Task("Legal")
	require.True(t, ok)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, a2a.TaskStateWorking, task.Status.State)
}

func TestTaskCallback_StatusUpdateFabricatesPlaceholder(t *testing.T) {
	cb := NewTaskCallback()

	cb.OnStatusUpdate("Finance", &a2a.TaskStatusUpdateEvent{
		TaskID:    "remote-7",
		ContextID: "ctx-9",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
	})

	task, ok := cb.Task("Finance")
	require.True(t, ok)
	assert.Equal(t, "remote-7", task.ID)
	assert.Equal(t, "ctx-9", task.ContextID)
	assert.Equal(t, a2a.TaskStateWorking, task.Status.State)
}

func TestTaskCallback_StatusUpdateWithoutIDs(t *testing.T) {
	cb := NewTaskCallback()

	cb.OnStatusUpdate("Finance", &a2a.TaskStatusUpdateEvent{
		Status: a2a.TaskStatus{State: a2a.TaskStateWorking},
	})

	task, ok := cb.Task("Finance")
	require.True(t, ok)
	assert.NotEmpty(t, task.ID)
	assert.NotEmpty(t, task.ContextID)
}

func TestTaskCallback_ArtifactAppends(t *testing.T) {
	cb := NewTaskCallback()
	cb.OnTask("Reporter", &a2a.Task{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}})

	cb.OnArtifact("Reporter", &a2a.TaskArtifactUpdateEvent{
		TaskID:   "t1",
		Artifact: a2a.Artifact{ArtifactID: "a1", Parts: []a2a.Part{{Kind: a2a.PartKindText, Text: "chunk one"}}},
	})
	cb.OnArtifact("Reporter", &a2a.TaskArtifactUpdateEvent{
		TaskID:   "t1",
		Artifact: a2a.Artifact{ArtifactID: "a2", Parts: []a2a.Part{{Kind: a2a.PartKindText, Text: "chunk two"}}},
	})

	task, ok := cb.Task("Reporter")
	require.True(t, ok)
	require.Len(t, task.Artifacts, 2)
	assert.Equal(t, "a1", task.Artifacts[0].ArtifactID)
	assert.Equal(t, "a2", task.Artifacts[1].ArtifactID)
}

func TestTaskCallback_SnapshotIsolated(t *testing.T) {
	cb := NewTaskCallback()
	cb.OnTask("Legal", &a2a.Task{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}})

	snapshot, ok := cb.Task("Legal")
	require.True(t, ok)
	snapshot.Status.State = a2a.TaskStateFailed

	fresh, _ := cb.Task("Legal")
	assert.Equal(t, a2a.TaskStateWorking, fresh.Status.State)
}

func TestTaskCallback_Clear(t *testing.T) {
	cb := NewTaskCallback()
	cb.OnTask("Legal", &a2a.Task{ID: "t1"})
	cb.Clear("Legal")

	_, ok := cb.Task("Legal")
	assert.False(t, ok)
}
