package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelSink_DeliversAndStamps(t *testing.T) {
	sink := NewChannelSink(4)
	defer sink.Close()

	sink.Emit(Event{Type: EventTaskStart, Agent: "billing", Message: "dispatching"})

	select {
	case got := <-sink.Events():
		assert.Equal(t, EventTaskStart, got.Type)
		assert.Equal(t, "billing", got.Agent)
		assert.False(t, got.Time.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestChannelSink_DropsWhenFull(t *testing.T) {
	sink := NewChannelSink(2)
	defer sink.Close()

	for i := 0; i < 10; i++ {
		sink.Emit(Event{Type: EventPlanning})
	}

	// Only the buffered events survive; the rest were dropped without
	// blocking the emitter.
	assert.Len(t, sink.Events(), 2)
}

func TestEmit_NilSinkSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(nil, Event{Type: EventGoalComplete})
	})
}

func TestEmit_StampsTime(t *testing.T) {
	sink := NewChannelSink(1)
	defer sink.Close()

	Emit(sink, Event{Type: EventThrottled})
	got := <-sink.Events()
	assert.False(t, got.Time.IsZero())
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDispatch("billing", "ok", time.Second)
		m.ObserveRetry("billing")
		m.ObserveCooldownWait()
		m.ObservePlannerIteration()
	})
}

func TestMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveDispatch("billing", "ok", 250*time.Millisecond)
	m.ObserveRetry("billing")
	m.ObserveCooldownWait()
	m.ObservePlannerIteration()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["fleet_tasks_dispatched_total"])
	assert.True(t, names["fleet_task_retries_total"])
	assert.True(t, names["fleet_cooldown_waits_total"])
	assert.True(t, names["fleet_planner_iterations_total"])
	assert.True(t, names["fleet_dispatch_duration_seconds"])
}
