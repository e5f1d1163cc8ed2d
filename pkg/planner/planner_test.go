package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voletro/fleet/pkg/plan"
)

func TestScripted_ReplaysThenCompletes(t *testing.T) {
	first := &plan.NextStep{
		GoalStatus: plan.GoalIncomplete,
		NextTask:   &plan.ProposedTask{Description: "collect", Agent: "Worker"},
	}
	s := NewScripted(first)
	ctx := context.Background()

	got, err := s.Next(ctx, plan.New("goal"), nil)
	require.NoError(t, err)
	assert.Same(t, first, got)

	got, err = s.Next(ctx, plan.New("goal"), nil)
	require.NoError(t, err)
	assert.Equal(t, plan.GoalCompleted, got.GoalStatus)
}

func TestKeywordSelector(t *testing.T) {
	agents := []AgentInfo{
		{Name: "billing", Description: "creates and sends invoices"},
		{Name: "shipping", Description: "books parcels and couriers", Skills: []string{"logistics"}},
	}
	selector := KeywordSelector{}
	ctx := context.Background()

	tests := []struct {
		desc string
		want string
	}{
		{"send the invoices for March", "billing"},
		{"book a courier for the parcels", "shipping"},
		{"handle logistics for the warehouse move", "shipping"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := selector.Select(ctx, tt.desc, agents)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeywordSelector_NoAgents(t *testing.T) {
	_, err := KeywordSelector{}.Select(context.Background(), "anything", nil)
	assert.ErrorIs(t, err, ErrNoAgents)
}
