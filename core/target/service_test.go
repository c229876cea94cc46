package target_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/target"
	"github.com/caremint/backend/core/user"
	"github.com/caremint/backend/storage/database/dummy"
)

func newAgent(id string) user.User {
	usr := user.User{
		ID:       id,
		TenantID: "clinic-a",
		Name:     "Agent " + id,
		Username: "agent-" + id,
		Roles:    []string{user.RoleSalesAgent},
	}
	usr.SetActive(true)
	return usr
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	agent := newAgent("11111111-1111-1111-1111-111111111111")

	t.Run("unknown assignee is a validation error", func(t *testing.T) {
		svc := target.NewService(nil, dummy.NewTargetRepository(), dummy.NewUserRepository())

		_, err := svc.Create(ctx, target.NewTarget{
			TenantID:    "clinic-a",
			AssigneeID:  "22222222-2222-2222-2222-222222222222",
			PeriodType:  target.PeriodQuarter,
			PeriodStart: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
			TargetType:  target.MetricRevenue,
			TargetValue: 10000,
		})
		require.Error(t, err)
		_, ok := err.(*core.ValidationError)
		assert.True(t, ok, "want *core.ValidationError, got %T", err)
	})

	t.Run("period too short is a validation error", func(t *testing.T) {
		svc := target.NewService(nil, dummy.NewTargetRepository(), dummy.NewUserRepository(agent))

		start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
		_, err := svc.Create(ctx, target.NewTarget{
			TenantID:    "clinic-a",
			AssigneeID:  agent.ID,
			PeriodType:  target.PeriodMonth,
			PeriodStart: start,
			PeriodEnd:   start.AddDate(0, 0, 10),
			TargetType:  target.MetricRevenue,
			TargetValue: 10000,
		})
		require.Error(t, err)
		_, ok := err.(*core.ValidationError)
		assert.True(t, ok, "want *core.ValidationError, got %T", err)
	})

	t.Run("milestones are generated and persisted", func(t *testing.T) {
		tgtRepo := dummy.NewTargetRepository()
		svc := target.NewService(nil, tgtRepo, dummy.NewUserRepository(agent))

		start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
		tgt, err := svc.Create(ctx, target.NewTarget{
			TenantID:        "clinic-a",
			AssigneeID:      agent.ID,
			PeriodType:      target.PeriodQuarter,
			PeriodStart:     start,
			PeriodEnd:       end,
			TargetType:      target.MetricRevenue,
			TargetValue:     10000,
			IncentiveAmount: 500,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, tgt.ID)
		require.Len(t, tgt.Milestones, 3)

		assert.Equal(t, target.NameRamp, tgt.Milestones[0].Name)
		assert.Equal(t, target.NameCoverage, tgt.Milestones[1].Name)
		assert.Equal(t, target.NameRevenue, tgt.Milestones[2].Name)
		assert.True(t, tgt.Milestones[2].Deadline.Equal(end))
		for _, ms := range tgt.Milestones {
			assert.Equal(t, tgt.ID, ms.TargetID)
			assert.Equal(t, target.MilestonePending, ms.Status)
			assert.True(t, ms.IsBlocking)
		}

		// re-fetch to make sure they were stored, in step order
		stored, err := svc.GetByID(ctx, tgt.ID)
		require.NoError(t, err)
		require.Len(t, stored.Milestones, 3)
		for i, ms := range stored.Milestones {
			assert.Equal(t, i+1, ms.StepOrder)
		}
	})
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	agent := newAgent("11111111-1111-1111-1111-111111111111")
	tgtRepo := dummy.NewTargetRepository()
	svc := target.NewService(nil, tgtRepo, dummy.NewUserRepository(agent))

	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	tgt, err := svc.Create(ctx, target.NewTarget{
		TenantID:    "clinic-a",
		AssigneeID:  agent.ID,
		PeriodType:  target.PeriodMonth,
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 1, 0),
		TargetType:  target.MetricActivities,
		TargetValue: 100,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, tgt.ID))

	// soft-deleted: direct get still works, listings exclude it
	stored, err := tgtRepo.GetTargetByID(ctx, tgt.ID)
	require.NoError(t, err)
	assert.True(t, stored.Deleted())

	targets, err := tgtRepo.QueryAssigneeTargets(ctx, agent.ID)
	require.NoError(t, err)
	assert.Empty(t, targets)

	// deleting twice is an error
	assert.Equal(t, target.ErrNotFound, svc.Delete(ctx, tgt.ID))
}
