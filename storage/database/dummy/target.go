package dummy

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/target"
)

// TargetRepository is an in-memory target.Repository for tests.
type TargetRepository struct {
	mu      sync.Mutex
	targets map[string]target.Target
}

var _ target.Repository = (*TargetRepository)(nil)

func NewTargetRepository(targets ...target.Target) *TargetRepository {
	repo := &TargetRepository{targets: make(map[string]target.Target, len(targets))}
	for _, tgt := range targets {
		repo.store(tgt)
	}
	return repo
}

func (repo *TargetRepository) store(tgt target.Target) target.Target {
	if tgt.ID == "" {
		tgt.ID = uuid.New().String()
	}
	for i := range tgt.Milestones {
		if tgt.Milestones[i].ID == "" {
			tgt.Milestones[i].ID = uuid.New().String()
		}
		tgt.Milestones[i].TargetID = tgt.ID
	}
	tgt = cloneTarget(tgt)
	repo.targets[tgt.ID] = tgt
	return tgt
}

func cloneTarget(tgt target.Target) target.Target {
	milestones := make([]target.Milestone, len(tgt.Milestones))
	copy(milestones, tgt.Milestones)
	tgt.Milestones = milestones
	return tgt
}

func (repo *TargetRepository) CreateTarget(_ context.Context, tgt target.Target, _ ...core.DBExecutor) (target.Target, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return cloneTarget(repo.store(tgt)), nil
}

func (repo *TargetRepository) GetTargetByID(_ context.Context, id string, _ ...core.DBExecutor) (target.Target, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	tgt, ok := repo.targets[id]
	if !ok {
		return target.Target{}, target.ErrNotFound
	}
	return cloneTarget(tgt), nil
}

func (repo *TargetRepository) FilterTargets(
	_ context.Context, filter target.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor,
) ([]target.Target, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	matches := make([]target.Target, 0, len(repo.targets))
	for _, tgt := range repo.targets {
		if !filter.IncludeDeleted && tgt.Deleted() {
			continue
		}
		if filter.TenantID != "" && tgt.TenantID != filter.TenantID {
			continue
		}
		if filter.AssigneeID != "" && tgt.AssigneeID != filter.AssigneeID {
			continue
		}
		if filter.PeriodType != "" && !strings.EqualFold(string(tgt.PeriodType), filter.PeriodType) {
			continue
		}
		if !filter.PeriodFrom.IsZero() && tgt.PeriodEnd.Before(filter.PeriodFrom) {
			continue
		}
		if !filter.PeriodTo.IsZero() && tgt.PeriodStart.After(filter.PeriodTo) {
			continue
		}
		matches = append(matches, cloneTarget(tgt))
	}
	sortTargets(matches)
	return matches, nil
}

func (repo *TargetRepository) QueryAssigneeTargets(_ context.Context, assigneeID string, _ ...core.DBExecutor) ([]target.Target, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	matches := make([]target.Target, 0, len(repo.targets))
	for _, tgt := range repo.targets {
		if tgt.AssigneeID != assigneeID || tgt.Deleted() {
			continue
		}
		matches = append(matches, cloneTarget(tgt))
	}
	sortTargets(matches)
	return matches, nil
}

func sortTargets(targets []target.Target) {
	sort.Slice(targets, func(i, j int) bool {
		if !targets[i].CreatedAt.Equal(targets[j].CreatedAt) {
			return targets[i].CreatedAt.Before(targets[j].CreatedAt)
		}
		return targets[i].ID < targets[j].ID
	})
	for _, tgt := range targets {
		sort.Slice(tgt.Milestones, func(i, j int) bool {
			return tgt.Milestones[i].StepOrder < tgt.Milestones[j].StepOrder
		})
	}
}

func (repo *TargetRepository) UpdateMilestoneOutcome(_ context.Context, ms target.Milestone, _ ...core.DBExecutor) (target.Milestone, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for id, tgt := range repo.targets {
		for i := range tgt.Milestones {
			if tgt.Milestones[i].ID != ms.ID {
				continue
			}
			tgt.Milestones[i].AchievedValue = ms.AchievedValue
			tgt.Milestones[i].Status = ms.Status
			tgt.Milestones[i].UpdatedAt = time.Now().UTC()
			repo.targets[id] = tgt
			return tgt.Milestones[i], nil
		}
	}
	return target.Milestone{}, target.ErrMilestoneNotFound
}

func (repo *TargetRepository) UpdateTargetAchieved(_ context.Context, id string, achieved float64, _ ...core.DBExecutor) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	tgt, ok := repo.targets[id]
	if !ok {
		return target.ErrNotFound
	}
	tgt.AchievedValue = achieved
	tgt.UpdatedAt = time.Now().UTC()
	repo.targets[id] = tgt
	return nil
}

func (repo *TargetRepository) SoftDeleteTarget(_ context.Context, id string, at time.Time, _ ...core.DBExecutor) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	tgt, ok := repo.targets[id]
	if !ok || tgt.Deleted() {
		return target.ErrNotFound
	}
	tgt.DeletedAt = at.UTC()
	tgt.UpdatedAt = at.UTC()
	repo.targets[id] = tgt
	return nil
}
