package dummy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/activity"
)

// ActivityRepository is an in-memory activity.Repository for tests.
type ActivityRepository struct {
	mu         sync.Mutex
	activities map[string]activity.Activity
}

var _ activity.Repository = (*ActivityRepository)(nil)

func NewActivityRepository(activities ...activity.Activity) *ActivityRepository {
	repo := &ActivityRepository{activities: make(map[string]activity.Activity, len(activities))}
	for _, act := range activities {
		if act.ID == "" {
			act.ID = uuid.New().String()
		}
		repo.activities[act.ID] = act
	}
	return repo
}

func (repo *ActivityRepository) CreateActivity(_ context.Context, act activity.Activity, _ ...core.DBExecutor) (activity.Activity, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if act.ID == "" {
		act.ID = uuid.New().String()
	}
	repo.activities[act.ID] = act
	return act, nil
}

func (repo *ActivityRepository) CountOwned(
	_ context.Context, ownerID string, from, to time.Time, _ ...core.DBExecutor,
) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var count int64
	for _, act := range repo.activities {
		if act.OwnerID != ownerID {
			continue
		}
		if act.CreatedAt.Before(from) || act.CreatedAt.After(to) {
			continue
		}
		count++
	}
	return count, nil
}
