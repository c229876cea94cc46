package dummy

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/deal"
)

// DealRepository is an in-memory deal.Repository for tests.
type DealRepository struct {
	mu    sync.Mutex
	deals map[string]deal.Deal
}

var _ deal.Repository = (*DealRepository)(nil)

func NewDealRepository(deals ...deal.Deal) *DealRepository {
	repo := &DealRepository{deals: make(map[string]deal.Deal, len(deals))}
	for _, dl := range deals {
		if dl.ID == "" {
			dl.ID = uuid.New().String()
		}
		repo.deals[dl.ID] = dl
	}
	return repo
}

func (repo *DealRepository) CreateDeal(_ context.Context, dl deal.Deal, _ ...core.DBExecutor) (deal.Deal, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if dl.ID == "" {
		dl.ID = uuid.New().String()
	}
	repo.deals[dl.ID] = dl
	return dl, nil
}

func (repo *DealRepository) GetDealByID(_ context.Context, id string, _ ...core.DBExecutor) (deal.Deal, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	dl, ok := repo.deals[id]
	if !ok {
		return deal.Deal{}, deal.ErrNotFound
	}
	return dl, nil
}

func (repo *DealRepository) SumOwnedValues(
	_ context.Context, ownerID string, filter deal.ValueFilter, _ ...core.DBExecutor,
) (float64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var sum float64
	for _, dl := range repo.deals {
		if dl.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && !strings.EqualFold(dl.Status, filter.Status) {
			continue
		}
		if filter.ExcludeStatus != "" && strings.EqualFold(dl.Status, filter.ExcludeStatus) {
			continue
		}
		if !filter.UpdatedFrom.IsZero() && dl.UpdatedAt.Before(filter.UpdatedFrom) {
			continue
		}
		if !filter.UpdatedTo.IsZero() && dl.UpdatedAt.After(filter.UpdatedTo) {
			continue
		}
		sum += dl.Value
	}
	return sum, nil
}
