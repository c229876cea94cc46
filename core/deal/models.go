package deal

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/caremint/backend/core"
)

// Statuses; stored free-text and matched case-insensitively.
const (
	StatusOpen = "open"
	StatusWon  = "won"
	StatusLost = "lost"
)

var ErrNotFound = errors.New("deal not found")

// Deal is a sales-pipeline record. The compliance engine only ever reads
// deals; they are created and mutated by the sales handlers.
type Deal struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (d *Deal) Won() bool {
	return strings.EqualFold(d.Status, StatusWon)
}

func (d *Deal) Lost() bool {
	return strings.EqualFold(d.Status, StatusLost)
}

// ValueFilter bounds a deal value aggregation.
// Status and ExcludeStatus are matched case-insensitively; at most one of
// them should be set. The window applies to Deal.UpdatedAt, both ends
// inclusive.
type ValueFilter struct {
	Status        string
	ExcludeStatus string
	UpdatedFrom   time.Time
	UpdatedTo     time.Time
}

type Repository interface {
	CreateDeal(ctx context.Context, dl Deal, exec ...core.DBExecutor) (Deal, error)
	GetDealByID(ctx context.Context, id string, exec ...core.DBExecutor) (Deal, error)
	// SumOwnedValues returns the sum of matching deal values for the owner.
	// No matching deals is not an error; the sum is 0. NULL values count as 0.
	SumOwnedValues(ctx context.Context, ownerID string, filter ValueFilter, exec ...core.DBExecutor) (float64, error)
}
