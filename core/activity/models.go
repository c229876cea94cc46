package activity

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/caremint/backend/core"
)

// Kinds
const (
	KindCall    = "call"
	KindMeeting = "meeting"
	KindEmail   = "email"
	KindNote    = "note"
)

var ErrNotFound = errors.New("activity not found")

// Activity is a single logged touch-point (call, meeting, ...) owned by an
// agent. Read-only from the compliance engine's perspective.
type Activity struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	OwnerID   string    `json:"owner_id"`
	Kind      string    `json:"kind"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Repository interface {
	CreateActivity(ctx context.Context, act Activity, exec ...core.DBExecutor) (Activity, error)
	// CountOwned counts the owner's activity records created within
	// [from, to], both ends inclusive. Zero matches is not an error.
	CountOwned(ctx context.Context, ownerID string, from, to time.Time, exec ...core.DBExecutor) (int64, error)
}
