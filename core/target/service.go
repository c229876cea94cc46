package target

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("target not found")
	ErrMilestoneNotFound = errors.New("milestone not found")

	errUnknownAssignee = errors.New("assignee not found")
	errPeriodTooShort  = errors.New("period too short to schedule milestones")
)

type (
	Repository interface {
		// CreateTarget persists the target and all its milestones. Callers
		// wanting all-or-nothing semantics pass a transaction in exec.
		CreateTarget(ctx context.Context, tgt Target, exec ...core.DBExecutor) (Target, error)
		GetTargetByID(ctx context.Context, id string, exec ...core.DBExecutor) (Target, error)
		// FilterTargets applies AND operation on available QueryFilter fields.
		// Soft-deleted targets are excluded unless IncludeDeleted is set.
		// Milestones are loaded, ordered by step_order.
		FilterTargets(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Target, error)
		// QueryAssigneeTargets returns the assignee's live targets with
		// milestones, in a deterministic order: targets by (created_at, id),
		// milestones by step_order.
		QueryAssigneeTargets(ctx context.Context, assigneeID string, exec ...core.DBExecutor) ([]Target, error)
		// UpdateMilestoneOutcome overwrites the milestone's achieved_value and
		// status snapshot. It never touches any other column.
		UpdateMilestoneOutcome(ctx context.Context, ms Milestone, exec ...core.DBExecutor) (Milestone, error)
		// UpdateTargetAchieved overwrites the target's rolling achieved_value.
		UpdateTargetAchieved(ctx context.Context, id string, achieved float64, exec ...core.DBExecutor) error
		SoftDeleteTarget(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, nt NewTarget) (Target, error)
		GetByID(ctx context.Context, id string) (Target, error)
		Filter(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Target, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		db      core.DB
		repo    Repository
		usrRepo user.Repository
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, usrRepo user.Repository) Service {
	return &service{
		db:      db,
		repo:    repo,
		usrRepo: usrRepo,
	}
}

// Create assigns a goal: it persists the target and its generated milestones
// atomically. Nothing is persisted if the assignee cannot be resolved or an
// invariant fails.
func (svc *service) Create(ctx context.Context, nt NewTarget) (Target, error) {
	assignee, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: nt.AssigneeID})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Target{}, core.NewFieldValidationError("assignee_id", errUnknownAssignee)
		}
		return Target{}, errors.Wrap(err, "resolving assignee")
	}

	now := time.Now().UTC()
	tgt := Target{
		TenantID:        nt.TenantID,
		AssigneeID:      assignee.ID,
		PeriodType:      nt.PeriodType,
		PeriodStart:     nt.PeriodStart.UTC(),
		PeriodEnd:       nt.PeriodEnd.UTC(),
		TargetType:      nt.TargetType,
		TargetValue:     nt.TargetValue,
		IncentiveAmount: nt.IncentiveAmount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	tgt.Milestones = BuildMilestones(tgt.TargetValue, tgt.PeriodStart, tgt.PeriodEnd)
	for i := range tgt.Milestones {
		tgt.Milestones[i].CreatedAt = now
		tgt.Milestones[i].UpdatedAt = now
	}

	// deadlines must strictly increase with step order; reject, never clamp
	// or reorder. A period of 14 days or less collapses the ramp deadline
	// onto the midpoint.
	if err = checkDeadlines(tgt.Milestones); err != nil {
		return Target{}, core.NewFieldValidationError("period_end", err)
	}

	if svc.db == nil { // in-mem repos; no transaction support
		return svc.repo.CreateTarget(ctx, tgt)
	}

	tx, err := svc.db.BeginTxx(ctx, nil)
	if err != nil {
		return Target{}, errors.Wrap(err, "beginning transaction")
	}
	tgt, err = svc.repo.CreateTarget(ctx, tgt, tx)
	if err != nil {
		_ = tx.Rollback()
		return Target{}, err
	}
	if err = tx.Commit(); err != nil {
		return Target{}, errors.Wrap(err, "committing transaction")
	}
	return tgt, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Target, error) {
	return svc.repo.GetTargetByID(ctx, id)
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Target, error) {
	filter.Clean()
	return svc.repo.FilterTargets(ctx, filter, ordering)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.SoftDeleteTarget(ctx, id, time.Now().UTC())
}

func checkDeadlines(milestones []Milestone) error {
	for i := 1; i < len(milestones); i++ {
		if !milestones[i].Deadline.After(milestones[i-1].Deadline) {
			return errPeriodTooShort
		}
	}
	return nil
}
