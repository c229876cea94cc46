package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/target"
)

type targetRow struct {
	ID              string    `db:"id"`
	TenantID        string    `db:"tenant_id"`
	AssigneeID      string    `db:"assignee_id"`
	PeriodType      string    `db:"period_type"`
	PeriodStart     time.Time `db:"period_start"`
	PeriodEnd       time.Time `db:"period_end"`
	TargetType      string    `db:"target_type"`
	TargetValue     float64   `db:"target_value"`
	IncentiveAmount float64   `db:"incentive_amount"`
	AchievedValue   float64   `db:"achieved_value"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
	DeletedAt       null.Time `db:"deleted_at"`
}

func (row targetRow) target() target.Target {
	tgt := target.Target{
		ID:              row.ID,
		TenantID:        row.TenantID,
		AssigneeID:      row.AssigneeID,
		PeriodType:      target.PeriodType(row.PeriodType),
		PeriodStart:     row.PeriodStart.UTC(),
		PeriodEnd:       row.PeriodEnd.UTC(),
		TargetType:      target.Metric(row.TargetType),
		TargetValue:     row.TargetValue,
		IncentiveAmount: row.IncentiveAmount,
		AchievedValue:   row.AchievedValue,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
	if row.DeletedAt.Valid {
		tgt.DeletedAt = row.DeletedAt.Time.UTC()
	}
	return tgt
}

type milestoneRow struct {
	ID            string    `db:"id"`
	TargetID      string    `db:"target_id"`
	StepOrder     int       `db:"step_order"`
	Name          string    `db:"name"`
	Metric        string    `db:"metric_type"`
	TargetValue   float64   `db:"target_value"`
	Deadline      time.Time `db:"deadline"`
	AchievedValue float64   `db:"achieved_value"`
	Status        string    `db:"status"`
	IsBlocking    bool      `db:"is_blocking"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (row milestoneRow) milestone() target.Milestone {
	return target.Milestone{
		ID:            row.ID,
		TargetID:      row.TargetID,
		StepOrder:     row.StepOrder,
		Name:          row.Name,
		Metric:        target.Metric(row.Metric),
		TargetValue:   row.TargetValue,
		Deadline:      row.Deadline.UTC(),
		AchievedValue: row.AchievedValue,
		Status:        target.MilestoneStatus(row.Status),
		IsBlocking:    row.IsBlocking,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

const (
	targetColumns    = "id, tenant_id, assignee_id, period_type, period_start, period_end, target_type, target_value, incentive_amount, achieved_value, created_at, updated_at, deleted_at"
	milestoneColumns = "id, target_id, step_order, name, metric_type, target_value, deadline, achieved_value, status, is_blocking, created_at, updated_at"
)

type targetRepository struct {
	db core.DBExecutor
}

var _ target.Repository = (*targetRepository)(nil)

func NewTargetRepository(db core.DBExecutor) target.Repository {
	return &targetRepository{db: db}
}

func (repo *targetRepository) CreateTarget(ctx context.Context, tgt target.Target, exec ...core.DBExecutor) (target.Target, error) {
	ex := getExec(repo.db, exec)

	if tgt.ID == "" {
		tgt.ID = uuid.New().String()
	}
	q := `
	INSERT INTO targets (id, tenant_id, assignee_id, period_type, period_start, period_end, target_type, target_value, incentive_amount, achieved_value, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := ex.ExecContext(
		ctx, q,
		tgt.ID, tgt.TenantID, tgt.AssigneeID, string(tgt.PeriodType), tgt.PeriodStart, tgt.PeriodEnd,
		string(tgt.TargetType), tgt.TargetValue, tgt.IncentiveAmount, tgt.AchievedValue, tgt.CreatedAt, tgt.UpdatedAt,
	)
	if err != nil {
		return target.Target{}, errors.Wrap(err, "creating target")
	}

	for i := range tgt.Milestones {
		ms := &tgt.Milestones[i]
		if ms.ID == "" {
			ms.ID = uuid.New().String()
		}
		ms.TargetID = tgt.ID
		mq := `
		INSERT INTO milestones (id, target_id, step_order, name, metric_type, target_value, deadline, achieved_value, status, is_blocking, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
		_, err = ex.ExecContext(
			ctx, mq,
			ms.ID, ms.TargetID, ms.StepOrder, ms.Name, string(ms.Metric), ms.TargetValue, ms.Deadline,
			ms.AchievedValue, string(ms.Status), ms.IsBlocking, ms.CreatedAt, ms.UpdatedAt,
		)
		if err != nil {
			return target.Target{}, errors.Wrap(err, "creating milestone")
		}
	}
	return repo.GetTargetByID(ctx, tgt.ID, ex)
}

func (repo *targetRepository) GetTargetByID(ctx context.Context, id string, exec ...core.DBExecutor) (target.Target, error) {
	ex := getExec(repo.db, exec)

	var row targetRow
	q := fmt.Sprintf("SELECT %s FROM targets WHERE id = $1", targetColumns)
	if err := sqlx.GetContext(ctx, ex, &row, q, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return target.Target{}, target.ErrNotFound
		}
		return target.Target{}, errors.Wrap(err, "getting target")
	}

	tgt := row.target()
	milestones, err := repo.loadMilestones(ctx, ex, []string{tgt.ID})
	if err != nil {
		return target.Target{}, err
	}
	tgt.Milestones = milestones[tgt.ID]
	return tgt, nil
}

func (repo *targetRepository) FilterTargets(
	ctx context.Context, filter target.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor,
) ([]target.Target, error) {
	ex := getExec(repo.db, exec)

	conds := []string{"TRUE"}
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.IncludeDeleted {
		conds = append(conds, "deleted_at IS NULL")
	}
	if filter.TenantID != "" {
		conds = append(conds, "tenant_id = "+arg(filter.TenantID))
	}
	if filter.AssigneeID != "" {
		conds = append(conds, "assignee_id = "+arg(filter.AssigneeID))
	}
	if filter.PeriodType != "" {
		conds = append(conds, "period_type = "+arg(filter.PeriodType))
	}
	if !filter.PeriodFrom.IsZero() {
		conds = append(conds, "period_end >= "+arg(filter.PeriodFrom))
	}
	if !filter.PeriodTo.IsZero() {
		conds = append(conds, "period_start <= "+arg(filter.PeriodTo))
	}

	orderBy := orderByClause(ordering,
		"id", "tenant_id", "assignee_id", "period_type", "period_start", "period_end",
		"target_type", "target_value", "incentive_amount", "achieved_value", "created_at", "updated_at")

	q := fmt.Sprintf(
		"SELECT %s FROM targets WHERE %s ORDER BY %s",
		targetColumns, strings.Join(conds, " AND "), strings.Join(orderBy, ", "),
	)
	var rows []targetRow
	if err := sqlx.SelectContext(ctx, ex, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering targets")
	}
	return repo.attachMilestones(ctx, ex, rows)
}

func (repo *targetRepository) QueryAssigneeTargets(ctx context.Context, assigneeID string, exec ...core.DBExecutor) ([]target.Target, error) {
	ex := getExec(repo.db, exec)

	q := fmt.Sprintf(
		"SELECT %s FROM targets WHERE assignee_id = $1 AND deleted_at IS NULL ORDER BY created_at, id",
		targetColumns,
	)
	var rows []targetRow
	if err := sqlx.SelectContext(ctx, ex, &rows, q, assigneeID); err != nil {
		return nil, errors.Wrap(err, "querying assignee targets")
	}
	return repo.attachMilestones(ctx, ex, rows)
}

func (repo *targetRepository) attachMilestones(ctx context.Context, ex core.DBExecutor, rows []targetRow) ([]target.Target, error) {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	milestones, err := repo.loadMilestones(ctx, ex, ids)
	if err != nil {
		return nil, err
	}

	targets := make([]target.Target, len(rows))
	for i, row := range rows {
		targets[i] = row.target()
		targets[i].Milestones = milestones[row.ID]
	}
	return targets, nil
}

func (repo *targetRepository) loadMilestones(ctx context.Context, ex core.DBExecutor, targetIDs []string) (map[string][]target.Milestone, error) {
	if len(targetIDs) == 0 {
		return nil, nil
	}

	q := fmt.Sprintf(
		"SELECT %s FROM milestones WHERE target_id = ANY($1) ORDER BY target_id, step_order",
		milestoneColumns,
	)
	var rows []milestoneRow
	if err := sqlx.SelectContext(ctx, ex, &rows, q, pq.Array(targetIDs)); err != nil {
		return nil, errors.Wrap(err, "loading milestones")
	}

	byTarget := make(map[string][]target.Milestone, len(targetIDs))
	for _, row := range rows {
		byTarget[row.TargetID] = append(byTarget[row.TargetID], row.milestone())
	}
	return byTarget, nil
}

func (repo *targetRepository) UpdateMilestoneOutcome(ctx context.Context, ms target.Milestone, exec ...core.DBExecutor) (target.Milestone, error) {
	ex := getExec(repo.db, exec)

	q := "UPDATE milestones SET achieved_value = $2, status = $3, updated_at = $4 WHERE id = $1"
	res, err := ex.ExecContext(ctx, q, ms.ID, ms.AchievedValue, string(ms.Status), time.Now().UTC())
	if err != nil {
		return target.Milestone{}, errors.Wrap(err, "updating milestone outcome")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return target.Milestone{}, target.ErrMilestoneNotFound
	}

	var row milestoneRow
	get := fmt.Sprintf("SELECT %s FROM milestones WHERE id = $1", milestoneColumns)
	if err = sqlx.GetContext(ctx, ex, &row, get, ms.ID); err != nil {
		return target.Milestone{}, errors.Wrap(err, "getting milestone")
	}
	return row.milestone(), nil
}

func (repo *targetRepository) UpdateTargetAchieved(ctx context.Context, id string, achieved float64, exec ...core.DBExecutor) error {
	ex := getExec(repo.db, exec)

	q := "UPDATE targets SET achieved_value = $2, updated_at = $3 WHERE id = $1"
	res, err := ex.ExecContext(ctx, q, id, achieved, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "updating target achieved value")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return target.ErrNotFound
	}
	return nil
}

func (repo *targetRepository) SoftDeleteTarget(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error {
	ex := getExec(repo.db, exec)

	q := "UPDATE targets SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL"
	res, err := ex.ExecContext(ctx, q, id, at.UTC())
	if err != nil {
		return errors.Wrap(err, "soft-deleting target")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return target.ErrNotFound
	}
	return nil
}
