package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/activity"
)

type activityRow struct {
	ID        string    `db:"id"`
	TenantID  string    `db:"tenant_id"`
	OwnerID   string    `db:"owner_id"`
	Kind      string    `db:"kind"`
	Note      string    `db:"note"`
	CreatedAt time.Time `db:"created_at"`
}

func (row activityRow) activity() activity.Activity {
	return activity.Activity{
		ID:        row.ID,
		TenantID:  row.TenantID,
		OwnerID:   row.OwnerID,
		Kind:      row.Kind,
		Note:      row.Note,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type activityRepository struct {
	db core.DBExecutor
}

var _ activity.Repository = (*activityRepository)(nil)

func NewActivityRepository(db core.DBExecutor) activity.Repository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) CreateActivity(ctx context.Context, act activity.Activity, exec ...core.DBExecutor) (activity.Activity, error) {
	ex := getExec(repo.db, exec)

	if act.ID == "" {
		act.ID = uuid.New().String()
	}
	q := `
	INSERT INTO activities (id, tenant_id, owner_id, kind, note, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := ex.ExecContext(ctx, q, act.ID, act.TenantID, act.OwnerID, act.Kind, act.Note, act.CreatedAt); err != nil {
		return activity.Activity{}, errors.Wrap(err, "creating activity")
	}

	var row activityRow
	get := "SELECT id, tenant_id, owner_id, kind, note, created_at FROM activities WHERE id = $1"
	if err := sqlx.GetContext(ctx, ex, &row, get, act.ID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return activity.Activity{}, activity.ErrNotFound
		}
		return activity.Activity{}, errors.Wrap(err, "getting activity")
	}
	return row.activity(), nil
}

func (repo *activityRepository) CountOwned(
	ctx context.Context, ownerID string, from, to time.Time, exec ...core.DBExecutor,
) (int64, error) {
	ex := getExec(repo.db, exec)

	var count int64
	q := "SELECT COUNT(*) FROM activities WHERE owner_id = $1 AND created_at >= $2 AND created_at <= $3"
	if err := sqlx.GetContext(ctx, ex, &count, q, ownerID, from, to); err != nil {
		return 0, errors.Wrap(err, "counting activities")
	}
	return count, nil
}
