package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/deal"
)

type dealRow struct {
	ID        string    `db:"id"`
	TenantID  string    `db:"tenant_id"`
	OwnerID   string    `db:"owner_id"`
	Name      string    `db:"name"`
	Value     float64   `db:"value"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row dealRow) deal() deal.Deal {
	return deal.Deal{
		ID:        row.ID,
		TenantID:  row.TenantID,
		OwnerID:   row.OwnerID,
		Name:      row.Name,
		Value:     row.Value,
		Status:    row.Status,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

const dealColumns = "id, tenant_id, owner_id, name, value, status, created_at, updated_at"

type dealRepository struct {
	db core.DBExecutor
}

var _ deal.Repository = (*dealRepository)(nil)

func NewDealRepository(db core.DBExecutor) deal.Repository {
	return &dealRepository{db: db}
}

func (repo *dealRepository) CreateDeal(ctx context.Context, dl deal.Deal, exec ...core.DBExecutor) (deal.Deal, error) {
	ex := getExec(repo.db, exec)

	if dl.ID == "" {
		dl.ID = uuid.New().String()
	}
	q := `
	INSERT INTO deals (id, tenant_id, owner_id, name, value, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := ex.ExecContext(ctx, q, dl.ID, dl.TenantID, dl.OwnerID, dl.Name, dl.Value, dl.Status, dl.CreatedAt, dl.UpdatedAt)
	if err != nil {
		return deal.Deal{}, errors.Wrap(err, "creating deal")
	}
	return repo.GetDealByID(ctx, dl.ID, ex)
}

func (repo *dealRepository) GetDealByID(ctx context.Context, id string, exec ...core.DBExecutor) (deal.Deal, error) {
	ex := getExec(repo.db, exec)

	var row dealRow
	q := fmt.Sprintf("SELECT %s FROM deals WHERE id = $1", dealColumns)
	if err := sqlx.GetContext(ctx, ex, &row, q, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return deal.Deal{}, deal.ErrNotFound
		}
		return deal.Deal{}, errors.Wrap(err, "getting deal")
	}
	return row.deal(), nil
}

func (repo *dealRepository) SumOwnedValues(
	ctx context.Context, ownerID string, filter deal.ValueFilter, exec ...core.DBExecutor,
) (float64, error) {
	ex := getExec(repo.db, exec)

	conds := []string{"owner_id = $1"}
	args := []interface{}{ownerID}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		conds = append(conds, "LOWER(status) = "+arg(strings.ToLower(filter.Status)))
	}
	if filter.ExcludeStatus != "" {
		conds = append(conds, "LOWER(status) <> "+arg(strings.ToLower(filter.ExcludeStatus)))
	}
	if !filter.UpdatedFrom.IsZero() {
		conds = append(conds, "updated_at >= "+arg(filter.UpdatedFrom))
	}
	if !filter.UpdatedTo.IsZero() {
		conds = append(conds, "updated_at <= "+arg(filter.UpdatedTo))
	}

	var sum float64
	q := fmt.Sprintf("SELECT COALESCE(SUM(value), 0) FROM deals WHERE %s", strings.Join(conds, " AND "))
	if err := sqlx.GetContext(ctx, ex, &sum, q, args...); err != nil {
		return 0, errors.Wrap(err, "summing deal values")
	}
	return sum, nil
}
