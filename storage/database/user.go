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
	"github.com/caremint/backend/core/user"
)

type userRow struct {
	ID           string         `db:"id"`
	TenantID     string         `db:"tenant_id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	Metadata     jsonbMap       `db:"metadata"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (row userRow) user() user.User {
	usr := user.User{
		ID:           row.ID,
		TenantID:     row.TenantID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		Roles:        row.Roles,
		Metadata:     row.Metadata,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	usr.SetActive(row.IsActive)
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	return usr
}

const userColumns = "id, tenant_id, name, username, email, is_active, roles, metadata, password_hash, created_at, updated_at, last_login"

type userRepository struct {
	db core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db core.DBExecutor) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(
	ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor,
) error {
	ex := getExec(repo.db, exec)

	excludedIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excludedIDs = append(excludedIDs, usr.ID)
	}

	if username != "" {
		var exists bool
		q := "SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(username) = $1 AND NOT (id = ANY($2)))"
		if err := sqlx.GetContext(ctx, ex, &exists, q, strings.ToLower(username), pq.Array(excludedIDs)); err != nil {
			return errors.Wrap(err, "checking username uniqueness")
		}
		if exists {
			return user.ErrUsernameExists
		}
	}
	if email != "" {
		var exists bool
		q := "SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = $1 AND NOT (id = ANY($2)))"
		if err := sqlx.GetContext(ctx, ex, &exists, q, strings.ToLower(email), pq.Array(excludedIDs)); err != nil {
			return errors.Wrap(err, "checking email uniqueness")
		}
		if exists {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	ex := getExec(repo.db, exec)

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	q := `
	INSERT INTO users (id, tenant_id, name, username, email, is_active, roles, metadata, password_hash, created_at, updated_at)
	VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10, $11)`
	_, err := ex.ExecContext(
		ctx, q,
		usr.ID, usr.TenantID, usr.Name, usr.Username, usr.Email, usr.Active(),
		pq.Array(usr.Roles), jsonbMap(usr.Metadata), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID}, ex)
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	ex := getExec(repo.db, exec)

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ID != "" {
		conds = append(conds, "id = "+arg(filter.ID))
	}
	if filter.Username != "" {
		conds = append(conds, "LOWER(username) = "+arg(strings.ToLower(filter.Username)))
	}
	if filter.Email != "" {
		conds = append(conds, "LOWER(email) = "+arg(strings.ToLower(filter.Email)))
	}
	if len(filter.UsernameOrEmail) == 2 {
		conds = append(conds, "LOWER(username) = "+arg(strings.ToLower(filter.UsernameOrEmail[0])))
		conds = append(conds, "LOWER(email) = "+arg(strings.ToLower(filter.UsernameOrEmail[1])))
	}
	if len(conds) == 0 {
		return user.User{}, user.ErrNotFound
	}

	q := fmt.Sprintf("SELECT %s FROM users WHERE %s LIMIT 1", userColumns, strings.Join(conds, " OR "))
	var row userRow
	if err := sqlx.GetContext(ctx, ex, &row, q, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.user(), nil
}

func (repo *userRepository) FilterUsers(
	ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor,
) ([]user.User, error) {
	ex := getExec(repo.db, exec)

	conds := []string{"TRUE"}
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		search := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(name ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s)", search))
	}
	if filter.TenantID != "" {
		conds = append(conds, "tenant_id = "+arg(filter.TenantID))
	}
	if len(filter.Roles) > 0 {
		// match any role sharing a prefix with one of the wanted roles
		roleConds := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roleConds = append(
				roleConds,
				fmt.Sprintf("EXISTS (SELECT 1 FROM UNNEST(roles) AS role WHERE role ILIKE %s || '%%')", arg(role)),
			)
		}
		conds = append(conds, "("+strings.Join(roleConds, " OR ")+")")
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*filter.IsActive))
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, "created_at >= "+arg(filter.CreatedFrom))
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, "created_at <= "+arg(filter.CreatedTo))
	}

	orderBy := orderByClause(ordering,
		"id", "tenant_id", "name", "username", "email", "is_active", "created_at", "updated_at", "last_login")

	q := fmt.Sprintf(
		"SELECT %s FROM users WHERE %s ORDER BY %s",
		userColumns, strings.Join(conds, " AND "), strings.Join(orderBy, ", "),
	)
	if filter.Limit > 0 {
		q += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		q += " OFFSET " + arg(filter.Offset)
	}

	var rows []userRow
	if err := sqlx.SelectContext(ctx, ex, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	users := make([]user.User, len(rows))
	for i, row := range rows {
		users[i] = row.user()
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool, exec ...core.DBExecutor) (user.User, error) {
	ex := getExec(repo.db, exec)

	var sets []string
	var args []interface{}
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if usr.Name != "" {
		set("name", usr.Name)
	}
	if usr.Username != "" {
		set("username", usr.Username)
	}
	if usr.Email != "" {
		set("email", usr.Email)
	}
	if usr.Roles != nil {
		set("roles", pq.Array(usr.Roles))
	}
	if usr.PasswordHash != nil {
		set("password_hash", usr.PasswordHash)
	}
	if !usr.LastLogin.IsZero() {
		set("last_login", usr.LastLogin)
	}
	if isActive != nil {
		set("is_active", *isActive)
	}
	if usr.UpdatedAt.IsZero() {
		usr.UpdatedAt = time.Now().UTC()
	}
	set("updated_at", usr.UpdatedAt)

	args = append(args, usr.ID)
	q := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	res, err := ex.ExecContext(ctx, q, args...)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID}, ex)
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	if _, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID}, exec...); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return repo.CreateUser(ctx, usr, exec...)
		}
		return user.User{}, err
	}
	return repo.UpdateUser(ctx, usr, usr.IsActive, exec...)
}

func (repo *userRepository) BlockUser(ctx context.Context, id, reason string, at time.Time, exec ...core.DBExecutor) (user.User, error) {
	ex := getExec(repo.db, exec)

	q := `
	UPDATE users
	SET is_active = FALSE,
	    metadata = COALESCE(metadata, '{}'::jsonb) || jsonb_build_object($2::text, $3::text, $4::text, $5::text),
	    updated_at = $6
	WHERE id = $1`
	res, err := ex.ExecContext(
		ctx, q,
		id, user.MetaBlockedReason, reason, user.MetaBlockedAt, at.UTC().Format(time.RFC3339), time.Now().UTC(),
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "blocking user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: id}, ex)
}

func (repo *userRepository) UnblockUser(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error) {
	ex := getExec(repo.db, exec)

	q := `
	UPDATE users
	SET is_active = TRUE,
	    metadata = COALESCE(metadata, '{}'::jsonb) - $2::text - $3::text,
	    updated_at = $4
	WHERE id = $1`
	res, err := ex.ExecContext(ctx, q, id, user.MetaBlockedReason, user.MetaBlockedAt, time.Now().UTC())
	if err != nil {
		return user.User{}, errors.Wrap(err, "unblocking user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: id}, ex)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	ex := getExec(repo.db, exec)

	if _, err := ex.ExecContext(ctx, "DELETE FROM users WHERE id = ANY($1)", pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
