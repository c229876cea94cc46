package dummy

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/user"
)

// UserRepository is an in-memory user.Repository for tests. The exec variadic
// is accepted and ignored; there are no transactions here.
type UserRepository struct {
	mu    sync.Mutex
	users map[string]user.User
}

var _ user.Repository = (*UserRepository)(nil)

func NewUserRepository(users ...user.User) *UserRepository {
	repo := &UserRepository{users: make(map[string]user.User, len(users))}
	for _, usr := range users {
		if usr.ID == "" {
			usr.ID = uuid.New().String()
		}
		repo.users[usr.ID] = usr
	}
	return repo
}

func (repo *UserRepository) CheckUsernameUniqueness(
	_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor,
) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	excluded := func(id string) bool {
		for _, usr := range excludedUsers {
			if usr.ID == id {
				return true
			}
		}
		return false
	}
	for _, usr := range repo.users {
		if excluded(usr.ID) {
			continue
		}
		if username != "" && strings.EqualFold(usr.Username, username) {
			return user.ErrUsernameExists
		}
		if email != "" && strings.EqualFold(usr.Email, email) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *UserRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	repo.users[usr.ID] = usr
	return usr, nil
}

func (repo *UserRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return repo.getUser(filter)
}

func (repo *UserRepository) getUser(filter user.GetFilter) (user.User, error) {
	for _, usr := range repo.users {
		if filter.ID != "" && usr.ID == filter.ID {
			return usr, nil
		}
		if filter.Username != "" && strings.EqualFold(usr.Username, filter.Username) {
			return usr, nil
		}
		if filter.Email != "" && strings.EqualFold(usr.Email, filter.Email) {
			return usr, nil
		}
		if len(filter.UsernameOrEmail) == 2 &&
			(strings.EqualFold(usr.Username, filter.UsernameOrEmail[0]) || strings.EqualFold(usr.Email, filter.UsernameOrEmail[1])) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *UserRepository) FilterUsers(
	_ context.Context, filter user.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor,
) ([]user.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	matches := make([]user.User, 0, len(repo.users))
	for _, usr := range repo.users {
		if filter.Search != "" && !userMatchesSearch(usr, filter.Search) {
			continue
		}
		if filter.TenantID != "" && usr.TenantID != filter.TenantID {
			continue
		}
		if len(filter.Roles) > 0 && !userHasAnyRolePrefix(usr, filter.Roles) {
			continue
		}
		if filter.IsActive != nil && usr.Active() != *filter.IsActive {
			continue
		}
		if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		matches = append(matches, usr)
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matches) {
			return []user.User{}, nil
		}
		matches = matches[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matches) {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

func userMatchesSearch(usr user.User, search string) bool {
	search = strings.ToLower(search)
	return strings.Contains(strings.ToLower(usr.Name), search) ||
		strings.Contains(strings.ToLower(usr.Username), search) ||
		strings.Contains(strings.ToLower(usr.Email), search)
}

func userHasAnyRolePrefix(usr user.User, prefixes []string) bool {
	for _, prefix := range prefixes {
		if usr.RoleStartsWith(strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

func (repo *UserRepository) UpdateUser(_ context.Context, usr user.User, isActive *bool, _ ...core.DBExecutor) (user.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	orig, ok := repo.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if usr.Name != "" {
		orig.Name = usr.Name
	}
	if usr.Username != "" {
		orig.Username = usr.Username
	}
	if usr.Email != "" {
		orig.Email = usr.Email
	}
	if usr.Roles != nil {
		orig.Roles = usr.Roles
	}
	if usr.PasswordHash != nil {
		orig.PasswordHash = usr.PasswordHash
	}
	if !usr.LastLogin.IsZero() {
		orig.LastLogin = usr.LastLogin
	}
	if isActive != nil {
		orig.SetActive(*isActive)
	}
	orig.UpdatedAt = usr.UpdatedAt
	if orig.UpdatedAt.IsZero() {
		orig.UpdatedAt = time.Now().UTC()
	}
	repo.users[orig.ID] = orig
	return orig, nil
}

func (repo *UserRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID != "" {
		repo.mu.Lock()
		_, ok := repo.users[usr.ID]
		repo.mu.Unlock()
		if ok {
			return repo.UpdateUser(ctx, usr, usr.IsActive, exec...)
		}
	}
	return repo.CreateUser(ctx, usr, exec...)
}

func (repo *UserRepository) BlockUser(_ context.Context, id, reason string, at time.Time, _ ...core.DBExecutor) (user.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	usr, ok := repo.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	meta := make(map[string]string, len(usr.Metadata)+2)
	for k, v := range usr.Metadata {
		meta[k] = v
	}
	meta[user.MetaBlockedReason] = reason
	meta[user.MetaBlockedAt] = at.UTC().Format(time.RFC3339)
	usr.Metadata = meta
	usr.SetActive(false)
	usr.UpdatedAt = time.Now().UTC()
	repo.users[id] = usr
	return usr, nil
}

func (repo *UserRepository) UnblockUser(_ context.Context, id string, _ ...core.DBExecutor) (user.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	usr, ok := repo.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	meta := make(map[string]string, len(usr.Metadata))
	for k, v := range usr.Metadata {
		if k == user.MetaBlockedReason || k == user.MetaBlockedAt {
			continue
		}
		meta[k] = v
	}
	usr.Metadata = meta
	usr.SetActive(true)
	usr.UpdatedAt = time.Now().UTC()
	repo.users[id] = usr
	return usr, nil
}

func (repo *UserRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, id := range ids {
		delete(repo.users, id)
	}
	return nil
}
