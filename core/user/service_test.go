package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/user"
	emailsvc "github.com/caremint/backend/services/email"
	"github.com/caremint/backend/storage/database/dummy"
)

func newService(t *testing.T, users ...user.User) (user.Service, *dummy.UserRepository) {
	t.Helper()
	conf := core.NewConfig()
	repo := dummy.NewUserRepository(users...)
	return user.NewServiceMock(repo, emailsvc.NewConsoleServiceMock(conf), conf), repo
}

func TestServiceBlockUnblock(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, time.June, 1, 9, 30, 0, 0, time.UTC)

	agent := user.User{
		TenantID: "clinic-a",
		Name:     "Jo Dibala",
		Username: "jdibala",
		Email:    "jdibala@clinic-a.test",
		Roles:    []string{user.RoleSalesAgent},
		Metadata: map[string]string{"region": "west"},
	}
	agent.SetActive(true)

	svc, _ := newService(t, agent)
	seeded, err := svc.GetByUsername(ctx, "jdibala")
	require.NoError(t, err)

	t.Run("block revokes access and records the reason", func(t *testing.T) {
		usr, err := svc.Block(ctx, seeded.ID, "missed ramp-up milestone", at)
		require.NoError(t, err)

		assert.False(t, usr.Active())
		assert.True(t, usr.Blocked())
		assert.Equal(t, "missed ramp-up milestone", usr.BlockedReason())
		assert.Equal(t, at.Format(time.RFC3339), usr.Metadata[user.MetaBlockedAt])
		// unrelated metadata survives the merge
		assert.Equal(t, "west", usr.Metadata["region"])
	})

	t.Run("unblock restores access and strips block keys", func(t *testing.T) {
		usr, err := svc.Unblock(ctx, seeded.ID)
		require.NoError(t, err)

		assert.True(t, usr.Active())
		assert.False(t, usr.Blocked())
		assert.Empty(t, usr.BlockedReason())
		assert.NotContains(t, usr.Metadata, user.MetaBlockedAt)
		assert.Equal(t, "west", usr.Metadata["region"])
	})

	t.Run("unblock is idempotent", func(t *testing.T) {
		usr, err := svc.Unblock(ctx, seeded.ID)
		require.NoError(t, err)
		assert.True(t, usr.Active())
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Block(ctx, "00000000-0000-0000-0000-000000000000", "nope", at)
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func TestServiceFilter(t *testing.T) {
	ctx := context.Background()

	mkUser := func(tenant, uname string, active bool, roles ...string) user.User {
		usr := user.User{
			TenantID: tenant,
			Name:     uname,
			Username: uname,
			Email:    uname + "@test.test",
			Roles:    roles,
		}
		usr.SetActive(active)
		return usr
	}

	svc, _ := newService(t,
		mkUser("clinic-a", "agent1", true, user.RoleSalesAgent),
		mkUser("clinic-a", "agent2", false, user.RoleSalesAgent),
		mkUser("clinic-a", "manager", true, user.RoleSalesManager),
		mkUser("clinic-a", "reception", true, user.RoleStaffReception),
		mkUser("clinic-b", "agent3", true, user.RoleSalesAgent),
	)

	usernames := func(users []user.User) []string {
		names := make([]string, len(users))
		for i, usr := range users {
			names[i] = usr.Username
		}
		return names
	}

	t.Run("active sales roster crosses tenants", func(t *testing.T) {
		active := true
		users, err := svc.Filter(ctx, user.QueryFilter{Roles: []string{user.RoleSales}, IsActive: &active})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"agent1", "manager", "agent3"}, usernames(users))
	})

	t.Run("tenant scoping", func(t *testing.T) {
		users, err := svc.Filter(ctx, user.QueryFilter{TenantID: "clinic-b"})
		require.NoError(t, err)
		assert.Equal(t, []string{"agent3"}, usernames(users))
	})

	t.Run("pagination is stable", func(t *testing.T) {
		var all []user.User
		for offset := 0; ; offset += 2 {
			page, err := svc.Filter(ctx, user.QueryFilter{Limit: 2, Offset: offset})
			require.NoError(t, err)
			all = append(all, page...)
			if len(page) < 2 {
				break
			}
		}
		assert.Len(t, all, 5)

		again, err := svc.QueryAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, usernames(again), usernames(all))
	})
}
