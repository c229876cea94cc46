package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/caremint/backend/core/user"
)

func Test_userApi_login(t *testing.T) {
	env := setup(t)

	env.createUser(t, "Jo Dibala", "jdibala", "jdibala@test.cd", []string{user.RoleSalesAgent}, true)
	env.createUser(t, "Slacker", "slacker", "slacker@test.cd", []string{user.RoleSalesAgent}, true)

	// slacker got swept by a compliance run
	blockedAt := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	if _, err := env.usrSvc.Block(context.Background(), mustGetByUsername(t, env, "slacker").ID, "missed blocking milestone", blockedAt); err != nil {
		t.Fatalf("Block(): %v", err)
	}

	loginBody := func(uname, pwd string) []byte {
		return marchallObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{
			name: "empty request", body: marchallObj(t, LoginRequest{}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			// unknown users and wrong passwords are indistinguishable
			name: "unknown user", body: loginBody("nobody", testUserPwd), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: loginBody("jdibala", "nope"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "blocked account carries the reason", body: loginBody("slacker", testUserPwd), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated: missed blocking milestone"}),
		},
		{name: "login by username", body: loginBody("jdibala", testUserPwd), wantCode: http.StatusOK},
		{name: "login by email", body: loginBody("jdibala@test.cd", testUserPwd), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshalling LoginResponse: %v", err)
				}
				if resp.Token == "" {
					t.Error("expected a signed token")
				}
			}
		})
	}

	t.Run("login sets lastLogin", func(t *testing.T) {
		usr := mustGetByUsername(t, env, "jdibala")
		if usr.LastLogin.IsZero() {
			t.Error("lastLogin not set")
		}
	})
}

func Test_userApi_userRetrieve(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", []string{user.RoleAdminTenant}, true)
	agent := env.createUser(t, "Agent", "agent", "agent@test.cd", []string{user.RoleSalesAgent}, true)
	other := env.createUser(t, "Other", "other", "other@test.cd", []string{user.RoleSalesAgent}, true)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users/" + agent.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "owner can self-retrieve", path: "/v1/users/" + agent.ID, token: env.getToken(t, agent),
			wantCode: http.StatusOK, wantData: marchallObj(t, agent),
		},
		{
			name: "non-admin cannot retrieve others", path: "/v1/users/" + other.ID, token: env.getToken(t, agent),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "admin can retrieve anyone", path: "/v1/users/" + other.ID, token: env.getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallObj(t, other),
		},
		{
			name: "admin; unknown ID", path: "/v1/users/00000000-0000-0000-0000-000000000000", token: env.getToken(t, admin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userQuery(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", []string{user.RoleAdminTenant}, true)
	agent := env.createUser(t, "Agent", "agent", "agent@test.cd", []string{user.RoleSalesAgent}, true)
	manager := env.createUser(t, "Manager", "manager", "manager@test.cd", []string{user.RoleSalesManager}, true)
	reception := env.createUser(t, "Reception", "reception", "reception@test.cd", []string{user.RoleStaffReception}, false)

	adminToken := env.getToken(t, admin)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: env.getToken(t, agent), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Get all", path: "/v1/users", token: adminToken, wantCode: http.StatusOK,
			wantData: marchallList(t, admin, agent, manager, reception),
		},
		{
			name: "role=sales:", path: "/v1/users?role=" + user.RoleSales, token: adminToken, wantCode: http.StatusOK,
			wantData: marchallList(t, agent, manager),
		},
		{
			name: "is_active=false", path: "/v1/users?is_active=false", token: adminToken, wantCode: http.StatusOK,
			wantData: marchallList(t, reception),
		},
		{
			name: "search", path: "/v1/users?search=manag", token: adminToken, wantCode: http.StatusOK,
			wantData: marchallList(t, manager),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userUnblock(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", []string{user.RoleAdminTenant}, true)
	agent := env.createUser(t, "Agent", "agent", "agent@test.cd", []string{user.RoleSalesAgent}, true)
	peer := env.createUser(t, "Peer", "peer", "peer@test.cd", []string{user.RoleSalesAgent}, true)

	blockedAt := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	if _, err := env.usrSvc.Block(context.Background(), agent.ID, "missed blocking milestone", blockedAt); err != nil {
		t.Fatalf("Block(): %v", err)
	}

	path := "/v1/users/" + agent.ID + "/unblock"

	tests := []httpTest{
		{name: "Auth required", token: "", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			// blocked users cannot talk to the API at all: their 4h-old token
			// would still verify, but the detail middleware 404s peers anyway
			name: "Admin required", token: env.getToken(t, peer), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "Admin unblocks", token: env.getToken(t, admin), wantCode: http.StatusOK},
		{name: "Unblock is idempotent", token: env.getToken(t, admin), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, path, tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Fatalf("unmarshalling User: %v", err)
				}
				if !usr.Active() {
					t.Error("expected user to be active again")
				}
				if usr.Blocked() {
					t.Error("expected block metadata to be cleared")
				}
			}
		})
	}
}

func mustGetByUsername(t *testing.T, env *testEnv, uname string) user.User {
	t.Helper()
	usr, err := env.usrSvc.GetByUsername(context.Background(), uname)
	if err != nil {
		t.Fatalf("GetByUsername(%s): %v", uname, err)
	}
	return usr
}
