package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/caremint/backend/core/compliance"
	"github.com/caremint/backend/core/target"
	"github.com/caremint/backend/core/user"
)

func Test_complianceApi_run(t *testing.T) {
	env := setup(t)

	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	compliance.NowFunc = func() time.Time { return now }
	defer func() { compliance.NowFunc = time.Now }()

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", []string{user.RoleAdminTenant}, true)
	agent := env.createUser(t, "Agent", "agent", "agent@test.cd", []string{user.RoleSalesAgent}, true)

	// ramp milestone already overdue; no activity was ever logged
	start := now.AddDate(0, 0, -30)
	if _, err := env.tgtSvc.Create(context.Background(), target.NewTarget{
		TenantID:    "clinic-a",
		AssigneeID:  agent.ID,
		PeriodType:  target.PeriodQuarter,
		PeriodStart: start,
		PeriodEnd:   now.AddDate(0, 0, 60),
		TargetType:  target.MetricRevenue,
		TargetValue: 10000,
	}); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	t.Run("Auth required", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		req, rec := newRequest(http.MethodPost, "/v1/compliance/run")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Admin required", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		req, rec := newAuthRequest(http.MethodPost, "/v1/compliance/run", env.getToken(t, agent))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("run sweeps the roster", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/compliance/run", env.getToken(t, admin))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %v", rec.Code, http.StatusOK, rec.Body.String())
		}

		var stats compliance.RunStats
		if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
			t.Fatalf("unmarshalling RunStats: %v", err)
		}
		if stats.Scanned != 1 || stats.Failed != 1 || stats.Blocked != 1 {
			t.Errorf("unexpected stats: %+v", stats)
		}

		usr, err := env.usrSvc.GetByID(context.Background(), agent.ID)
		if err != nil {
			t.Fatalf("GetByID(): %v", err)
		}
		if usr.Active() || !usr.Blocked() {
			t.Error("expected agent to be blocked")
		}
	})
}
