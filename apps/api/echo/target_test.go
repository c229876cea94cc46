package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/caremint/backend/core/target"
	"github.com/caremint/backend/core/user"
)

func Test_targetApi_targetCreate(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", []string{user.RoleAdminTenant}, true)
	agent := env.createUser(t, "Agent", "agent", "agent@test.cd", []string{user.RoleSalesAgent}, true)

	start := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	newTarget := func(assigneeID string, days int) []byte {
		return marchallObj(t, target.NewTarget{
			TenantID:    "clinic-a",
			AssigneeID:  assigneeID,
			PeriodType:  target.PeriodQuarter,
			PeriodStart: start,
			PeriodEnd:   start.AddDate(0, 0, days),
			TargetType:  target.MetricRevenue,
			TargetValue: 10000,
		})
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", token: env.getToken(t, agent), body: newTarget(agent.ID, 90),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown assignee", token: env.getToken(t, admin), body: newTarget("00000000-0000-0000-0000-000000000000", 90),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"assignee_id": "assignee not found"}),
		},
		{
			name: "period too short for the milestone ladder", token: env.getToken(t, admin), body: newTarget(agent.ID, 14),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"period_end": "period too short to schedule milestones"}),
		},
		{name: "created with milestone ladder", token: env.getToken(t, admin), body: newTarget(agent.ID, 90), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/targets", tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var tgt target.Target
				if err := json.Unmarshal(rec.Body.Bytes(), &tgt); err != nil {
					t.Fatalf("unmarshalling Target: %v", err)
				}
				if len(tgt.Milestones) != 3 {
					t.Fatalf("expected 3 generated milestones, got %d", len(tgt.Milestones))
				}
				for i, ms := range tgt.Milestones {
					if ms.StepOrder != i+1 {
						t.Errorf("milestone %d out of order: step %d", i, ms.StepOrder)
					}
					if ms.Status != target.MilestonePending {
						t.Errorf("milestone %d not pending: %s", i, ms.Status)
					}
					if !ms.IsBlocking {
						t.Errorf("milestone %d not blocking", i)
					}
				}
			}
		})
	}
}

func Test_targetApi_targetRetrieve(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", []string{user.RoleAdminTenant}, true)
	agent := env.createUser(t, "Agent", "agent", "agent@test.cd", []string{user.RoleSalesAgent}, true)
	peer := env.createUser(t, "Peer", "peer", "peer@test.cd", []string{user.RoleSalesAgent}, true)

	start := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	tgt, err := env.tgtSvc.Create(context.Background(), target.NewTarget{
		TenantID:    "clinic-a",
		AssigneeID:  agent.ID,
		PeriodType:  target.PeriodQuarter,
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 3, 0),
		TargetType:  target.MetricRevenue,
		TargetValue: 10000,
	})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", path: "/v1/targets/" + tgt.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "assignee sees their own goal", path: "/v1/targets/" + tgt.ID, token: env.getToken(t, agent),
			wantCode: http.StatusOK, wantData: marchallObj(t, tgt),
		},
		{
			name: "peers cannot see it", path: "/v1/targets/" + tgt.ID, token: env.getToken(t, peer),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "admin sees any goal", path: "/v1/targets/" + tgt.ID, token: env.getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallObj(t, tgt),
		},
		{
			name: "unknown ID", path: "/v1/targets/00000000-0000-0000-0000-000000000000", token: env.getToken(t, admin),
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

func Test_targetApi_targetQueryAndDestroy(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin", "admin@test.cd", []string{user.RoleAdminTenant}, true)
	agent := env.createUser(t, "Agent", "agent", "agent@test.cd", []string{user.RoleSalesAgent}, true)
	adminToken := env.getToken(t, admin)

	start := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	mkTarget := func(metric target.Metric, value float64) target.Target {
		tgt, err := env.tgtSvc.Create(context.Background(), target.NewTarget{
			TenantID:    "clinic-a",
			AssigneeID:  agent.ID,
			PeriodType:  target.PeriodQuarter,
			PeriodStart: start,
			PeriodEnd:   start.AddDate(0, 3, 0),
			TargetType:  metric,
			TargetValue: value,
		})
		if err != nil {
			t.Fatalf("Create(): %v", err)
		}
		return tgt
	}
	revTgt := mkTarget(target.MetricRevenue, 10000)
	actTgt := mkTarget(target.MetricActivities, 200)

	t.Run("query requires admin", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		req, rec := newAuthRequest(http.MethodGet, "/v1/targets", env.getToken(t, agent))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("query all", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusOK, wantData: marchallList(t, revTgt, actTgt)}
		req, rec := newAuthRequest(http.MethodGet, "/v1/targets", adminToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("destroy requires admin", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		req, rec := newAuthRequest(http.MethodDelete, "/v1/targets/"+revTgt.ID, env.getToken(t, agent))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("destroy soft-deletes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/targets/"+revTgt.ID, adminToken)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %v; want %v", rec.Code, http.StatusNoContent)
		}

		// deleted goals drop out of listings
		tt := httpTest{wantCode: http.StatusOK, wantData: marchallList(t, actTgt)}
		req, rec = newAuthRequest(http.MethodGet, "/v1/targets", adminToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("destroy again is a 404", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}
		req, rec := newAuthRequest(http.MethodDelete, "/v1/targets/"+revTgt.ID, adminToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}
