package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/target"
	"github.com/caremint/backend/core/user"
)

// NowFunc supplies the evaluation clock; mockable.
// Note that achievement windows are always bounded by milestone deadlines,
// never by NowFunc itself: a late-running batch still measures the correct
// historical window.
var NowFunc = time.Now

const defaultRosterPageSize = 100

// RunStats summarizes one evaluation run.
type RunStats struct {
	Scanned   int `json:"scanned"`   // eligible agents visited
	Evaluated int `json:"evaluated"` // expired milestones resolved
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	Blocked   int `json:"blocked"` // agents deactivated this run
}

// Evaluator is the periodic batch routine that resolves expired, unresolved
// milestones and revokes access on the first blocking failure per agent.
// Every write it makes is a deterministic overwrite, so overlapping or
// re-invoked runs are safe.
type Evaluator struct {
	db       core.DB
	usrRepo  user.Repository
	tgtRepo  target.Repository
	agg      *Aggregator
	logger   core.Logger
	pageSize int
}

func NewEvaluator(
	db core.DB,
	usrRepo user.Repository,
	tgtRepo target.Repository,
	agg *Aggregator,
	logger core.Logger,
	conf *core.Config,
) *Evaluator {
	pageSize := defaultRosterPageSize
	if conf != nil && conf.Compliance.RosterPageSize > 0 {
		pageSize = conf.Compliance.RosterPageSize
	}
	return &Evaluator{
		db:       db,
		usrRepo:  usrRepo,
		tgtRepo:  tgtRepo,
		agg:      agg,
		logger:   logger,
		pageSize: pageSize,
	}
}

// Run scans the agent roster once, sequentially. Agents are isolated from
// each other: a data-access failure aborts the current agent's sweep without
// enforcing anything, and the run continues with the next agent.
func (ev *Evaluator) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats

	agentIDs, err := ev.collectRoster(ctx)
	if err != nil {
		return stats, errors.Wrap(err, "collecting agent roster")
	}

	for _, id := range agentIDs {
		if err = ctx.Err(); err != nil {
			return stats, err
		}

		usr, err := ev.usrRepo.GetUser(ctx, user.GetFilter{ID: id})
		if err != nil {
			ev.logger.Error(fmt.Sprintf("compliance: loading agent %s: %v", id, err), err)
			continue
		}
		// roles are matched case-insensitively; any admin tier is exempt
		// even when a sales role is also present
		if !usr.Active() || !usr.IsSales() || usr.IsAdmin() {
			continue
		}
		stats.Scanned++

		reason, err := ev.evaluateAgent(ctx, usr, &stats)
		if err != nil {
			ev.logger.Error(fmt.Sprintf("compliance: evaluating agent %s: %v", usr.ID, err), err)
			continue
		}
		if reason == "" {
			// no blocking failure; previously blocked agents are never
			// auto-unblocked here
			continue
		}

		if _, err = ev.usrRepo.BlockUser(ctx, usr.ID, reason, NowFunc().UTC()); err != nil {
			ev.logger.Error(fmt.Sprintf("compliance: blocking agent %s: %v", usr.ID, err), err)
			continue
		}
		stats.Blocked++
		ev.logger.Warn(fmt.Sprintf("compliance: agent %s blocked: %s", usr.ID, reason))
	}

	return stats, nil
}

// collectRoster pages through the active sales roster up front and keeps only
// the IDs, so later BlockUser writes cannot skew offset-based pagination.
func (ev *Evaluator) collectRoster(ctx context.Context) ([]string, error) {
	var ids []string
	active := true

	for offset := 0; ; offset += ev.pageSize {
		page, err := ev.usrRepo.FilterUsers(ctx, user.QueryFilter{
			Roles:    []string{user.RoleSales},
			IsActive: &active,
			Limit:    ev.pageSize,
			Offset:   offset,
		}, nil)
		if err != nil {
			return nil, err
		}
		for i := range page {
			ids = append(ids, page[i].ID)
		}
		if len(page) < ev.pageSize {
			return ids, nil
		}
	}
}

// evaluateAgent sweeps the agent's targets in a deterministic order
// (targets by creation, milestones by step order) and stops at the first
// blocking failure: only that one infraction is reported per run, and the
// agent's remaining expired milestones stay unresolved until the next run.
func (ev *Evaluator) evaluateAgent(ctx context.Context, usr user.User, stats *RunStats) (string, error) {
	targets, err := ev.tgtRepo.QueryAssigneeTargets(ctx, usr.ID)
	if err != nil {
		return "", errors.Wrap(err, "querying targets")
	}

	now := NowFunc().UTC()
	for i := range targets {
		reason, err := ev.evaluateTarget(ctx, &targets[i], now, stats)
		if err != nil {
			return "", err
		}
		if reason != "" {
			return reason, nil
		}
	}
	return "", nil
}

// evaluateTarget resolves the target's expired milestones inside one
// transaction, so a crash mid-run leaves each target either fully updated or
// untouched. A non-empty reason means a blocking milestone failed.
func (ev *Evaluator) evaluateTarget(ctx context.Context, tgt *target.Target, now time.Time, stats *RunStats) (string, error) {
	var (
		execs []core.DBExecutor
		tx    *sqlx.Tx
		err   error
	)
	if ev.db != nil {
		if tx, err = ev.db.BeginTxx(ctx, nil); err != nil {
			return "", errors.Wrap(err, "beginning transaction")
		}
		defer func() { _ = tx.Rollback() }() // no-op once committed
		execs = append(execs, tx)
	}

	var reason string
	for i := range tgt.Milestones {
		ms := tgt.Milestones[i]
		if !ms.Expired(now) || ms.Status == target.MilestonePassed {
			continue
		}

		// the window is always [period start, milestone deadline] - never "now"
		achieved, err := ev.agg.Achievement(ctx, tgt.AssigneeID, ms.Metric, tgt.PeriodStart, ms.Deadline, execs...)
		if err != nil {
			return "", errors.Wrapf(err, "aggregating %s", ms.Metric)
		}

		ms.AchievedValue = achieved
		if achieved < ms.TargetValue {
			ms.Status = target.MilestoneFailed
		} else {
			ms.Status = target.MilestonePassed
		}
		ms.UpdatedAt = now

		if _, err = ev.tgtRepo.UpdateMilestoneOutcome(ctx, ms, execs...); err != nil {
			return "", errors.Wrap(err, "persisting milestone outcome")
		}
		if ms.Metric == tgt.TargetType {
			if err = ev.tgtRepo.UpdateTargetAchieved(ctx, tgt.ID, achieved, execs...); err != nil {
				return "", errors.Wrap(err, "persisting target achieved value")
			}
		}

		stats.Evaluated++
		if ms.Status == target.MilestonePassed {
			stats.Passed++
			continue
		}
		stats.Failed++
		if ms.IsBlocking {
			reason = describeMiss(tgt, &ms)
			break // first blocking failure ends the whole sweep
		}
	}

	if tx != nil {
		if err = tx.Commit(); err != nil {
			return "", errors.Wrap(err, "committing transaction")
		}
	}
	return reason, nil
}

func describeMiss(tgt *target.Target, ms *target.Milestone) string {
	return fmt.Sprintf("missed blocking milestone %q (step %d) of %s target %s: achieved %.2f of %.2f %s by %s",
		ms.Name, ms.StepOrder, tgt.PeriodType, tgt.ID,
		ms.AchievedValue, ms.TargetValue, ms.Metric, ms.Deadline.Format(time.RFC3339))
}
