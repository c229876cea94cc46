package compliance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/activity"
	"github.com/caremint/backend/core/deal"
	"github.com/caremint/backend/core/target"
)

// Aggregator computes an agent's achievement for one metric over a bounded
// time window. It only ever reads collaborator data; results are snapshots
// persisted onto milestones by the Evaluator.
type Aggregator struct {
	deals      deal.Repository
	activities activity.Repository
}

func NewAggregator(deals deal.Repository, activities activity.Repository) *Aggregator {
	return &Aggregator{
		deals:      deals,
		activities: activities,
	}
}

// Achievement returns the agent's progress on metric within [from, to]:
//
//	revenue        -> sum of won deal values, by last-modified time
//	pipeline_value -> sum of non-lost (open + won) deal values, by last-modified time
//	activities     -> count of activity records, by creation time
//	calls          -> count of activity records, by creation time
//
// Zero matching records is an achievement of 0, not an error. Re-running for
// the same window yields the same number unless underlying records changed.
func (agg *Aggregator) Achievement(ctx context.Context, ownerID string, metric target.Metric, from, to time.Time, exec ...core.DBExecutor) (float64, error) {
	switch metric {
	case target.MetricRevenue:
		return agg.deals.SumOwnedValues(ctx, ownerID, deal.ValueFilter{
			Status:      deal.StatusWon,
			UpdatedFrom: from,
			UpdatedTo:   to,
		}, exec...)

	case target.MetricPipelineValue:
		return agg.deals.SumOwnedValues(ctx, ownerID, deal.ValueFilter{
			ExcludeStatus: deal.StatusLost,
			UpdatedFrom:   from,
			UpdatedTo:     to,
		}, exec...)

	case target.MetricActivities, target.MetricCalls:
		count, err := agg.activities.CountOwned(ctx, ownerID, from, to, exec...)
		return float64(count), err
	}

	return 0, errors.Errorf("unknown metric type %q", metric)
}
