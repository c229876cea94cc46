package target

import "time"

const (
	// ramp milestone: fixed activity baseline within the first week,
	// independent of the goal amount.
	rampActivityTarget = 50
	rampWindow         = 7 * 24 * time.Hour

	// coverage milestone: pipeline worth 3x the goal by mid-period.
	coverageMultiplier = 3
)

// Milestone names
const (
	NameRamp     = "Activity ramp-up"
	NameCoverage = "Pipeline coverage"
	NameRevenue  = "Revenue goal"
)

// BuildMilestones derives the fixed milestone ladder for a goal. It is a pure
// function of its inputs and is invoked exactly once per target, at creation:
//
//  1. ramp:     50 activities by period start + 7 days
//  2. coverage: pipeline value of 3x the goal by the period midpoint
//  3. revenue:  the goal amount won by period end
//
// All three are blocking.
func BuildMilestones(targetValue float64, periodStart, periodEnd time.Time) []Milestone {
	midpoint := periodStart.Add(periodEnd.Sub(periodStart) / 2)

	return []Milestone{
		{
			StepOrder:   1,
			Name:        NameRamp,
			Metric:      MetricActivities,
			TargetValue: rampActivityTarget,
			Deadline:    periodStart.Add(rampWindow).UTC(),
			Status:      MilestonePending,
			IsBlocking:  true,
		},
		{
			StepOrder:   2,
			Name:        NameCoverage,
			Metric:      MetricPipelineValue,
			TargetValue: targetValue * coverageMultiplier,
			Deadline:    midpoint.UTC(),
			Status:      MilestonePending,
			IsBlocking:  true,
		},
		{
			StepOrder:   3,
			Name:        NameRevenue,
			Metric:      MetricRevenue,
			TargetValue: targetValue,
			Deadline:    periodEnd.UTC(),
			Status:      MilestonePending,
			IsBlocking:  true,
		},
	}
}
