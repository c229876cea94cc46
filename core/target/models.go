package target

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/caremint/backend/core"
)

type PeriodType string

const (
	PeriodMonth   PeriodType = "month"
	PeriodQuarter PeriodType = "quarter"
	PeriodYear    PeriodType = "year"
)

// Metric identifies the business measure a goal is tracked against; each
// value has exactly one aggregation strategy.
type Metric string

const (
	MetricRevenue       Metric = "revenue"
	MetricPipelineValue Metric = "pipeline_value"
	MetricActivities    Metric = "activities"
	MetricCalls         Metric = "calls"
)

var allMetrics = []Metric{MetricRevenue, MetricPipelineValue, MetricActivities, MetricCalls}

func (m Metric) Valid() bool {
	for _, known := range allMetrics {
		if m == known {
			return true
		}
	}
	return false
}

type MilestoneStatus string

const (
	MilestonePending MilestoneStatus = "pending"
	MilestonePassed  MilestoneStatus = "passed"
	MilestoneFailed  MilestoneStatus = "failed"
)

// Milestone is a dated sub-goal of a Target. Status and AchievedValue are
// verdict snapshots: they are overwritten by each evaluation run and may flip
// in either direction if the underlying records change.
type Milestone struct {
	ID            string          `json:"id"`
	TargetID      string          `json:"target_id"`
	StepOrder     int             `json:"step_order"` // 1-based, unique within target
	Name          string          `json:"name"`
	Metric        Metric          `json:"metric_type"`
	TargetValue   float64         `json:"target_value"`
	Deadline      time.Time       `json:"deadline"` // UTC
	AchievedValue float64         `json:"achieved_value"`
	Status        MilestoneStatus `json:"status"`
	IsBlocking    bool            `json:"is_blocking"`
	CreatedAt     time.Time       `json:"created_at"` // UTC
	UpdatedAt     time.Time       `json:"updated_at"` // UTC
}

func (m *Milestone) Expired(now time.Time) bool {
	return m.Deadline.Before(now)
}

// Target is a numeric goal assigned to one agent for one period. Its
// milestones are generated exactly once at creation; later changes to the
// target never regenerate them, so already-evaluated progress is kept.
type Target struct {
	ID              string      `json:"id"`
	TenantID        string      `json:"tenant_id"`
	AssigneeID      string      `json:"assignee_id"`
	PeriodType      PeriodType  `json:"period_type"`
	PeriodStart     time.Time   `json:"period_start"` // UTC
	PeriodEnd       time.Time   `json:"period_end"`   // UTC
	TargetType      Metric      `json:"target_type"`
	TargetValue     float64     `json:"target_value"`
	IncentiveAmount float64     `json:"incentive_amount"`
	AchievedValue   float64     `json:"achieved_value"` // rolling, informational
	Milestones      []Milestone `json:"milestones,omitempty"`
	CreatedAt       time.Time   `json:"created_at"` // UTC
	UpdatedAt       time.Time   `json:"updated_at"` // UTC
	DeletedAt       time.Time   `json:"-"`          // soft-delete marker; zero = live
}

func (t *Target) Deleted() bool {
	return !t.DeletedAt.IsZero()
}

// NewTarget contains information needed to assign a new goal.
type NewTarget struct {
	TenantID        string     `json:"tenant_id" validate:"required"`
	AssigneeID      string     `json:"assignee_id" validate:"required"`
	PeriodType      PeriodType `json:"period_type" validate:"required,periodtype"`
	PeriodStart     time.Time  `json:"period_start" validate:"required"`
	PeriodEnd       time.Time  `json:"period_end" validate:"required"`
	TargetType      Metric     `json:"target_type" validate:"required,metrictype"`
	TargetValue     float64    `json:"target_value" validate:"required,gt=0"`
	IncentiveAmount float64    `json:"incentive_amount" validate:"omitempty,gte=0"`
}

func (nt *NewTarget) Validate(validate *validator.Validate) error {
	nt.TenantID = core.CleanString(nt.TenantID, true /* lower */)
	nt.AssigneeID = core.CleanString(nt.AssigneeID, true /* lower */)
	return validate.Struct(nt)
}

type QueryFilter struct {
	TenantID       string    `query:"tenant_id"`
	AssigneeID     string    `query:"assignee_id"`
	PeriodType     string    `query:"period_type"`
	PeriodFrom     time.Time `query:"period_from"`
	PeriodTo       time.Time `query:"period_to"`
	IncludeDeleted bool      `query:"include_deleted"`
}

func (qf *QueryFilter) Clean() {
	qf.TenantID = core.CleanString(qf.TenantID, true /* lower */)
	qf.AssigneeID = core.CleanString(qf.AssigneeID, true /* lower */)
	qf.PeriodType = core.CleanString(qf.PeriodType, true /* lower */)
}

var (
	periodTypeTag  = "periodtype"
	periodTypeText = "invalid period type"

	metricTypeTag  = "metrictype"
	metricTypeText = "invalid metric type"

	periodEndTag  = "periodend"
	periodEndText = "period end must be after period start"
)

// InitValidators registers target-specific validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(periodTypeTag, periodTypeValidation)
	core.RegisterCustomTranslation(validate, translator, periodTypeTag, periodTypeText)

	_ = validate.RegisterValidation(metricTypeTag, metricTypeValidation)
	core.RegisterCustomTranslation(validate, translator, metricTypeTag, metricTypeText)

	validate.RegisterStructValidation(newTargetStructValidation, NewTarget{})
	core.RegisterCustomTranslation(validate, translator, periodEndTag, periodEndText)
}

func periodTypeValidation(fl validator.FieldLevel) bool {
	switch PeriodType(fl.Field().String()) {
	case PeriodMonth, PeriodQuarter, PeriodYear:
		return true
	}
	return false
}

func metricTypeValidation(fl validator.FieldLevel) bool {
	return Metric(fl.Field().String()).Valid()
}

// newTargetStructValidation checks that the period is a non-empty forward window.
func newTargetStructValidation(sl validator.StructLevel) {
	nt, ok := sl.Current().Interface().(NewTarget)
	if !ok {
		return
	}
	if !nt.PeriodStart.IsZero() && !nt.PeriodEnd.IsZero() && !nt.PeriodEnd.After(nt.PeriodStart) {
		sl.ReportError(nt.PeriodEnd, "period_end", "PeriodEnd", periodEndTag, "")
	}
}
