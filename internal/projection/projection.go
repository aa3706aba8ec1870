// Package projection derives display values from persisted complaints.
// Every function is pure; callers pass the current time explicitly.
package projection

import (
	"fmt"
	"math"
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/workflow"
)

// Unavailable is rendered when the inputs of a derived value are missing.
const Unavailable = "—"

// Badge values for a stage relative to the complaint's current stage.
const (
	BadgeCompleted = "COMPLETED"
	BadgeActive    = "ACTIVE"
	BadgePending   = "PENDING"
)

const day = 24 * time.Hour

// PendingDays counts whole days left until the record's follow-up date,
// rounded up and floored at zero.
func PendingDays(record domain.StageRecord, now time.Time) string {
	if record.NextFollowUpDate == nil {
		return Unavailable
	}
	days := math.Ceil(float64(record.NextFollowUpDate.Sub(now)) / float64(day))
	if days < 0 {
		days = 0
	}
	return fmt.Sprintf("%d", int64(days))
}

// StageDelay reports how far past its planned time a stage was recorded.
func StageDelay(record domain.StageRecord) string {
	if record.PlannedAt == nil || record.RecordedAt.IsZero() {
		return Unavailable
	}
	late := record.RecordedAt.Sub(*record.PlannedAt)
	if late <= 0 {
		return "0h"
	}
	hours := int64(late / time.Hour)
	if days := hours / 24; days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours%24)
	}
	return fmt.Sprintf("%dh", hours)
}

// StageBadge classifies stage against the complaint's current stage.
func StageBadge(currentStage, stage int) string {
	switch {
	case currentStage > stage:
		return BadgeCompleted
	case currentStage == stage:
		return BadgeActive
	default:
		return BadgePending
	}
}

// CurrentPendingDays applies PendingDays to the record of the current stage.
// The current stage has no record until it completes, so an open complaint
// renders Unavailable.
func CurrentPendingDays(c *domain.Complaint, now time.Time) string {
	rec, ok := c.Record(c.CurrentStage)
	if !ok {
		return Unavailable
	}
	return PendingDays(rec, now)
}

// CurrentStageDelay applies StageDelay to the record of the current stage.
func CurrentStageDelay(c *domain.Complaint) string {
	rec, ok := c.Record(c.CurrentStage)
	if !ok {
		return Unavailable
	}
	return StageDelay(rec)
}

// StageView is the per-stage summary shown alongside a complaint.
type StageView struct {
	Stage       int    `json:"stage"`
	Name        string `json:"name"`
	Badge       string `json:"badge"`
	PendingDays string `json:"pendingDays"`
	Delay       string `json:"delay"`
}

// ComplaintView bundles every derived value for one complaint.
type ComplaintView struct {
	Stages             []StageView `json:"stages"`
	CurrentPendingDays string      `json:"currentPendingDays"`
	CurrentStageDelay  string      `json:"currentStageDelay"`
}

// View renders badges, per-stage timings and the current-stage summary.
func View(c *domain.Complaint, now time.Time) ComplaintView {
	defs := workflow.Stages()
	view := ComplaintView{
		Stages:             make([]StageView, 0, len(defs)),
		CurrentPendingDays: CurrentPendingDays(c, now),
		CurrentStageDelay:  CurrentStageDelay(c),
	}
	for _, def := range defs {
		sv := StageView{
			Stage:       def.Number,
			Name:        def.Name,
			Badge:       StageBadge(c.CurrentStage, def.Number),
			PendingDays: Unavailable,
			Delay:       Unavailable,
		}
		if rec, ok := c.Record(def.Number); ok {
			sv.PendingDays = PendingDays(rec, now)
			sv.Delay = StageDelay(rec)
		}
		view.Stages = append(view.Stages, sv)
	}
	return view
}
