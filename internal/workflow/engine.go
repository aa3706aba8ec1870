package workflow

import (
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// Engine decides whether a stage submission is accepted and computes the
// resulting complaint. It holds no state besides its clock.
type Engine struct {
	now func() time.Time
}

// NewEngine builds an engine. A nil clock means time.Now.
func NewEngine(clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{now: clock}
}

// Transition applies a stage submission to the complaint. The input is never
// modified; on success a new complaint value is returned.
//
// Checks run in order: closed, stage order, payload validation.
func (e *Engine) Transition(c *domain.Complaint, stage int, payload Payload) (*domain.Complaint, error) {
	if c == nil {
		return nil, apperrors.NewNotFound("complaint", nil)
	}
	if err := Admissible(c, stage); err != nil {
		return nil, err
	}
	def, ok := Lookup(stage)
	if !ok {
		return nil, apperrors.NewStageOrderViolation(c.CurrentStage, stage)
	}

	rec, invalid := def.Build(payload)
	if len(invalid) > 0 {
		return nil, apperrors.NewMissingFields(invalid)
	}
	rec.RecordedAt = e.now().UTC()

	next := c.Clone()
	next.StageRecords[stage] = rec
	next.CurrentStage = def.Next
	if def.Closes {
		next.Status = domain.ComplaintStatusClosed
	}
	return next, nil
}

// Admissible reports whether the complaint can accept a submission for stage.
func Admissible(c *domain.Complaint, stage int) error {
	if c.IsClosed() {
		return apperrors.NewAlreadyClosed(map[string]any{"complaint_id": c.ID})
	}
	if stage != c.CurrentStage {
		return apperrors.NewStageOrderViolation(c.CurrentStage, stage)
	}
	return nil
}
