package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/live"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/workflow"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

var contactNoPattern = regexp.MustCompile(`^[6-9]\d{9}$`)

// ComplaintService coordinates the complaint workflow.
type ComplaintService struct {
	complaints repository.ComplaintRepository
	engine     *workflow.Engine
	feed       *live.Feed
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// ComplaintDependencies bundles collaborators for the complaint service.
type ComplaintDependencies struct {
	Repo       repository.ComplaintRepository
	Engine     *workflow.Engine
	Feed       *live.Feed
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Clock      func() time.Time
}

// IntakeInput is the raw complaint submission.
type IntakeInput struct {
	Name                  string
	ContactPerson         string
	RegisteredContactNo   string
	Address               string
	Product               string
	NatureOfComplaint     string
	ComplaintReceivedFrom string
	WarrantyStatus        string
	DateOfInstallation    string
	InvoiceMeta           *domain.FileMeta
	ImageMeta             *domain.FileMeta
}

// TransitionResult reports where a complaint stands after a stage commits.
type TransitionResult struct {
	CurrentStage int                    `json:"currentStage"`
	Status       domain.ComplaintStatus `json:"status"`
	Complaint    *domain.Complaint      `json:"-"`
}

// ComplaintFilter narrows a listing. Zero values match everything.
type ComplaintFilter struct {
	Status *domain.ComplaintStatus
	Stage  *int
	OnHold *bool
	Search string
}

// Match reports whether c satisfies every set criterion.
func (f ComplaintFilter) Match(c domain.Complaint) bool {
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.Stage != nil && c.CurrentStage != *f.Stage {
		return false
	}
	if f.OnHold != nil && c.OnHold != *f.OnHold {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}
	for _, field := range []string{
		c.ID,
		c.Intake.Name,
		c.Intake.ContactPerson,
		c.Intake.RegisteredContactNo,
		c.Intake.Product,
		c.Intake.NatureOfComplaint,
	} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// NewComplaintService constructs the service.
func NewComplaintService(deps ComplaintDependencies) *ComplaintService {
	s := &ComplaintService{
		complaints: deps.Repo,
		engine:     deps.Engine,
		feed:       deps.Feed,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		now:        deps.Clock,
	}
	if s.engine == nil {
		s.engine = workflow.NewEngine(deps.Clock)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateComplaint validates an intake and stores a new open complaint.
func (s *ComplaintService) CreateComplaint(ctx context.Context, input IntakeInput) (*domain.Complaint, error) {
	intake, err := s.buildIntake(input)
	if err != nil {
		return nil, err
	}

	complaint := domain.NewComplaint(intake)
	if err := s.complaints.Create(ctx, complaint); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:        events.EventComplaintCreated,
		ComplaintID: complaint.ID,
		Payload: events.ComplaintCreatedPayload{
			Name:    intake.Name,
			Product: intake.Product,
		},
	})
	s.logger.Info("complaint created", zap.String("complaint_id", complaint.ID))
	return complaint, nil
}

func (s *ComplaintService) buildIntake(input IntakeInput) (domain.Intake, error) {
	intake := domain.Intake{
		Name:                  strings.TrimSpace(input.Name),
		ContactPerson:         strings.TrimSpace(input.ContactPerson),
		RegisteredContactNo:   strings.TrimSpace(input.RegisteredContactNo),
		Address:               strings.TrimSpace(input.Address),
		Product:               strings.TrimSpace(input.Product),
		NatureOfComplaint:     strings.TrimSpace(input.NatureOfComplaint),
		ComplaintReceivedFrom: strings.TrimSpace(input.ComplaintReceivedFrom),
		WarrantyStatus:        strings.TrimSpace(input.WarrantyStatus),
		InvoiceMeta:           input.InvoiceMeta,
		ImageMeta:             input.ImageMeta,
		CreatedAt:             s.now().UTC(),
	}

	var invalid []string
	required := []struct {
		name  string
		value string
	}{
		{"name", intake.Name},
		{"contactPerson", intake.ContactPerson},
		{"product", intake.Product},
		{"natureOfComplaint", intake.NatureOfComplaint},
	}
	for _, field := range required {
		if field.value == "" {
			invalid = append(invalid, field.name)
		}
	}
	if intake.RegisteredContactNo != "" && !contactNoPattern.MatchString(intake.RegisteredContactNo) {
		invalid = append(invalid, "registeredContactNo")
	}
	if raw := strings.TrimSpace(input.DateOfInstallation); raw != "" {
		installed, err := workflow.ParseDate(raw)
		if err != nil {
			invalid = append(invalid, "dateOfInstallation")
		} else {
			intake.DateOfInstallation = &installed
		}
	}
	if len(invalid) > 0 {
		return domain.Intake{}, apperrors.NewMissingFields(invalid)
	}
	return intake, nil
}

// ApplyStage submits stage's payload. It is the only way a complaint's
// workflow position changes; a lost race is reported, never retried.
func (s *ComplaintService) ApplyStage(ctx context.Context, id string, stage int, payload workflow.Payload) (TransitionResult, error) {
	result, err := s.applyStage(ctx, id, stage, payload)
	outcome := "accepted"
	if err != nil {
		outcome = apperrors.ToDomainError(err).Code
		s.logger.Debug("stage rejected",
			zap.String("complaint_id", id),
			zap.Int("stage", stage),
			zap.String("code", outcome))
	}
	s.metrics.RecordTransition(stage, outcome)
	return result, err
}

func (s *ComplaintService) applyStage(ctx context.Context, id string, stage int, payload workflow.Payload) (TransitionResult, error) {
	current, err := s.complaints.Get(ctx, id)
	if err != nil {
		return TransitionResult{}, s.mapStoreError(err, id)
	}
	if err := workflow.Admissible(current, stage); err != nil {
		return TransitionResult{}, err
	}

	updated, err := s.complaints.CASUpdate(ctx, id, stage, func(fresh *domain.Complaint) (*domain.Complaint, error) {
		return s.engine.Transition(fresh, stage, payload)
	})
	if err != nil {
		return TransitionResult{}, s.mapStoreError(err, id)
	}

	rec, _ := updated.Record(stage)
	s.publishEvent(ctx, events.Event{
		Type:        events.EventStageCompleted,
		ComplaintID: id,
		Payload: events.StageCompletedPayload{
			Stage:        stage,
			CurrentStage: updated.CurrentStage,
			Status:       updated.Status,
			RecordedAt:   rec.RecordedAt,
		},
	})
	if updated.IsClosed() {
		s.publishEvent(ctx, events.Event{
			Type:        events.EventComplaintClosed,
			ComplaintID: id,
			Payload: events.StageCompletedPayload{
				Stage:        stage,
				CurrentStage: updated.CurrentStage,
				Status:       updated.Status,
				RecordedAt:   rec.RecordedAt,
			},
		})
	}
	s.logger.Info("stage completed",
		zap.String("complaint_id", id),
		zap.Int("stage", stage),
		zap.Int("current_stage", updated.CurrentStage),
		zap.String("status", string(updated.Status)))

	return TransitionResult{
		CurrentStage: updated.CurrentStage,
		Status:       updated.Status,
		Complaint:    updated,
	}, nil
}

// GetComplaint returns a single complaint.
func (s *ComplaintService) GetComplaint(ctx context.Context, id string) (*domain.Complaint, error) {
	complaint, err := s.complaints.Get(ctx, id)
	if err != nil {
		return nil, s.mapStoreError(err, id)
	}
	return complaint, nil
}

// ListComplaints returns the complaints matching filter, most recently
// updated first.
func (s *ComplaintService) ListComplaints(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error) {
	items, err := s.complaints.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	out := make([]domain.Complaint, 0, len(items))
	for _, c := range items {
		if filter.Match(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Watch streams snapshots of the complaints matching filter.
func (s *ComplaintService) Watch(ctx context.Context, filter ComplaintFilter) (<-chan live.Snapshot, error) {
	if s.feed == nil {
		return nil, apperrors.NewInternalError(errors.New("live feed not configured"))
	}
	snapshots, err := s.feed.Subscribe(ctx, filter.Match)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return snapshots, nil
}

// SetOnHold toggles the hold annotation on an open complaint. The annotation
// does not affect the stage position.
func (s *ComplaintService) SetOnHold(ctx context.Context, id string, onHold bool) (*domain.Complaint, error) {
	current, err := s.complaints.Get(ctx, id)
	if err != nil {
		return nil, s.mapStoreError(err, id)
	}
	if current.IsClosed() {
		return nil, apperrors.NewAlreadyClosed(map[string]any{"complaint_id": id})
	}
	if current.OnHold == onHold {
		return current, nil
	}

	updated, err := s.complaints.SetOnHold(ctx, id, onHold)
	if err != nil {
		return nil, s.mapStoreError(err, id)
	}
	s.publishEvent(ctx, events.Event{
		Type:        events.EventComplaintHoldChanged,
		ComplaintID: id,
		Payload:     events.HoldChangedPayload{OnHold: onHold},
	})
	return updated, nil
}

func (s *ComplaintService) mapStoreError(err error, id string) error {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("complaint", map[string]any{"complaint_id": id})
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict("complaint was modified concurrently", map[string]any{"complaint_id": id})
	default:
		s.logger.Error("complaint store failure", zap.String("complaint_id", id), zap.Error(err))
		return apperrors.NewInternalError(err)
	}
}

func (s *ComplaintService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	event.Actor = ActorFromContext(ctx)
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("complaint_id", event.ComplaintID),
			zap.Error(err))
	}
}

type actorKey struct{}

// WithActor attaches the caller identity recorded on emitted events.
func WithActor(ctx context.Context, actor events.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the identity set by WithActor.
func ActorFromContext(ctx context.Context) events.Actor {
	actor, _ := ctx.Value(actorKey{}).(events.Actor)
	return actor
}
