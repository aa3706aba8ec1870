package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/live"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/workflow"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

func stagePayload(stage int) workflow.Payload {
	switch stage {
	case 1:
		return workflow.Payload{
			"status":           "Yes",
			"assignedId":       "ISO1",
			"warrantyDate":     "2025-01-01",
			"division":         "Service",
			"engineer":         "Eng_1",
			"nextFollowUpDate": "2025-02-01",
		}
	case 2:
		return workflow.Payload{
			"status":            "Done",
			"warrantyStatus":    "IN-W",
			"enquiryFormFilled": "Yes",
			"offerSent":         "No",
			"nextFollowUpDate":  "2025-02-03",
		}
	case 3:
		return workflow.Payload{"status": "Done", "nextFollowUpDate": "2025-02-05"}
	case 4:
		return workflow.Payload{"consumableRequired": "No", "nextFollowUpDate": "2025-02-07"}
	case 5:
		return workflow.Payload{"paymentCollected": "Yes", "nextFollowUpDate": "2025-02-09"}
	case 6:
		return workflow.Payload{"finalStatus": "Done"}
	}
	return workflow.Payload{}
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc      *ComplaintService
	repo     repository.ComplaintRepository
	recorded *recorder
	metrics  *observability.Metrics
}

func newFixture() fixture {
	repo := repository.NewMemoryRepository()
	dispatcher := events.NewInMemoryDispatcher()
	rec := &recorder{}
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, rec.handle)
	}
	bus := live.NewLocalBus()
	live.NewBroadcaster(bus, nil).RegisterHandlers(dispatcher)

	clock := func() time.Time { return time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC) }
	metrics := observability.NewMetrics()
	svc := NewComplaintService(ComplaintDependencies{
		Repo:       repo,
		Engine:     workflow.NewEngine(clock),
		Feed:       live.NewFeed(repo, bus, nil),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Clock:      clock,
	})
	return fixture{svc: svc, repo: repo, recorded: rec, metrics: metrics}
}

func validIntake() IntakeInput {
	return IntakeInput{
		Name:                "Acme Foods",
		ContactPerson:       "R. Rao",
		RegisteredContactNo: "9876543210",
		Product:             "Chiller",
		NatureOfComplaint:   "Not cooling",
		DateOfInstallation:  "2024-06-01",
	}
}

func TestCreateComplaint(t *testing.T) {
	f := newFixture()
	c, err := f.svc.CreateComplaint(context.Background(), validIntake())
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, 1, c.CurrentStage)
	assert.Equal(t, domain.ComplaintStatusOpen, c.Status)
	require.NotNil(t, c.Intake.DateOfInstallation)
	assert.Equal(t, "2024-06-01", c.Intake.DateOfInstallation.Format("2006-01-02"))
	assert.False(t, c.Intake.CreatedAt.IsZero())
	assert.Equal(t, []events.EventType{events.EventComplaintCreated}, f.recorded.types())
}

func TestCreateComplaintValidation(t *testing.T) {
	f := newFixture()
	input := validIntake()
	input.Name = "  "
	input.Product = ""
	input.RegisteredContactNo = "12345"
	input.DateOfInstallation = "june"

	_, err := f.svc.CreateComplaint(context.Background(), input)
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidationFailed, domainErr.Code)
	assert.Equal(t, []string{"name", "product", "registeredContactNo", "dateOfInstallation"}, domainErr.Details["fields"])

	items, err := f.repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEndToEndWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c, err := f.svc.CreateComplaint(ctx, validIntake())
	require.NoError(t, err)

	res, err := f.svc.ApplyStage(ctx, c.ID, 1, stagePayload(1))
	require.NoError(t, err)
	assert.Equal(t, 2, res.CurrentStage)
	assert.Equal(t, domain.ComplaintStatusOpen, res.Status)

	_, err = f.svc.ApplyStage(ctx, c.ID, 1, stagePayload(1))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStageOrderViolation), "replay: %v", err)

	_, err = f.svc.ApplyStage(ctx, c.ID, 3, stagePayload(3))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStageOrderViolation), "skip: %v", err)

	for stage := 2; stage <= 6; stage++ {
		res, err = f.svc.ApplyStage(ctx, c.ID, stage, stagePayload(stage))
		require.NoError(t, err, "stage %d", stage)
		if stage < 6 {
			assert.Equal(t, domain.ComplaintStatusOpen, res.Status)
		}
	}
	assert.Equal(t, domain.ComplaintStatusClosed, res.Status)
	assert.Equal(t, 7, res.CurrentStage)

	for stage := 0; stage <= 7; stage++ {
		_, err = f.svc.ApplyStage(ctx, c.ID, stage, stagePayload(stage))
		assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyClosed), "stage %d after close: %v", stage, err)
	}

	stored, err := f.svc.GetComplaint(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, stored.StageRecords, 6)

	types := f.recorded.types()
	assert.Equal(t, events.EventComplaintCreated, types[0])
	assert.Equal(t, events.EventComplaintClosed, types[len(types)-1])
}

func TestApplyStageFailureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c, err := f.svc.CreateComplaint(ctx, validIntake())
	require.NoError(t, err)
	before, err := f.svc.GetComplaint(ctx, c.ID)
	require.NoError(t, err)

	bad := stagePayload(1)
	delete(bad, "engineer")
	for i := 0; i < 2; i++ {
		_, err = f.svc.ApplyStage(ctx, c.ID, 1, bad)
		domainErr := apperrors.ToDomainError(err)
		assert.Equal(t, apperrors.CodeValidationFailed, domainErr.Code)
		assert.Equal(t, []string{"engineer"}, domainErr.Details["fields"])
	}

	after, err := f.svc.GetComplaint(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestApplyStageUnknownComplaint(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ApplyStage(context.Background(), "missing", 1, stagePayload(1))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.GetComplaint(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestTransitionMetricLabelsAreBounded(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for stage := 1000; stage < 1500; stage++ {
		_, err := f.svc.ApplyStage(ctx, "missing", stage, nil)
		require.Error(t, err)
	}
	_, err := f.svc.ApplyStage(ctx, "missing", -3, nil)
	require.Error(t, err)
	_, err = f.svc.ApplyStage(ctx, "missing", 2, nil)
	require.Error(t, err)

	families, err := f.metrics.Registry().Gather()
	require.NoError(t, err)
	stages := map[string]bool{}
	for _, family := range families {
		if family.GetName() != "complaints_stage_transitions_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "stage" {
					stages[label.GetValue()] = true
				}
			}
		}
	}
	assert.Equal(t, map[string]bool{"invalid": true, "2": true}, stages)
}

func TestConcurrentSubmissionsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c, err := f.svc.CreateComplaint(ctx, validIntake())
	require.NoError(t, err)

	const callers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := stagePayload(1)
			payload["engineer"] = fmt.Sprintf("Eng_%d", i)
			_, err := f.svc.ApplyStage(ctx, c.ID, 1, payload)
			if err == nil {
				mu.Lock()
				winners = append(winners, payload["engineer"].(string))
				mu.Unlock()
				return
			}
			lost := apperrors.HasCode(err, apperrors.CodeConflict) || apperrors.HasCode(err, apperrors.CodeStageOrderViolation)
			assert.True(t, lost, "unexpected error: %v", err)
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	stored, err := f.svc.GetComplaint(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentStage)
	assert.Equal(t, winners[0], stored.StageRecords[1].Engineer)
}

func TestListComplaintsFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	first, err := f.svc.CreateComplaint(ctx, validIntake())
	require.NoError(t, err)
	other := validIntake()
	other.Name = "Zen Dairy"
	other.Product = "Compressor"
	second, err := f.svc.CreateComplaint(ctx, other)
	require.NoError(t, err)
	_, err = f.svc.ApplyStage(ctx, second.ID, 1, stagePayload(1))
	require.NoError(t, err)
	_, err = f.svc.SetOnHold(ctx, first.ID, true)
	require.NoError(t, err)

	all, err := f.svc.ListComplaints(ctx, ComplaintFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	stage := 2
	byStage, err := f.svc.ListComplaints(ctx, ComplaintFilter{Stage: &stage})
	require.NoError(t, err)
	require.Len(t, byStage, 1)
	assert.Equal(t, second.ID, byStage[0].ID)

	held := true
	onHold, err := f.svc.ListComplaints(ctx, ComplaintFilter{OnHold: &held})
	require.NoError(t, err)
	require.Len(t, onHold, 1)
	assert.Equal(t, first.ID, onHold[0].ID)

	search, err := f.svc.ListComplaints(ctx, ComplaintFilter{Search: "compress"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, second.ID, search[0].ID)

	closed := domain.ComplaintStatusClosed
	none, err := f.svc.ListComplaints(ctx, ComplaintFilter{Status: &closed})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSetOnHoldLeavesWorkflowUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c, err := f.svc.CreateComplaint(ctx, validIntake())
	require.NoError(t, err)

	held, err := f.svc.SetOnHold(ctx, c.ID, true)
	require.NoError(t, err)
	assert.True(t, held.OnHold)
	assert.Equal(t, 1, held.CurrentStage)

	res, err := f.svc.ApplyStage(ctx, c.ID, 1, stagePayload(1))
	require.NoError(t, err)
	assert.True(t, res.Complaint.OnHold)

	_, err = f.svc.SetOnHold(ctx, "missing", true)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestSetOnHoldRejectsClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c, err := f.svc.CreateComplaint(ctx, validIntake())
	require.NoError(t, err)
	for stage := 1; stage <= 6; stage++ {
		_, err = f.svc.ApplyStage(ctx, c.ID, stage, stagePayload(stage))
		require.NoError(t, err)
	}

	_, err = f.svc.SetOnHold(ctx, c.ID, true)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyClosed))
}

func TestWatchStreamsChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture()

	snapshots, err := f.svc.Watch(ctx, ComplaintFilter{})
	require.NoError(t, err)

	select {
	case snap := <-snapshots:
		assert.Empty(t, snap.Complaints)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	_, err = f.svc.CreateComplaint(ctx, validIntake())
	require.NoError(t, err)

	select {
	case snap := <-snapshots:
		assert.Len(t, snap.Complaints, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after create")
	}
}

func TestEventsCarryActor(t *testing.T) {
	f := newFixture()
	ctx := WithActor(context.Background(), events.Actor{SubjectID: "u-1", Email: "ops@example.com"})
	_, err := f.svc.CreateComplaint(ctx, validIntake())
	require.NoError(t, err)

	f.recorded.mu.Lock()
	defer f.recorded.mu.Unlock()
	require.Len(t, f.recorded.events, 1)
	assert.Equal(t, "u-1", f.recorded.events[0].Actor.SubjectID)
}
