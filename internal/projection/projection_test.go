package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-service/internal/domain"
)

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestPendingDays(t *testing.T) {
	now := *at("2025-01-10T12:00:00Z")

	cases := []struct {
		name     string
		followUp *time.Time
		want     string
	}{
		{"missing", nil, Unavailable},
		{"partial day rounds up", at("2025-01-11T00:00:00Z"), "1"},
		{"exact days", at("2025-01-13T12:00:00Z"), "3"},
		{"same instant", at("2025-01-10T12:00:00Z"), "0"},
		{"past floors at zero", at("2025-01-01T00:00:00Z"), "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := domain.StageRecord{NextFollowUpDate: tc.followUp}
			assert.Equal(t, tc.want, PendingDays(rec, now))
		})
	}
}

func TestStageDelay(t *testing.T) {
	cases := []struct {
		name     string
		planned  *time.Time
		recorded string
		want     string
	}{
		{"no planned time", nil, "2025-01-10T00:00:00Z", Unavailable},
		{"on time", at("2025-01-10T00:00:00Z"), "2025-01-09T08:00:00Z", "0h"},
		{"exactly planned", at("2025-01-10T00:00:00Z"), "2025-01-10T00:00:00Z", "0h"},
		{"hours late", at("2025-01-10T00:00:00Z"), "2025-01-10T05:30:00Z", "5h"},
		{"days late", at("2025-01-10T00:00:00Z"), "2025-01-12T03:00:00Z", "2d 3h"},
		{"whole days late", at("2025-01-10T00:00:00Z"), "2025-01-11T00:00:00Z", "1d 0h"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := domain.StageRecord{PlannedAt: tc.planned, RecordedAt: *at(tc.recorded)}
			assert.Equal(t, tc.want, StageDelay(rec))
		})
	}

	assert.Equal(t, Unavailable, StageDelay(domain.StageRecord{PlannedAt: at("2025-01-10T00:00:00Z")}))
}

func TestStageBadge(t *testing.T) {
	assert.Equal(t, BadgeCompleted, StageBadge(3, 1))
	assert.Equal(t, BadgeActive, StageBadge(3, 3))
	assert.Equal(t, BadgePending, StageBadge(3, 5))
	assert.Equal(t, BadgeCompleted, StageBadge(7, 6))
}

func TestViewOfPartiallyResolvedComplaint(t *testing.T) {
	now := *at("2025-01-10T00:00:00Z")
	c := domain.NewComplaint(domain.Intake{Name: "Acme"})
	c.StageRecords[1] = domain.StageRecord{
		Stage:            1,
		NextFollowUpDate: at("2025-01-12T00:00:00Z"),
		PlannedAt:        at("2025-01-09T00:00:00Z"),
		RecordedAt:       *at("2025-01-09T04:00:00Z"),
	}
	c.CurrentStage = 2

	view := View(c, now)
	require.Len(t, view.Stages, 6)

	assert.Equal(t, StageView{Stage: 1, Name: view.Stages[0].Name, Badge: BadgeCompleted, PendingDays: "2", Delay: "4h"}, view.Stages[0])
	assert.NotEmpty(t, view.Stages[0].Name)
	assert.Equal(t, BadgeActive, view.Stages[1].Badge)
	assert.Equal(t, Unavailable, view.Stages[1].PendingDays)
	assert.Equal(t, BadgePending, view.Stages[5].Badge)

	assert.Equal(t, Unavailable, view.CurrentPendingDays)
	assert.Equal(t, Unavailable, view.CurrentStageDelay)
}
