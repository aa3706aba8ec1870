package dto

import (
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/projection"
)

// CreateComplaintRequest payload. Dates are ISO-8601 strings.
type CreateComplaintRequest struct {
	Name                  string           `json:"name"`
	ContactPerson         string           `json:"contactPerson"`
	RegisteredContactNo   string           `json:"registeredContactNo"`
	Address               string           `json:"address"`
	Product               string           `json:"product"`
	NatureOfComplaint     string           `json:"natureOfComplaint"`
	ComplaintReceivedFrom string           `json:"complaintReceivedFrom"`
	WarrantyStatus        string           `json:"warrantyStatus"`
	DateOfInstallation    string           `json:"dateOfInstallation"`
	InvoiceMeta           *domain.FileMeta `json:"invoiceMeta"`
	ImageMeta             *domain.FileMeta `json:"imageMeta"`
}

// HoldRequest payload.
type HoldRequest struct {
	OnHold *bool `json:"onHold"`
}

// ComplaintSummary response.
type ComplaintSummary struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	ContactPerson     string                 `json:"contactPerson"`
	Product           string                 `json:"product"`
	NatureOfComplaint string                 `json:"natureOfComplaint"`
	CurrentStage      int                    `json:"currentStage"`
	Status            domain.ComplaintStatus `json:"status"`
	OnHold            bool                   `json:"onHold"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
}

// ComplaintDetailResponse provides the full document with derived values.
type ComplaintDetailResponse struct {
	ID           string                     `json:"id"`
	Intake       domain.Intake              `json:"intake"`
	CurrentStage int                        `json:"currentStage"`
	StageRecords map[int]domain.StageRecord `json:"stageRecords"`
	Status       domain.ComplaintStatus     `json:"status"`
	OnHold       bool                       `json:"onHold"`
	Version      int64                      `json:"version"`
	UpdatedAt    time.Time                  `json:"updatedAt"`
	View         projection.ComplaintView   `json:"view"`
}

// StageResultResponse is returned after a stage commits.
type StageResultResponse struct {
	ID           string                 `json:"id"`
	CurrentStage int                    `json:"currentStage"`
	Status       domain.ComplaintStatus `json:"status"`
}

// StageDefinitionResponse describes one workflow stage.
type StageDefinitionResponse struct {
	Stage          int      `json:"stage"`
	Name           string   `json:"name"`
	RequiredFields []string `json:"requiredFields"`
	OptionalFields []string `json:"optionalFields"`
	ClosesWorkflow bool     `json:"closesWorkflow"`
}

// SnapshotEvent is one server-sent live update.
type SnapshotEvent struct {
	Complaints []ComplaintSummary `json:"complaints"`
	Taken      time.Time          `json:"taken"`
}

// NewComplaintSummary maps a complaint to its list row.
func NewComplaintSummary(c *domain.Complaint) ComplaintSummary {
	return ComplaintSummary{
		ID:                c.ID,
		Name:              c.Intake.Name,
		ContactPerson:     c.Intake.ContactPerson,
		Product:           c.Intake.Product,
		NatureOfComplaint: c.Intake.NatureOfComplaint,
		CurrentStage:      c.CurrentStage,
		Status:            c.Status,
		OnHold:            c.OnHold,
		CreatedAt:         c.Intake.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// NewComplaintDetail maps a complaint and its projection.
func NewComplaintDetail(c *domain.Complaint, now time.Time) ComplaintDetailResponse {
	return ComplaintDetailResponse{
		ID:           c.ID,
		Intake:       c.Intake,
		CurrentStage: c.CurrentStage,
		StageRecords: c.StageRecords,
		Status:       c.Status,
		OnHold:       c.OnHold,
		Version:      c.Version,
		UpdatedAt:    c.UpdatedAt,
		View:         projection.View(c, now),
	}
}

// NewComplaintSummaries maps a list.
func NewComplaintSummaries(items []domain.Complaint) []ComplaintSummary {
	out := make([]ComplaintSummary, 0, len(items))
	for i := range items {
		out = append(out, NewComplaintSummary(&items[i]))
	}
	return out
}
