package domain

import "time"

// ComplaintStatus enumerates lifecycle states for complaints.
type ComplaintStatus string

const (
	ComplaintStatusOpen   ComplaintStatus = "OPEN"
	ComplaintStatusClosed ComplaintStatus = "CLOSED"
)

const (
	// FirstStage is the stage every complaint starts at.
	FirstStage = 1
	// FinalStage closes the complaint when it commits.
	FinalStage = 6
)

// FileMeta describes an attachment without its bytes.
type FileMeta struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
}

// Intake is the original complaint submission.
type Intake struct {
	Name                  string     `json:"name"`
	ContactPerson         string     `json:"contactPerson"`
	RegisteredContactNo   string     `json:"registeredContactNo,omitempty"`
	Address               string     `json:"address,omitempty"`
	Product               string     `json:"product"`
	NatureOfComplaint     string     `json:"natureOfComplaint"`
	ComplaintReceivedFrom string     `json:"complaintReceivedFrom,omitempty"`
	WarrantyStatus        string     `json:"warrantyStatus,omitempty"`
	DateOfInstallation    *time.Time `json:"dateOfInstallation,omitempty"`
	InvoiceMeta           *FileMeta  `json:"invoiceMeta,omitempty"`
	ImageMeta             *FileMeta  `json:"imageMeta,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
}

// StageRecord is the immutable outcome committed when a stage completes.
// Only the fields belonging to the record's stage are populated.
type StageRecord struct {
	Stage              int        `json:"stage"`
	Status             string     `json:"status,omitempty"`
	AssignedID         string     `json:"assignedId,omitempty"`
	WarrantyDate       *time.Time `json:"warrantyDate,omitempty"`
	Division           string     `json:"division,omitempty"`
	Engineer           string     `json:"engineer,omitempty"`
	WarrantyStatus     string     `json:"warrantyStatus,omitempty"`
	EnquiryFormFilled  *bool      `json:"enquiryFormFilled,omitempty"`
	OfferSent          *bool      `json:"offerSent,omitempty"`
	ConsumableRequired *bool      `json:"consumableRequired,omitempty"`
	PaymentCollected   *bool      `json:"paymentCollected,omitempty"`
	SupportDocMeta     *FileMeta  `json:"supportDocMeta,omitempty"`
	FinalStatus        string     `json:"finalStatus,omitempty"`
	SiteUploadMeta     *FileMeta  `json:"siteUploadMeta,omitempty"`
	NextFollowUpDate   *time.Time `json:"nextFollowUpDate,omitempty"`
	Remarks            string     `json:"remarks,omitempty"`
	PlannedAt          *time.Time `json:"plannedAt,omitempty"`
	RecordedAt         time.Time  `json:"recordedAt"`
}

// Complaint is the aggregate root tracked through the resolution workflow.
type Complaint struct {
	ID           string              `json:"id"`
	Intake       Intake              `json:"intake"`
	CurrentStage int                 `json:"currentStage"`
	StageRecords map[int]StageRecord `json:"stageRecords"`
	Status       ComplaintStatus     `json:"status"`
	OnHold       bool                `json:"onHold"`
	Version      int64               `json:"version"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// NewComplaint returns an open complaint waiting on the first stage.
func NewComplaint(intake Intake) *Complaint {
	return &Complaint{
		Intake:       intake,
		CurrentStage: FirstStage,
		StageRecords: map[int]StageRecord{},
		Status:       ComplaintStatusOpen,
	}
}

// IsClosed reports whether the workflow has completed.
func (c *Complaint) IsClosed() bool {
	return c.Status == ComplaintStatusClosed
}

// Record returns the committed record for a stage.
func (c *Complaint) Record(stage int) (StageRecord, bool) {
	rec, ok := c.StageRecords[stage]
	return rec, ok
}

// Clone returns a deep copy so callers can mutate freely.
func (c *Complaint) Clone() *Complaint {
	if c == nil {
		return nil
	}
	out := *c
	out.Intake = c.Intake.clone()
	out.StageRecords = make(map[int]StageRecord, len(c.StageRecords))
	for stage, rec := range c.StageRecords {
		out.StageRecords[stage] = rec.clone()
	}
	return &out
}

func (i Intake) clone() Intake {
	i.DateOfInstallation = cloneTime(i.DateOfInstallation)
	i.InvoiceMeta = cloneFile(i.InvoiceMeta)
	i.ImageMeta = cloneFile(i.ImageMeta)
	return i
}

func (r StageRecord) clone() StageRecord {
	r.WarrantyDate = cloneTime(r.WarrantyDate)
	r.NextFollowUpDate = cloneTime(r.NextFollowUpDate)
	r.PlannedAt = cloneTime(r.PlannedAt)
	r.EnquiryFormFilled = cloneBool(r.EnquiryFormFilled)
	r.OfferSent = cloneBool(r.OfferSent)
	r.ConsumableRequired = cloneBool(r.ConsumableRequired)
	r.PaymentCollected = cloneBool(r.PaymentCollected)
	r.SupportDocMeta = cloneFile(r.SupportDocMeta)
	r.SiteUploadMeta = cloneFile(r.SiteUploadMeta)
	return r
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func cloneFile(f *FileMeta) *FileMeta {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
