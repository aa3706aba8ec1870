package workflow

import (
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// FieldKind identifies how a payload value is coerced.
type FieldKind string

const (
	FieldText FieldKind = "text"
	FieldBool FieldKind = "bool"
	FieldDate FieldKind = "date"
	FieldFile FieldKind = "file"
)

// Field declares one input accepted by a stage.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
	assign   func(rec *domain.StageRecord, v value)
}

// StageDefinition is the static description of one workflow stage.
type StageDefinition struct {
	Number int
	Name   string
	Fields []Field
	// Next is the stage the complaint awaits once this one commits.
	Next int
	// Closes marks the terminal stage.
	Closes bool
}

// RequiredFields lists the names of the mandatory inputs.
func (d StageDefinition) RequiredFields() []string {
	names := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// OptionalFields lists the names of the optional inputs.
func (d StageDefinition) OptionalFields() []string {
	names := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		if !f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Field names shared by several stages.
const (
	FieldStatus           = "status"
	FieldNextFollowUpDate = "nextFollowUpDate"
	FieldRemarks          = "remarks"
	FieldPlannedAt        = "plannedAt"
)

var stageTable = map[int]StageDefinition{
	1: {
		Number: 1,
		Name:   "Assign Engineer",
		Next:   2,
		Fields: withCommon(
			textField(FieldStatus, true, func(r *domain.StageRecord, s string) { r.Status = s }),
			textField("assignedId", true, func(r *domain.StageRecord, s string) { r.AssignedID = s }),
			dateField("warrantyDate", true, func(r *domain.StageRecord, t *time.Time) { r.WarrantyDate = t }),
			textField("division", true, func(r *domain.StageRecord, s string) { r.Division = s }),
			textField("engineer", true, func(r *domain.StageRecord, s string) { r.Engineer = s }),
			followUpField(true),
		),
	},
	2: {
		Number: 2,
		Name:   "Warranty Check",
		Next:   3,
		Fields: withCommon(
			textField(FieldStatus, true, func(r *domain.StageRecord, s string) { r.Status = s }),
			textField("warrantyStatus", true, func(r *domain.StageRecord, s string) { r.WarrantyStatus = s }),
			boolField("enquiryFormFilled", true, func(r *domain.StageRecord, b *bool) { r.EnquiryFormFilled = b }),
			boolField("offerSent", true, func(r *domain.StageRecord, b *bool) { r.OfferSent = b }),
			followUpField(true),
		),
	},
	3: {
		Number: 3,
		Name:   "Site Visit",
		Next:   4,
		Fields: withCommon(
			textField(FieldStatus, true, func(r *domain.StageRecord, s string) { r.Status = s }),
			followUpField(true),
		),
	},
	4: {
		Number: 4,
		Name:   "Consumable Check",
		Next:   5,
		Fields: withCommon(
			boolField("consumableRequired", true, func(r *domain.StageRecord, b *bool) { r.ConsumableRequired = b }),
			followUpField(true),
		),
	},
	5: {
		Number: 5,
		Name:   "Payment Collection",
		Next:   6,
		Fields: withCommon(
			boolField("paymentCollected", true, func(r *domain.StageRecord, b *bool) { r.PaymentCollected = b }),
			followUpField(true),
			fileField("supportDocMeta", func(r *domain.StageRecord, f *domain.FileMeta) { r.SupportDocMeta = f }),
		),
	},
	6: {
		Number: 6,
		Name:   "Completion",
		Next:   domain.FinalStage + 1,
		Closes: true,
		Fields: withCommon(
			textField("finalStatus", true, func(r *domain.StageRecord, s string) { r.FinalStatus = s }),
			fileField("siteUploadMeta", func(r *domain.StageRecord, f *domain.FileMeta) { r.SiteUploadMeta = f }),
			followUpField(false),
		),
	},
}

// Lookup returns the definition for a stage number.
func Lookup(stage int) (StageDefinition, bool) {
	def, ok := stageTable[stage]
	return def, ok
}

// Stages returns all definitions in workflow order.
func Stages() []StageDefinition {
	out := make([]StageDefinition, 0, len(stageTable))
	for n := domain.FirstStage; n <= domain.FinalStage; n++ {
		out = append(out, stageTable[n])
	}
	return out
}

func withCommon(fields ...Field) []Field {
	return append(fields,
		textField(FieldRemarks, false, func(r *domain.StageRecord, s string) { r.Remarks = s }),
		dateField(FieldPlannedAt, false, func(r *domain.StageRecord, t *time.Time) { r.PlannedAt = t }),
	)
}

func followUpField(required bool) Field {
	return dateField(FieldNextFollowUpDate, required, func(r *domain.StageRecord, t *time.Time) { r.NextFollowUpDate = t })
}

func textField(name string, required bool, set func(*domain.StageRecord, string)) Field {
	return Field{Name: name, Kind: FieldText, Required: required, assign: func(r *domain.StageRecord, v value) { set(r, v.text) }}
}

func boolField(name string, required bool, set func(*domain.StageRecord, *bool)) Field {
	return Field{Name: name, Kind: FieldBool, Required: required, assign: func(r *domain.StageRecord, v value) {
		b := v.flag
		set(r, &b)
	}}
}

func dateField(name string, required bool, set func(*domain.StageRecord, *time.Time)) Field {
	return Field{Name: name, Kind: FieldDate, Required: required, assign: func(r *domain.StageRecord, v value) {
		t := v.at
		set(r, &t)
	}}
}

func fileField(name string, set func(*domain.StageRecord, *domain.FileMeta)) Field {
	return Field{Name: name, Kind: FieldFile, assign: func(r *domain.StageRecord, v value) {
		f := v.file
		set(r, &f)
	}}
}
