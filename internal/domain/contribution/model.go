package contribution

import (
	"time"

	"github.com/google/uuid"

	"github.com/odonto/charting/internal/platform/events"
)

type ActionType string

const (
	ActionCreated          ActionType = "CREATED"
	ActionUpdatedNotes     ActionType = "UPDATED_NOTES"
	ActionUpdatedSurface   ActionType = "UPDATED_SURFACE"
	ActionUpdatedTooth     ActionType = "UPDATED_TOOTH"
	ActionAddedTreatment   ActionType = "ADDED_TREATMENT"
	ActionUpdatedTreatment ActionType = "UPDATED_TREATMENT"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdatedNotes, ActionUpdatedSurface,
		ActionUpdatedTooth, ActionAddedTreatment, ActionUpdatedTreatment:
		return true
	}
	return false
}

// Metadata keys written by the odontogram service.
const (
	MetaPatientID     = "patientId"
	MetaDentitionType = "dentitionType"
	MetaNotes         = "notes"
	MetaToothNumber   = "toothNumber"
	MetaStatus        = "status"
	MetaSurfaceType   = "surfaceType"
	MetaTreatmentID   = "treatmentId"
	MetaTreatmentType = "treatmentType"
	MetaCompletedDate = "completedDate"
)

// Contribution maps to the odontogram_contribution table. Rows are inserted
// once and never updated.
type Contribution struct {
	ID               uuid.UUID         `db:"id" json:"id"`
	Seq              int64             `db:"seq" json:"seq"`
	OdontogramID     uuid.UUID         `db:"odontogram_id" json:"odontogram_id"`
	DentistID        string            `db:"dentist_id" json:"dentist_id"`
	DentistName      string            `db:"dentist_name" json:"dentist_name"`
	OfficeID         string            `db:"office_id" json:"office_id"`
	OfficeName       string            `db:"office_name" json:"office_name"`
	ActionType       ActionType        `db:"action_type" json:"action_type"`
	Metadata         map[string]string `db:"metadata" json:"metadata"`
	ContributionDate time.Time         `db:"contribution_date" json:"contribution_date"`
}

// Event converts a committed contribution into its change-feed message.
func (c *Contribution) Event(patientID int64) events.ContributionRecorded {
	meta := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	return events.ContributionRecorded{
		ContributionID: c.ID.String(),
		OdontogramID:   c.OdontogramID.String(),
		PatientID:      patientID,
		ActionType:     string(c.ActionType),
		DentistID:      c.DentistID,
		OfficeID:       c.OfficeID,
		Metadata:       meta,
		OccurredAt:     c.ContributionDate,
	}
}

// NoteEntry is a general-notes revision read back from the ledger.
type NoteEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	DentistName string    `json:"dentist_name"`
	OfficeName  string    `json:"office_name"`
	OfficeID    string    `json:"office_id"`
	Notes       string    `json:"notes"`
}
