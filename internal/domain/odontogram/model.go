package odontogram

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odonto/charting/internal/domain/dentition"
	"github.com/odonto/charting/internal/platform/auth"
)

type DentitionType string

const (
	DentitionAdult DentitionType = "ADULT"
	DentitionChild DentitionType = "CHILD"
)

func (d DentitionType) Valid() bool {
	return d == DentitionAdult || d == DentitionChild
}

type ToothStatus string

const (
	ToothHealthy   ToothStatus = "HEALTHY"
	ToothCarious   ToothStatus = "CARIOUS"
	ToothFilled    ToothStatus = "FILLED"
	ToothMissing   ToothStatus = "MISSING"
	ToothCrown     ToothStatus = "CROWN"
	ToothBridge    ToothStatus = "BRIDGE"
	ToothImplant   ToothStatus = "IMPLANT"
	ToothRootCanal ToothStatus = "ROOT_CANAL"
	ToothFractured ToothStatus = "FRACTURED"
	ToothMobile    ToothStatus = "MOBILE"
	ToothImpacted  ToothStatus = "IMPACTED"
)

func (s ToothStatus) Valid() bool {
	switch s {
	case ToothHealthy, ToothCarious, ToothFilled, ToothMissing, ToothCrown, ToothBridge,
		ToothImplant, ToothRootCanal, ToothFractured, ToothMobile, ToothImpacted:
		return true
	}
	return false
}

type SurfaceStatus string

const (
	SurfaceHealthy   SurfaceStatus = "HEALTHY"
	SurfaceCarious   SurfaceStatus = "CARIOUS"
	SurfaceFilled    SurfaceStatus = "FILLED"
	SurfaceFractured SurfaceStatus = "FRACTURED"
	SurfaceWear      SurfaceStatus = "WEAR"
	SurfaceErosion   SurfaceStatus = "EROSION"
	SurfaceStained   SurfaceStatus = "STAINED"
	SurfaceCalculus  SurfaceStatus = "CALCULUS"
)

func (s SurfaceStatus) Valid() bool {
	switch s {
	case SurfaceHealthy, SurfaceCarious, SurfaceFilled, SurfaceFractured,
		SurfaceWear, SurfaceErosion, SurfaceStained, SurfaceCalculus:
		return true
	}
	return false
}

type TreatmentStatus string

const (
	TreatmentPlanned    TreatmentStatus = "PLANNED"
	TreatmentInProgress TreatmentStatus = "IN_PROGRESS"
	TreatmentCompleted  TreatmentStatus = "COMPLETED"
	TreatmentCancelled  TreatmentStatus = "CANCELLED"
)

func (s TreatmentStatus) Valid() bool {
	switch s {
	case TreatmentPlanned, TreatmentInProgress, TreatmentCompleted, TreatmentCancelled:
		return true
	}
	return false
}

// Terminal statuses cannot be left. A plan that must be redone is added again.
func (s TreatmentStatus) Terminal() bool {
	return s == TreatmentCompleted || s == TreatmentCancelled
}

// Provenance records who created a record.
type Provenance struct {
	CreatedByDentistID   string `db:"created_by_dentist_id" json:"created_by_dentist_id"`
	CreatedByDentistName string `db:"created_by_dentist_name" json:"created_by_dentist_name"`
	CreatedByOfficeID    string `db:"created_by_office_id" json:"created_by_office_id"`
	CreatedByOfficeName  string `db:"created_by_office_name" json:"created_by_office_name"`
}

func provenanceOf(a auth.Actor) Provenance {
	return Provenance{
		CreatedByDentistID:   a.DentistID,
		CreatedByDentistName: a.DentistName,
		CreatedByOfficeID:    a.OfficeID,
		CreatedByOfficeName:  a.OfficeName,
	}
}

// Odontogram maps to the odontogram table. Teeth are loaded in insertion
// order.
type Odontogram struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	PatientID     int64         `db:"patient_id" json:"patient_id"`
	DentitionType DentitionType `db:"dentition_type" json:"dentition_type"`
	GeneralNotes  *string       `db:"general_notes" json:"general_notes,omitempty"`
	Version       int           `db:"version" json:"version"`
	Provenance
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
	ToothRecords []ToothRecord `json:"tooth_records"`
}

func (o *Odontogram) GetVersion() int { return o.Version }

// Tooth returns the record for toothNumber, if the chart has one.
func (o *Odontogram) Tooth(toothNumber string) (ToothRecord, bool) {
	for _, t := range o.ToothRecords {
		if t.ToothNumber == toothNumber {
			return t, true
		}
	}
	return ToothRecord{}, false
}

// ToothRecord maps to the tooth_record table.
type ToothRecord struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	OdontogramID uuid.UUID   `db:"odontogram_id" json:"odontogram_id"`
	ToothNumber  string      `db:"tooth_number" json:"tooth_number"`
	Status       ToothStatus `db:"status" json:"status"`
	Notes        *string     `db:"notes" json:"notes,omitempty"`
	Version      int         `db:"version" json:"version"`
	Provenance
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
	Surfaces   []ToothSurface  `json:"surfaces"`
	Treatments []TreatmentPlan `json:"treatment_plans"`
}

func (t *ToothRecord) GetVersion() int { return t.Version }

func (t *ToothRecord) Surface(st dentition.SurfaceType) (ToothSurface, bool) {
	for _, s := range t.Surfaces {
		if s.SurfaceType == st {
			return s, true
		}
	}
	return ToothSurface{}, false
}

// ToothSurface maps to the tooth_surface table.
type ToothSurface struct {
	ID            uuid.UUID             `db:"id" json:"id"`
	ToothRecordID uuid.UUID             `db:"tooth_record_id" json:"tooth_record_id"`
	SurfaceType   dentition.SurfaceType `db:"surface_type" json:"surface_type"`
	Status        SurfaceStatus         `db:"status" json:"status"`
	Notes         *string               `db:"notes" json:"notes,omitempty"`
	Version       int                   `db:"version" json:"version"`
	Provenance
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (s *ToothSurface) GetVersion() int { return s.Version }

// TreatmentPlan maps to the treatment_plan table. OdontogramID and
// ToothNumber are read through the owning tooth record.
type TreatmentPlan struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	ToothRecordID uuid.UUID       `db:"tooth_record_id" json:"tooth_record_id"`
	OdontogramID  uuid.UUID       `json:"odontogram_id"`
	ToothNumber   string          `json:"tooth_number"`
	TreatmentType string          `db:"treatment_type" json:"treatment_type"`
	Status        TreatmentStatus `db:"status" json:"status"`
	ServiceID     *string         `db:"service_id" json:"service_id,omitempty"`
	ServiceName   *string         `db:"service_name" json:"service_name,omitempty"`
	PlannedDate   *Date           `db:"planned_date" json:"planned_date,omitempty"`
	CompletedDate *Date           `db:"completed_date" json:"completed_date,omitempty"`
	EstimatedCost *float64        `db:"estimated_cost" json:"estimated_cost,omitempty"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
	Version       int             `db:"version" json:"version"`
	Provenance
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (p *TreatmentPlan) GetVersion() int { return p.Version }

const dateLayout = "2006-01-02"

// Date is a calendar day, written as YYYY-MM-DD. Full RFC 3339 timestamps are
// accepted on input and truncated to their date.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return NewDate(t), nil
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func datePtr(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	d := NewDate(*t)
	return &d
}

func timePtr(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// Requests

type CreateRequest struct {
	PatientID     int64         `json:"patient_id"`
	DentitionType DentitionType `json:"dentition_type"`
	GeneralNotes  *string       `json:"general_notes"`
}

type NotesRequest struct {
	GeneralNotes    string `json:"general_notes"`
	ExpectedVersion *int   `json:"expected_version"`
}

type ToothRequest struct {
	ToothNumber     string      `json:"tooth_number"`
	Status          ToothStatus `json:"status"`
	Notes           *string     `json:"notes"`
	ExpectedVersion *int        `json:"expected_version"`
}

type SurfaceRequest struct {
	ToothNumber     string                `json:"tooth_number"`
	SurfaceType     dentition.SurfaceType `json:"surface_type"`
	Status          SurfaceStatus         `json:"status"`
	Notes           *string               `json:"notes"`
	ExpectedVersion *int                  `json:"expected_version"`
}

type TreatmentRequest struct {
	ToothNumber   string   `json:"tooth_number"`
	TreatmentType string   `json:"treatment_type"`
	ServiceID     *string  `json:"service_id"`
	ServiceName   *string  `json:"service_name"`
	PlannedDate   *Date    `json:"planned_date"`
	EstimatedCost *float64 `json:"estimated_cost"`
	Notes         *string  `json:"notes"`
}

type TreatmentStatusRequest struct {
	Status          TreatmentStatus `json:"status"`
	CompletedDate   *Date           `json:"completed_date"`
	ExpectedVersion *int            `json:"expected_version"`
}
