package odontogram

import (
	"context"

	"github.com/google/uuid"

	"github.com/odonto/charting/internal/domain/dentition"
)

// Repository persists the odontogram aggregate. Reads return fresh values
// with teeth, surfaces and plans loaded. Update methods take the version the
// caller expects to overwrite; a nil expectation skips the check, and a
// mismatch is reported as apperr.Conflict.
type Repository interface {
	Create(ctx context.Context, o *Odontogram) error
	GetByID(ctx context.Context, id uuid.UUID) (*Odontogram, error)
	GetLatestByPatient(ctx context.Context, patientID int64) (*Odontogram, error)
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Odontogram, int, error)
	UpdateNotes(ctx context.Context, o *Odontogram, expected *int) error
	// Touch bumps updated_at after a change to one of the chart's records.
	Touch(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error

	GetTooth(ctx context.Context, odontogramID uuid.UUID, toothNumber string) (*ToothRecord, error)
	// CreateTooth inserts t unless the chart already has a record for that
	// tooth, including one a concurrent transaction has just committed. It
	// reports false and leaves t untouched in that case.
	CreateTooth(ctx context.Context, t *ToothRecord) (bool, error)
	UpdateTooth(ctx context.Context, t *ToothRecord, expected *int) error

	GetSurface(ctx context.Context, toothRecordID uuid.UUID, surfaceType dentition.SurfaceType) (*ToothSurface, error)
	// CreateSurface is CreateTooth for surfaces, keyed by tooth record and
	// surface type.
	CreateSurface(ctx context.Context, s *ToothSurface) (bool, error)
	UpdateSurface(ctx context.Context, s *ToothSurface, expected *int) error

	GetTreatment(ctx context.Context, id uuid.UUID) (*TreatmentPlan, error)
	CreateTreatment(ctx context.Context, p *TreatmentPlan) error
	// UpdateTreatment never overwrites a plan that is already COMPLETED or
	// CANCELLED; that is reported as apperr.Conflict.
	UpdateTreatment(ctx context.Context, p *TreatmentPlan, expected *int) error
	ListTreatments(ctx context.Context, odontogramID uuid.UUID, statuses []TreatmentStatus) ([]TreatmentPlan, error)
}
