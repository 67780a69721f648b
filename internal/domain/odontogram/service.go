package odontogram

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/odonto/charting/internal/domain/contribution"
	"github.com/odonto/charting/internal/domain/dentition"
	"github.com/odonto/charting/internal/platform/apperr"
	"github.com/odonto/charting/internal/platform/auth"
	"github.com/odonto/charting/internal/platform/db"
	"github.com/odonto/charting/internal/platform/events"
	"github.com/odonto/charting/internal/platform/metrics"
	"github.com/odonto/charting/internal/platform/versioning"
)

const publishTimeout = 5 * time.Second

// Service applies chart mutations. Every mutation runs in one transaction
// together with the contribution that records it, so a rejected mutation
// never leaves a ledger entry and a committed one always has exactly one.
type Service struct {
	repo   Repository
	ledger *contribution.Service
	tx     db.Transactor
	pub    events.Publisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, ledger *contribution.Service, tx db.Transactor) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		tx:     tx,
		pub:    events.Nop{},
		logger: zerolog.Nop(),
		now:    time.Now,
	}
}

// SetPublisher attaches the change feed committed contributions are sent to.
func (s *Service) SetPublisher(p events.Publisher) {
	if p != nil {
		s.pub = p
	}
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "odontogram").Logger()
}

// change is what a mutation reports back for its ledger entry.
type change struct {
	odontogramID uuid.UUID
	patientID    int64
	metadata     map[string]string
}

// mutate runs fn and records its contribution in one transaction, then
// publishes the entry once committed.
func (s *Service) mutate(ctx context.Context, actor auth.Actor, action contribution.ActionType, fn func(ctx context.Context) (change, error)) error {
	var (
		entry     *contribution.Contribution
		patientID int64
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		ch, err := fn(ctx)
		if err != nil {
			return err
		}
		if action != contribution.ActionCreated {
			if err := s.repo.Touch(ctx, ch.odontogramID); err != nil {
				return err
			}
		}
		entry, err = s.ledger.Record(ctx, ch.odontogramID, actor, action, ch.metadata)
		patientID = ch.patientID
		return err
	})
	if err != nil {
		kind := "internal"
		if k := apperr.KindOf(err); k != 0 {
			kind = k.String()
		}
		metrics.MutationsRejectedTotal.WithLabelValues(string(action), kind).Inc()
		return err
	}

	metrics.MutationsTotal.WithLabelValues(string(action)).Inc()
	s.logger.Debug().
		Str("odontogram_id", entry.OdontogramID.String()).
		Str("action", string(action)).
		Str("dentist_id", actor.DentistID).
		Str("office_id", actor.OfficeID).
		Msg("chart mutation committed")

	s.publish(ctx, entry.Event(patientID))
	return nil
}

func (s *Service) publish(ctx context.Context, evt events.ContributionRecorded) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.pub.Publish(ctx, evt); err != nil {
		metrics.EventPublishFailuresTotal.WithLabelValues(s.pub.Backend()).Inc()
		s.logger.Warn().Err(err).
			Str("backend", s.pub.Backend()).
			Str("contribution_id", evt.ContributionID).
			Msg("failed to publish contribution event")
	}
}

// checkVersion counts stale writes before rejecting them.
func checkVersion(entity, resource string, expected *int, current int) error {
	if err := versioning.Check(resource, expected, current); err != nil {
		metrics.VersionConflictsTotal.WithLabelValues(entity).Inc()
		return err
	}
	return nil
}

// Column widths shared by the chart tables.
const (
	maxRefLen        = 128
	maxNameLen       = 255
	maxEstimatedCost = 9999999999.99
)

func requireActor(a auth.Actor) error {
	if a.DentistID == "" || a.OfficeID == "" {
		return apperr.Validation("dentist and office are required to change a chart")
	}
	for _, f := range []struct {
		name  string
		value string
		max   int
	}{
		{"dentist id", a.DentistID, maxRefLen},
		{"office id", a.OfficeID, maxRefLen},
		{"dentist name", a.DentistName, maxNameLen},
		{"office name", a.OfficeName, maxNameLen},
	} {
		if utf8.RuneCountInString(f.value) > f.max {
			return apperr.Validation("%s must be at most %d characters", f.name, f.max)
		}
	}
	return nil
}

func checkLen(field string, v *string, max int) error {
	if v != nil && utf8.RuneCountInString(*v) > max {
		return apperr.Validation("%s must be at most %d characters", field, max)
	}
	return nil
}

func cleanNotes(n *string) *string {
	if n == nil {
		return nil
	}
	v := strings.TrimSpace(*n)
	if v == "" {
		return nil
	}
	return &v
}

// -- Charts --

func (s *Service) CreateOdontogram(ctx context.Context, actor auth.Actor, req CreateRequest) (*Odontogram, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if req.PatientID <= 0 {
		return nil, apperr.Validation("patient_id is required")
	}
	if req.DentitionType == "" {
		req.DentitionType = DentitionAdult
	}
	if !req.DentitionType.Valid() {
		return nil, apperr.Validation("invalid dentition_type %q", req.DentitionType)
	}

	o := &Odontogram{
		PatientID:     req.PatientID,
		DentitionType: req.DentitionType,
		GeneralNotes:  cleanNotes(req.GeneralNotes),
		Provenance:    provenanceOf(actor),
		ToothRecords:  []ToothRecord{},
	}
	err := s.mutate(ctx, actor, contribution.ActionCreated, func(ctx context.Context) (change, error) {
		if err := s.repo.Create(ctx, o); err != nil {
			return change{}, err
		}
		meta := map[string]string{
			contribution.MetaPatientID:     strconv.FormatInt(o.PatientID, 10),
			contribution.MetaDentitionType: string(o.DentitionType),
		}
		if o.GeneralNotes != nil {
			meta[contribution.MetaNotes] = *o.GeneralNotes
		}
		return change{odontogramID: o.ID, patientID: o.PatientID, metadata: meta}, nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) GetOdontogram(ctx context.Context, id uuid.UUID) (*Odontogram, error) {
	return s.repo.GetByID(ctx, id)
}

// GetLatest returns the patient's most recent chart or apperr.NotFound.
func (s *Service) GetLatest(ctx context.Context, patientID int64) (*Odontogram, error) {
	if patientID <= 0 {
		return nil, apperr.Validation("invalid patient id %d", patientID)
	}
	return s.repo.GetLatestByPatient(ctx, patientID)
}

// GetLatestOrCreate returns the latest chart, creating an empty ADULT chart
// when the patient has none.
func (s *Service) GetLatestOrCreate(ctx context.Context, actor auth.Actor, patientID int64) (*Odontogram, bool, error) {
	o, err := s.GetLatest(ctx, patientID)
	if err == nil || !apperr.IsNotFound(err) {
		return o, false, err
	}
	o, err = s.CreateOdontogram(ctx, actor, CreateRequest{PatientID: patientID})
	if apperr.IsConflict(err) {
		// Another caller created it first.
		o, err = s.GetLatest(ctx, patientID)
		return o, false, err
	}
	return o, err == nil, err
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Odontogram, int, error) {
	if patientID <= 0 {
		return nil, 0, apperr.Validation("invalid patient id %d", patientID)
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// DeleteOdontogram removes a chart with all its records and its ledger.
func (s *Service) DeleteOdontogram(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().
		Str("odontogram_id", id.String()).
		Str("dentist_id", actor.DentistID).
		Str("office_id", actor.OfficeID).
		Msg("odontogram deleted")
	return nil
}

func (s *Service) UpdateGeneralNotes(ctx context.Context, actor auth.Actor, id uuid.UUID, req NotesRequest) (*Odontogram, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var updated *Odontogram
	err := s.mutate(ctx, actor, contribution.ActionUpdatedNotes, func(ctx context.Context) (change, error) {
		o, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return change{}, err
		}
		if err := checkVersion("odontogram", "odontogram "+id.String(), req.ExpectedVersion, o.Version); err != nil {
			return change{}, err
		}
		next := *o
		next.GeneralNotes = cleanNotes(&req.GeneralNotes)
		if err := s.repo.UpdateNotes(ctx, &next, req.ExpectedVersion); err != nil {
			return change{}, err
		}
		updated = &next
		saved := ""
		if next.GeneralNotes != nil {
			saved = *next.GeneralNotes
		}
		return change{
			odontogramID: id,
			patientID:    o.PatientID,
			metadata:     map[string]string{contribution.MetaNotes: saved},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// -- Teeth --

func (s *Service) UpsertTooth(ctx context.Context, actor auth.Actor, odontogramID uuid.UUID, req ToothRequest) (*ToothRecord, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	tooth, err := dentition.ParseTooth(req.ToothNumber)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if !req.Status.Valid() {
		return nil, apperr.Validation("invalid tooth status %q", req.Status)
	}

	var result *ToothRecord
	err = s.mutate(ctx, actor, contribution.ActionUpdatedTooth, func(ctx context.Context) (change, error) {
		o, err := s.repo.GetByID(ctx, odontogramID)
		if err != nil {
			return change{}, err
		}
		ch := change{
			odontogramID: odontogramID,
			patientID:    o.PatientID,
			metadata: map[string]string{
				contribution.MetaToothNumber: tooth.String(),
				contribution.MetaStatus:      string(req.Status),
			},
		}
		resource := "tooth " + tooth.String()

		existing, err := s.repo.GetTooth(ctx, odontogramID, tooth.String())
		if apperr.IsNotFound(err) {
			if err := checkVersion("tooth", resource, req.ExpectedVersion, 0); err != nil {
				return change{}, err
			}
			t := &ToothRecord{
				OdontogramID: odontogramID,
				ToothNumber:  tooth.String(),
				Status:       req.Status,
				Notes:        cleanNotes(req.Notes),
				Provenance:   provenanceOf(actor),
				Surfaces:     []ToothSurface{},
				Treatments:   []TreatmentPlan{},
			}
			created, cerr := s.repo.CreateTooth(ctx, t)
			if cerr != nil {
				return change{}, cerr
			}
			if created {
				result = t
				return ch, nil
			}
			// Recorded concurrently; overwrite that record instead.
			existing, err = s.repo.GetTooth(ctx, odontogramID, tooth.String())
		}
		if err != nil {
			return change{}, err
		}

		if err := checkVersion("tooth", resource, req.ExpectedVersion, existing.Version); err != nil {
			return change{}, err
		}
		next := *existing
		next.Status = req.Status
		next.Notes = cleanNotes(req.Notes)
		if err := s.repo.UpdateTooth(ctx, &next, req.ExpectedVersion); err != nil {
			return change{}, err
		}
		result = &next
		return ch, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpsertSurface records a surface condition. A tooth without a record yet is
// created as HEALTHY first; the surface must belong to that tooth's anatomy.
func (s *Service) UpsertSurface(ctx context.Context, actor auth.Actor, odontogramID uuid.UUID, req SurfaceRequest) (*ToothSurface, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	tooth, err := dentition.ParseTooth(req.ToothNumber)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if !req.SurfaceType.Valid() {
		return nil, apperr.Validation("invalid surface type %q", req.SurfaceType)
	}
	if !dentition.IsSurfaceAllowed(tooth, req.SurfaceType) {
		return nil, apperr.Validation("tooth %s has no %s surface", tooth, req.SurfaceType)
	}
	if !req.Status.Valid() {
		return nil, apperr.Validation("invalid surface status %q", req.Status)
	}

	var result *ToothSurface
	err = s.mutate(ctx, actor, contribution.ActionUpdatedSurface, func(ctx context.Context) (change, error) {
		o, err := s.repo.GetByID(ctx, odontogramID)
		if err != nil {
			return change{}, err
		}
		t, err := s.ensureTooth(ctx, actor, odontogramID, tooth)
		if err != nil {
			return change{}, err
		}
		ch := change{
			odontogramID: odontogramID,
			patientID:    o.PatientID,
			metadata: map[string]string{
				contribution.MetaToothNumber: tooth.String(),
				contribution.MetaSurfaceType: string(req.SurfaceType),
				contribution.MetaStatus:      string(req.Status),
			},
		}
		resource := "surface " + tooth.String() + "/" + string(req.SurfaceType)

		existing, err := s.repo.GetSurface(ctx, t.ID, req.SurfaceType)
		if apperr.IsNotFound(err) {
			if err := checkVersion("surface", resource, req.ExpectedVersion, 0); err != nil {
				return change{}, err
			}
			sf := &ToothSurface{
				ToothRecordID: t.ID,
				SurfaceType:   req.SurfaceType,
				Status:        req.Status,
				Notes:         cleanNotes(req.Notes),
				Provenance:    provenanceOf(actor),
			}
			created, cerr := s.repo.CreateSurface(ctx, sf)
			if cerr != nil {
				return change{}, cerr
			}
			if created {
				result = sf
				return ch, nil
			}
			existing, err = s.repo.GetSurface(ctx, t.ID, req.SurfaceType)
		}
		if err != nil {
			return change{}, err
		}

		if err := checkVersion("surface", resource, req.ExpectedVersion, existing.Version); err != nil {
			return change{}, err
		}
		next := *existing
		next.Status = req.Status
		next.Notes = cleanNotes(req.Notes)
		if err := s.repo.UpdateSurface(ctx, &next, req.ExpectedVersion); err != nil {
			return change{}, err
		}
		result = &next
		return ch, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ensureTooth returns the chart's record for tooth, creating it as HEALTHY
// when there is none. Several surfaces of a fresh tooth may be recorded at
// once; all of them end up on the single record that won the insert.
func (s *Service) ensureTooth(ctx context.Context, actor auth.Actor, odontogramID uuid.UUID, tooth dentition.Tooth) (*ToothRecord, error) {
	t, err := s.repo.GetTooth(ctx, odontogramID, tooth.String())
	if !apperr.IsNotFound(err) {
		return t, err
	}
	t = &ToothRecord{
		OdontogramID: odontogramID,
		ToothNumber:  tooth.String(),
		Status:       ToothHealthy,
		Provenance:   provenanceOf(actor),
	}
	created, err := s.repo.CreateTooth(ctx, t)
	if err != nil {
		return nil, err
	}
	if created {
		return t, nil
	}
	return s.repo.GetTooth(ctx, odontogramID, tooth.String())
}

// -- Treatment plans --

func (s *Service) AddTreatmentPlan(ctx context.Context, actor auth.Actor, odontogramID uuid.UUID, req TreatmentRequest) (*TreatmentPlan, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	tooth, err := dentition.ParseTooth(req.ToothNumber)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	treatmentType := strings.TrimSpace(req.TreatmentType)
	if treatmentType == "" {
		return nil, apperr.Validation("treatment_type is required")
	}
	if req.EstimatedCost != nil && *req.EstimatedCost < 0 {
		return nil, apperr.Validation("estimated_cost must not be negative")
	}
	if req.EstimatedCost != nil && *req.EstimatedCost > maxEstimatedCost {
		return nil, apperr.Validation("estimated_cost must not exceed %.2f", maxEstimatedCost)
	}
	if err := checkLen("service_id", req.ServiceID, maxRefLen); err != nil {
		return nil, err
	}
	if err := checkLen("service_name", req.ServiceName, maxNameLen); err != nil {
		return nil, err
	}

	var plan *TreatmentPlan
	err = s.mutate(ctx, actor, contribution.ActionAddedTreatment, func(ctx context.Context) (change, error) {
		o, err := s.repo.GetByID(ctx, odontogramID)
		if err != nil {
			return change{}, err
		}
		t, err := s.repo.GetTooth(ctx, odontogramID, tooth.String())
		if err != nil {
			return change{}, err
		}
		plan = &TreatmentPlan{
			ToothRecordID: t.ID,
			OdontogramID:  odontogramID,
			ToothNumber:   t.ToothNumber,
			TreatmentType: treatmentType,
			Status:        TreatmentPlanned,
			ServiceID:     req.ServiceID,
			ServiceName:   req.ServiceName,
			PlannedDate:   req.PlannedDate,
			EstimatedCost: req.EstimatedCost,
			Notes:         cleanNotes(req.Notes),
			Provenance:    provenanceOf(actor),
		}
		if err := s.repo.CreateTreatment(ctx, plan); err != nil {
			return change{}, err
		}
		return change{
			odontogramID: odontogramID,
			patientID:    o.PatientID,
			metadata: map[string]string{
				contribution.MetaTreatmentID:   plan.ID.String(),
				contribution.MetaToothNumber:   t.ToothNumber,
				contribution.MetaTreatmentType: treatmentType,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Service) UpdateTreatmentStatus(ctx context.Context, actor auth.Actor, planID uuid.UUID, req TreatmentStatusRequest) (*TreatmentPlan, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var updated *TreatmentPlan
	err := s.mutate(ctx, actor, contribution.ActionUpdatedTreatment, func(ctx context.Context) (change, error) {
		p, err := s.repo.GetTreatment(ctx, planID)
		if err != nil {
			return change{}, err
		}
		if err := checkVersion("treatment", "treatment plan "+planID.String(), req.ExpectedVersion, p.Version); err != nil {
			return change{}, err
		}
		next, err := p.Transition(req.Status, req.CompletedDate, s.now())
		if err != nil {
			return change{}, err
		}
		if err := s.repo.UpdateTreatment(ctx, &next, req.ExpectedVersion); err != nil {
			return change{}, err
		}
		o, err := s.repo.GetByID(ctx, p.OdontogramID)
		if err != nil {
			return change{}, err
		}
		updated = &next

		meta := map[string]string{
			contribution.MetaTreatmentID:   planID.String(),
			contribution.MetaToothNumber:   next.ToothNumber,
			contribution.MetaTreatmentType: next.TreatmentType,
			contribution.MetaStatus:        string(next.Status),
		}
		if next.Status == TreatmentCompleted {
			meta[contribution.MetaCompletedDate] = next.CompletedDate.String()
		}
		return change{odontogramID: p.OdontogramID, patientID: o.PatientID, metadata: meta}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// PlannedTreatments lists the open plans on the patient's latest chart. A
// patient without a chart has none.
func (s *Service) PlannedTreatments(ctx context.Context, patientID int64) ([]TreatmentPlan, error) {
	o, err := s.GetLatest(ctx, patientID)
	if apperr.IsNotFound(err) {
		return []TreatmentPlan{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.repo.ListTreatments(ctx, o.ID, []TreatmentStatus{TreatmentPlanned, TreatmentInProgress})
}

// -- Ledger reads --

func (s *Service) History(ctx context.Context, odontogramID uuid.UUID, action contribution.ActionType, limit, offset int) ([]*contribution.Contribution, int, error) {
	if _, err := s.repo.GetByID(ctx, odontogramID); err != nil {
		return nil, 0, err
	}
	return s.ledger.History(ctx, odontogramID, action, limit, offset)
}

func (s *Service) NotesHistory(ctx context.Context, odontogramID uuid.UUID) ([]contribution.NoteEntry, error) {
	if _, err := s.repo.GetByID(ctx, odontogramID); err != nil {
		return nil, err
	}
	return s.ledger.NotesHistory(ctx, odontogramID)
}
