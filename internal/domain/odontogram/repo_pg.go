package odontogram

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odonto/charting/internal/domain/dentition"
	"github.com/odonto/charting/internal/platform/apperr"
	"github.com/odonto/charting/internal/platform/db"
)

const uniqueViolation = "23505"

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const provCols = `created_by_dentist_id, created_by_dentist_name, created_by_office_id, created_by_office_name`

const odontogramCols = `id, patient_id, dentition_type, general_notes, version, ` + provCols + `, created_at, updated_at`

const toothCols = `id, odontogram_id, tooth_number, status, notes, version, ` + provCols + `, created_at, updated_at`

const surfaceCols = `id, tooth_record_id, surface_type, status, notes, version, ` + provCols + `, created_at, updated_at`

const treatmentCols = `tp.id, tp.tooth_record_id, tr.odontogram_id, tr.tooth_number, tp.treatment_type, tp.status,
	tp.service_id, tp.service_name, tp.planned_date, tp.completed_date, tp.estimated_cost, tp.notes, tp.version,
	tp.created_by_dentist_id, tp.created_by_dentist_name, tp.created_by_office_id, tp.created_by_office_name,
	tp.created_at, tp.updated_at`

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(format, args...)
	}
	return err
}

func scanOdontogram(row pgx.Row) (*Odontogram, error) {
	var o Odontogram
	err := row.Scan(&o.ID, &o.PatientID, &o.DentitionType, &o.GeneralNotes, &o.Version,
		&o.CreatedByDentistID, &o.CreatedByDentistName, &o.CreatedByOfficeID, &o.CreatedByOfficeName,
		&o.CreatedAt, &o.UpdatedAt)
	return &o, err
}

func scanTooth(row pgx.Row) (*ToothRecord, error) {
	var t ToothRecord
	err := row.Scan(&t.ID, &t.OdontogramID, &t.ToothNumber, &t.Status, &t.Notes, &t.Version,
		&t.CreatedByDentistID, &t.CreatedByDentistName, &t.CreatedByOfficeID, &t.CreatedByOfficeName,
		&t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func scanSurface(row pgx.Row) (*ToothSurface, error) {
	var s ToothSurface
	err := row.Scan(&s.ID, &s.ToothRecordID, &s.SurfaceType, &s.Status, &s.Notes, &s.Version,
		&s.CreatedByDentistID, &s.CreatedByDentistName, &s.CreatedByOfficeID, &s.CreatedByOfficeName,
		&s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func scanTreatment(row pgx.Row) (*TreatmentPlan, error) {
	var (
		p                  TreatmentPlan
		planned, completed *time.Time
	)
	err := row.Scan(&p.ID, &p.ToothRecordID, &p.OdontogramID, &p.ToothNumber, &p.TreatmentType, &p.Status,
		&p.ServiceID, &p.ServiceName, &planned, &completed, &p.EstimatedCost, &p.Notes, &p.Version,
		&p.CreatedByDentistID, &p.CreatedByDentistName, &p.CreatedByOfficeID, &p.CreatedByOfficeName,
		&p.CreatedAt, &p.UpdatedAt)
	p.PlannedDate = datePtr(planned)
	p.CompletedDate = datePtr(completed)
	return &p, err
}

// -- Odontogram --

func (r *repoPG) Create(ctx context.Context, o *Odontogram) error {
	o.ID = uuid.New()
	o.Version = 1
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO odontogram (id, patient_id, dentition_type, general_notes, version, `+provCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		o.ID, o.PatientID, o.DentitionType, o.GeneralNotes, o.Version,
		o.CreatedByDentistID, o.CreatedByDentistName, o.CreatedByOfficeID, o.CreatedByOfficeName,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperr.Conflict("patient %d already has an odontogram", o.PatientID)
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Odontogram, error) {
	o, err := scanOdontogram(r.conn(ctx).QueryRow(ctx,
		`SELECT `+odontogramCols+` FROM odontogram WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "odontogram %s not found", id)
	}
	return o, r.loadTeeth(ctx, o)
}

func (r *repoPG) GetLatestByPatient(ctx context.Context, patientID int64) (*Odontogram, error) {
	o, err := scanOdontogram(r.conn(ctx).QueryRow(ctx,
		`SELECT `+odontogramCols+` FROM odontogram WHERE patient_id = $1
		ORDER BY created_at DESC, id DESC LIMIT 1`, patientID))
	if err != nil {
		return nil, notFound(err, "no odontogram for patient %d", patientID)
	}
	return o, r.loadTeeth(ctx, o)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Odontogram, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM odontogram WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+odontogramCols+` FROM odontogram WHERE patient_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	var items []*Odontogram
	for rows.Next() {
		o, err := scanOdontogram(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		items = append(items, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, o := range items {
		if err := r.loadTeeth(ctx, o); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *repoPG) UpdateNotes(ctx context.Context, o *Odontogram, expected *int) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE odontogram SET general_notes = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND ($3::int IS NULL OR version = $3)
		RETURNING version, updated_at`,
		o.ID, o.GeneralNotes, expected,
	).Scan(&o.Version, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Conflict("odontogram %s was modified concurrently", o.ID)
	}
	return err
}

func (r *repoPG) Touch(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE odontogram SET updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("odontogram %s not found", id)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM odontogram WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("odontogram %s not found", id)
	}
	return nil
}

// loadTeeth fills o.ToothRecords with three queries, one per level.
func (r *repoPG) loadTeeth(ctx context.Context, o *Odontogram) error {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+toothCols+` FROM tooth_record WHERE odontogram_id = $1 ORDER BY seq`, o.ID)
	if err != nil {
		return err
	}
	o.ToothRecords = []ToothRecord{}
	index := map[uuid.UUID]int{}
	for rows.Next() {
		t, err := scanTooth(rows)
		if err != nil {
			rows.Close()
			return err
		}
		t.Surfaces = []ToothSurface{}
		t.Treatments = []TreatmentPlan{}
		index[t.ID] = len(o.ToothRecords)
		o.ToothRecords = append(o.ToothRecords, *t)
	}
	rows.Close()
	if err := rows.Err(); err != nil || len(o.ToothRecords) == 0 {
		return err
	}

	rows, err = r.conn(ctx).Query(ctx, `SELECT `+surfaceCols+` FROM tooth_surface
		WHERE tooth_record_id IN (SELECT id FROM tooth_record WHERE odontogram_id = $1)
		ORDER BY created_at, surface_type`, o.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		s, err := scanSurface(rows)
		if err != nil {
			rows.Close()
			return err
		}
		if i, ok := index[s.ToothRecordID]; ok {
			o.ToothRecords[i].Surfaces = append(o.ToothRecords[i].Surfaces, *s)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	plans, err := r.ListTreatments(ctx, o.ID, nil)
	if err != nil {
		return err
	}
	for _, p := range plans {
		if i, ok := index[p.ToothRecordID]; ok {
			o.ToothRecords[i].Treatments = append(o.ToothRecords[i].Treatments, p)
		}
	}
	return nil
}

// -- Tooth records --

func (r *repoPG) GetTooth(ctx context.Context, odontogramID uuid.UUID, toothNumber string) (*ToothRecord, error) {
	t, err := scanTooth(r.conn(ctx).QueryRow(ctx, `SELECT `+toothCols+` FROM tooth_record
		WHERE odontogram_id = $1 AND tooth_number = $2`, odontogramID, toothNumber))
	if err != nil {
		return nil, notFound(err, "tooth %s has no record on odontogram %s", toothNumber, odontogramID)
	}

	t.Surfaces = []ToothSurface{}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+surfaceCols+` FROM tooth_surface
		WHERE tooth_record_id = $1 ORDER BY created_at, surface_type`, t.ID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		s, err := scanSurface(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		t.Surfaces = append(t.Surfaces, *s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	t.Treatments = []TreatmentPlan{}
	rows, err = r.conn(ctx).Query(ctx, `SELECT `+treatmentCols+` FROM treatment_plan tp
		JOIN tooth_record tr ON tr.id = tp.tooth_record_id
		WHERE tp.tooth_record_id = $1 ORDER BY tp.seq`, t.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanTreatment(rows)
		if err != nil {
			return nil, err
		}
		t.Treatments = append(t.Treatments, *p)
	}
	return t, rows.Err()
}

func (r *repoPG) CreateTooth(ctx context.Context, t *ToothRecord) (bool, error) {
	id := uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tooth_record (id, odontogram_id, tooth_number, status, notes, version, `+provCols+`)
		VALUES ($1,$2,$3,$4,$5,1,$6,$7,$8,$9)
		ON CONFLICT (odontogram_id, tooth_number) DO NOTHING
		RETURNING created_at, updated_at`,
		id, t.OdontogramID, t.ToothNumber, t.Status, t.Notes,
		t.CreatedByDentistID, t.CreatedByDentistName, t.CreatedByOfficeID, t.CreatedByOfficeName,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	t.ID, t.Version = id, 1
	return true, nil
}

func (r *repoPG) UpdateTooth(ctx context.Context, t *ToothRecord, expected *int) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE tooth_record SET status = $2, notes = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND ($4::int IS NULL OR version = $4)
		RETURNING version, updated_at`,
		t.ID, t.Status, t.Notes, expected,
	).Scan(&t.Version, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Conflict("tooth %s was modified concurrently", t.ToothNumber)
	}
	return err
}

// -- Surfaces --

func (r *repoPG) GetSurface(ctx context.Context, toothRecordID uuid.UUID, surfaceType dentition.SurfaceType) (*ToothSurface, error) {
	s, err := scanSurface(r.conn(ctx).QueryRow(ctx, `SELECT `+surfaceCols+` FROM tooth_surface
		WHERE tooth_record_id = $1 AND surface_type = $2`, toothRecordID, surfaceType))
	if err != nil {
		return nil, notFound(err, "surface %s not recorded", surfaceType)
	}
	return s, nil
}

func (r *repoPG) CreateSurface(ctx context.Context, s *ToothSurface) (bool, error) {
	id := uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tooth_surface (id, tooth_record_id, surface_type, status, notes, version, `+provCols+`)
		VALUES ($1,$2,$3,$4,$5,1,$6,$7,$8,$9)
		ON CONFLICT (tooth_record_id, surface_type) DO NOTHING
		RETURNING created_at, updated_at`,
		id, s.ToothRecordID, s.SurfaceType, s.Status, s.Notes,
		s.CreatedByDentistID, s.CreatedByDentistName, s.CreatedByOfficeID, s.CreatedByOfficeName,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.ID, s.Version = id, 1
	return true, nil
}

func (r *repoPG) UpdateSurface(ctx context.Context, s *ToothSurface, expected *int) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE tooth_surface SET status = $2, notes = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND ($4::int IS NULL OR version = $4)
		RETURNING version, updated_at`,
		s.ID, s.Status, s.Notes, expected,
	).Scan(&s.Version, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Conflict("surface %s was modified concurrently", s.SurfaceType)
	}
	return err
}

// -- Treatment plans --

func (r *repoPG) GetTreatment(ctx context.Context, id uuid.UUID) (*TreatmentPlan, error) {
	p, err := scanTreatment(r.conn(ctx).QueryRow(ctx, `SELECT `+treatmentCols+` FROM treatment_plan tp
		JOIN tooth_record tr ON tr.id = tp.tooth_record_id WHERE tp.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "treatment plan %s not found", id)
	}
	return p, nil
}

func (r *repoPG) CreateTreatment(ctx context.Context, p *TreatmentPlan) error {
	p.ID = uuid.New()
	p.Version = 1
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO treatment_plan (id, tooth_record_id, treatment_type, status, service_id, service_name,
			planned_date, completed_date, estimated_cost, notes, version, `+provCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		p.ID, p.ToothRecordID, p.TreatmentType, p.Status, p.ServiceID, p.ServiceName,
		timePtr(p.PlannedDate), timePtr(p.CompletedDate), p.EstimatedCost, p.Notes, p.Version,
		p.CreatedByDentistID, p.CreatedByDentistName, p.CreatedByOfficeID, p.CreatedByOfficeName,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) UpdateTreatment(ctx context.Context, p *TreatmentPlan, expected *int) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE treatment_plan SET status = $2, completed_date = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND ($4::int IS NULL OR version = $4)
			AND status NOT IN ('COMPLETED', 'CANCELLED')
		RETURNING version, updated_at`,
		p.ID, p.Status, timePtr(p.CompletedDate), expected,
	).Scan(&p.Version, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Conflict("treatment plan %s was modified concurrently", p.ID)
	}
	return err
}

func (r *repoPG) ListTreatments(ctx context.Context, odontogramID uuid.UUID, statuses []TreatmentStatus) ([]TreatmentPlan, error) {
	query := `SELECT ` + treatmentCols + ` FROM treatment_plan tp
		JOIN tooth_record tr ON tr.id = tp.tooth_record_id
		WHERE tr.odontogram_id = $1`
	args := []interface{}{odontogramID}
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		query += ` AND tp.status = ANY($2)`
		args = append(args, names)
	}
	query += ` ORDER BY tp.seq`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := []TreatmentPlan{}
	for rows.Next() {
		p, err := scanTreatment(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}
