package patientprofile

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odonto/charting/internal/platform/apperr"
	"github.com/odonto/charting/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const profileCols = `user_id, first_name, last_name, phone, to_char(birth_date, 'YYYY-MM-DD'),
	address, occupation, general_notes, warning_sign, warning_description, created_at, updated_at`

func (r *repoPG) Get(ctx context.Context, userID int64) (*Profile, error) {
	var p Profile
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+profileCols+` FROM patient_profile WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Phone, &p.BirthDate,
			&p.Address, &p.Occupation, &p.GeneralNotes, &p.WarningSign, &p.WarningDescription,
			&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("no profile for patient %d", userID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Exists(ctx context.Context, userID int64) (bool, error) {
	var ok bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patient_profile WHERE user_id = $1)`, userID).Scan(&ok)
	return ok, err
}

func (r *repoPG) Create(ctx context.Context, p *Profile) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_profile (user_id, first_name, last_name, phone, birth_date,
			address, occupation, general_notes, warning_sign, warning_description)
		VALUES ($1,$2,$3,$4,$5::date,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		p.UserID, p.FirstName, p.LastName, p.Phone, p.BirthDate,
		p.Address, p.Occupation, p.GeneralNotes, p.WarningSign, p.WarningDescription,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.Conflict("patient %d already has a profile", p.UserID)
	}
	return err
}

func (r *repoPG) Update(ctx context.Context, p *Profile) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patient_profile SET first_name=$2, last_name=$3, phone=$4, birth_date=$5::date,
			address=$6, occupation=$7, general_notes=$8, warning_sign=$9, warning_description=$10,
			updated_at=NOW()
		WHERE user_id = $1
		RETURNING created_at, updated_at`,
		p.UserID, p.FirstName, p.LastName, p.Phone, p.BirthDate,
		p.Address, p.Occupation, p.GeneralNotes, p.WarningSign, p.WarningDescription,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("no profile for patient %d", p.UserID)
	}
	return err
}
