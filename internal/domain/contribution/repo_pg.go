package contribution

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odonto/charting/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const contribCols = `id, seq, odontogram_id, dentist_id, dentist_name, office_id, office_name,
	action_type, metadata, contribution_date`

func scanContribution(row pgx.Row) (*Contribution, error) {
	var (
		c    Contribution
		meta []byte
	)
	if err := row.Scan(&c.ID, &c.Seq, &c.OdontogramID, &c.DentistID, &c.DentistName,
		&c.OfficeID, &c.OfficeName, &c.ActionType, &meta, &c.ContributionDate); err != nil {
		return nil, err
	}
	c.Metadata = map[string]string{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode contribution metadata: %w", err)
		}
	}
	return &c, nil
}

func (r *repoPG) Append(ctx context.Context, c *Contribution) error {
	c.ID = uuid.New()
	if c.Metadata == nil {
		c.Metadata = map[string]string{}
	}
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("encode contribution metadata: %w", err)
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO odontogram_contribution (id, odontogram_id, dentist_id, dentist_name,
			office_id, office_name, action_type, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING seq, contribution_date`,
		c.ID, c.OdontogramID, c.DentistID, c.DentistName,
		c.OfficeID, c.OfficeName, c.ActionType, meta,
	).Scan(&c.Seq, &c.ContributionDate)
}

func (r *repoPG) ListByOdontogram(ctx context.Context, odontogramID uuid.UUID, f Filter, limit, offset int) ([]*Contribution, int, error) {
	where := ` WHERE odontogram_id = $1`
	args := []interface{}{odontogramID}
	if f.ActionType != "" {
		where += ` AND action_type = $2`
		args = append(args, f.ActionType)
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM odontogram_contribution`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + contribCols + ` FROM odontogram_contribution` + where +
		` ORDER BY seq`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, limit, offset)
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}
