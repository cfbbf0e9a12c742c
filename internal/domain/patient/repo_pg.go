package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ db queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{db: pool} }

const patientCols = `id, nome_gestante, unidade_saude, dum, dpp, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Patient, error) {
	var (
		p        Patient
		id       uuid.UUID
		unit     *string
		lmp, dpp *time.Time
	)
	err := row.Scan(&id, &p.Identification.Name, &unit, &lmp, &dpp, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ID = id.String()
	if unit != nil {
		p.Identification.HealthUnit = *unit
	}
	p.Assessment.LastMenstrualPeriod = formatDate(lmp)
	p.Assessment.DueDate = formatDate(dpp)
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	id := uuid.New()
	lmp, err := parseOptionalDate(p.Assessment.LastMenstrualPeriod)
	if err != nil {
		return fmt.Errorf("invalid dum: %w", err)
	}
	dpp, err := parseOptionalDate(p.Assessment.DueDate)
	if err != nil {
		return fmt.Errorf("invalid dpp: %w", err)
	}
	var unit *string
	if p.Identification.HealthUnit != "" {
		unit = &p.Identification.HealthUnit
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO paciente (id, nome_gestante, unidade_saude, dum, dpp)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		id, p.Identification.Name, unit, lmp, dpp,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	p.ID = id.String()
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scan(r.db.QueryRow(ctx, `SELECT `+patientCols+` FROM paciente WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Patient, error) {
	query := `SELECT ` + patientCols + ` FROM paciente WHERE 1=1`
	var args []interface{}
	idx := 1
	if f.Name != "" {
		query += fmt.Sprintf(` AND nome_gestante ILIKE $%d`, idx)
		args = append(args, "%"+f.Name+"%")
		idx++
	}
	if f.HealthUnit != "" {
		query += fmt.Sprintf(` AND unidade_saude = $%d`, idx)
		args = append(args, f.HealthUnit)
	}
	query += ` ORDER BY nome_gestante`
	return r.list(ctx, query, args...)
}

func (r *repoPG) ListWithDueDateBetween(ctx context.Context, from, to time.Time) ([]*Patient, error) {
	return r.list(ctx, `SELECT `+patientCols+` FROM paciente
		WHERE dpp BETWEEN $1 AND $2 ORDER BY dpp`, from, to)
}

func (r *repoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Patient, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Patient{}
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
