package appointment

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

const apptSelect = `SELECT a.id, a.paciente_id, COALESCE(p.nome_gestante, ''), COALESCE(p.unidade_saude, ''),
	a.data_consulta, a.hora_consulta, a.status, a.observacoes, a.tipo_consulta, a.motivo_nao_realizacao,
	a.created_at, a.updated_at
	FROM agendamento a LEFT JOIN paciente p ON p.id = a.paciente_id`

func (r *repoPG) scan(row pgx.Row) (*Appointment, error) {
	var (
		a                  Appointment
		id, patientID      uuid.UUID
		date               time.Time
		status             string
		clock, notes, typ  *string
		notPerformedReason *string
	)
	err := row.Scan(&id, &patientID, &a.PatientName, &a.HealthUnit,
		&date, &clock, &status, &notes, &typ, &notPerformedReason,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.ID = id.String()
	a.PatientID = patientID.String()
	a.Date = date.Format(dateLayout)
	a.Time = deref(clock)
	a.Status = ParseStatus(status)
	a.Notes = deref(notes)
	a.Type = deref(typ)
	a.NotPerformedReason = deref(notPerformedReason)
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	id := uuid.New()
	patientID, err := uuid.Parse(a.PatientID)
	if err != nil {
		return fmt.Errorf("invalid paciente_id: %w", err)
	}
	date, err := time.Parse(dateLayout, a.Date)
	if err != nil {
		return fmt.Errorf("invalid data_consulta: %w", err)
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO agendamento (id, paciente_id, data_consulta, hora_consulta, tipo_consulta,
			status, observacoes, motivo_nao_realizacao)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		id, patientID, date, nullable(a.Time), nullable(a.Type),
		a.Status.Wire(), nullable(a.Notes), nullable(a.NotPerformedReason),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return err
	}
	a.ID = id.String()
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scan(r.db.QueryRow(ctx, apptSelect+` WHERE a.id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return ErrNotFound
	}
	date, err := time.Parse(dateLayout, a.Date)
	if err != nil {
		return fmt.Errorf("invalid data_consulta: %w", err)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE agendamento SET data_consulta=$2, hora_consulta=$3, tipo_consulta=$4, status=$5,
			observacoes=$6, motivo_nao_realizacao=$7, updated_at=NOW()
		WHERE id = $1`,
		id, date, nullable(a.Time), nullable(a.Type), a.Status.Wire(),
		nullable(a.Notes), nullable(a.NotPerformedReason))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM agendamento WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	query := apptSelect + ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != "" {
		pid, err := uuid.Parse(f.PatientID)
		if err != nil {
			return nil, fmt.Errorf("invalid paciente_id: %w", err)
		}
		query += fmt.Sprintf(` AND a.paciente_id = $%d`, idx)
		args = append(args, pid)
		idx++
	}
	if f.From != "" {
		from, err := time.Parse(dateLayout, f.From)
		if err != nil {
			return nil, fmt.Errorf("invalid data_inicio: %w", err)
		}
		query += fmt.Sprintf(` AND a.data_consulta >= $%d`, idx)
		args = append(args, from)
		idx++
	}
	if f.To != "" {
		to, err := time.Parse(dateLayout, f.To)
		if err != nil {
			return nil, fmt.Errorf("invalid data_fim: %w", err)
		}
		query += fmt.Sprintf(` AND a.data_consulta <= $%d`, idx)
		args = append(args, to)
		idx++
	}
	if f.Status != "" {
		query += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, f.Status.Wire())
	}
	query += ` ORDER BY a.data_consulta, a.hora_consulta`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Appointment{}
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
