package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loan-api/internal/models"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

const postgresSchema = `
CREATE SEQUENCE IF NOT EXISTS loan_application_seq;

CREATE TABLE IF NOT EXISTS loan_applications (
	row_id            BIGSERIAL,
	id                TEXT PRIMARY KEY,
	first_name        TEXT NOT NULL,
	last_name         TEXT NOT NULL,
	email             TEXT NOT NULL,
	income            DOUBLE PRECISION NOT NULL,
	amount            DOUBLE PRECISION NOT NULL,
	status            TEXT NOT NULL,
	decision_approved BOOLEAN,
	decision_reason   TEXT,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ
);`

const selectColumns = `id, first_name, last_name, email, income, amount, status,
	decision_approved, decision_reason, created_at, updated_at`

// PostgresRepository stores applications in the loan_applications table and
// draws identifiers from the loan_application_seq sequence.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the sequence and table if they do not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) NextSequence(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('loan_application_seq')`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepository) AdvanceSequence(ctx context.Context, atLeast int64) error {
	if atLeast <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`SELECT setval('loan_application_seq', GREATEST($1, (SELECT last_value FROM loan_application_seq)))`,
		atLeast)
	return err
}

func (r *PostgresRepository) Insert(ctx context.Context, app *models.Application) error {
	var approved sql.NullBool
	var reason sql.NullString
	if app.Decision != nil {
		approved = sql.NullBool{Bool: app.Decision.Approved, Valid: true}
		reason = sql.NullString{String: app.Decision.Reason, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO loan_applications
			(id, first_name, last_name, email, income, amount, status,
			 decision_approved, decision_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		app.ID, app.FirstName, app.LastName, app.Email, app.Income, app.Amount, string(app.Status),
		approved, reason, app.CreatedAt, nullTime(app.UpdatedAt),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM loan_applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return app, err
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Application, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM loan_applications ORDER BY row_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := make([]*models.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (r *PostgresRepository) Save(ctx context.Context, app *models.Application) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE loan_applications SET status = $2, updated_at = $3 WHERE id = $1`,
		app.ID, string(app.Status), nullTime(app.UpdatedAt))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(s rowScanner) (*models.Application, error) {
	var (
		app       models.Application
		status    string
		approved  sql.NullBool
		reason    sql.NullString
		updatedAt sql.NullTime
	)
	err := s.Scan(
		&app.ID, &app.FirstName, &app.LastName, &app.Email,
		&app.Income, &app.Amount, &status,
		&approved, &reason, &app.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.Status = models.Status(status)
	app.CreatedAt = app.CreatedAt.UTC()
	if approved.Valid {
		app.Decision = &models.Decision{Approved: approved.Bool, Reason: reason.String}
	}
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		app.UpdatedAt = &t
	}
	return &app, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
