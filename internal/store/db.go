package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailverify/internal/models"
)

// Job statuses, in lifecycle order.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// ErrJobNotFound is returned when a job id has no row.
var ErrJobNotFound = errors.New("job not found")

// Job is one bulk verification batch.
type Job struct {
	ID              string          `json:"id"`
	Status          string          `json:"status"`
	TotalEmails     int             `json:"totalEmails"`
	ProcessedEmails int             `json:"processedEmails"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Error           *string         `json:"error,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// ResultRow is one persisted per-email result.
type ResultRow struct {
	JobID     string        `json:"jobId"`
	Email     string        `json:"email"`
	IsValid   bool          `json:"isValid"`
	Status    string        `json:"status"`
	Message   string        `json:"message"`
	Domain    string        `json:"domain"`
	MXRecord  *string       `json:"mxRecord"`
	CreatedAt time.Time     `json:"createdAt"`
	Record    models.Result `json:"record"`
}

// Store is the Postgres-backed job store.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens the pool, verifies the connection, and applies migrations.
func Connect(ctx context.Context, connString string) (*Store, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(dialCtx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(dialCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	queryJobs := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		total_emails INT NOT NULL DEFAULT 0,
		processed_emails INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		error TEXT,
		metadata JSONB
	);`

	// The full result record is kept as JSONB alongside the flat columns so
	// batch retrieval can return the same shape as the inline API.
	queryResults := `
	CREATE TABLE IF NOT EXISTS results (
		id BIGSERIAL PRIMARY KEY,
		job_id TEXT NOT NULL REFERENCES jobs(id),
		email TEXT NOT NULL,
		is_valid BOOLEAN NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL,
		domain TEXT NOT NULL,
		mx_record TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		record JSONB NOT NULL
	);`

	if _, err := s.pool.Exec(ctx, queryJobs); err != nil {
		return fmt.Errorf("migration failed (jobs): %w", err)
	}
	if _, err := s.pool.Exec(ctx, queryResults); err != nil {
		return fmt.Errorf("migration failed (results): %w", err)
	}
	return nil
}

// CreateJob inserts a pending job row.
func (s *Store) CreateJob(ctx context.Context, id string, totalEmails int, metadata json.RawMessage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, status, total_emails, metadata)
		VALUES ($1, $2, $3, $4)
	`, id, JobPending, totalEmails, metadata)
	return err
}

// MarkProcessing flips a pending job to processing.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, JobProcessing, JobPending)
	return err
}

// FailJob records a terminal failure on the job row.
func (s *Store) FailJob(ctx context.Context, id, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1
	`, id, JobFailed, reason)
	return err
}

// AppendResult saves one per-email row and bumps the job's progress in the
// same transaction; the job flips to completed when the last row lands.
func (s *Store) AppendResult(ctx context.Context, jobID string, res models.Result) error {
	record, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO results (job_id, email, is_valid, status, message, domain, mx_record, record)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, jobID, res.Email, res.IsValid, res.Status, res.Message, res.Domain, res.MXRecord, record)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE jobs
		SET processed_emails = processed_emails + 1,
		    status = CASE
		        WHEN processed_emails + 1 >= total_emails THEN $2
		        ELSE status
		    END,
		    updated_at = NOW()
		WHERE id = $1
	`, jobID, JobCompleted)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	return tx.Commit(ctx)
}

// Job fetches one job row.
func (s *Store) Job(ctx context.Context, id string) (Job, error) {
	var job Job
	err := s.pool.QueryRow(ctx, `
		SELECT id, status, total_emails, processed_emails, created_at, updated_at, error, metadata
		FROM jobs WHERE id = $1
	`, id).Scan(
		&job.ID, &job.Status, &job.TotalEmails, &job.ProcessedEmails,
		&job.CreatedAt, &job.UpdatedAt, &job.Error, &job.Metadata,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, ErrJobNotFound
	}
	return job, err
}

// Results returns the job's result records in insertion order.
func (s *Store) Results(ctx context.Context, jobID string) ([]models.Result, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT record FROM results WHERE job_id = $1 ORDER BY id ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []models.Result{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var res models.Result
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("malformed result row: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (s *Store) Close() {
	s.pool.Close()
}
