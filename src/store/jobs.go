package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/justaszie/spending-tracker/src/models"
)

var (
	// ErrJobNotFound is returned when no job exists for the given id.
	ErrJobNotFound = errors.New("ingest job not found")
	// ErrDuplicateJob is returned when a job with the same id already
	// exists. Surfaced to the caller as a conflict, never retried here.
	ErrDuplicateJob = errors.New("ingest job already exists")
)

const timeLayout = time.RFC3339Nano

// JobStore persists ingest jobs. The orchestrator is the only writer of
// job state transitions.
type JobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job *models.IngestJob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, statement_source, file_path, user_id, created_at, started_at, finished_at, status, failure_reason, ingested_txn_count, duplicate_txn_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID.String(), string(job.StatementSource), job.FilePath, job.UserID.String(),
		formatTime(job.CreatedAt), formatTimePtr(job.StartedAt), formatTimePtr(job.FinishedAt),
		string(job.Status), nullString(job.FailureReason),
		nullInt(job.IngestedTxnCount), nullInt(job.DuplicateTxnCount),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
		}
		return fmt.Errorf("inserting job %s: %w", job.ID, err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*models.IngestJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, statement_source, file_path, user_id, created_at, started_at, finished_at, status, failure_reason, ingested_txn_count, duplicate_txn_count
		FROM jobs WHERE id = ?`, id.String())

	var (
		job                  models.IngestJob
		idStr, userIDStr     string
		source, status       string
		createdAt            string
		startedAt, finished  sql.NullString
		failureReason        sql.NullString
		ingested, duplicates sql.NullInt64
	)
	err := row.Scan(&idStr, &source, &job.FilePath, &userIDStr, &createdAt,
		&startedAt, &finished, &status, &failureReason, &ingested, &duplicates)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}

	if job.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parsing job id %q: %w", idStr, err)
	}
	if job.UserID, err = uuid.Parse(userIDStr); err != nil {
		return nil, fmt.Errorf("parsing job user id %q: %w", userIDStr, err)
	}
	job.StatementSource = models.TxnSource(source)
	job.Status = models.JobStatus(status)
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing job created_at: %w", err)
	}
	if job.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return nil, fmt.Errorf("parsing job started_at: %w", err)
	}
	if job.FinishedAt, err = parseTimePtr(finished); err != nil {
		return nil, fmt.Errorf("parsing job finished_at: %w", err)
	}
	if failureReason.Valid {
		job.FailureReason = &failureReason.String
	}
	if ingested.Valid {
		count := int(ingested.Int64)
		job.IngestedTxnCount = &count
	}
	if duplicates.Valid {
		count := int(duplicates.Int64)
		job.DuplicateTxnCount = &count
	}
	return &job, nil
}

func (s *JobStore) Update(ctx context.Context, job *models.IngestJob) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, started_at = ?, finished_at = ?, failure_reason = ?, ingested_txn_count = ?, duplicate_txn_count = ?
		WHERE id = ?`,
		string(job.Status), formatTimePtr(job.StartedAt), formatTimePtr(job.FinishedAt),
		nullString(job.FailureReason), nullInt(job.IngestedTxnCount), nullInt(job.DuplicateTxnCount),
		job.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("updating job %s: %w", job.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating job %s: %w", job.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}
