package services

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/justaszie/spending-tracker/src/models"
)

var (
	// ErrParsingFailed wraps statement-level parser failures (unreadable
	// file, missing required columns).
	ErrParsingFailed = errors.New("statement parsing failed")

	// ErrJobNotFound is returned by GetJob when the id is unknown.
	ErrJobNotFound = errors.New("ingest job not found")
)

// IngestService owns the statement ingestion lifecycle: accepting an
// upload as a pending job, running the pipeline against it, and exposing
// job status to callers.
type IngestService interface {
	// CreateJob stores the statement file and records a pending job for it.
	CreateJob(ctx context.Context, userID uuid.UUID, source models.TxnSource, filename string, file io.Reader) (*models.IngestJob, error)

	// RunJob executes the full ingestion pipeline for a previously created
	// job. All pipeline faults are recorded on the job itself.
	RunJob(ctx context.Context, jobID uuid.UUID)

	// GetJob returns the current state of a job.
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.IngestJob, error)
}
