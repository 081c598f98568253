package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/justaszie/spending-tracker/src/filters"
	"github.com/justaszie/spending-tracker/src/logger"
	"github.com/justaszie/spending-tracker/src/models"
	"github.com/justaszie/spending-tracker/src/parsers"
	"github.com/justaszie/spending-tracker/src/processors"
	"github.com/justaszie/spending-tracker/src/storage"
	"github.com/justaszie/spending-tracker/src/store"
)

type ingestServiceImpl struct {
	jobs        *store.JobStore
	txns        *store.TransactionStore
	storage     storage.FileStorage
	currency    *processors.CurrencyProcessor
	categorizer *processors.Categorizer
}

func NewIngestService(
	jobs *store.JobStore,
	txns *store.TransactionStore,
	fileStorage storage.FileStorage,
	currency *processors.CurrencyProcessor,
	categorizer *processors.Categorizer,
) IngestService {
	return &ingestServiceImpl{
		jobs:        jobs,
		txns:        txns,
		storage:     fileStorage,
		currency:    currency,
		categorizer: categorizer,
	}
}

func (s *ingestServiceImpl) CreateJob(ctx context.Context, userID uuid.UUID, source models.TxnSource, filename string, file io.Reader) (*models.IngestJob, error) {
	path, err := s.storage.SaveStatement(userID, source, filename, file)
	if err != nil {
		return nil, fmt.Errorf("storing statement file: %w", err)
	}

	job := &models.IngestJob{
		ID:              uuid.New(),
		StatementSource: source,
		FilePath:        path,
		UserID:          userID,
		CreatedAt:       time.Now().UTC(),
		Status:          models.JobStatusPending,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("recording ingest job: %w", err)
	}

	logger.L.Info("Ingest job created", "jobID", job.ID, "source", source, "path", path)
	return job, nil
}

func (s *ingestServiceImpl) GetJob(ctx context.Context, jobID uuid.UUID) (*models.IngestJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// RunJob drives a job through its full lifecycle. Every fault after the
// job has been marked running is recorded as a failed terminal state
// rather than returned, so status polling always reflects the outcome.
func (s *ingestServiceImpl) RunJob(ctx context.Context, jobID uuid.UUID) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		logger.L.Error("Cannot run ingest job, lookup failed", "jobID", jobID, "error", err)
		return
	}

	now := time.Now().UTC()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	if err := s.jobs.Update(ctx, job); err != nil {
		logger.L.Error("Failed to mark ingest job running", "jobID", jobID, "error", err)
		return
	}
	logger.L.Info("Ingest job started", "jobID", jobID, "source", job.StatementSource)

	statement, err := s.storage.Open(job.FilePath)
	if err != nil {
		s.markFailed(ctx, job, fmt.Sprintf("opening statement file: %v", err))
		return
	}
	defer statement.Close()

	parser, err := parsers.GetParser(job.StatementSource)
	if err != nil {
		s.markFailed(ctx, job, fmt.Sprintf("resolving parser: %v", err))
		return
	}

	imported, stats, err := parser.Parse(statement)
	if err != nil {
		s.markFailed(ctx, job, fmt.Sprintf("%v: %v", ErrParsingFailed, err))
		return
	}
	logger.L.Info("Statement parsed", "jobID", jobID,
		"rowsRead", stats.RowsRead, "rowsRejected", stats.RowsRejected, "transactions", len(imported))

	kept := filters.Apply(imported)
	logger.L.Info("Filters applied", "jobID", jobID, "kept", len(kept), "filteredOut", len(imported)-len(kept))

	enriched := s.enrich(ctx, job, kept)

	existingKeys, err := s.txns.DedupKeys(ctx)
	if err != nil {
		s.markFailed(ctx, job, fmt.Sprintf("loading existing dedup keys: %v", err))
		return
	}

	fresh, duplicateCount := partitionByDedupKey(enriched, existingKeys)

	inserted, err := s.txns.InsertBatch(ctx, fresh)
	if err != nil {
		s.markFailed(ctx, job, fmt.Sprintf("persisting transactions: %v", err))
		return
	}
	// Rows the database rejected on the unique dedup_key constraint are
	// duplicates that slipped past the in-memory snapshot.
	duplicateCount += len(fresh) - inserted

	finished := time.Now().UTC()
	job.Status = models.JobStatusCompleted
	job.FinishedAt = &finished
	job.IngestedTxnCount = &inserted
	job.DuplicateTxnCount = &duplicateCount
	if err := s.jobs.Update(ctx, job); err != nil {
		logger.L.Error("Failed to mark ingest job completed", "jobID", jobID, "error", err)
		return
	}
	logger.L.Info("Ingest job completed", "jobID", jobID, "ingested", inserted, "duplicates", duplicateCount)
}

// enrich turns parsed transactions into persistable ones: EUR conversion,
// categorization, and job/user attribution.
func (s *ingestServiceImpl) enrich(ctx context.Context, job *models.IngestJob, txns []models.ImportedTransaction) []models.Transaction {
	enriched := make([]models.Transaction, 0, len(txns))
	for _, txn := range txns {
		eurAmount := s.currency.ToEUR(ctx, txn.TransactionDatetime, txn.OrigCurrency, txn.OrigAmount)
		if !eurAmount.Valid {
			logger.L.Warn("EUR conversion unavailable, storing transaction without amount",
				"jobID", job.ID, "currency", txn.OrigCurrency, "date", txn.TransactionDatetime.Format("2006-01-02"))
		}

		categorization := s.categorizer.Categorize(txn)
		if categorization.Note != nil {
			txn.Note = categorization.Note
		}

		enriched = append(enriched, models.Transaction{
			ID:                  uuid.New(),
			ImportedTransaction: txn,
			EURAmount:           eurAmount,
			Category:            categorization.Category,
			SubCategory:         categorization.SubCategory,
			Detail:              categorization.Detail,
			MealType:            categorization.MealType,
			AutoAdded:           true,
			RefundedEURAmount:   decimal.Zero,
			JobID:               job.ID,
			UserID:              job.UserID,
		})
	}
	return enriched
}

// partitionByDedupKey splits transactions into new ones and a duplicate
// count, against both previously stored keys and keys seen earlier in
// the same statement. The first occurrence of a repeated key within one
// statement is kept, the rest count as duplicates.
func partitionByDedupKey(txns []models.Transaction, existing map[string]struct{}) ([]models.Transaction, int) {
	fresh := make([]models.Transaction, 0, len(txns))
	seenThisRun := make(map[string]struct{}, len(txns))
	duplicates := 0

	for _, txn := range txns {
		if _, stored := existing[txn.DedupKey]; stored {
			duplicates++
			continue
		}
		if _, seen := seenThisRun[txn.DedupKey]; seen {
			duplicates++
			continue
		}
		seenThisRun[txn.DedupKey] = struct{}{}
		fresh = append(fresh, txn)
	}
	return fresh, duplicates
}

func (s *ingestServiceImpl) markFailed(ctx context.Context, job *models.IngestJob, reason string) {
	logger.L.Error("Ingest job failed", "jobID", job.ID, "reason", reason)

	finished := time.Now().UTC()
	job.Status = models.JobStatusFailed
	job.FinishedAt = &finished
	job.FailureReason = &reason
	if err := s.jobs.Update(ctx, job); err != nil {
		logger.L.Error("Failed to record ingest job failure", "jobID", job.ID, "error", err)
	}
}
