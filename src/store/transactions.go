package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/justaszie/spending-tracker/src/logger"
	"github.com/justaszie/spending-tracker/src/models"
)

// TransactionStore persists enriched transactions.
type TransactionStore struct {
	db *sql.DB
}

func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// DedupKeys returns the full set of persisted dedup keys (global, not
// scoped to a job or user) for O(1) membership tests during
// reconciliation.
func (s *TransactionStore) DedupKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dedup_key FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("querying dedup keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning dedup key: %w", err)
		}
		keys[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dedup keys: %w", err)
	}
	return keys, nil
}

// InsertBatch inserts transactions one statement at a time inside a single
// db transaction, skipping rows that violate the dedup_key uniqueness
// constraint. A concurrent job may have persisted the same key after this
// job took its dedup snapshot; losing the whole batch over it is not
// acceptable, so the offending row is skipped and counted instead.
// Returns the number of rows actually inserted.
func (s *TransactionStore) InsertBatch(ctx context.Context, txns []models.Transaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO transactions (id, transaction_datetime, type, counterparty, orig_amount, orig_currency, side, source, eur_amount, auto_added, note, category, sub_category, detail, meal_type, refunded_eur_amount, dedup_key, job_id, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, txn := range txns {
		_, err := stmt.ExecContext(ctx,
			txn.ID.String(),
			formatTime(txn.TransactionDatetime),
			string(txn.Type),
			txn.Counterparty,
			txn.OrigAmount.String(),
			txn.OrigCurrency,
			string(txn.Side),
			string(txn.Source),
			nullDecimal(txn.EURAmount),
			txn.AutoAdded,
			nullString(txn.Note),
			nullString(txn.Category),
			nullString(txn.SubCategory),
			nullString(txn.Detail),
			nullString(txn.MealType),
			txn.RefundedEURAmount.String(),
			txn.DedupKey,
			txn.JobID.String(),
			txn.UserID.String(),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				logger.L.Warn("Skipping concurrently duplicated transaction on insert",
					"jobID", txn.JobID, "dedupKey", txn.DedupKey)
				continue
			}
			return 0, fmt.Errorf("inserting transaction (dedup key %s): %w", txn.DedupKey, err)
		}
		inserted++
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transactions: %w", err)
	}
	return inserted, nil
}

// CountByJob returns the number of persisted transactions owned by a job.
func (s *TransactionStore) CountByJob(ctx context.Context, jobID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE job_id = ?`, jobID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting transactions for job %s: %w", jobID, err)
	}
	return count, nil
}

func nullDecimal(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}
