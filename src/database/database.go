package database

import (
	"database/sql"
	"fmt"

	"github.com/justaszie/spending-tracker/src/logger"
	_ "modernc.org/sqlite"
)

// InitDB opens the sqlite database at databasePath and ensures the schema
// exists. The returned handle is passed explicitly into the stores.
//
// The UNIQUE constraint on transactions.dedup_key is the source of truth
// for the no-double-import invariant: the orchestrator's in-memory dedup
// snapshot is only an optimization, concurrent jobs are arbitrated here.
func InitDB(databasePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}

	if logger.L != nil {
		logger.L.Info("Ensuring database schema", "databasePath", databasePath)
	}

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		statement_source TEXT NOT NULL,
		file_path TEXT NOT NULL,
		user_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		started_at TEXT,
		finished_at TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		failure_reason TEXT,
		ingested_txn_count INTEGER,
		duplicate_txn_count INTEGER
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		transaction_datetime TEXT NOT NULL,
		type TEXT NOT NULL,
		counterparty TEXT NOT NULL,
		orig_amount TEXT NOT NULL,
		orig_currency TEXT NOT NULL,
		side TEXT NOT NULL,
		source TEXT NOT NULL,
		eur_amount TEXT,
		auto_added BOOLEAN NOT NULL DEFAULT FALSE,
		note TEXT,
		category TEXT,
		sub_category TEXT,
		detail TEXT,
		meal_type TEXT,
		refunded_eur_amount TEXT NOT NULL DEFAULT '0',
		dedup_key TEXT NOT NULL UNIQUE,
		job_id TEXT,
		user_id TEXT NOT NULL,
		FOREIGN KEY(job_id) REFERENCES jobs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_job_id ON transactions(job_id);
	`

	if _, err := db.Exec(createTableStatement); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	}
	return db, nil
}
