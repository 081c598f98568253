package services

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justaszie/spending-tracker/src/database"
	"github.com/justaszie/spending-tracker/src/models"
	"github.com/justaszie/spending-tracker/src/processors"
	"github.com/justaszie/spending-tracker/src/storage"
	"github.com/justaszie/spending-tracker/src/store"
)

// fixedRateSource answers every lookup with the same rate.
type fixedRateSource struct {
	rate decimal.Decimal
}

func (f fixedRateSource) Rate(context.Context, time.Time, string) (decimal.Decimal, error) {
	return f.rate, nil
}

type testEnv struct {
	db          *sql.DB
	jobs        *store.JobStore
	txns        *store.TransactionStore
	storage     storage.FileStorage
	storageRoot string
	svc         IngestService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	storageRoot := t.TempDir()
	fileStorage, err := storage.NewLocalFileStorage(storageRoot)
	require.NoError(t, err)

	jobs := store.NewJobStore(db)
	txns := store.NewTransactionStore(db)
	currency := processors.NewCurrencyProcessor(fixedRateSource{rate: decimal.NewFromInt(1)})

	return &testEnv{
		db:          db,
		jobs:        jobs,
		txns:        txns,
		storage:     fileStorage,
		storageRoot: storageRoot,
		svc:         NewIngestService(jobs, txns, fileStorage, currency, processors.NewCategorizer()),
	}
}

const swedbankStatement = `"Sąskaitos Nr.","Data","Gavėjas","Paaiškinimai","Suma","Valiuta","D/K","Įrašo Nr.","Kodas"
"LT00","2024-04-02","MAXIMA LT","Pirkinys","15,90","EUR","D","2024040211111111","MOK"
"LT00","2024-04-03","CAFFEINE LT","Pirkinys","3,20","EUR","D","2024040322222222","MOK"
"LT00","2024-04-04","SWEDBANK AB","Grynieji Gedimino pr.","50,00","EUR","D","2024040433333333","KIS"
"LT00","2024-04-30","","Apyvarta","120,00","EUR","K","2024043044444444","AS"
`

func (e *testEnv) createJob(t *testing.T, userID uuid.UUID, content string) *models.IngestJob {
	t.Helper()
	job, err := e.svc.CreateJob(context.Background(), userID, models.SourceSwedbank, "statement.csv", strings.NewReader(content))
	require.NoError(t, err)
	return job
}

func TestRunJobCompletesAndCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	job := env.createJob(t, userID, swedbankStatement)
	assert.Equal(t, models.JobStatusPending, job.Status)

	env.svc.RunJob(ctx, job.ID)

	loaded, err := env.svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, loaded.Status)
	assert.NotNil(t, loaded.StartedAt)
	assert.NotNil(t, loaded.FinishedAt)
	assert.Nil(t, loaded.FailureReason)

	// 4 statement rows: the summary row is rejected by the parser and the
	// cash withdrawal is dropped by the filter engine, 2 rows remain.
	require.NotNil(t, loaded.IngestedTxnCount)
	assert.Equal(t, 2, *loaded.IngestedTxnCount)
	require.NotNil(t, loaded.DuplicateTxnCount)
	assert.Equal(t, 0, *loaded.DuplicateTxnCount)

	count, err := env.txns.CountByJob(ctx, job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunJobEnrichesTransactions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	job := env.createJob(t, userID, swedbankStatement)
	env.svc.RunJob(ctx, job.ID)

	var category, eurAmount string
	var autoAdded bool
	require.NoError(t, env.db.QueryRow(
		`SELECT category, eur_amount, auto_added FROM transactions WHERE counterparty = ?`, "MAXIMA LT",
	).Scan(&category, &eurAmount, &autoAdded))
	assert.Equal(t, "Groceries", category)
	assert.Equal(t, "15.9", eurAmount)
	assert.True(t, autoAdded)
}

func TestRunJobSecondUploadIsAllDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	first := env.createJob(t, userID, swedbankStatement)
	env.svc.RunJob(ctx, first.ID)

	second := env.createJob(t, userID, swedbankStatement)
	env.svc.RunJob(ctx, second.ID)

	loaded, err := env.svc.GetJob(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, loaded.Status)
	require.NotNil(t, loaded.IngestedTxnCount)
	assert.Equal(t, 0, *loaded.IngestedTxnCount)
	require.NotNil(t, loaded.DuplicateTxnCount)
	assert.Equal(t, 2, *loaded.DuplicateTxnCount)

	keys, err := env.txns.DedupKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestRunJobRepeatedRowWithinStatement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// The same row id twice in one statement: first occurrence is new,
	// the second is a duplicate.
	content := `"Sąskaitos Nr.","Data","Gavėjas","Paaiškinimai","Suma","Valiuta","D/K","Įrašo Nr.","Kodas"
"LT00","2024-04-02","MAXIMA LT","Pirkinys","15,90","EUR","D","2024040211111111","MOK"
"LT00","2024-04-02","MAXIMA LT","Pirkinys","15,90","EUR","D","2024040211111111","MOK"
`
	job := env.createJob(t, uuid.New(), content)
	env.svc.RunJob(ctx, job.ID)

	loaded, err := env.svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, loaded.Status)
	assert.Equal(t, 1, *loaded.IngestedTxnCount)
	assert.Equal(t, 1, *loaded.DuplicateTxnCount)
}

func TestRunJobFailsOnUnparsableStatement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	job := env.createJob(t, uuid.New(), "Data,Suma\n2024-04-02,15.90\n")
	env.svc.RunJob(ctx, job.ID)

	loaded, err := env.svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, loaded.Status)
	assert.NotNil(t, loaded.FinishedAt)
	require.NotNil(t, loaded.FailureReason)
	assert.Contains(t, *loaded.FailureReason, "missing required column")
	assert.Nil(t, loaded.IngestedTxnCount)
}

func TestRunJobFailsWhenNoParserExists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Cash has no statement parser; the job must fail, not crash.
	job, err := env.svc.CreateJob(ctx, uuid.New(), models.SourceCash, "cash.csv", strings.NewReader("x"))
	require.NoError(t, err)

	env.svc.RunJob(ctx, job.ID)

	loaded, err := env.svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, loaded.Status)
	require.NotNil(t, loaded.FailureReason)
	assert.Contains(t, *loaded.FailureReason, "resolving parser")
}

func TestRunJobFailsWhenFileMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	job := env.createJob(t, uuid.New(), swedbankStatement)

	// Simulate a lost statement file.
	require.NoError(t, os.Remove(filepath.Join(env.storageRoot, job.FilePath)))

	env.svc.RunJob(ctx, job.ID)

	loaded, err := env.svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, loaded.Status)
	require.NotNil(t, loaded.FailureReason)
	assert.Contains(t, *loaded.FailureReason, "opening statement file")
}

func TestRunJobUnknownIDIsNoOp(t *testing.T) {
	env := newTestEnv(t)

	assert.NotPanics(t, func() {
		env.svc.RunJob(context.Background(), uuid.New())
	})
}

func TestGetJobUnknownID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GetJob(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrJobNotFound)
}
