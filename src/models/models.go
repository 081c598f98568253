package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HomeCurrency is the single currency all enriched amounts are normalized to.
const HomeCurrency = "EUR"

// Side marks whether money left or entered the account.
type Side string

const (
	SideDebit  Side = "Debit"
	SideCredit Side = "Credit"
)

// TxnSource identifies the statement provider a transaction came from.
type TxnSource string

const (
	SourceCash     TxnSource = "Cash"
	SourceSwedbank TxnSource = "Swedbank"
	SourceRevolut  TxnSource = "Revolut"
)

// ParseTxnSource converts a client-supplied source value (e.g. the
// "statement_source" form field) into a TxnSource.
func ParseTxnSource(s string) (TxnSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash":
		return SourceCash, nil
	case "swedbank":
		return SourceSwedbank, nil
	case "revolut":
		return SourceRevolut, nil
	default:
		return "", fmt.Errorf("unknown statement source: %q", s)
	}
}

// TransactionType is the provider-neutral classification of a statement row.
type TransactionType string

const (
	TypeCardPayment    TransactionType = "card_payment"
	TypeCashWithdrawal TransactionType = "cash_withdrawal"
	TypeTransfer       TransactionType = "transfer"
	TypeOther          TransactionType = "other"
)

// ImportedTransaction is the parser output boundary: a provider-neutral
// transaction extracted from one statement row, prior to enrichment.
// DedupKey is a sha256 hex digest computed by the parser from the
// provider's identifying fields; it must be stable across re-imports of
// the same file.
type ImportedTransaction struct {
	TransactionDatetime time.Time
	Type                TransactionType
	Counterparty        string
	OrigAmount          decimal.Decimal // non-negative, Side carries direction
	OrigCurrency        string
	Side                Side
	Source              TxnSource
	Note                *string
	DedupKey            string
}

// Categorization is the partial outcome of the categorization rules.
// Nil fields stay unset on the enriched transaction; Note, when set,
// overrides the parser-provided note.
type Categorization struct {
	Category    *string
	SubCategory *string
	Detail      *string
	MealType    *string
	Note        *string
}

// Transaction is the persisted, enriched superset of ImportedTransaction.
type Transaction struct {
	ID uuid.UUID
	ImportedTransaction

	EURAmount         decimal.NullDecimal // invalid when conversion failed
	Category          *string
	SubCategory       *string
	Detail            *string
	MealType          *string
	AutoAdded         bool
	RefundedEURAmount decimal.Decimal
	JobID             uuid.UUID
	UserID            uuid.UUID
}

// JobStatus is the ingest job state machine. Terminal states are absorbing;
// retrying a job means submitting a new one.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IngestJob is one record per ingestion request. Count fields are only
// populated when the job completes.
type IngestJob struct {
	ID                uuid.UUID
	StatementSource   TxnSource
	FilePath          string
	UserID            uuid.UUID
	CreatedAt         time.Time
	StartedAt         *time.Time
	FinishedAt        *time.Time
	Status            JobStatus
	FailureReason     *string
	IngestedTxnCount  *int
	DuplicateTxnCount *int
}

// ParseStats counts the statement rows a parser saw and the rows it
// dropped. RowsRejected covers both schema-validation failures and provider
// business-rule rejections; neither produces an output transaction and the
// parser does not distinguish the two in its result.
type ParseStats struct {
	RowsRead     int
	RowsRejected int
}

// StringPtr is a convenience helper for optional text fields.
func StringPtr(s string) *string {
	return &s
}
