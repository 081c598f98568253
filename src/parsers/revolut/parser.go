package revolut

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/justaszie/spending-tracker/src/logger"
	"github.com/justaszie/spending-tracker/src/models"
)

const (
	colStartedDate   = "Started Date"
	colCompletedDate = "Completed Date"
	colDescription   = "Description"
	colAmount        = "Amount"
	colCurrency      = "Currency"
	colBalance       = "Balance"
	colType          = "Type"
	colProduct       = "Product"
	colState         = "State"
)

var requiredColumns = []string{
	colStartedDate, colCompletedDate, colDescription, colAmount,
	colCurrency, colBalance, colType, colProduct, colState,
}

// Statement rows outside the primary current account, or not yet settled,
// are not spending and never enter the pipeline.
const (
	includedProduct = "CURRENT"
	includedState   = "COMPLETED"
)

var excludedTypes = map[string]bool{
	"CASHBACK": true,
	"EXCHANGE": true,
	"TOPUP":    true,
	"FEE":      true,
	"TRADE":    true,
}

var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// Parser reads Revolut xlsx statement exports. The first sheet's first row
// is the header; rows are matched to columns by header name.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Source() models.TxnSource {
	return models.SourceRevolut
}

func (p *Parser) Parse(r io.Reader) ([]models.ImportedTransaction, models.ParseStats, error) {
	var stats models.ParseStats

	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return nil, stats, fmt.Errorf("opening revolut statement: %w", err)
	}
	defer workbook.Close()

	sheet := workbook.GetSheetName(0)
	if sheet == "" {
		return nil, stats, fmt.Errorf("revolut statement has no sheets")
	}

	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return nil, stats, fmt.Errorf("reading revolut sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, stats, fmt.Errorf("revolut statement is empty")
	}

	headerIdx, err := headerIndex(rows[0])
	if err != nil {
		return nil, stats, err
	}

	var txns []models.ImportedTransaction
	for i, row := range rows[1:] {
		stats.RowsRead++

		txn, ok := parseRow(row, headerIdx)
		if !ok {
			stats.RowsRejected++
			logger.L.Debug("Dropping revolut statement row", "row", i+2)
			continue
		}
		txns = append(txns, txn)
	}

	return txns, stats, nil
}

func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("revolut statement is missing required column %q", col)
		}
	}
	return idx, nil
}

// parseRow validates and maps a single statement row. A false return means
// the row is dropped: either it failed validation or a business rule
// rejected it; both are counted the same by the caller.
func parseRow(row []string, headerIdx map[string]int) (models.ImportedTransaction, bool) {
	cell := func(col string) string {
		i := headerIdx[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	product := strings.ToUpper(cell(colProduct))
	state := strings.ToUpper(cell(colState))
	rawType := strings.ToUpper(cell(colType))

	if product != includedProduct || state != includedState {
		return models.ImportedTransaction{}, false
	}
	if excludedTypes[rawType] {
		return models.ImportedTransaction{}, false
	}

	startedAt, err := parseDatetime(cell(colStartedDate))
	if err != nil {
		return models.ImportedTransaction{}, false
	}
	if _, err := parseDatetime(cell(colCompletedDate)); err != nil {
		return models.ImportedTransaction{}, false
	}

	amount, err := decimal.NewFromString(cell(colAmount))
	if err != nil {
		return models.ImportedTransaction{}, false
	}

	counterparty := cell(colDescription)
	currency := cell(colCurrency)
	if counterparty == "" || currency == "" {
		return models.ImportedTransaction{}, false
	}

	side := models.SideCredit
	if amount.LessThanOrEqual(decimal.Zero) {
		side = models.SideDebit
	}

	txn := models.ImportedTransaction{
		TransactionDatetime: startedAt,
		Type:                mapType(rawType),
		Counterparty:        counterparty,
		OrigAmount:          amount.Abs(),
		OrigCurrency:        currency,
		Side:                side,
		Source:              models.SourceRevolut,
		DedupKey: dedupKey(
			cell(colStartedDate),
			cell(colCompletedDate),
			counterparty,
			cell(colAmount),
			cell(colBalance),
		),
	}

	if rawType == "CARD REFUND" {
		txn.Note = models.StringPtr("Refund from " + counterparty)
	}

	return txn, true
}

func mapType(rawType string) models.TransactionType {
	switch rawType {
	case "ATM":
		return models.TypeCashWithdrawal
	case "CARD PAYMENT":
		return models.TypeCardPayment
	case "TRANSFER":
		return models.TypeTransfer
	default:
		return models.TypeOther
	}
}

func parseDatetime(value string) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported revolut datetime %q", value)
}

// dedupKey hashes the tuple of raw fields that identify a Revolut statement
// row. The field composition is a compatibility contract: changing it
// invalidates deduplication against previously persisted transactions.
func dedupKey(startedDate, completedDate, counterparty, amount, balance string) string {
	fields := []string{startedDate, completedDate, counterparty, amount, balance}
	for i, f := range fields {
		fields[i] = strings.ToLower(strings.TrimSpace(f))
	}
	digest := sha256.Sum256([]byte(strings.Join(fields, "_")))
	return hex.EncodeToString(digest[:])
}
