package swedbank

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/justaszie/spending-tracker/src/logger"
	"github.com/justaszie/spending-tracker/src/models"
)

const (
	colDate         = "Data"
	colCounterparty = "Gavėjas"
	colAmount       = "Suma"
	colCurrency     = "Valiuta"
	colNote         = "Paaiškinimai"
	colUniqueID     = "Įrašo Nr."
	colCode         = "Kodas"
	colDebitCredit  = "D/K"
)

var requiredColumns = []string{
	colDate, colCounterparty, colAmount, colCurrency,
	colNote, colUniqueID, colCode, colDebitCredit,
}

// Swedbank statements interleave real transactions with human-oriented
// summary lines (period turnover, balance, service-plan fee notices).
// Those carry no counterparty and match one of these description patterns.
var excludedNotePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^apyvarta$`),
	regexp.MustCompile(`(?i)^likutis .*$`),
	regexp.MustCompile(`(?i)paslaugų plano(.+ mokestis.*)?$`),
}

// accountHolder is the statement owner's name as Swedbank prints it in the
// counterparty column for transfers between the owner's own accounts.
const accountHolder = "JUSTAS ZIEMINYKAS"

// cashWithdrawalMarker appears in the description of ATM withdrawals.
const cashWithdrawalMarker = "GRYNIEJI"

const dateLayout = "2006-01-02"

// Parser reads Swedbank delimited-text statement exports. The first row is
// the header; rows are matched to columns by header name.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Source() models.TxnSource {
	return models.SourceSwedbank
}

func (p *Parser) Parse(r io.Reader) ([]models.ImportedTransaction, models.ParseStats, error) {
	var stats models.ParseStats

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, stats, fmt.Errorf("reading swedbank CSV header: %w", err)
	}
	headerIdx, err := headerIndex(header)
	if err != nil {
		return nil, stats, err
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, stats, fmt.Errorf("reading swedbank CSV records: %w", err)
	}

	var txns []models.ImportedTransaction
	for i, record := range records {
		stats.RowsRead++

		txn, ok := parseRow(record, headerIdx)
		if !ok {
			stats.RowsRejected++
			logger.L.Debug("Dropping swedbank statement row", "row", i+2)
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
			return nil, fmt.Errorf("swedbank statement is missing required column %q", col)
		}
	}
	return idx, nil
}

func parseRow(record []string, headerIdx map[string]int) (models.ImportedTransaction, bool) {
	cell := func(col string) string {
		i := headerIdx[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	counterparty := cell(colCounterparty)
	note := cell(colNote)

	if counterparty == "" && matchesExcludedPattern(note) {
		return models.ImportedTransaction{}, false
	}

	date, err := time.Parse(dateLayout, cell(colDate))
	if err != nil {
		return models.ImportedTransaction{}, false
	}

	// Swedbank exports localized decimals in some variants.
	amount, err := decimal.NewFromString(strings.ReplaceAll(cell(colAmount), ",", "."))
	if err != nil {
		return models.ImportedTransaction{}, false
	}

	currency := cell(colCurrency)
	uniqueID := cell(colUniqueID)
	if currency == "" || uniqueID == "" {
		return models.ImportedTransaction{}, false
	}

	// Some rows (service payments, standing orders) have no counterparty;
	// the description is the best identification available.
	if counterparty == "" {
		counterparty = note
	}
	if counterparty == "" {
		return models.ImportedTransaction{}, false
	}

	side := models.SideCredit
	if cell(colDebitCredit) == "D" {
		side = models.SideDebit
	}

	txn := models.ImportedTransaction{
		TransactionDatetime: date,
		Type:                mapType(counterparty, note),
		Counterparty:        counterparty,
		OrigAmount:          amount.Abs(),
		OrigCurrency:        currency,
		Side:                side,
		Source:              models.SourceSwedbank,
		DedupKey:            dedupKey(uniqueID),
	}
	if note != "" {
		txn.Note = models.StringPtr(note)
	}

	return txn, true
}

func matchesExcludedPattern(note string) bool {
	for _, pattern := range excludedNotePatterns {
		if pattern.MatchString(note) {
			return true
		}
	}
	return false
}

// mapType derives the provider-neutral type. Swedbank has no explicit type
// column: ATM withdrawals are recognized by the description marker, and
// rows whose counterparty is the account holder are transfers between the
// owner's own accounts (the filter engine drops both downstream).
func mapType(counterparty, note string) models.TransactionType {
	if strings.Contains(strings.ToUpper(note), cashWithdrawalMarker) {
		return models.TypeCashWithdrawal
	}
	if strings.EqualFold(counterparty, accountHolder) {
		return models.TypeTransfer
	}
	return models.TypeOther
}

// dedupKey hashes Swedbank's own unique row id ("Įrašo Nr."). The hashed
// input composition is a compatibility contract: changing it invalidates
// deduplication against previously persisted transactions.
func dedupKey(uniqueID string) string {
	digest := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(uniqueID))))
	return hex.EncodeToString(digest[:])
}
