package revolut

import (
	"bytes"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/justaszie/spending-tracker/src/logger"
	"github.com/justaszie/spending-tracker/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

var statementHeader = []string{
	"Type", "Product", "Started Date", "Completed Date", "Description",
	"Amount", "Fee", "Currency", "State", "Balance",
}

// row builds a statement row in statementHeader order.
func row(rawType, product, started, completed, description, amount, currency, state, balance string) []string {
	return []string{rawType, product, started, completed, description, amount, "0.00", currency, state, balance}
}

func buildStatement(t *testing.T, rows [][]string) *bytes.Buffer {
	t.Helper()

	workbook := excelize.NewFile()
	sheet := workbook.GetSheetName(0)
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, workbook.SetSheetRow(sheet, cell, &r))
	}

	buf, err := workbook.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseCardPayment(t *testing.T) {
	statement := buildStatement(t, [][]string{
		statementHeader,
		row("CARD PAYMENT", "Current", "2024-03-15 12:30:00", "2024-03-16 09:00:00", "Lidl", "-12.50", "EUR", "COMPLETED", "150.00"),
	})

	txns, stats, err := NewParser().Parse(statement)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, 1, stats.RowsRead)
	assert.Equal(t, 0, stats.RowsRejected)

	txn := txns[0]
	assert.Equal(t, models.TypeCardPayment, txn.Type)
	assert.Equal(t, "Lidl", txn.Counterparty)
	assert.Equal(t, models.SideDebit, txn.Side)
	assert.True(t, txn.OrigAmount.Equal(decimal.RequireFromString("12.50")), "got %s", txn.OrigAmount)
	assert.Equal(t, "EUR", txn.OrigCurrency)
	assert.Equal(t, models.SourceRevolut, txn.Source)
	assert.Equal(t, 2024, txn.TransactionDatetime.Year())
	assert.Equal(t, 15, txn.TransactionDatetime.Day())
	assert.NotEmpty(t, txn.DedupKey)
	assert.Nil(t, txn.Note)
}

func TestParseCreditSide(t *testing.T) {
	statement := buildStatement(t, [][]string{
		statementHeader,
		row("CARD REFUND", "Current", "2024-03-15 12:30:00", "2024-03-16 09:00:00", "Zara", "25.00", "EUR", "COMPLETED", "175.00"),
	})

	txns, _, err := NewParser().Parse(statement)
	require.NoError(t, err)
	require.Len(t, txns, 1)

	assert.Equal(t, models.SideCredit, txns[0].Side)
	assert.Equal(t, models.TypeOther, txns[0].Type)
	require.NotNil(t, txns[0].Note)
	assert.Equal(t, "Refund from Zara", *txns[0].Note)
}

func TestParseSkipsNonSpendingRows(t *testing.T) {
	statement := buildStatement(t, [][]string{
		statementHeader,
		row("TOPUP", "Current", "2024-03-01 10:00:00", "2024-03-01 10:00:00", "Top-Up via bank", "500.00", "EUR", "COMPLETED", "650.00"),
		row("CARD PAYMENT", "Savings", "2024-03-02 10:00:00", "2024-03-02 10:00:00", "Lidl", "-5.00", "EUR", "COMPLETED", "645.00"),
		row("CARD PAYMENT", "Current", "2024-03-03 10:00:00", "2024-03-03 10:00:00", "Lidl", "-5.00", "EUR", "REVERTED", "645.00"),
		row("EXCHANGE", "Current", "2024-03-04 10:00:00", "2024-03-04 10:00:00", "Exchanged to USD", "-100.00", "EUR", "COMPLETED", "545.00"),
		row("CARD PAYMENT", "Current", "2024-03-05 10:00:00", "2024-03-05 10:00:00", "Rimi", "-7.35", "EUR", "COMPLETED", "537.65"),
	})

	txns, stats, err := NewParser().Parse(statement)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Rimi", txns[0].Counterparty)
	assert.Equal(t, 5, stats.RowsRead)
	assert.Equal(t, 4, stats.RowsRejected)
}

func TestParseTypeMapping(t *testing.T) {
	statement := buildStatement(t, [][]string{
		statementHeader,
		row("ATM", "Current", "2024-03-10 22:00:00", "2024-03-11 01:00:00", "ATM Vilnius", "-50.00", "EUR", "COMPLETED", "100.00"),
		row("TRANSFER", "Current", "2024-03-12 08:00:00", "2024-03-12 08:00:00", "To GBP", "-30.00", "EUR", "COMPLETED", "70.00"),
	})

	txns, _, err := NewParser().Parse(statement)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, models.TypeCashWithdrawal, txns[0].Type)
	assert.Equal(t, models.TypeTransfer, txns[1].Type)
}

func TestParseRejectsInvalidRows(t *testing.T) {
	statement := buildStatement(t, [][]string{
		statementHeader,
		row("CARD PAYMENT", "Current", "not-a-date", "2024-03-16 09:00:00", "Lidl", "-12.50", "EUR", "COMPLETED", "150.00"),
		row("CARD PAYMENT", "Current", "2024-03-15 12:30:00", "2024-03-16 09:00:00", "Lidl", "not-a-number", "EUR", "COMPLETED", "150.00"),
		row("CARD PAYMENT", "Current", "2024-03-15 12:30:00", "2024-03-16 09:00:00", "", "-12.50", "EUR", "COMPLETED", "150.00"),
	})

	txns, stats, err := NewParser().Parse(statement)
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.Equal(t, 3, stats.RowsRejected)
}

func TestParseMissingColumnFails(t *testing.T) {
	statement := buildStatement(t, [][]string{
		{"Type", "Product", "Started Date", "Completed Date", "Description"},
		{"CARD PAYMENT", "Current", "2024-03-15 12:30:00", "2024-03-16 09:00:00", "Lidl"},
	})

	_, _, err := NewParser().Parse(statement)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column")
}

func TestDedupKeyIsDeterministic(t *testing.T) {
	rows := [][]string{
		statementHeader,
		row("CARD PAYMENT", "Current", "2024-03-15 12:30:00", "2024-03-16 09:00:00", "Lidl", "-12.50", "EUR", "COMPLETED", "150.00"),
		row("CARD PAYMENT", "Current", "2024-03-15 12:30:00", "2024-03-16 09:00:00", "Lidl", "-12.50", "EUR", "COMPLETED", "137.50"),
	}

	first, _, err := NewParser().Parse(buildStatement(t, rows))
	require.NoError(t, err)
	second, _, err := NewParser().Parse(buildStatement(t, rows))
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].DedupKey, second[0].DedupKey)
	// Balance participates in the key, so otherwise identical rows differ.
	assert.NotEqual(t, first[0].DedupKey, first[1].DedupKey)
}
