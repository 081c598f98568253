package filters

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/justaszie/spending-tracker/src/models"
)

func txn(txnType models.TransactionType, counterparty string) models.ImportedTransaction {
	return models.ImportedTransaction{
		Type:         txnType,
		Counterparty: counterparty,
		OrigAmount:   decimal.NewFromInt(10),
		OrigCurrency: "EUR",
		Side:         models.SideDebit,
		Source:       models.SourceRevolut,
	}
}

func TestApplyDropsCashWithdrawals(t *testing.T) {
	kept := Apply([]models.ImportedTransaction{
		txn(models.TypeCashWithdrawal, "ATM Vilnius"),
		txn(models.TypeCardPayment, "Lidl"),
	})

	assert.Len(t, kept, 1)
	assert.Equal(t, "Lidl", kept[0].Counterparty)
}

func TestApplyDropsOwnAccountTransfers(t *testing.T) {
	kept := Apply([]models.ImportedTransaction{
		txn(models.TypeTransfer, "To GBP"),
		txn(models.TypeTransfer, "to gbp savings"),
		txn(models.TypeTransfer, "To USD"),
		txn(models.TypeTransfer, "To Investment Account"),
		txn(models.TypeTransfer, "JUSTAS ZIEMINYKAS"),
		txn(models.TypeTransfer, "To Justas Zieminykas"),
		txn(models.TypeTransfer, "Revolut**6494* E14 4HD London"),
	})

	assert.Empty(t, kept)
}

func TestApplyKeepsExternalTransfers(t *testing.T) {
	kept := Apply([]models.ImportedTransaction{
		txn(models.TypeTransfer, "John Smith"),
		txn(models.TypeTransfer, "To GBP Exchange Ltd"),
	})

	assert.Len(t, kept, 2)
}

func TestOwnAccountMatchRequiresTransferType(t *testing.T) {
	// A card payment at a merchant that happens to match an own-account
	// pattern must not be dropped.
	kept := Apply([]models.ImportedTransaction{
		txn(models.TypeCardPayment, "To GBP"),
		txn(models.TypeOther, "JUSTAS ZIEMINYKAS"),
	})

	assert.Len(t, kept, 2)
}

func TestApplyPreservesInputOrder(t *testing.T) {
	kept := Apply([]models.ImportedTransaction{
		txn(models.TypeCardPayment, "first"),
		txn(models.TypeCashWithdrawal, "dropped"),
		txn(models.TypeCardPayment, "second"),
	})

	assert.Len(t, kept, 2)
	assert.Equal(t, "first", kept[0].Counterparty)
	assert.Equal(t, "second", kept[1].Counterparty)
}
