// Package filters drops imported transactions that are not spending:
// cash withdrawals and transfers between the owner's own accounts.
package filters

import (
	"regexp"

	"github.com/justaszie/spending-tracker/src/models"
)

// FilterFn reports whether a transaction should be retained.
type FilterFn func(models.ImportedTransaction) bool

// ownAccountPatterns match counterparty text of transfers to the owner's
// own sub-accounts (savings, other-currency pockets, investment account).
var ownAccountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^JUSTAS ZIEMINYKAS$`),
	regexp.MustCompile(`(?i)^TO GBP$`),
	regexp.MustCompile(`(?i)^TO GBP SAVINGS$`),
	regexp.MustCompile(`(?i)^TO JUSTAS Å½IEMINYKAS$`),
	regexp.MustCompile(`(?i)^TO JUSTAS ŽIEMINYKAS$`),
	regexp.MustCompile(`(?i)^TO JUSTAS ZIEMINYKAS$`),
	regexp.MustCompile(`(?i)^TO USD$`),
	regexp.MustCompile(`(?i)^TO INVESTMENT ACCOUNT$`),
	// Top up using Google Play with the Swedbank card
	regexp.MustCompile(`(?i)^Revolut\*\*6494\* E14 4HD London$`),
}

func isOwnAccountTransfer(txn models.ImportedTransaction) bool {
	if txn.Type != models.TypeTransfer {
		return false
	}
	for _, pattern := range ownAccountPatterns {
		if pattern.MatchString(txn.Counterparty) {
			return true
		}
	}
	return false
}

// activeFilters is the fixed, ordered predicate list. A transaction is
// retained only if every predicate returns true. The list is process-wide
// static configuration: adding a rule changes behavior for all subsequent
// jobs uniformly.
var activeFilters = []FilterFn{
	func(txn models.ImportedTransaction) bool { return txn.Type != models.TypeCashWithdrawal },
	func(txn models.ImportedTransaction) bool { return !isOwnAccountTransfer(txn) },
}

// Apply returns the transactions that pass every active filter, in input
// order.
func Apply(txns []models.ImportedTransaction) []models.ImportedTransaction {
	var filtered []models.ImportedTransaction
	for _, txn := range txns {
		if passesAll(txn) {
			filtered = append(filtered, txn)
		}
	}
	return filtered
}

func passesAll(txn models.ImportedTransaction) bool {
	for _, filter := range activeFilters {
		if !filter(txn) {
			return false
		}
	}
	return true
}
