package parsers

import (
	"io"

	"github.com/justaszie/spending-tracker/src/models"
)

// StatementParser decodes a raw statement export into provider-neutral
// transactions, preserving source row order. Malformed rows are dropped and
// counted in the returned stats, never surfaced as errors; an error return
// means the file itself could not be decoded (bad container, missing header
// columns).
type StatementParser interface {
	Parse(r io.Reader) ([]models.ImportedTransaction, models.ParseStats, error)
	Source() models.TxnSource
}
