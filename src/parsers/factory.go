package parsers

import (
	"fmt"

	"github.com/justaszie/spending-tracker/src/models"
	"github.com/justaszie/spending-tracker/src/parsers/revolut"
	"github.com/justaszie/spending-tracker/src/parsers/swedbank"
)

// ErrUnknownSource is returned when no parser is registered for a
// statement source. The orchestrator treats this as a configuration defect
// and fails the job.
var ErrUnknownSource = fmt.Errorf("no parser available for statement source")

// GetParser resolves the parser for a statement source. The mapping is a
// closed, static table: adding a provider means adding one case here and
// one parser package.
func GetParser(source models.TxnSource) (StatementParser, error) {
	switch source {
	case models.SourceRevolut:
		return revolut.NewParser(), nil
	case models.SourceSwedbank:
		return swedbank.NewParser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
}
