package processors

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/justaszie/spending-tracker/src/logger"
	"github.com/justaszie/spending-tracker/src/models"
)

// ErrRateNotFound is returned by a RateSource when no rate is published
// for the requested currency and date.
var ErrRateNotFound = errors.New("exchange rate not found")

// RateSource provides the home-currency exchange rate for one currency on
// one date. The returned rate is units of currency per one EUR.
type RateSource interface {
	Rate(ctx context.Context, date time.Time, currency string) (decimal.Decimal, error)
}

// maxRateLookback bounds the day-decrement retry when no rate exists for
// the transaction's own date (weekends, bank holidays).
const maxRateLookback = 10

// CurrencyProcessor converts original-currency amounts to EUR.
type CurrencyProcessor struct {
	rates RateSource
}

func NewCurrencyProcessor(rates RateSource) *CurrencyProcessor {
	return &CurrencyProcessor{rates: rates}
}

// ToEUR converts amount from currency to EUR using the rate on the
// transaction date, falling back day by day up to maxRateLookback earlier
// dates. A missing rate is not an error: the result is simply invalid and
// the transaction's EUR amount stays null. Any rate source fault is
// treated the same as a missing rate for that date.
func (p *CurrencyProcessor) ToEUR(ctx context.Context, txnTime time.Time, currency string, amount decimal.Decimal) decimal.NullDecimal {
	if strings.ToUpper(currency) == models.HomeCurrency {
		return decimal.NullDecimal{Decimal: amount, Valid: true}
	}

	date := txnTime
	for attempt := 0; attempt <= maxRateLookback; attempt++ {
		rate, err := p.rates.Rate(ctx, date, strings.ToUpper(currency))
		if err != nil {
			if !errors.Is(err, ErrRateNotFound) {
				logger.L.Debug("Rate lookup fault, treating as missing rate",
					"currency", currency, "date", date.Format("2006-01-02"), "error", err)
			}
			date = date.AddDate(0, 0, -1)
			continue
		}
		return decimal.NullDecimal{Decimal: amount.Div(rate).Round(2), Valid: true}
	}

	return decimal.NullDecimal{}
}
