package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/justaszie/spending-tracker/src/logger"
	"github.com/justaszie/spending-tracker/src/models"
	"github.com/justaszie/spending-tracker/src/processors"
)

// singleSeriesKey is the series key the ECB Data Portal returns for a
// query that pins every dimension except the observation date.
const singleSeriesKey = "0:0:0:0:0"

// ECBRateService fetches daily EUR reference rates from the ECB Data
// Portal API. Fetched rates never change, so they are cached without
// expiration for the lifetime of the process.
type ECBRateService struct {
	baseURL string
	client  *http.Client
	rates   *cache.Cache
}

func NewECBRateService(baseURL string, timeout time.Duration) *ECBRateService {
	return &ECBRateService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		rates:   cache.New(cache.NoExpiration, cache.NoExpiration),
	}
}

// Rate returns the amount of `currency` one EUR buys on the given date.
// It returns processors.ErrRateNotFound when the ECB published no rate
// for that date (weekends, holidays, unknown currencies).
func (s *ECBRateService) Rate(ctx context.Context, date time.Time, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	dateStr := date.Format("2006-01-02")
	cacheKey := currency + "_" + dateStr

	if cached, found := s.rates.Get(cacheKey); found {
		return cached.(decimal.Decimal), nil
	}

	rate, err := s.fetchRate(ctx, currency, dateStr)
	if err != nil {
		return decimal.Decimal{}, err
	}

	s.rates.Set(cacheKey, rate, cache.NoExpiration)
	return rate, nil
}

func (s *ECBRateService) fetchRate(ctx context.Context, currency, dateStr string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/D.%s.EUR.SP00.A", s.baseURL, currency)
	query := url.Values{}
	query.Set("startPeriod", dateStr)
	query.Set("endPeriod", dateStr)
	query.Set("format", "jsondata")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("building exchange rate request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetching exchange rate for %s on %s: %w", currency, dateStr, err)
	}
	defer resp.Body.Close()

	// The ECB API answers an empty 404 when no observation exists for the
	// requested period.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return decimal.Decimal{}, fmt.Errorf("%w: %s on %s", processors.ErrRateNotFound, currency, dateStr)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("exchange rate request for %s on %s returned status %d", currency, dateStr, resp.StatusCode)
	}

	var parsed models.ECBResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decoding exchange rate response for %s on %s: %w", currency, dateStr, err)
	}

	rate, ok := extractRate(parsed)
	if !ok {
		logger.L.Warn("Exchange rate missing in ECB response", "currency", currency, "date", dateStr)
		return decimal.Decimal{}, fmt.Errorf("%w: %s on %s", processors.ErrRateNotFound, currency, dateStr)
	}
	return rate, nil
}

func extractRate(parsed models.ECBResponse) (decimal.Decimal, bool) {
	if len(parsed.DataSets) == 0 {
		return decimal.Decimal{}, false
	}
	series, ok := parsed.DataSets[0].Series[singleSeriesKey]
	if !ok {
		return decimal.Decimal{}, false
	}
	// A single-day query yields at most one observation, keyed "0".
	obs, ok := series.Observations["0"]
	if !ok || len(obs) == 0 {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromFloat(obs[0]), true
}
