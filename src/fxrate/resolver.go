package fxrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/awvreport/src/logger"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// ErrRateUnavailable signals that no closing rate could be obtained for the
// requested currency and date. It is deliberately distinct from a zero rate:
// callers decide whether to zero, flag, or fail the affected amount.
var ErrRateUnavailable = errors.New("fxrate: rate unavailable")

// Resolver returns the EUR conversion rate for a currency on a calendar date.
type Resolver interface {
	Rate(currency string, date time.Time) (float64, error)
}

// yahooChartResponse maps the subset of the Yahoo Finance chart API we read.
// Close values may be null for non-trading days.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// YahooResolver looks up daily closing rates for <CCY>EUR=X pairs. Results
// are memoized per (currency, date); the same pair repeats often within a
// reporting month.
type YahooResolver struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	rateCache  *cache.Cache
}

// NewYahooResolver creates a resolver against the given Yahoo Finance base
// URL (e.g. https://query1.finance.yahoo.com).
func NewYahooResolver(baseURL string) *YahooResolver {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	return &YahooResolver{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 20 * time.Second,
		},
		baseURL:   baseURL,
		limiter:   rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
		rateCache: cache.New(cache.NoExpiration, cache.NoExpiration),
	}
}

// Rate returns the EUR closing rate for the given currency on the given
// calendar date. EUR itself is always 1.0 without any lookup.
func (r *YahooResolver) Rate(currency string, date time.Time) (float64, error) {
	if currency == "EUR" {
		return 1.0, nil
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	cacheKey := currency + "|" + day.Format("2006-01-02")
	if v, found := r.rateCache.Get(cacheKey); found {
		return v.(float64), nil
	}

	fx, err := r.fetchRate(currency, day)
	if err != nil {
		logger.L.Warn("FX rate lookup failed", "currency", currency, "date", day.Format("2006-01-02"), "error", err)
		return 0, ErrRateUnavailable
	}

	r.rateCache.Set(cacheKey, fx, cache.NoExpiration)
	return fx, nil
}

// fetchRate queries the chart API over a one-day window [day, day+1).
func (r *YahooResolver) fetchRate(currency string, day time.Time) (float64, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%sEUR=X?period1=%d&period2=%d&interval=1d",
		r.baseURL, currency, day.Unix(), day.AddDate(0, 0, 1).Unix())

	if err := r.limiter.Wait(context.Background()); err != nil {
		return 0, err
	}

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call chart API for %sEUR: %w", currency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("chart API returned non-OK status %d for %sEUR", resp.StatusCode, currency)
	}

	var chartData yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chartData); err != nil {
		return 0, fmt.Errorf("failed to decode chart response for %sEUR: %w", currency, err)
	}

	if chartData.Chart.Error != nil || len(chartData.Chart.Result) == 0 {
		return 0, fmt.Errorf("chart API returned an error or no result for %sEUR", currency)
	}

	quotes := chartData.Chart.Result[0].Indicators.Quote
	if len(quotes) == 0 {
		return 0, fmt.Errorf("no quote data for %sEUR on %s", currency, day.Format("2006-01-02"))
	}
	for _, closeValue := range quotes[0].Close {
		if closeValue != nil {
			return *closeValue, nil
		}
	}
	return 0, fmt.Errorf("no closing value for %sEUR on %s", currency, day.Format("2006-01-02"))
}
