package processors

import (
	"fmt"
	"math"
	"sort"

	"github.com/username/awvreport/src/logger"
	"github.com/username/awvreport/src/models"
)

// Belegart values: payment direction of the reported transaction.
const (
	BelegartIncoming = 3 // incoming payment (sales and everything else)
	BelegartOutgoing = 4 // outgoing payment (purchases)
)

// ClassifierConfig carries the fixed reporting parameters. OptionExchanges
// is treated as immutable once passed in.
type ClassifierConfig struct {
	Limit              float64 // materiality threshold in thousands of EUR
	EnforceLimit       bool
	CounterpartCountry string // substituted for German ISIN country codes
	OptionExchanges    OptionExchanges
}

// monthlyKey groups order aggregates into counterparty-level monthly totals.
type monthlyKey struct {
	Currency        string
	Description     string
	CountryCode     string
	ISIN            string
	PutCall         string
	ListingExchange string
	Side            string
}

type MonthlyClassifier struct {
	cfg ClassifierConfig
}

func NewMonthlyClassifier(cfg ClassifierConfig) *MonthlyClassifier {
	return &MonthlyClassifier{cfg: cfg}
}

// Classify re-aggregates order aggregates into monthly totals, assigns
// country and classification codes, and applies the materiality threshold.
func (c *MonthlyClassifier) Classify(aggregates []models.OrderAggregate) ([]models.MonthlyAggregate, error) {
	// The venue table must cover every option venue in the input before
	// any row is classified.
	if err := c.cfg.OptionExchanges.Validate(aggregates); err != nil {
		return nil, err
	}

	groups := make(map[monthlyKey]*models.MonthlyAggregate)
	for _, agg := range aggregates {
		countryCode := ""
		if len(agg.ISIN) >= 2 {
			countryCode = agg.ISIN[:2]
		}
		// The counterparty for German securities is the broker's own
		// domicile, not the issuer's.
		if countryCode == "DE" {
			countryCode = c.cfg.CounterpartCountry
		}

		key := monthlyKey{
			Currency:        agg.Currency,
			Description:     agg.Description,
			CountryCode:     countryCode,
			ISIN:            agg.ISIN,
			PutCall:         agg.PutCall,
			ListingExchange: agg.ListingExchange,
			Side:            agg.Side,
		}
		monthly, exists := groups[key]
		if !exists {
			monthly = &models.MonthlyAggregate{
				Currency:        key.Currency,
				Description:     key.Description,
				CountryCode:     key.CountryCode,
				ISIN:            key.ISIN,
				PutCall:         key.PutCall,
				ListingExchange: key.ListingExchange,
				Side:            key.Side,
			}
			groups[key] = monthly
		}
		monthly.Quantity += agg.Quantity
		monthly.AmountEUR += agg.AmountEUR
	}

	var monthlies []models.MonthlyAggregate
	for _, monthly := range groups {
		// Threshold applies to the monthly total, not the individual
		// order: split executions must not escape reporting.
		if c.cfg.EnforceLimit && math.Abs(monthly.AmountEUR) < c.cfg.Limit {
			continue
		}

		monthly.DocumentType = BelegartIncoming
		if monthly.Side == models.SideBuy {
			monthly.DocumentType = BelegartOutgoing
		}

		classification, err := c.classificationCode(monthly)
		if err != nil {
			return nil, err
		}
		monthly.Classification = classification
		if classification == 0 {
			logger.L.Warn("Row left unclassified, needs manual review",
				"description", monthly.Description, "isin", monthly.ISIN, "exchange", monthly.ListingExchange)
		}

		monthly.Quantity = math.Abs(monthly.Quantity)
		monthlies = append(monthlies, *monthly)
	}

	sort.Slice(monthlies, func(i, j int) bool {
		return lessMonthlyAggregate(monthlies[i], monthlies[j])
	})
	return monthlies, nil
}

// classificationCode applies the Kennzahl rules as sequential overwrites in
// a fixed order; a later rule wins over an earlier one. Reordering these
// silently misclassifies DE-prefixed ISINs.
//
// Known accuracy gap: depositary receipts carry the wrapper's ISIN prefix,
// so this heuristic misclassifies them. Such rows need manual review.
func (c *MonthlyClassifier) classificationCode(monthly *models.MonthlyAggregate) (int, error) {
	// Rule 1: option trades classify by venue.
	if monthly.PutCall != "" {
		code, ok := c.cfg.OptionExchanges[monthly.ListingExchange]
		if !ok {
			// Validate ran first, so this cannot be reached for input
			// venues; kept as a hard stop for programming errors.
			return 0, fmt.Errorf("no option exchange mapping for venue %q", monthly.ListingExchange)
		}
		return code, nil
	}

	prefix := ""
	if len(monthly.ISIN) >= 2 {
		prefix = monthly.ISIN[:2]
	}

	code := 0
	// Rule 2: non-German, non-empty ISIN prefix means a foreign issuer.
	if prefix != "DE" && prefix != "" {
		code = KennzahlForeignIssuer
	}
	// Rule 3, applied last and winning over rule 2: German ISINs are
	// domestic non-bank issuers.
	if prefix == "DE" {
		code = KennzahlDomesticNonbank
	}
	return code, nil
}

func lessMonthlyAggregate(a, b models.MonthlyAggregate) bool {
	if a.Currency != b.Currency {
		return a.Currency < b.Currency
	}
	if a.Description != b.Description {
		return a.Description < b.Description
	}
	if a.CountryCode != b.CountryCode {
		return a.CountryCode < b.CountryCode
	}
	if a.ISIN != b.ISIN {
		return a.ISIN < b.ISIN
	}
	if a.PutCall != b.PutCall {
		return a.PutCall < b.PutCall
	}
	if a.ListingExchange != b.ListingExchange {
		return a.ListingExchange < b.ListingExchange
	}
	return a.Side < b.Side
}
