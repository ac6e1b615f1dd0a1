package processors

import (
	"errors"
	"sort"
	"time"

	"github.com/username/awvreport/src/fxrate"
	"github.com/username/awvreport/src/logger"
	"github.com/username/awvreport/src/models"
)

// FxWarning records a trade whose EUR amount was zeroed because no rate
// could be resolved. These must be surfaced to the operator; a zeroed amount
// is otherwise indistinguishable from a genuine zero.
type FxWarning struct {
	OrderID  string
	Currency string
	Date     time.Time
}

// orderKey identifies one economic order: all partial fills sharing it
// collapse into a single aggregate.
type orderKey struct {
	OrderID         string
	Currency        string
	Description     string
	ISIN            string
	Side            string
	PutCall         string
	ListingExchange string
}

type OrderAggregator struct {
	resolver fxrate.Resolver
}

func NewOrderAggregator(resolver fxrate.Resolver) *OrderAggregator {
	return &OrderAggregator{resolver: resolver}
}

// Aggregate enriches each trade with its own-date FX rate, converts the
// proceeds to thousands of EUR, and combines partial fills per order key.
// Output order is deterministic (sorted by key).
func (a *OrderAggregator) Aggregate(trades []models.NormalizedTrade) ([]models.OrderAggregate, []FxWarning) {
	groups := make(map[orderKey]*models.OrderAggregate)
	fillTimes := make(map[orderKey][]time.Time)
	var warnings []FxWarning

	for _, trade := range trades {
		fx, err := a.resolver.Rate(trade.Currency, trade.TradeDate)
		if err != nil {
			if !errors.Is(err, fxrate.ErrRateUnavailable) {
				logger.L.Error("Unexpected FX resolver error", "orderID", trade.OrderID, "error", err)
			}
			// Keep the row with a zeroed amount and flag it.
			fx = 0
			warnings = append(warnings, FxWarning{OrderID: trade.OrderID, Currency: trade.Currency, Date: trade.TradeDate})
		}
		amountEUR := trade.Proceeds * fx / 1000 // in thousands of EUR

		key := orderKey{
			OrderID:         trade.OrderID,
			Currency:        trade.Currency,
			Description:     trade.Description,
			ISIN:            trade.ISIN,
			Side:            trade.Side,
			PutCall:         trade.PutCall,
			ListingExchange: trade.ListingExchange,
		}
		agg, exists := groups[key]
		if !exists {
			agg = &models.OrderAggregate{
				OrderID:         key.OrderID,
				Currency:        key.Currency,
				Description:     key.Description,
				ISIN:            key.ISIN,
				Side:            key.Side,
				PutCall:         key.PutCall,
				ListingExchange: key.ListingExchange,
			}
			groups[key] = agg
		}
		agg.Quantity += trade.Quantity
		agg.AmountEUR += amountEUR
		fillTimes[key] = append(fillTimes[key], trade.TradeDate)
	}

	aggregates := make([]models.OrderAggregate, 0, len(groups))
	for key, agg := range groups {
		agg.TradeDate = meanTime(fillTimes[key])
		aggregates = append(aggregates, *agg)
	}
	sort.Slice(aggregates, func(i, j int) bool {
		return lessOrderAggregate(aggregates[i], aggregates[j])
	})
	return aggregates, warnings
}

func lessOrderAggregate(a, b models.OrderAggregate) bool {
	if a.OrderID != b.OrderID {
		return a.OrderID < b.OrderID
	}
	if a.Currency != b.Currency {
		return a.Currency < b.Currency
	}
	if a.Description != b.Description {
		return a.Description < b.Description
	}
	if a.ISIN != b.ISIN {
		return a.ISIN < b.ISIN
	}
	if a.Side != b.Side {
		return a.Side < b.Side
	}
	if a.PutCall != b.PutCall {
		return a.PutCall < b.PutCall
	}
	return a.ListingExchange < b.ListingExchange
}

// meanTime averages fill times. Used only for diagnostics on the aggregate.
func meanTime(times []time.Time) time.Time {
	if len(times) == 0 {
		return time.Time{}
	}
	var total int64
	for _, t := range times {
		total += t.Unix()
	}
	return time.Unix(total/int64(len(times)), 0).UTC()
}
