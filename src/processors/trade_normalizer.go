package processors

import (
	"fmt"
	"strings"
	"time"

	"github.com/username/awvreport/src/logger"
	"github.com/username/awvreport/src/models"
)

// sideMap folds the feed's "approximate" variants onto the canonical sides.
var sideMap = map[string]string{
	"BUY":        models.SideBuy,
	"BUY (Ca.)":  models.SideBuy,
	"SELL":       models.SideSell,
	"SELL (Ca.)": models.SideSell,
}

type TradeNormalizer struct{}

func NewTradeNormalizer() *TradeNormalizer { return &TradeNormalizer{} }

// Normalize maps raw feed rows into the canonical trade schema and restricts
// them to the reporting month. Filter order matters: cancellations are
// dropped before anything else, then cash rows, then out-of-period dates.
func (n *TradeNormalizer) Normalize(rawTrades []models.RawTrade, period models.Period) ([]models.NormalizedTrade, error) {
	var trades []models.NormalizedTrade
	for _, raw := range rawTrades {
		if raw.TransactionType == "TradeCancel" {
			logger.L.Debug("Dropping cancelled trade", "orderID", raw.OrderID)
			continue
		}
		if raw.AssetCategory == "CASH" {
			// Currency conversions, not reportable transactions.
			continue
		}

		tradeDate, err := parseTradeDate(raw.TradeDate)
		if err != nil {
			return nil, fmt.Errorf("trade normalizer: orderID %s: %w", raw.OrderID, err)
		}
		if tradeDate.Before(period.Start()) || !tradeDate.Before(period.End()) {
			continue
		}

		side := raw.BuySell
		if mapped, ok := sideMap[side]; ok {
			side = mapped
		}

		trades = append(trades, models.NormalizedTrade{
			Currency:        raw.Currency,
			Description:     raw.Description,
			ISIN:            raw.ISIN,
			OrderID:         raw.OrderID,
			TradeDate:       tradeDate,
			Side:            side,
			Quantity:        raw.Quantity,
			Proceeds:        raw.Proceeds,
			PutCall:         raw.PutCall,
			ListingExchange: raw.ListingExchange,
		})
	}
	return trades, nil
}

// tradeDateLayouts covers the configured FlexQuery format (ISO date, space
// separated time) plus IBKR's compact semicolon format seen in older
// statements.
var tradeDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"20060102;150405",
	"20060102",
}

func parseTradeDate(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	for _, layout := range tradeDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse trade date %q", value)
}
