package processors

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/username/awvreport/src/logger"
	"github.com/username/awvreport/src/models"
)

// Kennzahl values from the Bundesbank coding scheme (statso7, p.105).
const (
	KennzahlOptionDomestic  = 831 // options traded on domestic derivatives exchanges
	KennzahlOptionForeign   = 821 // options traded on foreign derivatives exchanges
	KennzahlForeignIssuer   = 104 // shares of foreign issuers
	KennzahlDomesticNonbank = 258 // shares of domestic non-bank issuers
)

// OptionExchanges maps a listing exchange to the Kennzahl for option trades
// on that venue. The table must be exhaustive for every venue observed on
// option rows; a missing entry is a configuration defect, not a data error.
type OptionExchanges map[string]int

// DefaultOptionExchanges returns the built-in venue table.
func DefaultOptionExchanges() OptionExchanges {
	return OptionExchanges{
		"AMEX":    KennzahlOptionForeign, // USA
		"ASX":     KennzahlOptionForeign, // Australia
		"BATS":    KennzahlOptionForeign, // USA
		"BELFOX":  KennzahlOptionForeign, // Belgium
		"BOX":     KennzahlOptionForeign, // USA
		"CBOE":    KennzahlOptionForeign, // USA/Chicago
		"CBOE2":   KennzahlOptionForeign, // USA/Chicago
		"CDE":     KennzahlOptionForeign, // Canada
		"DTB":     KennzahlOptionDomestic,
		"EDGX":    KennzahlOptionForeign, // USA
		"EMERALD": KennzahlOptionForeign, // USA
		"EUREX":   KennzahlOptionDomestic,
		"EUREXUK": KennzahlOptionDomestic,
		"FTA":     KennzahlOptionForeign, // Netherlands
		"GEMINI":  KennzahlOptionForeign, // USA
		"HKFE":    KennzahlOptionForeign, // Hong Kong
	}
}

// LoadOptionExchanges returns the built-in table, with entries from the JSON
// file at path layered on top when a path is configured.
func LoadOptionExchanges(path string) (OptionExchanges, error) {
	table := DefaultOptionExchanges()
	if path == "" {
		return table, nil
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read option exchange file '%s': %w", path, err)
	}
	var overrides map[string]int
	if err := json.Unmarshal(fileData, &overrides); err != nil {
		return nil, fmt.Errorf("failed to unmarshal option exchanges from '%s': %w", path, err)
	}
	for venue, code := range overrides {
		table[venue] = code
	}
	logger.L.Info("Option exchange table loaded", "path", path, "overrides", len(overrides), "venues", len(table))
	return table, nil
}

// Validate checks the table is exhaustive for every venue seen on option
// rows, before any classification happens. Failing per-row later would leave
// unclassifiable records that cannot be legally submitted.
func (m OptionExchanges) Validate(aggregates []models.OrderAggregate) error {
	missing := make(map[string]bool)
	for _, agg := range aggregates {
		if agg.PutCall == "" {
			continue
		}
		if _, ok := m[agg.ListingExchange]; !ok {
			missing[agg.ListingExchange] = true
		}
	}
	if len(missing) == 0 {
		return nil
	}

	venues := make([]string, 0, len(missing))
	for venue := range missing {
		venues = append(venues, venue)
	}
	sort.Strings(venues)
	return fmt.Errorf("option exchange table is missing venues: %s", strings.Join(venues, ", "))
}
