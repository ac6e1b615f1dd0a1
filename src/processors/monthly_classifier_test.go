package processors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/awvreport/src/models"
)

func classifierConfig(overrides func(*ClassifierConfig)) ClassifierConfig {
	cfg := ClassifierConfig{
		Limit:              12.5,
		EnforceLimit:       true,
		CounterpartCountry: "IE",
		OptionExchanges:    DefaultOptionExchanges(),
	}
	if overrides != nil {
		overrides(&cfg)
	}
	return cfg
}

func orderAggregate(overrides func(*models.OrderAggregate)) models.OrderAggregate {
	agg := models.OrderAggregate{
		OrderID:         "1001",
		Currency:        "USD",
		Description:     "APPLE INC",
		ISIN:            "US0378331005",
		Side:            models.SideBuy,
		ListingExchange: "NASDAQ",
		Quantity:        100,
		AmountEUR:       -20.0,
	}
	if overrides != nil {
		overrides(&agg)
	}
	return agg
}

func TestClassifyCountryCodeFromISIN(t *testing.T) {
	c := NewMonthlyClassifier(classifierConfig(nil))
	monthlies, err := c.Classify([]models.OrderAggregate{
		orderAggregate(nil),
		orderAggregate(func(a *models.OrderAggregate) {
			a.OrderID = "2002"
			a.ISIN = "DE0001234567"
			a.Description = "SIEMENS AG"
		}),
		orderAggregate(func(a *models.OrderAggregate) {
			a.OrderID = "3003"
			a.ISIN = ""
			a.Description = "NO ISIN"
		}),
	})
	require.NoError(t, err)
	require.Len(t, monthlies, 3)

	byDescription := make(map[string]models.MonthlyAggregate)
	for _, m := range monthlies {
		byDescription[m.Description] = m
	}
	assert.Equal(t, "US", byDescription["APPLE INC"].CountryCode)
	// German ISINs report the broker's domicile as counterparty.
	assert.Equal(t, "IE", byDescription["SIEMENS AG"].CountryCode)
	assert.Equal(t, "", byDescription["NO ISIN"].CountryCode)
}

func TestClassifyMergesOrdersAcrossSameKey(t *testing.T) {
	c := NewMonthlyClassifier(classifierConfig(nil))
	monthlies, err := c.Classify([]models.OrderAggregate{
		orderAggregate(func(a *models.OrderAggregate) { a.OrderID = "1001"; a.AmountEUR = -9.0; a.Quantity = 100 }),
		orderAggregate(func(a *models.OrderAggregate) { a.OrderID = "2002"; a.AmountEUR = -8.0; a.Quantity = 40 }),
	})
	require.NoError(t, err)
	require.Len(t, monthlies, 1, "orders sharing the monthly key must merge")
	assert.InDelta(t, -17.0, monthlies[0].AmountEUR, 1e-9)
	assert.Equal(t, float64(140), monthlies[0].Quantity)
}

func TestClassifyThreshold(t *testing.T) {
	small := orderAggregate(func(a *models.OrderAggregate) { a.AmountEUR = -9.0 })

	c := NewMonthlyClassifier(classifierConfig(nil))
	monthlies, err := c.Classify([]models.OrderAggregate{small})
	require.NoError(t, err)
	assert.Empty(t, monthlies, "abs(9.0) < 12.5 must be dropped")

	// Exactly at the limit stays in.
	atLimit := orderAggregate(func(a *models.OrderAggregate) { a.AmountEUR = -12.5 })
	monthlies, err = c.Classify([]models.OrderAggregate{atLimit})
	require.NoError(t, err)
	assert.Len(t, monthlies, 1)

	// Disabled enforcement keeps everything.
	c = NewMonthlyClassifier(classifierConfig(func(cfg *ClassifierConfig) { cfg.EnforceLimit = false }))
	monthlies, err = c.Classify([]models.OrderAggregate{small})
	require.NoError(t, err)
	assert.Len(t, monthlies, 1)
}

func TestClassifyDocumentTypeBySide(t *testing.T) {
	c := NewMonthlyClassifier(classifierConfig(nil))
	monthlies, err := c.Classify([]models.OrderAggregate{
		orderAggregate(func(a *models.OrderAggregate) { a.Side = models.SideBuy; a.AmountEUR = -20 }),
		orderAggregate(func(a *models.OrderAggregate) { a.Side = models.SideSell; a.AmountEUR = 20 }),
		orderAggregate(func(a *models.OrderAggregate) { a.Side = "EXERCISE"; a.AmountEUR = 20 }),
	})
	require.NoError(t, err)
	require.Len(t, monthlies, 3)
	for _, m := range monthlies {
		if m.Side == models.SideBuy {
			assert.Equal(t, BelegartOutgoing, m.DocumentType)
		} else {
			// Everything that is not a purchase defaults to incoming.
			assert.Equal(t, BelegartIncoming, m.DocumentType)
		}
	}
}

func TestClassifyOptionVenueCodes(t *testing.T) {
	c := NewMonthlyClassifier(classifierConfig(nil))
	monthlies, err := c.Classify([]models.OrderAggregate{
		orderAggregate(func(a *models.OrderAggregate) {
			a.PutCall = "C"
			a.ISIN = ""
			a.ListingExchange = "EUREX"
			a.AmountEUR = 30
		}),
		orderAggregate(func(a *models.OrderAggregate) {
			a.OrderID = "2002"
			a.PutCall = "P"
			a.ISIN = ""
			a.ListingExchange = "CBOE"
			a.Description = "SPY PUT"
			a.AmountEUR = 30
		}),
	})
	require.NoError(t, err)
	require.Len(t, monthlies, 2)

	byDescription := make(map[string]models.MonthlyAggregate)
	for _, m := range monthlies {
		byDescription[m.Description] = m
	}
	assert.Equal(t, KennzahlOptionDomestic, byDescription["APPLE INC"].Classification)
	assert.Equal(t, KennzahlOptionForeign, byDescription["SPY PUT"].Classification)
}

func TestClassifyOptionVenueWinsOverISINPrefix(t *testing.T) {
	// An option with a German ISIN keeps its venue code; the ISIN prefix
	// rules only cover non-option rows.
	c := NewMonthlyClassifier(classifierConfig(nil))
	monthlies, err := c.Classify([]models.OrderAggregate{
		orderAggregate(func(a *models.OrderAggregate) {
			a.PutCall = "C"
			a.ISIN = "DE000C1234567"
			a.ListingExchange = "CBOE"
			a.AmountEUR = 30
		}),
	})
	require.NoError(t, err)
	require.Len(t, monthlies, 1)
	assert.Equal(t, KennzahlOptionForeign, monthlies[0].Classification)
}

func TestClassifyEquityKennzahlByISINPrefix(t *testing.T) {
	c := NewMonthlyClassifier(classifierConfig(nil))
	monthlies, err := c.Classify([]models.OrderAggregate{
		orderAggregate(func(a *models.OrderAggregate) { a.AmountEUR = 20 }),
		orderAggregate(func(a *models.OrderAggregate) {
			a.OrderID = "2002"
			a.ISIN = "DE0001234567"
			a.Description = "SIEMENS AG"
			a.AmountEUR = 20
		}),
		orderAggregate(func(a *models.OrderAggregate) {
			a.OrderID = "3003"
			a.ISIN = ""
			a.Description = "NO ISIN"
			a.AmountEUR = 20
		}),
	})
	require.NoError(t, err)
	require.Len(t, monthlies, 3)

	byDescription := make(map[string]models.MonthlyAggregate)
	for _, m := range monthlies {
		byDescription[m.Description] = m
	}
	assert.Equal(t, KennzahlForeignIssuer, byDescription["APPLE INC"].Classification)
	assert.Equal(t, KennzahlDomesticNonbank, byDescription["SIEMENS AG"].Classification)
	assert.Equal(t, 0, byDescription["NO ISIN"].Classification, "no ISIN and no option flag stays unclassified")
}

func TestClassifyMissingVenueFailsFast(t *testing.T) {
	c := NewMonthlyClassifier(classifierConfig(nil))
	_, err := c.Classify([]models.OrderAggregate{
		orderAggregate(func(a *models.OrderAggregate) {
			a.PutCall = "C"
			a.ListingExchange = "OSE"
			a.AmountEUR = 30
		}),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OSE")
}

func TestClassifyQuantityAbsolute(t *testing.T) {
	c := NewMonthlyClassifier(classifierConfig(nil))
	monthlies, err := c.Classify([]models.OrderAggregate{
		orderAggregate(func(a *models.OrderAggregate) {
			a.Side = models.SideSell
			a.Quantity = -100
			a.AmountEUR = 20
		}),
	})
	require.NoError(t, err)
	require.Len(t, monthlies, 1)
	assert.Equal(t, float64(100), monthlies[0].Quantity)
}

// End-to-end scenario: DE equity sale above the limit.
func TestClassifyGermanEquitySale(t *testing.T) {
	c := NewMonthlyClassifier(classifierConfig(nil))
	monthlies, err := c.Classify([]models.OrderAggregate{
		orderAggregate(func(a *models.OrderAggregate) {
			a.ISIN = "DE0001234567"
			a.Side = models.SideSell
			a.AmountEUR = 15.0
			a.Quantity = -30
		}),
	})
	require.NoError(t, err)
	require.Len(t, monthlies, 1)

	m := monthlies[0]
	assert.Equal(t, "IE", m.CountryCode)
	assert.Equal(t, KennzahlDomesticNonbank, m.Classification)
	assert.Equal(t, BelegartIncoming, m.DocumentType)
	assert.Equal(t, float64(30), m.Quantity)
}

func TestLoadOptionExchangesDefaults(t *testing.T) {
	table, err := LoadOptionExchanges("")
	require.NoError(t, err)
	assert.Equal(t, KennzahlOptionDomestic, table["EUREX"])
	assert.Equal(t, KennzahlOptionForeign, table["AMEX"])
}

func TestLoadOptionExchangesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exchanges.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"OSE": 821, "EUREX": 831}`), 0o644))

	table, err := LoadOptionExchanges(path)
	require.NoError(t, err)
	assert.Equal(t, KennzahlOptionForeign, table["OSE"], "file entries layer on top of the defaults")
	assert.Equal(t, KennzahlOptionForeign, table["CBOE"], "defaults survive an override file")
}
