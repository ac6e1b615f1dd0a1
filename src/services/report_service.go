package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/username/awvreport/src/database"
	"github.com/username/awvreport/src/fxrate"
	"github.com/username/awvreport/src/logger"
	"github.com/username/awvreport/src/models"
	"github.com/username/awvreport/src/processors"
)

// TradeFeed abstracts the brokerage data feed.
type TradeFeed interface {
	FetchTrades(account models.Account) ([]models.RawTrade, error)
}

// RunResult summarizes one reporting run.
type RunResult struct {
	Period          models.Period
	Filename        string
	Records         []models.OutputRecord
	OrderAggregates []models.OrderAggregate
	FxWarnings      []processors.FxWarning
	AccountsFetched int
	AccountsFailed  int
}

type ReportService struct {
	feed       TradeFeed
	normalizer *processors.TradeNormalizer
	aggregator *processors.OrderAggregator
	classifier *processors.MonthlyClassifier
	formatter  *processors.ReportFormatter
	email      EmailService
	accounts   []models.Account
	outputDir  string
	label      string
}

func NewReportService(
	feed TradeFeed,
	resolver fxrate.Resolver,
	classifierCfg processors.ClassifierConfig,
	email EmailService,
	accounts []models.Account,
	outputDir string,
	label string,
) *ReportService {
	return &ReportService{
		feed:       feed,
		normalizer: processors.NewTradeNormalizer(),
		aggregator: processors.NewOrderAggregator(resolver),
		classifier: processors.NewMonthlyClassifier(classifierCfg),
		formatter:  processors.NewReportFormatter(),
		email:      email,
		accounts:   accounts,
		outputDir:  outputDir,
		label:      label,
	}
}

// Run executes the full pipeline for one reporting month: fetch all
// accounts, normalize, aggregate, classify, and write the filing extract.
// A feed failure for one account skips that account; the run continues.
func (s *ReportService) Run(period models.Period) (*RunResult, error) {
	logger.L.Info("Report run START", "period", period.String(), "accounts", len(s.accounts))

	var rawTrades []models.RawTrade
	fetched, failed := 0, 0
	for _, account := range s.accounts {
		trades, err := s.feed.FetchTrades(account)
		if err != nil {
			logger.L.Error("Could not load trades for account, skipping", "account", account.Name, "error", err)
			failed++
			continue
		}
		rawTrades = append(rawTrades, trades...)
		fetched++
	}

	normalized, err := s.normalizer.Normalize(rawTrades, period)
	if err != nil {
		return nil, err
	}
	logger.L.Info("Trades normalized", "raw", len(rawTrades), "normalized", len(normalized))

	orderAggs, fxWarnings := s.aggregator.Aggregate(normalized)
	for _, w := range fxWarnings {
		logger.L.Warn("EUR amount zeroed, FX rate unavailable",
			"orderID", w.OrderID, "currency", w.Currency, "date", w.Date.Format("2006-01-02"))
	}

	monthlies, err := s.classifier.Classify(orderAggs)
	if err != nil {
		return nil, fmt.Errorf("report service: %w", err)
	}

	records := s.formatter.Format(monthlies)
	filename := processors.Filename(s.label, period)
	if err := s.writeArtifact(filename, records); err != nil {
		return nil, err
	}

	if database.DB != nil {
		if _, err := database.SaveRun(period.String(), filename, fetched, len(fxWarnings), records); err != nil {
			logger.L.Error("Failed to persist report run", "error", err)
		}
	}

	if err := s.email.SendRunSummary(period, filename, orderAggs); err != nil {
		logger.L.Error("Failed to send run summary", "error", err)
	}

	logger.L.Info("Report run DONE", "period", period.String(), "records", len(records),
		"fxWarnings", len(fxWarnings), "accountsFetched", fetched, "accountsFailed", failed)

	return &RunResult{
		Period:          period,
		Filename:        filename,
		Records:         records,
		OrderAggregates: orderAggs,
		FxWarnings:      fxWarnings,
		AccountsFetched: fetched,
		AccountsFailed:  failed,
	}, nil
}

func (s *ReportService) writeArtifact(filename string, records []models.OutputRecord) error {
	path := filepath.Join(s.outputDir, filename)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report service: failed to create output file %s: %w", path, err)
	}
	defer file.Close()

	if err := s.formatter.WriteCSV(file, records); err != nil {
		return err
	}
	logger.L.Info("Output file written", "path", path, "records", len(records))
	return nil
}
