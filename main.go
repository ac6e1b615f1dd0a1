package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/username/awvreport/src/config"
	"github.com/username/awvreport/src/database"
	"github.com/username/awvreport/src/flexquery"
	"github.com/username/awvreport/src/fxrate"
	"github.com/username/awvreport/src/logger"
	"github.com/username/awvreport/src/models"
	"github.com/username/awvreport/src/processors"
	"github.com/username/awvreport/src/services"
	"github.com/username/awvreport/src/utils"
)

func main() {
	accountName := flag.String("accountName", "", "account name at the broker")
	queryID := flag.String("queryID", "", "FlexQuery ID for the account")
	token := flag.String("token", "", "FlexQuery access token for the account")
	limit := flag.Float64("limit", 0, "reporting threshold in thousands of EUR (default from config: 12.5)")
	withoutLimit := flag.Bool("withoutLimit", false, "create the report without applying the reporting threshold")
	year := flag.Int("year", 0, "reporting year (default: previous month)")
	month := flag.Int("month", 0, "reporting month 1-12 (default: previous month)")
	flag.Parse()

	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("AWV reporting tool starting...")

	accounts := config.Cfg.Accounts
	if *accountName != "" || *queryID != "" || *token != "" {
		if *accountName == "" || *queryID == "" || *token == "" {
			fmt.Fprintln(os.Stderr, "accountName, queryID and token must be given together")
			os.Exit(1)
		}
		accounts = append([]models.Account{{Name: *accountName, QueryID: *queryID, Token: *token}}, accounts...)
	}
	if len(accounts) == 0 {
		fmt.Fprintln(os.Stderr, "no accounts configured: pass -accountName/-queryID/-token or set AWV_ACCOUNTS")
		os.Exit(1)
	}

	period := utils.PreviousMonth(time.Now())
	if *year != 0 || *month != 0 {
		if *year == 0 || *month < 1 || *month > 12 {
			fmt.Fprintln(os.Stderr, "year and month (1-12) must be given together")
			os.Exit(1)
		}
		period = models.Period{Year: *year, Month: time.Month(*month)}
	}

	reportingLimit := config.Cfg.Limit
	if *limit > 0 {
		reportingLimit = *limit
	}
	enforceLimit := config.Cfg.EnforceLimit && !*withoutLimit

	optionExchanges, err := processors.LoadOptionExchanges(config.Cfg.OptionExchangePath)
	if err != nil {
		logger.L.Error("Failed to load option exchange table", "error", err)
		os.Exit(1)
	}

	database.InitDB(config.Cfg.DatabasePath)

	service := services.NewReportService(
		flexquery.NewClient(config.Cfg.FlexBaseURL),
		fxrate.NewYahooResolver(config.Cfg.FxBaseURL),
		processors.ClassifierConfig{
			Limit:              reportingLimit,
			EnforceLimit:       enforceLimit,
			CounterpartCountry: config.Cfg.CounterpartCountry,
			OptionExchanges:    optionExchanges,
		},
		services.NewEmailService(),
		accounts,
		config.Cfg.OutputDir,
		config.Cfg.ReportLabel,
	)

	result, err := service.Run(period)
	if err != nil {
		logger.L.Error("Report run failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Report created: %s (%d records, %d FX warnings)\n",
		result.Filename, len(result.Records), len(result.FxWarnings))
}
