package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/username/awvreport/src/models"
)

type AppConfig struct {
	LogLevel     string
	DatabasePath string
	OutputDir    string

	// Reporting parameters
	ReportLabel        string  // file name prefix of the filing extract
	Limit              float64 // materiality threshold in thousands of EUR
	EnforceLimit       bool
	CounterpartCountry string  // domicile code substituted for German ISINs
	OptionExchangePath string  // optional JSON override of the venue table

	// External collaborators
	FlexBaseURL string
	FxBaseURL   string

	// Accounts configured via environment, in addition to the one given
	// on the command line. Format: "name:queryID:token,name:queryID:token"
	Accounts []models.Account

	EmailServiceProvider string
	MailgunDomain        string
	MailgunPrivateAPIKey string
	SenderEmail          string
	SenderName           string
	SummaryRecipient     string
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	}

	Cfg = &AppConfig{
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DatabasePath: getEnv("DATABASE_PATH", "./awvreport.db"),
		OutputDir:    getEnv("OUTPUT_DIR", "."),

		ReportLabel:        getEnv("REPORT_LABEL", "Bundesbank AWV Melderegister"),
		Limit:              getEnvAsFloat("REPORTING_LIMIT_TEUR", 12.5),
		EnforceLimit:       getEnvAsBool("ENFORCE_LIMIT", true),
		CounterpartCountry: getEnv("COUNTERPART_COUNTRY_CODE", "IE"),
		OptionExchangePath: getEnv("OPTION_EXCHANGE_PATH", ""),

		FlexBaseURL: getEnv("FLEX_BASE_URL", "https://gdcdyn.interactivebrokers.com/Universal/servlet"),
		FxBaseURL:   getEnv("FX_BASE_URL", "https://query1.finance.yahoo.com"),

		Accounts: parseAccounts(getEnv("AWV_ACCOUNTS", "")),

		EmailServiceProvider: getEnv("EMAIL_SERVICE_PROVIDER", "mock"),
		MailgunDomain:        getEnv("MAILGUN_DOMAIN", ""),
		MailgunPrivateAPIKey: getEnv("MAILGUN_PRIVATE_API_KEY", ""),
		SenderEmail:          getEnv("SENDER_EMAIL", "noreply@example.com"),
		SenderName:           getEnv("SENDER_NAME", "AWV Reporting"),
		SummaryRecipient:     getEnv("SUMMARY_RECIPIENT", ""),
	}

	if Cfg.EmailServiceProvider == "mailgun" {
		if Cfg.MailgunDomain == "" || Cfg.MailgunPrivateAPIKey == "" {
			log.Fatalf("FATAL: MAILGUN_DOMAIN and MAILGUN_PRIVATE_API_KEY are required when EMAIL_SERVICE_PROVIDER is 'mailgun'.")
		}
		if Cfg.SummaryRecipient == "" {
			log.Fatalf("FATAL: SUMMARY_RECIPIENT must be configured when EMAIL_SERVICE_PROVIDER is 'mailgun'.")
		}
	}

	log.Printf("Configuration loaded: LogLevel=%s, DBPath=%s, Limit=%.1f TEUR, EnforceLimit=%t, EmailProvider=%s",
		Cfg.LogLevel, Cfg.DatabasePath, Cfg.Limit, Cfg.EnforceLimit, Cfg.EmailServiceProvider)
}

// parseAccounts splits "name:queryID:token" triples. Malformed entries are
// fatal: a half-configured account would silently go unreported otherwise.
func parseAccounts(s string) []models.Account {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var accounts []models.Account
	for _, entry := range strings.Split(s, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			log.Fatalf("FATAL: Invalid AWV_ACCOUNTS entry %q, expected name:queryID:token", entry)
		}
		accounts = append(accounts, models.Account{Name: parts[0], QueryID: parts[1], Token: parts[2]})
	}
	return accounts
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid bool value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}
