package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/awvreport/src/logger"
	"github.com/username/awvreport/src/models"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS report_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		period TEXT NOT NULL,
		filename TEXT NOT NULL,
		account_count INTEGER NOT NULL,
		record_count INTEGER NOT NULL,
		fx_warning_count INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS report_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		document_type INTEGER NOT NULL,
		classification INTEGER NOT NULL,
		description TEXT NOT NULL,
		country_code TEXT NOT NULL,
		amount_eur INTEGER NOT NULL,
		isin TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		currency TEXT NOT NULL,
		FOREIGN KEY(run_id) REFERENCES report_runs(id)
	);
	`

	if _, err := DB.Exec(createTableStatement); err != nil {
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	logger.L.Info("Database initialized", "path", databasePath)
}

// SaveRun persists one reporting run and its output records for audit.
func SaveRun(period, filename string, accountCount, fxWarningCount int, records []models.OutputRecord) (int64, error) {
	tx, err := DB.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO report_runs (period, filename, account_count, record_count, fx_warning_count) VALUES (?, ?, ?, ?, ?)`,
		period, filename, accountCount, len(records), fxWarningCount,
	)
	if err != nil {
		return 0, err
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT INTO report_records (run_id, document_type, classification, description, country_code, amount_eur, isin, quantity, currency) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(runID, r.DocumentType, r.Classification, r.Description, r.CountryCode, r.AmountEUR, r.ISIN, r.Quantity, r.Currency); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}
