package processors

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/username/awvreport/src/models"
)

type ReportFormatter struct{}

func NewReportFormatter() *ReportFormatter { return &ReportFormatter{} }

// Format maps monthly aggregates onto the fixed output schema: amounts and
// quantities rounded to integers and forced non-negative. The abs here is
// intentionally independent of the classifier's own sign handling.
func (f *ReportFormatter) Format(monthlies []models.MonthlyAggregate) []models.OutputRecord {
	records := make([]models.OutputRecord, 0, len(monthlies))
	for _, m := range monthlies {
		records = append(records, models.OutputRecord{
			DocumentType:   m.DocumentType,
			Classification: m.Classification,
			Description:    m.Description,
			CountryCode:    m.CountryCode,
			AmountEUR:      roundAbs(m.AmountEUR),
			ISIN:           m.ISIN,
			Quantity:       roundAbs(m.Quantity),
			Currency:       m.Currency,
		})
	}
	return records
}

// WriteCSV serializes the records semicolon-separated, without a header row,
// in the fixed column order of the filing format. An empty record set still
// produces a valid (empty) artifact.
func (f *ReportFormatter) WriteCSV(w io.Writer, records []models.OutputRecord) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'

	for _, r := range records {
		row := []string{
			strconv.Itoa(r.DocumentType),
			strconv.Itoa(r.Classification),
			r.Description,
			r.CountryCode,
			strconv.Itoa(r.AmountEUR),
			r.ISIN,
			strconv.Itoa(r.Quantity),
			r.Currency,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("report formatter: failed to write row for %q: %w", r.Description, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Filename returns the output artifact name for the reporting month.
func Filename(label string, period models.Period) string {
	return fmt.Sprintf("%s %s.csv", label, period)
}

func roundAbs(v float64) int {
	return int(math.Abs(math.Round(v)))
}
