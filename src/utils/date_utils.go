package utils

import (
	"time"

	"github.com/username/awvreport/src/models"
)

// PreviousMonth returns the reporting period for the month before now,
// rolling the year back across the January boundary.
func PreviousMonth(now time.Time) models.Period {
	year, month := now.Year(), now.Month()
	if month == time.January {
		return models.Period{Year: year - 1, Month: time.December}
	}
	return models.Period{Year: year, Month: month - 1}
}
