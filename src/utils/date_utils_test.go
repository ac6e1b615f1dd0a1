package utils

import (
	"testing"
	"time"
)

func TestPreviousMonth(t *testing.T) {
	cases := []struct {
		now       time.Time
		wantYear  int
		wantMonth time.Month
	}{
		{time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), 2024, time.March},
		{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 2023, time.December},
		{time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), 2024, time.November},
	}
	for _, tc := range cases {
		got := PreviousMonth(tc.now)
		if got.Year != tc.wantYear || got.Month != tc.wantMonth {
			t.Errorf("PreviousMonth(%s) = %v, want %d-%02d", tc.now.Format("2006-01-02"), got, tc.wantYear, int(tc.wantMonth))
		}
	}
}

func TestPeriodBounds(t *testing.T) {
	p := PreviousMonth(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	wantStart := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if !p.Start().Equal(wantStart) {
		t.Errorf("Start = %s, want %s", p.Start(), wantStart)
	}
	if !p.End().Equal(wantEnd) {
		t.Errorf("End = %s, want %s", p.End(), wantEnd)
	}
	if p.String() != "2024-12" {
		t.Errorf("String = %q, want 2024-12", p.String())
	}
}
