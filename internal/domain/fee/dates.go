package fee

import "time"

// DateOf truncates t to its calendar date. Due-date logic compares dates, not instants.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysIn returns the number of days in month of year
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// periodEnd returns the first instant after the billing month
func periodEnd(month, year int) time.Time {
	return time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
}

// ValidatePeriod checks a billing month/year pair
func ValidatePeriod(month, year int) error {
	if month < 1 || month > 12 {
		return errInvalidMonth
	}
	if year < 2000 || year > 9999 {
		return errInvalidYear
	}
	return nil
}
