package calendar

import "fmt"

// CheckStrictlyIncreasing verifies that dates are non-zero and strictly
// increasing. It returns the index of the first offending date and a
// description, or -1 and nil.
func CheckStrictlyIncreasing(dates []Date) (int, error) {
	for i, d := range dates {
		if d.IsZero() {
			return i, fmt.Errorf("date #%d is missing", i+1)
		}
		if i > 0 && !d.After(dates[i-1]) {
			return i, fmt.Errorf("date #%d (%s) is not after %s", i+1, d, dates[i-1])
		}
	}
	return -1, nil
}

// LastOnOrBefore returns the index of the last date in the ascending slice
// that is on or before target, or -1.
func LastOnOrBefore(dates []Date, target Date) int {
	lo, hi := 0, len(dates)
	for lo < hi {
		mid := (lo + hi) / 2
		if dates[mid].After(target) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo - 1
}
