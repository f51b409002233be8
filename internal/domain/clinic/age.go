package clinic

import (
	"fmt"
	"strings"
	"time"
)

// birthDateLayouts are tried in order.
var birthDateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"2/1/2006",
}

// ParseBirthDate parses a date of birth in any accepted layout.
func ParseBirthDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date of birth %q", s)
}

// CalculateAge returns the whole years elapsed between dob and now, or 0 when
// dob does not parse or lies in the future.
func CalculateAge(dob string, now time.Time) int {
	born, err := ParseBirthDate(dob)
	if err != nil {
		return 0
	}
	return yearsBetween(born, now)
}

func yearsBetween(born, now time.Time) int {
	y, m, d := now.Date()
	years := y - born.Year()
	if m < born.Month() || (m == born.Month() && d < born.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
