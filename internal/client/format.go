package client

import (
	"fmt"
	"time"
)

// FormatCharge renders a transcript charge held in integer cents as a
// display currency string, e.g. 2500 -> "$25.00".
func FormatCharge(cents int64) string {
	if cents < 0 {
		cents = 0
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// FormatDate renders a store timestamp as a short local date, falling back
// to an em dash when the value is missing.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "—"
	}
	return t.Format("1/2/2006")
}
