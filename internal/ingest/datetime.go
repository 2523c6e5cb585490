package ingest

import (
	"strings"
	"time"

	"dataplan/internal/frame"
)

// datetimeLayouts are tried in order for the post-parse datetime
// reinterpretation. Date-only layouts come first; the numeric-date
// ambiguity (DMY vs MDY) is resolved by list position.
var datetimeLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"02.01.2006 15:04:05",
}

// canonicalDatetime is the string form stored for reparse successes.
const canonicalDatetime = "2006-01-02 15:04:05"

// datetimeThreshold is the fraction of the whole column (missing cells
// count as failures) that must parse before the column is converted.
const datetimeThreshold = 0.8

func parseDatetimeLoose(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range datetimeLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// reparseDatetimes attempts a datetime reinterpretation of every text
// column. A column is converted only when at least 80% of all its rows
// parse; below the threshold the column is left untouched (no partial
// replacement). Converted cells store the canonical layout, and cells
// that failed to parse become missing.
//
// Returns the names of converted columns in table order.
func reparseDatetimes(t *frame.Table) []string {
	converted := []string{}
	n := t.NumRows()
	if n == 0 {
		return converted
	}

	for ci := range t.Cols {
		c := &t.Cols[ci]
		if c.Dtype != frame.DtypeText {
			continue
		}

		times := make([]time.Time, n)
		okFlags := make([]bool, n)
		okCount := 0
		for i, v := range c.Values {
			if c.Missing[i] {
				continue
			}
			if ts, ok := parseDatetimeLoose(v); ok {
				times[i] = ts
				okFlags[i] = true
				okCount++
			}
		}

		if float64(okCount)/float64(n) < datetimeThreshold {
			continue
		}

		for i := range c.Values {
			if okFlags[i] {
				c.Values[i] = times[i].Format(canonicalDatetime)
				c.Missing[i] = false
			} else {
				c.Values[i] = ""
				c.Missing[i] = true
			}
		}
		c.Dtype = frame.DtypeTimestamp
		converted = append(converted, c.Name)
	}

	return converted
}
