// Package roles holds the column-role detection heuristics.
//
// Each detector is a pure function over the ordered column-profile list.
// Detection is deliberately conservative: when several equally plausible
// candidates exist for treatment or outcome, the detector returns
// nothing rather than guessing. The planner treats every detection as
// advisory and lets caller overrides win.
package roles

import (
	"strings"

	"dataplan/internal/profile"
)

// treatmentNames are exact (case-insensitive) treatment column names.
var treatmentNames = map[string]struct{}{
	"treatment": {}, "treated": {}, "treat": {}, "trt": {}, "tx": {},
	"exposure": {}, "exposed": {}, "a": {}, "arm": {}, "group": {},
}

// outcomeHints are substrings that suggest an outcome column.
var outcomeHints = []string{"y", "outcome", "response", "target", "label", "endpoint", "factual"}

// timeHints are substrings that suggest a time-to-event column.
var timeHints = []string{"time", "duration", "days", "follow", "fu", "surv"}

// eventNames are exact (case-insensitive) event-indicator column names.
var eventNames = map[string]struct{}{
	"event": {}, "status": {}, "censor": {}, "censored": {},
	"death": {}, "died": {}, "failure": {},
}

// IsTreatmentName reports whether a column name is an exact treatment
// name match.
func IsTreatmentName(name string) bool {
	_, ok := treatmentNames[strings.ToLower(name)]
	return ok
}

func isEventName(name string) bool {
	_, ok := eventNames[strings.ToLower(name)]
	return ok
}

func hasTimeHint(name string) bool {
	l := strings.ToLower(name)
	for _, h := range timeHints {
		if strings.Contains(l, h) {
			return true
		}
	}
	return false
}

// DetectTreatment finds the treatment/exposure column.
//
// Exact name matches win; among several, the literal name "treatment" is
// preferred, then the first match in profile order. Without a name match
// the fallback accepts a single binary-looking candidate (boolean, or
// integer with 2-3 distinct values, not id-like, and not claimed by the
// event/time vocabulary). Two or more candidates means no detection.
func DetectTreatment(cols []profile.ColumnProfile) (string, bool) {
	var explicit []string
	for _, c := range cols {
		if IsTreatmentName(c.Name) {
			explicit = append(explicit, c.Name)
		}
	}
	if len(explicit) > 0 {
		for _, e := range explicit {
			if strings.EqualFold(e, "treatment") {
				return e, true
			}
		}
		return explicit[0], true
	}

	var binary []string
	for _, c := range cols {
		if c.IsLikelyID || isEventName(c.Name) || hasTimeHint(c.Name) {
			continue
		}
		switch {
		case c.InferredType == profile.TypeBoolean:
			binary = append(binary, c.Name)
		case c.InferredType == profile.TypeInteger && c.NUnique >= 2 && c.NUnique <= 3:
			binary = append(binary, c.Name)
		}
	}
	if len(binary) == 1 {
		return binary[0], true
	}
	return "", false
}

// DetectOutcome finds the outcome column.
//
// "y_factual" takes absolute priority. Otherwise the first column whose
// name contains an outcome hint (and is not itself a treatment name)
// wins. The numeric fallback accepts a single non-id numeric column
// whose name is neither an event name nor time-hinted.
func DetectOutcome(cols []profile.ColumnProfile) (string, bool) {
	for _, c := range cols {
		if strings.EqualFold(c.Name, "y_factual") {
			return c.Name, true
		}
	}

	for _, c := range cols {
		l := strings.ToLower(c.Name)
		if IsTreatmentName(c.Name) {
			continue
		}
		for _, h := range outcomeHints {
			if strings.Contains(l, h) {
				return c.Name, true
			}
		}
	}

	var numeric []string
	for _, c := range cols {
		if c.IsLikelyID || isEventName(c.Name) || hasTimeHint(c.Name) {
			continue
		}
		if c.InferredType == profile.TypeInteger || c.InferredType == profile.TypeFloat {
			numeric = append(numeric, c.Name)
		}
	}
	if len(numeric) == 1 {
		return numeric[0], true
	}
	return "", false
}

// DetectTime collects every column that is datetime-typed or carries a
// time hint in its name, deduplicated in first-seen order.
func DetectTime(cols []profile.ColumnProfile) []string {
	var out []string
	for _, c := range cols {
		if c.InferredType == profile.TypeDatetime || hasTimeHint(c.Name) {
			out = append(out, c.Name)
		}
	}
	return dedupe(out)
}

// DetectEvent collects event-indicator columns by exact name match, in
// first-seen order. When requireTime is false (no time column found),
// event detection is suppressed entirely.
func DetectEvent(cols []profile.ColumnProfile, requireTime bool) []string {
	if !requireTime {
		return nil
	}
	var out []string
	for _, c := range cols {
		if isEventName(c.Name) {
			out = append(out, c.Name)
		}
	}
	return dedupe(out)
}

func dedupe(xs []string) []string {
	seen := make(map[string]struct{}, len(xs))
	out := xs[:0]
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}
