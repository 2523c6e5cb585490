// Package planner turns an ingestion report into an explainable,
// deterministic analysis plan.
//
// The planner is a single decision tree evaluated once per call: no
// retries, no state, every input reaches exactly one branch. Caller
// overrides are validated against the loaded columns and then trusted;
// an override naming an unknown column is warned about and ignored.
package planner

import (
	"fmt"

	"dataplan/internal/ingest"
	"dataplan/internal/roles"
)

// Capability names the downstream analysis routine a plan selects. The
// planner only chooses; it never executes.
type Capability string

const (
	CapabilityAbort               Capability = "abort"
	CapabilityAdjustedCurves      Capability = "adjusted_curves"
	CapabilitySurvivalDescriptive Capability = "survival_descriptive"
	CapabilityCausalModels        Capability = "causal_models"
	CapabilityDescriptiveAnalysis Capability = "descriptive_analysis"
	CapabilityDescriptiveOnly     Capability = "descriptive_only"
)

// Overrides are caller-supplied column names per role. An empty string
// means "not supplied".
type Overrides struct {
	Treatment string
	Outcome   string
	Time      string
	Event     string
}

// Plan is the planner's serializable result. DetectedColumns maps role
// names (treatment, outcome, time, event) to candidate column lists; a
// role is present only when at least one candidate was found.
type Plan struct {
	ChosenCapability Capability          `json:"chosen_capability"`
	Confidence       float64             `json:"confidence"`
	Reasons          []string            `json:"reasons"`
	DetectedColumns  map[string][]string `json:"detected_columns"`
	Notes            string              `json:"notes,omitempty"`
	Warnings         []string            `json:"warnings"`
}

// Build computes a plan from an ingestion report plus optional role
// overrides. userRequest is advisory free text recorded for auditing; it
// does not influence the decision.
func Build(rep ingest.Report, ov Overrides, userRequest string) Plan {
	if !rep.Success || rep.NRows == 0 || rep.NCols == 0 {
		return Plan{
			ChosenCapability: CapabilityAbort,
			Confidence:       1.0,
			Reasons:          []string{"CSV ingestion did not succeed or produced an empty table."},
			DetectedColumns:  map[string][]string{},
			Notes:            "Downstream analysis skipped due to ingestion failure.",
			Warnings:         []string{},
		}
	}

	cols := rep.ColumnProfiles
	colset := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		colset[c.Name] = struct{}{}
	}

	reasons := []string{}
	warnings := []string{}
	detected := map[string][]string{}

	takeOverride := func(role, val string) string {
		if val == "" {
			return ""
		}
		if _, ok := colset[val]; !ok {
			warnings = append(warnings,
				fmt.Sprintf("Override for %s=%q not found in columns; ignoring.", role, val))
			return ""
		}
		reasons = append(reasons, fmt.Sprintf("Using user override: %s=%q.", role, val))
		return val
	}

	// Survival structure first: its presence changes outcome detection.
	timeCols := roles.DetectTime(cols)
	eventCols := roles.DetectEvent(cols, len(timeCols) > 0)

	timeOverride := takeOverride("time", ov.Time)
	eventOverride := takeOverride("event", ov.Event)
	if timeOverride != "" {
		timeCols = []string{timeOverride}
	}
	if eventOverride != "" {
		eventCols = []string{eventOverride}
	}

	survival := len(timeCols) > 0 && len(eventCols) > 0

	treatment := takeOverride("treatment", ov.Treatment)
	outcome := takeOverride("outcome", ov.Outcome)

	if treatment == "" {
		if t, ok := roles.DetectTreatment(cols); ok {
			treatment = t
		}
	}
	// With survival structure present the "outcome" role is ambiguous,
	// so it is deliberately left undetected rather than guessed.
	if outcome == "" && !survival {
		if o, ok := roles.DetectOutcome(cols); ok {
			outcome = o
		}
	}

	if treatment != "" {
		detected["treatment"] = []string{treatment}
	}
	if outcome != "" {
		detected["outcome"] = []string{outcome}
	}
	if len(timeCols) > 0 {
		detected["time"] = timeCols
	}
	if len(eventCols) > 0 {
		detected["event"] = eventCols
	}

	known := func(name string) bool {
		_, ok := colset[name]
		return ok
	}

	if survival {
		reasons = append(reasons, "Detected time-to-event structure (time + event indicator).")
		if treatment != "" {
			reasons = append(reasons, "Treatment/exposure column is available; can adjust survival curves.")
			conf := 0.85
			if timeOverride != "" || eventOverride != "" || known(treatment) {
				conf = 0.9
			}
			return Plan{
				ChosenCapability: CapabilityAdjustedCurves,
				Confidence:       conf,
				Reasons:          reasons,
				DetectedColumns:  detected,
				Notes:            "Recommend survival analysis with treatment adjustment.",
				Warnings:         warnings,
			}
		}

		reasons = append(reasons, "No explicit treatment/exposure column detected (or provided).")
		conf := 0.75
		if timeOverride != "" || eventOverride != "" {
			conf = 0.8
		}
		return Plan{
			ChosenCapability: CapabilitySurvivalDescriptive,
			Confidence:       conf,
			Reasons:          reasons,
			DetectedColumns:  detected,
			Notes:            "Recommend descriptive survival analysis (Kaplan-Meier / Cox without exposure).",
			Warnings:         warnings,
		}
	}

	if treatment != "" && outcome != "" {
		reasons = append(reasons, "Detected treatment and outcome suitable for causal analysis.")
		conf := 0.8
		if known(treatment) && known(outcome) {
			conf = 0.85
		}
		return Plan{
			ChosenCapability: CapabilityCausalModels,
			Confidence:       conf,
			Reasons:          reasons,
			DetectedColumns:  detected,
			Notes:            "Recommend causal effect estimation.",
			Warnings:         warnings,
		}
	}

	if outcome != "" && treatment == "" {
		reasons = append(reasons, "Detected outcome but no explicit treatment.")
		return Plan{
			ChosenCapability: CapabilityDescriptiveAnalysis,
			Confidence:       0.65,
			Reasons:          reasons,
			DetectedColumns:  detected,
			Notes:            "Outcome detected without treatment; defaulting to descriptive analysis.",
			Warnings:         warnings,
		}
	}

	return Plan{
		ChosenCapability: CapabilityDescriptiveOnly,
		Confidence:       0.5,
		Reasons:          []string{"No clear causal or survival structure detected."},
		DetectedColumns:  detected,
		Notes:            "Planner could not confidently identify treatment/outcome/time/event roles.",
		Warnings:         warnings,
	}
}
