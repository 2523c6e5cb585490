// Command plancsv ingests one CSV-like file and prints the resulting
// ingestion report and analysis plan as a single JSON artifact.
//
// The loader never fails on malformed content: a file it cannot parse
// still produces a report with success=false and a plan that aborts, and
// the command exits 0. Only a missing or unreadable file is a hard
// error.
//
// Role overrides (-treatment, -outcome, -time, -event) name columns
// directly. Overrides are validated against the loaded columns; an
// unknown column is warned about in the plan and otherwise ignored.
//
// Examples:
//
//	plancsv -file trial.csv
//	plancsv -file trial.csv -treatment arm -outcome response -pretty
//	plancsv -file export.dat -na "-999,MISSING" -no-dates
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"dataplan/internal/ingest"
	"dataplan/internal/planner"
)

// artifact is the combined serializable output of one run.
type artifact struct {
	Report ingest.Report `json:"report"`
	Plan   planner.Plan  `json:"plan"`
}

func main() {
	var (
		flagFile = flag.String("file", "", "Path of the input file (required)")

		flagNA        = flag.String("na", "", "Comma-separated extra missing-value tokens")
		flagNoDefault = flag.Bool("no-default-na", false, "Do not merge the built-in missing-value tokens")
		flagNoDates   = flag.Bool("no-dates", false, "Disable datetime reinterpretation of text columns")

		flagTreatment = flag.String("treatment", "", "Treatment column override")
		flagOutcome   = flag.String("outcome", "", "Outcome column override")
		flagTime      = flag.String("time", "", "Time column override")
		flagEvent     = flag.String("event", "", "Event column override")

		flagRequest = flag.String("request", "", "Free-text analysis request recorded for auditing")
		flagOut     = flag.String("out", "", "Write the JSON artifact to this path instead of stdout")
		flagPretty  = flag.Bool("pretty", false, "Indent the JSON output")
	)
	flag.Parse()

	if *flagFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	opt := ingest.DefaultOptions()
	opt.KeepDefaultNA = !*flagNoDefault
	opt.ParseDates = !*flagNoDates
	if *flagNA != "" {
		for _, tok := range strings.Split(*flagNA, ",") {
			opt.NAValues = append(opt.NAValues, tok)
		}
	}

	_, rep, err := ingest.Load(*flagFile, opt)
	if err != nil {
		log.Fatalf("plancsv: %v", err)
	}

	plan := planner.Build(rep, planner.Overrides{
		Treatment: *flagTreatment,
		Outcome:   *flagOutcome,
		Time:      *flagTime,
		Event:     *flagEvent,
	}, *flagRequest)

	out := artifact{Report: rep, Plan: plan}

	var b []byte
	if *flagPretty {
		b, err = json.MarshalIndent(out, "", "  ")
	} else {
		b, err = json.Marshal(out)
	}
	if err != nil {
		log.Fatalf("plancsv: marshal artifact: %v", err)
	}
	b = append(b, '\n')

	if *flagOut != "" {
		if err := os.WriteFile(*flagOut, b, 0o644); err != nil {
			log.Fatalf("plancsv: write %s: %v", *flagOut, err)
		}
		return
	}
	fmt.Print(string(b))
}
