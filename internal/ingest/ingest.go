// Package ingest implements the robust CSV loader.
//
// The loader tries very hard to read real-world CSV-like files and never
// fails on malformed content: every load returns a structured Report, and
// a file the loader cannot make sense of produces Success=false rather
// than an error. Only the file read itself can fail with an error, which
// is the caller's precondition to handle.
//
// Strategy order, first success wins:
//
//  1. HTML table recovery when the content sniffs as markup.
//  2. Structural pass: encodings {utf-8, utf-8-sig, latin1, cp1252}
//     crossed with delimiters {auto, comma, tab, semicolon, pipe}.
//     Every failed combination is recorded as a diagnostic string.
//  3. Whitespace fallback: runs of whitespace as the delimiter, no
//     header row, positional column names.
//  4. Single-column comma recovery: a whitespace fallback that yields
//     one comma-bearing column is re-parsed as comma-separated data.
//
// After a successful parse the loader trims column names, reinterprets
// text columns as datetimes when at least 80% of the whole column
// parses, and profiles every column.
package ingest

import (
	"fmt"
	"os"
	"strings"

	"dataplan/internal/frame"
	"dataplan/internal/htmltable"
	"dataplan/internal/profile"
)

// defaultNATokens are the missing-value spellings recognized out of the
// box. Caller-supplied tokens are merged in front of these.
var defaultNATokens = []string{
	"", "NA", "N/A", "na", "n/a", "NaN", "nan", "NULL", "null",
	".", "?", "#N/A", "None", "none",
}

// Options control a single load call.
type Options struct {
	// NAValues are extra missing-value tokens merged with the defaults.
	NAValues []string

	// KeepDefaultNA keeps the built-in token set in the merge.
	KeepDefaultNA bool

	// ParseDates enables the post-parse datetime reinterpretation of
	// text columns.
	ParseDates bool
}

// DefaultOptions returns the options used by the CLI entry points.
func DefaultOptions() Options {
	return Options{KeepDefaultNA: true, ParseDates: true}
}

// Report is the structured, always-present result of one load attempt.
//
// Invariant: when Success is false, NRows and NCols are zero and
// ColumnProfiles is empty. UsedEncoding and UsedSep are empty strings
// until a parsing strategy succeeds.
type Report struct {
	Path    string `json:"path"`
	Success bool   `json:"success"`
	NRows   int    `json:"n_rows"`
	NCols   int    `json:"n_cols"`

	UsedEncoding string `json:"used_encoding"`
	UsedSep      string `json:"used_sep"`

	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`

	ParsedDatetimeCols []string                `json:"parsed_datetime_cols"`
	ColumnProfiles     []profile.ColumnProfile `json:"column_profiles"`
}

// Load reads and parses the file at path.
//
// The returned error is non-nil only when the file itself cannot be
// read; malformed content is reported through the Report instead. The
// returned table is empty (never nil) when Success is false.
func Load(path string, opt Options) (*frame.Table, Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &frame.Table{}, Report{}, fmt.Errorf("read %s: %w", path, err)
	}

	rep := Report{
		Path:               path,
		Warnings:           []string{},
		Errors:             []string{},
		ParsedDatetimeCols: []string{},
		ColumnProfiles:     []profile.ColumnProfile{},
	}

	na := buildNASet(opt)

	// HTML recovery: spreadsheet "CSV exports" are sometimes report
	// pages with a single data table.
	if sniffHTML(data) {
		if p, err := parseHTMLTable(data, na); err == nil {
			rep.UsedEncoding = encodingUnknown
			rep.UsedSep = sepHTMLTable
			rep.Warnings = append(rep.Warnings,
				"Input looks like HTML; recovered the first <table> element as tabular data.")
			rep.Warnings = append(rep.Warnings, p.warnings...)
			return finalize(p, &rep, opt), rep, nil
		} else {
			rep.Warnings = append(rep.Warnings,
				fmt.Sprintf("Input looks like HTML but table recovery failed: %v; trying CSV strategies.", err))
		}
	}

	// Structural pass: encodings crossed with delimiters.
	var attempts []string
	for _, enc := range encodingOrder {
		text, decErr := decodeBytes(data, enc)
		if decErr != nil {
			for _, sep := range sepOrder {
				attempts = append(attempts,
					fmt.Sprintf("FAIL encoding=%s, sep=%s: %v", enc, sep.name, decErr))
			}
			continue
		}
		for _, sep := range sepOrder {
			p, err := parseStructural(text, sep, na)
			if err != nil {
				attempts = append(attempts,
					fmt.Sprintf("FAIL encoding=%s, sep=%s: %v", enc, sep.name, err))
				continue
			}
			rep.UsedEncoding = enc
			rep.UsedSep = p.sepName
			if len(attempts) > 0 {
				rep.Warnings = append(rep.Warnings,
					"Read attempts: ["+strings.Join(attempts, "; ")+"]")
			}
			rep.Warnings = append(rep.Warnings, p.warnings...)
			return finalize(p, &rep, opt), rep, nil
		}
	}

	// Whitespace fallback: no header assumed, positional column names.
	p, wsErr := parseWhitespace(data, na)
	if wsErr != nil {
		rep.Errors = append(rep.Errors,
			fmt.Sprintf("All parsing attempts failed, including whitespace fallback: %v", wsErr))
		rep.Warnings = append(rep.Warnings,
			"Read attempts: ["+strings.Join(attempts, "; ")+"]")
		return &frame.Table{}, rep, nil
	}

	rep.UsedEncoding = encodingUnknown
	rep.UsedSep = sepWhitespace
	rep.Warnings = append(rep.Warnings,
		"All standard CSV parsing attempts failed. Falling back to whitespace-delimited parsing (no header assumed).")

	// Single-column comma recovery: whitespace in the data can confuse
	// delimiter detection into one wide column of comma-joined fields.
	if len(p.names) == 1 && commaSignal(p) {
		text := strings.Join(p.rawColumn(0), "\n")
		if rec, err := parseDelimited(text, ',', na, false); err == nil {
			rep.UsedSep = sepCommaRecovered
			rep.Warnings = append(rep.Warnings,
				"Whitespace fallback yielded a single column containing commas; recovered by parsing that column as comma-separated data.")
			rep.Warnings = append(rep.Warnings, rec.warnings...)
			p = rec
		} else {
			rep.Errors = append(rep.Errors,
				fmt.Sprintf("Single-column comma recovery failed: %v", err))
		}
	}

	rep.Warnings = append(rep.Warnings,
		"Read attempts: ["+strings.Join(attempts, "; ")+"]")
	return finalize(p, &rep, opt), rep, nil
}

// finalize runs the shared post-success steps: column-name trimming,
// datetime reinterpretation, and profiling. It mutates rep in place and
// returns the final table.
func finalize(p *parsed, rep *Report, opt Options) *frame.Table {
	for i := range p.names {
		p.names[i] = strings.TrimSpace(p.names[i])
	}

	t := frame.NewTable(p.names, p.rows, p.missing)

	if opt.ParseDates {
		rep.ParsedDatetimeCols = reparseDatetimes(t)
	}

	rep.Success = true
	rep.NRows = t.NumRows()
	rep.NCols = t.NumCols()
	rep.ColumnProfiles = profile.Columns(t)
	return t
}

// commaSignal reports whether the first 10 non-missing values of the
// single fallback column look like comma-joined records (at least 3
// comma hits).
func commaSignal(p *parsed) bool {
	hits := 0
	seen := 0
	for r := range p.rows {
		if p.missing[r][0] {
			continue
		}
		seen++
		if strings.Contains(p.rows[r][0], ",") {
			hits++
		}
		if seen == 10 {
			break
		}
	}
	return hits >= 3
}

// parseHTMLTable adapts an extracted HTML table to the parsed shape used
// by the CSV strategies, skipping rows that do not match the header
// width.
func parseHTMLTable(data []byte, na naSet) (*parsed, error) {
	headers, rows, err := htmltable.Parse(data)
	if err != nil {
		return nil, err
	}

	p := &parsed{names: headers}
	skipped := 0
	for _, rec := range rows {
		if len(rec) != len(headers) {
			skipped++
			continue
		}
		p.appendRow(rec, na)
	}
	if skipped > 0 {
		p.warnings = append(p.warnings,
			fmt.Sprintf("Skipped %d HTML table rows with a mismatched cell count.", skipped))
	}
	return p, nil
}

func buildNASet(opt Options) naSet {
	tokens := make([]string, 0, len(opt.NAValues)+len(defaultNATokens))
	tokens = append(tokens, opt.NAValues...)
	if opt.KeepDefaultNA {
		tokens = append(tokens, defaultNATokens...)
	}

	set := make(naSet, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}
