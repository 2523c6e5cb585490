package ingest

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"dataplan/internal/profile"
)

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func profileByName(t *testing.T, rep Report, name string) profile.ColumnProfile {
	t.Helper()
	for _, p := range rep.ColumnProfiles {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("no profile for column %q in %v", name, rep.ColumnProfiles)
	return profile.ColumnProfile{}
}

func hasWarningContaining(rep Report, sub string) bool {
	for _, w := range rep.Warnings {
		if strings.Contains(w, sub) {
			return true
		}
	}
	return false
}

func TestLoadCommaCSV(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "basic.csv", []byte("id,age,score\n1,30,0.5\n2,41,0.9\n3,28,0.1\n"))

	tab, rep, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !rep.Success {
		t.Fatalf("Success = false, errors = %v", rep.Errors)
	}
	if rep.NRows != 3 || rep.NCols != 3 {
		t.Fatalf("got %dx%d, want 3x3", rep.NRows, rep.NCols)
	}
	if rep.UsedEncoding != "utf-8" {
		t.Fatalf("UsedEncoding = %q, want utf-8", rep.UsedEncoding)
	}
	if rep.UsedSep != "comma" {
		t.Fatalf("UsedSep = %q, want comma", rep.UsedSep)
	}
	if got := tab.ColumnNames(); !reflect.DeepEqual(got, []string{"id", "age", "score"}) {
		t.Fatalf("ColumnNames() = %v", got)
	}
	if got := profileByName(t, rep, "score").InferredType; got != profile.TypeFloat {
		t.Fatalf("score inferred_type = %q, want float", got)
	}
}

func TestLoadSemicolonAutoDetect(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "semi.csv", []byte("a;b\n1;2\n3;4\n"))

	_, rep, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !rep.Success {
		t.Fatalf("Success = false, errors = %v", rep.Errors)
	}
	if rep.UsedSep != "semicolon" {
		t.Fatalf("UsedSep = %q, want semicolon", rep.UsedSep)
	}
}

func TestLoadStripsBOMFromHeader(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "bom.csv", []byte("\xEF\xBB\xBFa,b\n1,2\n"))

	tab, rep, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !rep.Success {
		t.Fatalf("Success = false, errors = %v", rep.Errors)
	}
	if got := tab.ColumnNames()[0]; got != "a" {
		t.Fatalf("first column name = %q, want a", got)
	}
}

func TestLoadLatin1Fallback(t *testing.T) {
	t.Parallel()

	// 0xE9 is e-acute in latin1 and an invalid UTF-8 sequence, so the
	// utf-8 and utf-8-sig attempts must fail before latin1 succeeds.
	path := writeFixture(t, "latin1.csv", []byte("name,city\nRen\xE9,Z\xFCrich\nAnna,Oslo\n"))

	tab, rep, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !rep.Success {
		t.Fatalf("Success = false, errors = %v", rep.Errors)
	}
	if rep.UsedEncoding != "latin1" {
		t.Fatalf("UsedEncoding = %q, want latin1", rep.UsedEncoding)
	}
	if !hasWarningContaining(rep, "Read attempts: [") {
		t.Fatalf("missing read-attempt diagnostics, warnings = %v", rep.Warnings)
	}
	name := tab.Column("name")
	if name == nil || name.Values[0] != "René" {
		t.Fatalf("decoded name = %v, want René", name)
	}
}

func TestLoadWhitespaceFallback(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "space.dat", []byte("1 2 3\n4 5 6\n7 8 9\n"))

	tab, rep, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !rep.Success {
		t.Fatalf("Success = false, errors = %v", rep.Errors)
	}
	if rep.UsedSep != "whitespace" {
		t.Fatalf("UsedSep = %q, want whitespace", rep.UsedSep)
	}
	if rep.UsedEncoding != "unknown" {
		t.Fatalf("UsedEncoding = %q, want unknown", rep.UsedEncoding)
	}
	if got := tab.ColumnNames(); !reflect.DeepEqual(got, []string{"0", "1", "2"}) {
		t.Fatalf("ColumnNames() = %v, want positional names", got)
	}
	if rep.NRows != 3 {
		t.Fatalf("NRows = %d, want 3", rep.NRows)
	}
	if !hasWarningContaining(rep, "whitespace-delimited parsing") {
		t.Fatalf("missing fallback warning, warnings = %v", rep.Warnings)
	}
}

func TestLoadSingleColumnCommaRecovery(t *testing.T) {
	t.Parallel()

	// Comma-delimited content where most rows are ragged: the strict
	// structural attempts must fail, the whitespace fallback yields one
	// comma-bearing column, and the recovery pass re-parses it.
	raw := strings.Join([]string{
		"id,name",
		"1,alice",
		"2,bob,extra,x",
		"3,c,y",
		"4,d,z,q,r",
		"5,e,f,g",
	}, "\n") + "\n"
	path := writeFixture(t, "ragged.csv", []byte(raw))

	tab, rep, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !rep.Success {
		t.Fatalf("Success = false, errors = %v", rep.Errors)
	}
	if rep.UsedSep != "comma_recovered_from_single_column" {
		t.Fatalf("UsedSep = %q, want comma_recovered_from_single_column", rep.UsedSep)
	}
	if got := tab.ColumnNames(); !reflect.DeepEqual(got, []string{"id", "name"}) {
		t.Fatalf("ColumnNames() = %v, want [id name]", got)
	}
	if rep.NRows != 1 {
		t.Fatalf("NRows = %d, want 1 (only the well-formed row survives)", rep.NRows)
	}
	if !hasWarningContaining(rep, "recovered by parsing that column as comma-separated data") {
		t.Fatalf("missing recovery warning, warnings = %v", rep.Warnings)
	}
}

func TestLoadHTMLTableRecovery(t *testing.T) {
	t.Parallel()

	html := `<html><body><h1>Export</h1><table>
<tr><th>name</th><th>score</th></tr>
<tr><td>a</td><td>1</td></tr>
<tr><td>b</td><td>2</td></tr>
</table></body></html>`
	path := writeFixture(t, "export.csv", []byte(html))

	tab, rep, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !rep.Success {
		t.Fatalf("Success = false, errors = %v", rep.Errors)
	}
	if rep.UsedSep != "html_table" {
		t.Fatalf("UsedSep = %q, want html_table", rep.UsedSep)
	}
	if rep.NRows != 2 || rep.NCols != 2 {
		t.Fatalf("got %dx%d, want 2x2", rep.NRows, rep.NCols)
	}
	if got := tab.ColumnNames(); !reflect.DeepEqual(got, []string{"name", "score"}) {
		t.Fatalf("ColumnNames() = %v", got)
	}
	if !hasWarningContaining(rep, "recovered the first <table>") {
		t.Fatalf("missing html recovery warning, warnings = %v", rep.Warnings)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "empty.csv", nil)

	tab, rep, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load() error = %v (content failures must not error)", err)
	}
	if rep.Success {
		t.Fatal("Success = true for empty file")
	}
	if rep.NRows != 0 || rep.NCols != 0 {
		t.Fatalf("got %dx%d, want 0x0", rep.NRows, rep.NCols)
	}
	if len(rep.Errors) == 0 || !strings.Contains(rep.Errors[0], "All parsing attempts failed") {
		t.Fatalf("Errors = %v, want terminal failure entry", rep.Errors)
	}
	if tab == nil || tab.NumRows() != 0 {
		t.Fatalf("table = %v, want empty non-nil table", tab)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, _, err := Load(filepath.Join(t.TempDir(), "nope.csv"), DefaultOptions())
	if err == nil {
		t.Fatal("Load() error = nil for missing file")
	}
}

func TestLoadMissingValueTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		opt      func() Options
		col      string
		wantRate float64
	}{
		{
			name:     "default tokens",
			content:  "x,y\n1,NA\n2,?\n3,4\n",
			opt:      DefaultOptions,
			col:      "y",
			wantRate: 0.6667,
		},
		{
			name:    "custom sentinel",
			content: "x,y\n1,-999\n2,5\n",
			opt: func() Options {
				o := DefaultOptions()
				o.NAValues = []string{"-999"}
				return o
			},
			col:      "y",
			wantRate: 0.5,
		},
		{
			name:    "defaults disabled",
			content: "x,y\n1,NA\n2,5\n",
			opt: func() Options {
				o := DefaultOptions()
				o.KeepDefaultNA = false
				return o
			},
			col:      "y",
			wantRate: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeFixture(t, "na.csv", []byte(tt.content))
			_, rep, err := Load(path, tt.opt())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !rep.Success {
				t.Fatalf("Success = false, errors = %v", rep.Errors)
			}
			if got := profileByName(t, rep, tt.col).MissingRate; got != tt.wantRate {
				t.Fatalf("missing_rate = %v, want %v", got, tt.wantRate)
			}
		})
	}
}

func TestLoadDatetimeReparse(t *testing.T) {
	t.Parallel()

	// 4 of 5 rows parse (0.8): at the threshold the column converts and
	// the unparseable cell becomes missing.
	content := "id,when\n1,2024-01-02\n2,2024-01-03\n3,oops\n4,2024-02-10\n5,2024-03-15\n"
	path := writeFixture(t, "dates.csv", []byte(content))

	tab, rep, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(rep.ParsedDatetimeCols, []string{"when"}) {
		t.Fatalf("ParsedDatetimeCols = %v, want [when]", rep.ParsedDatetimeCols)
	}
	p := profileByName(t, rep, "when")
	if p.InferredType != profile.TypeDatetime {
		t.Fatalf("when inferred_type = %q, want datetime", p.InferredType)
	}
	if p.MissingRate != 0.2 {
		t.Fatalf("when missing_rate = %v, want 0.2", p.MissingRate)
	}
	if got := tab.Column("when").Values[0]; got != "2024-01-02 00:00:00" {
		t.Fatalf("canonical value = %q", got)
	}
}

func TestLoadDatetimeBelowThreshold(t *testing.T) {
	t.Parallel()

	// 3 of 5 rows parse (0.6): the column must stay a string column.
	content := "id,when\n1,2024-01-02\n2,nah\n3,oops\n4,2024-02-10\n5,2024-03-15\n"
	path := writeFixture(t, "dates.csv", []byte(content))

	_, rep, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rep.ParsedDatetimeCols) != 0 {
		t.Fatalf("ParsedDatetimeCols = %v, want none", rep.ParsedDatetimeCols)
	}
	if got := profileByName(t, rep, "when").InferredType; got != profile.TypeString {
		t.Fatalf("when inferred_type = %q, want string", got)
	}
}

func TestLoadDatesDisabled(t *testing.T) {
	t.Parallel()

	content := "id,when\n1,2024-01-02\n2,2024-01-03\n"
	path := writeFixture(t, "dates.csv", []byte(content))

	opt := DefaultOptions()
	opt.ParseDates = false

	_, rep, err := Load(path, opt)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rep.ParsedDatetimeCols) != 0 {
		t.Fatalf("ParsedDatetimeCols = %v, want none with ParseDates off", rep.ParsedDatetimeCols)
	}
}

// TestLoadIdempotent verifies that loading the same file twice yields the
// same report.
func TestLoadIdempotent(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "twice.csv", []byte("a,b\n1,x\n2,y\n"))

	_, rep1, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("first Load() error = %v", err)
	}
	_, rep2, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if !reflect.DeepEqual(rep1, rep2) {
		t.Fatalf("reports differ:\n%+v\n%+v", rep1, rep2)
	}
}
