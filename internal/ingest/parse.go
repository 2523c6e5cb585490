package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	encodingUTF8    = "utf-8"
	encodingUTF8Sig = "utf-8-sig"
	encodingLatin1  = "latin1"
	encodingCP1252  = "cp1252"
	encodingUnknown = "unknown"

	sepWhitespace     = "whitespace"
	sepHTMLTable      = "html_table"
	sepCommaRecovered = "comma_recovered_from_single_column"
)

// encodingOrder is the fixed priority list for the structural pass.
var encodingOrder = []string{encodingUTF8, encodingUTF8Sig, encodingLatin1, encodingCP1252}

type sepSpec struct {
	name string
	r    rune // zero means auto-detect
}

// sepOrder is the fixed delimiter priority list for the structural pass.
var sepOrder = []sepSpec{
	{name: "auto"},
	{name: "comma", r: ','},
	{name: "tab", r: '\t'},
	{name: "semicolon", r: ';'},
	{name: "pipe", r: '|'},
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sniffHTML reports whether file content looks like an HTML document
// rather than delimited text. A cheap scan of the first kilobyte is
// enough; the actual table extraction validates the markup properly.
func sniffHTML(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	s := strings.ToLower(string(head))
	s = strings.TrimLeft(s, " \t\r\n\uFEFF")
	return strings.HasPrefix(s, "<!doctype html") ||
		strings.HasPrefix(s, "<html") ||
		strings.Contains(s, "<table")
}

// naSet is the merged missing-value token set for one load call.
type naSet map[string]struct{}

func (s naSet) isMissing(v string) bool {
	_, ok := s[v]
	return ok
}

// parsed is the intermediate result of one successful parse strategy.
// rows keeps the raw cell strings even where missing is set, so the
// single-column comma recovery can reconstruct the original lines.
type parsed struct {
	sepName  string
	names    []string
	rows     [][]string
	missing  [][]bool
	warnings []string
}

func (p *parsed) appendRow(rec []string, na naSet) {
	miss := make([]bool, len(rec))
	for i, v := range rec {
		miss[i] = na.isMissing(v)
	}
	p.rows = append(p.rows, rec)
	p.missing = append(p.missing, miss)
}

// rawColumn returns the raw string cells of one column, including cells
// flagged as missing.
func (p *parsed) rawColumn(i int) []string {
	out := make([]string, 0, len(p.rows))
	for _, r := range p.rows {
		out = append(out, r[i])
	}
	return out
}

// decodeBytes decodes the file bytes under one named encoding.
//
// utf-8 rejects invalid byte sequences; utf-8-sig additionally strips a
// leading byte-order mark. latin1 maps every byte, so combinations after
// it only fail structurally.
func decodeBytes(data []byte, enc string) (string, error) {
	switch enc {
	case encodingUTF8:
		if !utf8.Valid(data) {
			return "", errors.New("invalid UTF-8 byte sequence")
		}
		return string(data), nil

	case encodingUTF8Sig:
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", errors.New("invalid UTF-8 byte sequence")
		}
		return string(data), nil

	case encodingLatin1:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("latin1 decode: %w", err)
		}
		return string(out), nil

	case encodingCP1252:
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("cp1252 decode: %w", err)
		}
		return string(out), nil

	default:
		return "", fmt.Errorf("unknown encoding %q", enc)
	}
}

// parseStructural runs one delimiter strategy on decoded text. For the
// auto strategy the delimiter is sniffed first; sniff failure fails the
// attempt.
func parseStructural(text string, sep sepSpec, na naSet) (*parsed, error) {
	delim := sep.r
	name := sep.name
	if delim == 0 {
		d, err := sniffDelimiter(text)
		if err != nil {
			return nil, err
		}
		delim = d
		name = delimName(d)
	}

	p, err := parseDelimited(text, delim, na, true)
	if err != nil {
		return nil, err
	}
	p.sepName = name
	return p, nil
}

// parseDelimited parses text with a fixed delimiter.
//
// Tolerance rules:
//   - rows whose field count differs from the header are skipped with a
//     warning;
//   - CSV syntax errors skip the offending row;
//   - when strict is set, an attempt where skipped rows outnumber kept
//     rows fails, so the driver loop can move on to the next strategy.
//
// A single-field header always fails: it means the delimiter did not
// apply, and accepting it would mask the whitespace fallback.
func parseDelimited(text string, delim rune, na naSet, strict bool) (*parsed, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	headers, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	if len(headers) < 2 {
		return nil, fmt.Errorf("delimiter %q yielded a single column", delim)
	}

	p := &parsed{names: headers}
	skipped := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if len(rec) != len(headers) {
			skipped++
			continue
		}
		p.appendRow(rec, na)
	}

	if strict && skipped > len(p.rows) {
		return nil, fmt.Errorf("%d of %d data rows malformed", skipped, skipped+len(p.rows))
	}
	if skipped > 0 {
		p.warnings = append(p.warnings,
			fmt.Sprintf("Skipped %d malformed rows (field count mismatch or parse error).", skipped))
	}
	return p, nil
}

// sniffDelimiter picks a delimiter by inspecting up to the first 10
// non-empty lines. A candidate qualifies only when it appears in every
// sampled line; the winner is the qualifying candidate with the highest
// total count, ties resolved by priority order.
func sniffDelimiter(text string) (rune, error) {
	lines := sampleLines(text, 10)
	if len(lines) == 0 {
		return 0, errors.New("no content to sniff")
	}

	best := rune(0)
	bestTotal := 0
	for _, cand := range []rune{',', '\t', ';', '|'} {
		total := 0
		everywhere := true
		for _, ln := range lines {
			n := strings.Count(ln, string(cand))
			if n == 0 {
				everywhere = false
				break
			}
			total += n
		}
		if everywhere && total > bestTotal {
			best = cand
			bestTotal = total
		}
	}
	if best == 0 {
		return 0, errors.New("no delimiter detected in sample")
	}
	return best, nil
}

func delimName(r rune) string {
	switch r {
	case ',':
		return "comma"
	case '\t':
		return "tab"
	case ';':
		return "semicolon"
	case '|':
		return "pipe"
	default:
		return strconv.QuoteRune(r)
	}
}

func sampleLines(text string, max int) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimRight(ln, "\r")
		if strings.TrimSpace(ln) == "" {
			continue
		}
		out = append(out, ln)
		if len(out) == max {
			break
		}
	}
	return out
}

// parseWhitespace re-parses the raw bytes treating runs of whitespace as
// the delimiter, with no header row. Columns become positional names
// ("0", "1", ...). The width is the widest line; shorter rows are padded
// with missing cells.
func parseWhitespace(data []byte, na naSet) (*parsed, error) {
	text := string(data)
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("latin1 decode: %w", err)
		}
		text = string(decoded)
	}

	var fields [][]string
	width := 0
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimRight(ln, "\r")
		if strings.TrimSpace(ln) == "" {
			continue
		}
		fs := strings.Fields(ln)
		fields = append(fields, fs)
		if len(fs) > width {
			width = len(fs)
		}
	}
	if len(fields) == 0 || width == 0 {
		return nil, errors.New("no whitespace-delimited content found")
	}

	names := make([]string, width)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}

	p := &parsed{sepName: sepWhitespace, names: names}
	for _, fs := range fields {
		rec := make([]string, width)
		miss := make([]bool, width)
		for i := 0; i < width; i++ {
			if i < len(fs) {
				rec[i] = fs[i]
				miss[i] = na.isMissing(fs[i])
			} else {
				miss[i] = true
			}
		}
		p.rows = append(p.rows, rec)
		p.missing = append(p.missing, miss)
	}
	return p, nil
}
