package report

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kjannette/watchtower-backend/internal/models"
)

// Columns is the fixed positional layout of a report row.
var Columns = []string{
	"Rank", "Platform", "Market_Question", "Market_URL", "Market_Price",
	"Model_Estimate", "Edge", "Alpha_Score", "Confidence", "Kelly_Fraction",
	"Recommendation", "Num_Prob_Mentions", "Num_Articles", "Hours_Until_Close",
	"Validated",
}

const edgeColumn = 6

// Diagnostic describes a row that was skipped or a cell that was defaulted.
type Diagnostic struct {
	Line   int    `json:"line"`
	Field  string `json:"field,omitempty"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

func (d Diagnostic) String() string {
	if d.Field == "" {
		return fmt.Sprintf("line %d: %s", d.Line, d.Reason)
	}
	return fmt.Sprintf("line %d: %s %q: %s", d.Line, d.Field, d.Value, d.Reason)
}

// Result is the outcome of a strict parse: the same records Parse returns,
// plus everything that was skipped or coerced along the way.
type Result struct {
	Records     []models.MarketRecord `json:"records"`
	Diagnostics []Diagnostic          `json:"diagnostics"`
	DataLines   int                   `json:"dataLines"`
	Skipped     int                   `json:"skipped"`
	// Unusable counts admitted rows whose edge is missing or not finite.
	Unusable int `json:"unusable"`

	edgeOK []bool
}

// Usable returns the records Ingest would keep: those with a present, finite
// edge.
func (r Result) Usable() []models.MarketRecord {
	out := make([]models.MarketRecord, 0, len(r.Records)-r.Unusable)
	for i, ok := range r.edgeOK {
		if ok {
			out = append(out, r.Records[i])
		}
	}
	return out
}

type parsedRow struct {
	record models.MarketRecord
	edgeOK bool
}

// Parse turns report CSV text into records. Malformed rows are skipped and
// malformed numbers become zero; it never fails.
func Parse(text string) []models.MarketRecord {
	rows, _, _ := parseRows(text, nil)
	out := make([]models.MarketRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record)
	}
	return out
}

// ParseStrict parses like Parse and reports per-row diagnostics.
func ParseStrict(text string) Result {
	var diags []Diagnostic
	rows, dataLines, skipped := parseRows(text, &diags)

	res := Result{
		Records:     make([]models.MarketRecord, 0, len(rows)),
		Diagnostics: diags,
		DataLines:   dataLines,
		Skipped:     skipped,
		edgeOK:      make([]bool, 0, len(rows)),
	}
	for _, r := range rows {
		res.Records = append(res.Records, r.record)
		res.edgeOK = append(res.edgeOK, r.edgeOK)
		if !r.edgeOK {
			res.Unusable++
		}
	}
	return res
}

// Ingest parses a report and keeps only records with a present, finite edge.
func Ingest(text string) []models.MarketRecord {
	rows, _, _ := parseRows(text, nil)
	out := make([]models.MarketRecord, 0, len(rows))
	for _, r := range rows {
		if r.edgeOK {
			out = append(out, r.record)
		}
	}
	return out
}

func parseRows(text string, diags *[]Diagnostic) (rows []parsedRow, dataLines, skipped int) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return nil, 0, 0
	}

	// The header is split naively; only its field count matters.
	headerCount := len(strings.Split(lines[0], ","))

	for i, line := range lines[1:] {
		lineNo := i + 2
		dataLines++

		values := SplitLine(line)
		if len(values) != headerCount {
			skipped++
			if diags != nil && strings.TrimSpace(line) != "" {
				*diags = append(*diags, Diagnostic{
					Line:   lineNo,
					Reason: fmt.Sprintf("expected %d fields, got %d", headerCount, len(values)),
				})
			}
			continue
		}

		rows = append(rows, buildRow(values, lineNo, diags))
	}
	return rows, dataLines, skipped
}

func buildRow(values []string, lineNo int, diags *[]Diagnostic) parsedRow {
	c := cellReader{values: values, line: lineNo, diags: diags}

	rec := models.MarketRecord{
		Rank:            c.intAt(0),
		Platform:        c.textAt(1),
		Question:        c.textAt(2),
		URL:             c.textAt(3),
		MarketPrice:     c.floatAt(4),
		ModelEstimate:   c.floatAt(5),
		Edge:            c.floatAt(6),
		AlphaScore:      c.floatAt(7),
		Confidence:      c.floatAt(8),
		KellyFraction:   c.floatAt(9),
		Recommendation:  c.textAt(10),
		MentionCount:    c.intAt(11),
		ArticleCount:    c.intAt(12),
		HoursUntilClose: c.floatAt(13),
		Validated:       c.textAt(14),
	}

	edge, exact := parseFloat(c.textAt(edgeColumn))
	return parsedRow{
		record: rec,
		edgeOK: exact && !math.IsNaN(edge) && !math.IsInf(edge, 0),
	}
}

// SplitLine splits one CSV line on commas outside double quotes. A quote
// toggles the quoted state; a doubled quote inside quotes yields a literal
// quote. Fields are trimmed.
func SplitLine(line string) []string {
	var (
		result   []string
		current  strings.Builder
		inQuotes bool
	)

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"' && inQuotes && i+1 < len(line) && line[i+1] == '"':
			current.WriteByte('"')
			i++
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			result = append(result, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	return append(result, strings.TrimSpace(current.String()))
}

// --- numeric coercion ---

type cellReader struct {
	values []string
	line   int
	diags  *[]Diagnostic
}

func (c *cellReader) textAt(i int) string {
	if i >= len(c.values) {
		return ""
	}
	return c.values[i]
}

func (c *cellReader) intAt(i int) int {
	raw := c.textAt(i)
	n, exact := parseInt(raw)
	if !exact {
		c.note(i, raw, n == 0, strconv.Itoa(n))
	}
	return n
}

func (c *cellReader) floatAt(i int) float64 {
	raw := c.textAt(i)
	f, exact := parseFloat(raw)
	if math.IsInf(f, 0) {
		c.noteReason(i, raw, "not a finite number, using 0")
		return 0
	}
	if !exact {
		c.note(i, raw, f == 0, strconv.FormatFloat(f, 'g', -1, 64))
	}
	return f
}

func (c *cellReader) note(i int, raw string, defaulted bool, used string) {
	reason := "trailing characters ignored, using " + used
	switch {
	case raw == "":
		reason = "empty, using 0"
	case defaulted:
		reason = "not a number, using 0"
	}
	c.noteReason(i, raw, reason)
}

func (c *cellReader) noteReason(i int, raw, reason string) {
	if c.diags == nil {
		return
	}
	*c.diags = append(*c.diags, Diagnostic{Line: c.line, Field: Columns[i], Value: raw, Reason: reason})
}

var (
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
	floatPrefix = regexp.MustCompile(`^[+-]?(?:Infinity|(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)`)
)

// parseInt reads the leading integer of s, defaulting to 0. exact is false
// when s was not entirely an integer.
func parseInt(s string) (n int, exact bool) {
	m := intPrefix.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return v, m == s
}

// parseFloat reads the leading decimal number of s, defaulting to 0.
// NaN is never produced; an out-of-range exponent yields ±Inf.
func parseFloat(s string) (f float64, exact bool) {
	m := floatPrefix.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return v, m == s
}
