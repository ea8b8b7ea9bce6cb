package portfolio

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/seenimoa/creditpulse/pkg/models"
)

// Format identifies the tabular encoding of a portfolio source.
type Format string

const (
	FormatDelimited Format = "delimited"
	FormatXLSX      Format = "xlsx"
)

// ErrDuplicateBond is wrapped by ParseError when a bond id repeats.
var ErrDuplicateBond = errors.New("duplicate bond identifier")

// ErrEmptyBond is wrapped by ParseError when a row has no bond id.
var ErrEmptyBond = errors.New("bond identifier is empty")

// FormatForPath picks the format from the file extension. Anything that is
// not a spreadsheet is treated as delimited text.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xls":
		return FormatXLSX
	default:
		return FormatDelimited
	}
}

// Load reads and validates a portfolio file. The read is bounded by ctx;
// a failed load returns no portfolio and is not retried.
func Load(ctx context.Context, path string) (*Portfolio, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	data, err := readFile(ctx, path)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	return parse(ctx, path, data, FormatForPath(path))
}

// LoadReader reads a portfolio from r, e.g. an HTTP upload. name is used in
// error messages only.
func LoadReader(ctx context.Context, r io.Reader, name string, format Format) (*Portfolio, error) {
	data, err := io.ReadAll(ctxReader{ctx: ctx, r: r})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, &ParseError{Source: name, Err: fmt.Errorf("read: %w", err)}
	}
	return parse(ctx, name, data, format)
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// readFile reads path in a goroutine so that a stalled filesystem cannot
// outlive the caller's deadline.
func readFile(ctx context.Context, path string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := os.ReadFile(path)
		ch <- result{data, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.data, res.err
	}
}

func parse(ctx context.Context, source string, data []byte, format Format) (*Portfolio, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case FormatXLSX:
		records, err = readXLSX(data)
	default:
		records, err = readDelimited(data)
	}
	if err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	if len(records) == 0 {
		return nil, &ParseError{Source: source, Err: errors.New("no header row")}
	}
	return build(ctx, source, records)
}

func readDelimited(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed delimited data: %w", err)
	}
	return records, nil
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab in the
// header line.
func sniffDelimiter(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}
	best, bestN := ',', bytes.Count(header, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(header, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func build(ctx context.Context, source string, records [][]string) (*Portfolio, error) {
	header := make([]string, len(records[0]))
	index := make(map[string]int, len(header))
	for i, h := range records[0] {
		header[i] = normalizeColumn(h)
		if _, dup := index[header[i]]; !dup {
			index[header[i]] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Source: source, Missing: missing}
	}

	p := &Portfolio{Source: source, Columns: header}
	seen := make(map[string]int)

	for i, rec := range records[1:] {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, &ParseError{Source: source, Err: err}
			}
		}
		if blank(rec) {
			continue
		}
		line := i + 2
		row, err := buildRow(header, index, rec)
		if err != nil {
			err.Source, err.Line = source, line
			return nil, err
		}
		if prev, dup := seen[row.Bond]; dup {
			return nil, &ParseError{Source: source, Line: line, Column: ColBond, Bond: row.Bond,
				Err: fmt.Errorf("%w (first seen on line %d)", ErrDuplicateBond, prev)}
		}
		seen[row.Bond] = line
		p.Rows = append(p.Rows, row)
	}
	return p, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func cell(rec []string, index map[string]int, col string) (string, bool) {
	i, ok := index[col]
	if !ok || i >= len(rec) {
		return "", ok
	}
	return strings.TrimSpace(rec[i]), true
}

func buildRow(header []string, index map[string]int, rec []string) (Row, *ParseError) {
	var row Row
	row.Bond, _ = cell(rec, index, ColBond)
	if row.Bond == "" {
		return row, &ParseError{Column: ColBond, Err: ErrEmptyBond}
	}
	row.Sector, _ = cell(rec, index, ColSector)
	if row.Sector == "" {
		return row, &ParseError{Column: ColSector, Bond: row.Bond, Err: errors.New("sector is empty")}
	}
	row.Issuer, _ = cell(rec, index, ColIssuer)
	if v, _ := cell(rec, index, ColRating); v != "" {
		row.Rating = models.ParseRating(v)
	}

	required := []struct {
		col string
		dst *float64
	}{
		{ColDuration, &row.Duration},
		{ColConvexity, &row.Convexity},
		{ColVaR, &row.VaR},
		{ColExpectedShortfall, &row.ExpectedShortfall},
	}
	for _, f := range required {
		v, _ := cell(rec, index, f.col)
		x, err := parseNumber(v)
		if err != nil {
			return row, &ParseError{Column: f.col, Bond: row.Bond, Err: err}
		}
		*f.dst = x
	}

	optional := []struct {
		col string
		dst **float64
	}{
		{ColSpread, &row.Spread},
		{ColRate, &row.Rate},
		{ColYield, &row.Yield},
	}
	for _, f := range optional {
		v, present := cell(rec, index, f.col)
		if !present || v == "" {
			continue
		}
		x, err := parseNumber(v)
		if err != nil {
			return row, &ParseError{Column: f.col, Bond: row.Bond, Err: err}
		}
		*f.dst = &x
	}

	var err error
	if v, _ := cell(rec, index, ColCashFlows); v != "" {
		if row.CashFlows, err = parseSeries(v); err != nil {
			return row, &ParseError{Column: ColCashFlows, Bond: row.Bond, Err: err}
		}
	}
	if v, _ := cell(rec, index, ColSpreadHistory); v != "" {
		if row.SpreadHistory, err = parseSeries(v); err != nil {
			return row, &ParseError{Column: ColSpreadHistory, Bond: row.Bond, Err: err}
		}
	}

	for i, col := range header {
		if TypedColumn(col) || i >= len(rec) {
			continue
		}
		if row.Extra == nil {
			row.Extra = make(map[string]string)
		}
		row.Extra[col] = rec[i]
	}
	return row, nil
}

// TypedColumn reports whether col is read into a Row field rather than
// kept in Row.Extra.
func TypedColumn(col string) bool {
	switch col {
	case ColBond, ColSector, ColDuration, ColConvexity, ColVaR, ColExpectedShortfall,
		ColIssuer, ColRating, ColSpread, ColRate, ColYield, ColCashFlows, ColSpreadHistory:
		return true
	}
	return false
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("value is empty")
	}
	x, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not numeric", s)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return x, nil
}

// parseSeries reads "5;5;105" or "5|5|105" into a slice.
func parseSeries(s string) ([]float64, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' || r == ' ' })
	if len(parts) == 0 {
		return nil, errors.New("series is empty")
	}
	out := make([]float64, len(parts))
	for i, part := range parts {
		x, err := parseNumber(part)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i+1, err)
		}
		out[i] = x
	}
	return out, nil
}
