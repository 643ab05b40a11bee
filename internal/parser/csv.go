// Package parser turns utility interval exports into typed usage records.
package parser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jgoulah/gridinsight/internal/apperrors"
	"github.com/jgoulah/gridinsight/pkg/models"
)

// Options controls how an export is read
type Options struct {
	SkipRows        int    // Leading metadata lines before the header
	DateColumn      string // Matched case-insensitively after trimming
	StartTimeColumn string
	UsageColumn     string
	CostColumn      string
	TimestampLayout string // Layout of "<date> <start time>"

	// HeaderSearchRows is how many extra rows past SkipRows may precede the
	// header, for exports carrying more metadata than usual.
	HeaderSearchRows int
}

// DefaultOptions matches the interval export layout of PG&E style downloads
func DefaultOptions() Options {
	return Options{
		SkipRows:         6,
		DateColumn:       "DATE",
		StartTimeColumn:  "START TIME",
		UsageColumn:      "USAGE (kWh)",
		CostColumn:       "COST",
		TimestampLayout:  "2006-01-02 15:04",
		HeaderSearchRows: 4,
	}
}

// columns holds header indices of the required fields
type columns struct {
	date, startTime, usage, cost int
}

func (c columns) max() int {
	return max(c.date, c.startTime, c.usage, c.cost)
}

// ParseString parses raw export text
func ParseString(raw string, opts Options) ([]models.UsageRecord, error) {
	return Parse(strings.NewReader(raw), opts)
}

// Parse reads a full export. Any row-level failure aborts the whole parse;
// no rows are silently dropped.
func Parse(r io.Reader, opts Options) ([]models.UsageRecord, error) {
	br := bufio.NewReader(r)

	// Metadata lines are skipped as raw lines so blank lines count too
	for i := 0; i < opts.SkipRows; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if err == io.EOF {
				return nil, apperrors.EmptyDataset()
			}
			return nil, fmt.Errorf("skipping metadata rows: %w", err)
		}
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1 // Exports pad some rows with trailing notes
	reader.LazyQuotes = true

	cols, err := readHeader(reader, opts)
	if err != nil {
		return nil, err
	}

	var records []models.UsageRecord
	row := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, apperrors.Parsef("reading row %d: %v", row, err)
		}

		record, err := parseRow(fields, row, cols, opts)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, apperrors.EmptyDataset()
	}

	return records, nil
}

// readHeader reads rows until one carries every required column. The first
// candidate's schema error is reported when none does.
func readHeader(reader *csv.Reader, opts Options) (columns, error) {
	var firstErr error
	for i := 0; i <= opts.HeaderSearchRows; i++ {
		header, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return columns{}, apperrors.Parsef("reading header: %v", err)
		}

		cols, err := findColumns(header, opts)
		if err == nil {
			return cols, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr == nil {
		return columns{}, apperrors.EmptyDataset()
	}
	return columns{}, firstErr
}

// findColumns locates the required columns by normalized header name
func findColumns(header []string, opts Options) (columns, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	lookup := func(name string) int {
		for i, h := range normalized {
			if strings.EqualFold(h, strings.TrimSpace(name)) {
				return i
			}
		}
		return -1
	}

	cols := columns{
		date:      lookup(opts.DateColumn),
		startTime: lookup(opts.StartTimeColumn),
		usage:     lookup(opts.UsageColumn),
		cost:      lookup(opts.CostColumn),
	}

	var missing []string
	for _, c := range []struct {
		name string
		idx  int
	}{
		{opts.DateColumn, cols.date},
		{opts.StartTimeColumn, cols.startTime},
		{opts.UsageColumn, cols.usage},
		{opts.CostColumn, cols.cost},
	} {
		if c.idx == -1 {
			missing = append(missing, strconv.Quote(c.name))
		}
	}
	if len(missing) > 0 {
		return columns{}, apperrors.Schema("missing required columns %s (header: %v)", strings.Join(missing, ", "), normalized)
	}

	return cols, nil
}

func parseRow(fields []string, row int, cols columns, opts Options) (models.UsageRecord, error) {
	if len(fields) <= cols.max() {
		return models.UsageRecord{}, apperrors.Parsef("row %d has %d fields, expected at least %d", row, len(fields), cols.max()+1)
	}

	stamp := strings.TrimSpace(fields[cols.date]) + " " + strings.TrimSpace(fields[cols.startTime])
	ts, err := time.Parse(opts.TimestampLayout, stamp)
	if err != nil {
		return models.UsageRecord{}, apperrors.Parse(row, opts.DateColumn+"+"+opts.StartTimeColumn, err)
	}

	usage, err := parseKWh(fields[cols.usage])
	if err != nil {
		return models.UsageRecord{}, apperrors.Parse(row, opts.UsageColumn, err)
	}

	cost, err := parseCost(fields[cols.cost])
	if err != nil {
		return models.UsageRecord{}, apperrors.Parse(row, opts.CostColumn, err)
	}

	return models.UsageRecord{Timestamp: ts, KWh: usage, Cost: cost}, nil
}

var (
	errNotFinite = errors.New("value is not finite")
	errNegative  = errors.New("usage cannot be negative")
)

// parseKWh parses an interval usage value
func parseKWh(s string) (float64, error) {
	v, err := parseFinite(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errNegative
	}
	return v, nil
}

// parseCost strips a leading "$" (after any sign) before parsing
func parseCost(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "-$"):
		s = "-" + s[2:]
	default:
		s = strings.TrimPrefix(s, "$")
	}
	return parseFinite(s)
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}
