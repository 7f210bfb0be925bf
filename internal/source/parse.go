package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
)

// timeLayouts are the timestamp shapes seen in ERDDAP and Copernicus exports.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02",
}

// ParseTime parses a source timestamp. Zoned values keep their wall-clock
// date when truncated, matching a zone-stripping normalization.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// ParseFile opens path and parses it as a source file for v.
func ParseFile(path string, v domain.Variable, columns []string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer f.Close()

	ds, err := Parse(f, v, columns)
	if err != nil {
		return Dataset{}, err
	}
	ds.Path = path
	return ds, nil
}

// Parse reads CSV content for variable v. Lines starting with '#' are
// comments. Column names are trimmed; the time column is matched
// case-insensitively and the value column is the first alias in columns
// present in the header (also case-insensitive). Rows whose timestamp does
// not parse, such as the unit row under an ERDDAP header, are dropped.
// Non-numeric values become NaN.
func Parse(r io.Reader, v domain.Variable, columns []string) (Dataset, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Dataset{}, ErrNoTimeColumn
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	timeIdx := indexFold(header, "time")
	if timeIdx < 0 {
		return Dataset{}, ErrNoTimeColumn
	}
	valueIdx := -1
	for _, alias := range columns {
		if valueIdx = indexFold(header, alias); valueIdx >= 0 {
			break
		}
	}
	if valueIdx < 0 {
		return Dataset{}, fmt.Errorf("%w: want one of %v", ErrNoValueColumn, columns)
	}

	ds := Dataset{Variable: v, Column: header[valueIdx]}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("read row: %w", err)
		}
		if timeIdx >= len(rec) {
			continue
		}
		ts, err := ParseTime(rec[timeIdx])
		if err != nil {
			continue
		}
		value := math.NaN()
		if valueIdx < len(rec) {
			value = parseValue(rec[valueIdx])
		}
		ds.Observations = append(ds.Observations, domain.RawObservation{Time: ts, Variable: v, Value: value})
	}

	if len(ds.Observations) == 0 {
		return Dataset{}, ErrNoRows
	}
	return ds, nil
}

func parseValue(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

func indexFold(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}
