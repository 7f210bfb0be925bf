package timeseries

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
)

// FuseOptions controls gap filling.
type FuseOptions struct {
	// InterpolationLimit is the most consecutive missing cells filled by
	// interpolation per gap. Zero disables interpolation.
	InterpolationLimit int
	// Seasonal lists variables that receive month-of-year climatology in
	// their missing cells before interpolation.
	Seasonal []domain.Variable
}

// Table is the fused wide table: one row per date, one column per variable.
// After Fuse no cell is missing; Fills records how each cell got its value.
type Table struct {
	Dates   []time.Time
	Columns map[domain.Variable][]float64
	Fills   map[domain.Variable][]domain.Fill
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Dates) }

// Fuse outer-joins the series on their timestamps and fills the gaps in a
// fixed order: seasonal climatology (for opts.Seasonal), then bounded linear
// interpolation, then zero. Variables absent from series are all zero.
func Fuse(series []domain.Series, opts FuseOptions) *Table {
	dates := unionDates(series)
	row := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		row[d] = i
	}

	t := &Table{
		Dates:   dates,
		Columns: make(map[domain.Variable][]float64, len(domain.Variables)),
		Fills:   make(map[domain.Variable][]domain.Fill, len(domain.Variables)),
	}
	for _, v := range domain.Variables {
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = math.NaN()
		}
		t.Columns[v] = col
		t.Fills[v] = make([]domain.Fill, len(dates))
	}

	for _, s := range series {
		col, fills := t.Columns[s.Variable], t.Fills[s.Variable]
		if col == nil {
			continue
		}
		for _, p := range s.Points {
			if math.IsNaN(p.Value) {
				continue
			}
			i := row[p.Time]
			col[i] = p.Value
			fills[i] = domain.FillObserved
		}
	}

	for _, v := range opts.Seasonal {
		if col, ok := t.Columns[v]; ok {
			fillSeasonal(dates, col, t.Fills[v])
		}
	}
	for _, v := range domain.Variables {
		interpolate(t.Columns[v], t.Fills[v], opts.InterpolationLimit)
		zeroFill(t.Columns[v], t.Fills[v])
	}
	return t
}

// Records converts the table into fused records, one per date, in date order.
func (t *Table) Records() []domain.FusedRecord {
	out := make([]domain.FusedRecord, len(t.Dates))
	for i, d := range t.Dates {
		r := domain.FusedRecord{
			Date:   d,
			Fills:  make(map[domain.Variable]domain.Fill, len(domain.Variables)),
			Origin: domain.OriginObserved,
		}
		for _, v := range domain.Variables {
			r.SetValue(v, t.Columns[v][i])
			r.Fills[v] = t.Fills[v][i]
		}
		out[i] = r
	}
	return out
}

// Coverage counts the cells of v that were observed rather than filled.
func (t *Table) Coverage(v domain.Variable) int {
	n := 0
	for _, f := range t.Fills[v] {
		if f == domain.FillObserved {
			n++
		}
	}
	return n
}

func unionDates(series []domain.Series) []time.Time {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, s := range series {
		for _, p := range s.Points {
			if !seen[p.Time] {
				seen[p.Time] = true
				dates = append(dates, p.Time)
			}
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// fillSeasonal substitutes the mean of observed values sharing the calendar
// month for every missing cell. Months never observed stay missing.
func fillSeasonal(dates []time.Time, col []float64, fills []domain.Fill) {
	var byMonth [13][]float64
	for i, f := range fills {
		if f == domain.FillObserved {
			m := dates[i].Month()
			byMonth[m] = append(byMonth[m], col[i])
		}
	}
	var climatology [13]float64
	for m := range byMonth {
		climatology[m] = math.NaN()
		if len(byMonth[m]) > 0 {
			climatology[m] = stat.Mean(byMonth[m], nil)
		}
	}
	for i, f := range fills {
		if f != domain.FillMissing {
			continue
		}
		if c := climatology[dates[i].Month()]; !math.IsNaN(c) {
			col[i] = c
			fills[i] = domain.FillSeasonal
		}
	}
}

// interpolate fills at most limit cells of each missing run, counting from
// the run's start. Interior runs are interpolated linearly by row position;
// trailing runs repeat the last value; leading runs are left untouched.
func interpolate(col []float64, fills []domain.Fill, limit int) {
	if limit <= 0 {
		return
	}
	last := -1
	for i := 0; i < len(col); i++ {
		if fills[i] != domain.FillMissing {
			last = i
			continue
		}
		if last < 0 {
			continue
		}
		end := i
		for end < len(col) && fills[end] == domain.FillMissing {
			end++
		}
		for j := i; j < end && j-i < limit; j++ {
			if end == len(col) {
				col[j] = col[last]
			} else {
				frac := float64(j-last) / float64(end-last)
				col[j] = col[last] + frac*(col[end]-col[last])
			}
			fills[j] = domain.FillInterpolated
		}
		i = end - 1
	}
}

func zeroFill(col []float64, fills []domain.Fill) {
	for i, f := range fills {
		if f == domain.FillMissing {
			col[i] = 0
			fills[i] = domain.FillZero
		}
	}
}
