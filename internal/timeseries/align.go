// Package timeseries turns raw per-variable observations into bucketed series
// and fuses them into the wide daily table the feature engine works on.
package timeseries

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
)

// Granularity is a time bucket size.
type Granularity int

const (
	// Day buckets by calendar day with the zone stripped.
	Day Granularity = iota
	// Month buckets by calendar month, labeled with the month's last day.
	Month
)

func (g Granularity) String() string {
	if g == Month {
		return "month"
	}
	return "day"
}

// Truncate maps t to its bucket label.
func (g Granularity) Truncate(t time.Time) time.Time {
	if g == Month {
		return domain.TruncateMonth(t)
	}
	return domain.TruncateDay(t)
}

// Align normalizes the observations of one variable into a Series. Input may
// be the concatenation of several files: duplicates of the same timestamp keep
// the last occurrence, then timestamps are sorted and averaged per bucket.
// Missing values do not contribute to a bucket mean; a bucket with no value
// at all is omitted.
func Align(v domain.Variable, obs []domain.RawObservation, g Granularity) domain.Series {
	latest := make(map[int64]int, len(obs))
	for i, o := range obs {
		latest[o.Time.UnixNano()] = i
	}
	deduped := make([]domain.RawObservation, 0, len(latest))
	for i, o := range obs {
		if latest[o.Time.UnixNano()] == i {
			deduped = append(deduped, o)
		}
	}
	sort.SliceStable(deduped, func(i, j int) bool { return deduped[i].Time.Before(deduped[j].Time) })

	// Zoned inputs can reorder wall-clock buckets relative to instants, so
	// group first and order the bucket labels afterwards.
	buckets := make(map[time.Time][]float64)
	var labels []time.Time
	for _, o := range deduped {
		b := g.Truncate(o.Time)
		vals, ok := buckets[b]
		if !ok {
			labels = append(labels, b)
		}
		if !o.Missing() {
			vals = append(vals, o.Value)
		}
		buckets[b] = vals
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Before(labels[j]) })

	series := domain.Series{Variable: v}
	for _, b := range labels {
		if vals := buckets[b]; len(vals) > 0 {
			series.Points = append(series.Points, domain.Point{Time: b, Value: stat.Mean(vals, nil)})
		}
	}
	return series
}
