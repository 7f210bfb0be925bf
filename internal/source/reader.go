// Package source locates and parses the per-variable CSV exports (NOAA ERDDAP
// griddap downloads, Copernicus Marine subsets) that feed the reload pipeline.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
	"github.com/couchcryptid/coral-risk-etl/internal/observability"
)

var (
	// ErrNoTimeColumn means the header carries no column named "time".
	ErrNoTimeColumn = errors.New("no time column")
	// ErrNoValueColumn means none of the accepted aliases for the variable is present.
	ErrNoValueColumn = errors.New("no value column")
	// ErrNoRows means the file parsed but held no row with a usable timestamp.
	ErrNoRows = errors.New("no timestamped rows")
)

// FileError records one source file that could not be used. The reader keeps
// going after a FileError; the variable is treated as missing for that file.
type FileError struct {
	Path     string
	Variable domain.Variable
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Path, e.Variable, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Dataset is the parsed content of one source file for one variable.
type Dataset struct {
	Variable     domain.Variable
	Path         string
	Column       string
	Observations []domain.RawObservation
}

// Result is everything one scan of the data directory produced.
type Result struct {
	Datasets []Dataset
	Skipped  []*FileError
}

// Observations concatenates the observations of every dataset for v, in the
// order the files were read.
func (r Result) Observations(v domain.Variable) []domain.RawObservation {
	var out []domain.RawObservation
	for _, d := range r.Datasets {
		if d.Variable == v {
			out = append(out, d.Observations...)
		}
	}
	return out
}

// Variables returns the variables with at least one non-missing observation.
func (r Result) Variables() []domain.Variable {
	seen := make(map[domain.Variable]bool)
	for _, d := range r.Datasets {
		for _, o := range d.Observations {
			if !o.Missing() {
				seen[d.Variable] = true
				break
			}
		}
	}
	out := make([]domain.Variable, 0, len(seen))
	for _, v := range domain.Variables {
		if seen[v] {
			out = append(out, v)
		}
	}
	return out
}

// Empty reports whether no file yielded a single usable value.
func (r Result) Empty() bool {
	return len(r.Variables()) == 0
}

// Reader scans a data directory for the files described by a site profile.
type Reader struct {
	dir     string
	sources []domain.SourceSpec
	proxy   bool
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewReader creates a Reader over dir using the profile's source specs.
func NewReader(dir string, p domain.Profile, logger *slog.Logger, metrics *observability.Metrics) *Reader {
	return &Reader{
		dir:     dir,
		sources: p.Sources,
		proxy:   p.TurbidityProxy,
		logger:  logger,
		metrics: metrics,
	}
}

// Read parses every file matching the configured patterns. Unreadable files
// are reported in Result.Skipped and never abort the scan. The only error
// returned is context cancellation or a malformed glob pattern.
func (r *Reader) Read(ctx context.Context) (Result, error) {
	var res Result
	for _, spec := range r.sources {
		paths, err := r.match(spec.Patterns)
		if err != nil {
			return Result{}, fmt.Errorf("glob %s: %w", spec.Variable, err)
		}
		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			ds, err := ParseFile(path, spec.Variable, spec.Columns)
			if err != nil {
				fe := &FileError{Path: path, Variable: spec.Variable, Err: err}
				res.Skipped = append(res.Skipped, fe)
				r.logger.Warn("source file skipped", "path", path, "variable", spec.Variable, "error", err)
				r.metrics.SourceFiles.WithLabelValues(string(spec.Variable), "skipped").Inc()
				continue
			}
			r.logger.Debug("source file read", "path", path, "variable", spec.Variable,
				"column", ds.Column, "rows", len(ds.Observations))
			r.metrics.SourceFiles.WithLabelValues(string(spec.Variable), "read").Inc()
			res.Datasets = append(res.Datasets, ds)
		}
	}

	if r.proxy {
		if ds, ok := TurbidityProxy(res); ok {
			r.logger.Info("turbidity synthesized from chlorophyll", "rows", len(ds.Observations))
			res.Datasets = append(res.Datasets, ds)
		}
	}
	return res, nil
}

// match expands patterns relative to the data directory. Each file appears
// once, in pattern order and then lexical order within a pattern.
func (r *Reader) match(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(r.dir, p))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// ProxyPath labels datasets synthesized by TurbidityProxy.
const ProxyPath = "proxy:chlorophyll"

// TurbidityProxy derives turbidity = 0.05 + 0.3 * chlorophyll when res holds
// chlorophyll observations but no usable turbidity observation. It reports
// false when a proxy is not needed or not possible.
func TurbidityProxy(res Result) (Dataset, bool) {
	for _, d := range res.Datasets {
		if d.Variable != domain.Turbidity {
			continue
		}
		for _, o := range d.Observations {
			if !o.Missing() {
				return Dataset{}, false
			}
		}
	}

	chl := res.Observations(domain.Chlorophyll)
	if len(chl) == 0 {
		return Dataset{}, false
	}
	obs := make([]domain.RawObservation, len(chl))
	for i, o := range chl {
		v := math.NaN()
		if !o.Missing() {
			v = 0.05 + 0.3*o.Value
		}
		obs[i] = domain.RawObservation{Time: o.Time, Variable: domain.Turbidity, Value: v}
	}
	return Dataset{Variable: domain.Turbidity, Path: ProxyPath, Column: "chl", Observations: obs}, true
}
