// Command validate inspects a data directory and an estimator artifact
// before a reload: per-variable daily and monthly coverage, files the reader
// would skip and why, and whether the artifact's feature schema matches the
// site profile.
//
// Usage:
//
//	go run ./cmd/validate -data-dir ./dados -model ml_models/coral_rf.json -profile site.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/coral-risk-etl/internal/config"
	"github.com/couchcryptid/coral-risk-etl/internal/domain"
	"github.com/couchcryptid/coral-risk-etl/internal/model"
	"github.com/couchcryptid/coral-risk-etl/internal/observability"
	"github.com/couchcryptid/coral-risk-etl/internal/source"
	"github.com/couchcryptid/coral-risk-etl/internal/timeseries"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "./dados", "directory containing source CSV files")
	modelPath := flag.String("model", "", "estimator artifact path (local only; empty skips the check)")
	profilePath := flag.String("profile", "", "site profile file (empty uses defaults)")
	flag.Parse()

	os.Exit(run(context.Background(), os.Stdout, *dataDir, *modelPath, *profilePath))
}

func run(ctx context.Context, w io.Writer, dataDir, modelPath, profilePath string) int {
	profile, err := config.LoadProfile(profilePath)
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reader := source.NewReader(dataDir, profile, logger, observability.NewMetricsForTesting())
	res, err := reader.Read(ctx)
	if err != nil {
		fmt.Fprintf(w, "FATAL: read %s: %v\n", dataDir, err)
		return 1
	}

	fmt.Fprintf(w, "=== Coral Risk Data Validation (%s) ===\n\n", profile.Site)

	phases := []*phase{
		validateCoverage(res, profile),
		validateSkipped(res),
		validateSchema(ctx, modelPath, profile),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-36s %s\n", p.name, status)
	}

	for _, p := range phases {
		if len(p.notes) == 0 && p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for _, n := range p.notes {
			fmt.Fprintf(w, "  %s\n", n)
		}
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if res.Empty() {
		fmt.Fprintln(w, "\nNo data found in any source.")
		return 1
	}
	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// validateCoverage reports day and month coverage per configured variable.
// SST is the only variable whose absence is an error; everything else is
// filled downstream.
func validateCoverage(res source.Result, p domain.Profile) *phase {
	ph := &phase{name: "Variable coverage"}
	ph.notef("%-12s %6s %7s  %-10s  %-10s", "variable", "days", "months", "first", "last")
	for _, v := range domain.Variables {
		if _, ok := p.Source(v); !ok {
			continue
		}
		obs := res.Observations(v)
		days := timeseries.Align(v, obs, timeseries.Day)
		months := timeseries.Align(v, obs, timeseries.Month)
		if len(days.Points) == 0 {
			ph.notef("%-12s %6d %7d  %-10s  %-10s", v, 0, 0, "-", "-")
			if v == domain.SST {
				ph.errorf("no usable %s observations", v)
			}
			continue
		}
		ph.notef("%-12s %6d %7d  %-10s  %-10s", v, len(days.Points), len(months.Points),
			days.Points[0].Time.Format("2006-01-02"), days.Points[len(days.Points)-1].Time.Format("2006-01-02"))
	}
	return ph
}

// validateSkipped lists files the reader could not use. Skips are warnings.
func validateSkipped(res source.Result) *phase {
	ph := &phase{name: "Source files"}
	for _, ds := range res.Datasets {
		ph.notef("read    %-12s %s (%d rows, column %s)", ds.Variable, ds.Path, len(ds.Observations), ds.Column)
	}
	for _, fe := range res.Skipped {
		ph.notef("skipped %-12s %s: %v", fe.Variable, fe.Path, fe.Err)
	}
	return ph
}

func validateSchema(ctx context.Context, path string, p domain.Profile) *phase {
	ph := &phase{name: "Estimator schema"}
	if path == "" {
		ph.notef("no artifact given; the formula will be used")
		return ph
	}
	if strings.HasPrefix(path, "s3://") {
		ph.notef("s3 artifacts are checked at load time by etl reload")
		return ph
	}
	a, err := model.NewLoader(nil).Load(ctx, path)
	if errors.Is(err, model.ErrArtifactMissing) {
		ph.notef("%v; the formula will be used", err)
		return ph
	}
	if err != nil {
		ph.errorf("%v", err)
		return ph
	}
	ph.notef("artifact %q: %d trees, features %s", a.Name, len(a.Trees), strings.Join(a.Features, ","))
	if err := a.CheckSchema(p.Features); err != nil {
		ph.errorf("%v (profile expects %s)", err, strings.Join(p.Features, ","))
	}
	return ph
}
