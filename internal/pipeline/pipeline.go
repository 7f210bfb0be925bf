package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
	"github.com/couchcryptid/coral-risk-etl/internal/observability"
	"github.com/couchcryptid/coral-risk-etl/internal/source"
	"github.com/couchcryptid/coral-risk-etl/internal/timeseries"
)

const dateLayout = "2006-01-02"

// ErrNoData means no source produced a single usable value. Nothing is
// persisted for such a run.
var ErrNoData = errors.New("no data found in any source")

// Extractor reads the raw source datasets for a run.
type Extractor interface {
	Read(ctx context.Context) (source.Result, error)
}

// Loader replaces the persisted history with a freshly computed one.
type Loader interface {
	ReplaceAll(ctx context.Context, statuses []domain.Status) error
}

// Publisher forwards persisted days downstream.
type Publisher interface {
	Publish(ctx context.Context, statuses []domain.Status) error
}

// Notifier raises an alert for a single day.
type Notifier interface {
	Notify(ctx context.Context, status domain.Status) error
}

// Summary describes the outcome of a reload.
type Summary struct {
	RunID     string
	Days      int
	Variables []domain.Variable
	Skipped   []*source.FileError
	Latest    domain.Status
	Fallback  bool
	Reason    string
}

// StatusLine is the one-line human-readable outcome of a run.
func (s Summary) StatusLine() string {
	line := FormatStatus(s.Latest)
	if s.Fallback {
		line += " | fallback: " + s.Reason
	}
	return fmt.Sprintf("%s | %d days | %d files skipped", line, s.Days, len(s.Skipped))
}

// FormatStatus renders one persisted day for humans.
func FormatStatus(st domain.Status) string {
	return fmt.Sprintf("%s | SST %.2f | DHW %.2f | score %.1f | level %s (%s) | strategy %s | origin %s",
		st.Date.Format(dateLayout), st.SST, st.DHW, st.RiskScore, st.AlertLevel, st.AlertBasis, st.Strategy, st.Origin)
}

// Options holds the optional collaborators of a Pipeline.
type Options struct {
	Publisher Publisher         // nil disables publishing
	Notifier  Notifier          // nil disables alerts
	AlertMin  domain.AlertLevel // lowest level that triggers the notifier
}

// Pipeline runs the full-history reload: read, align, fuse, derive, score,
// replace the store, then publish and alert.
type Pipeline struct {
	extractor Extractor
	scorer    *Scorer
	loader    Loader
	profile   domain.Profile
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, s *Scorer, l Loader, profile domain.Profile, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.AlertMin == "" {
		opts.AlertMin = domain.Alert1
	}
	return &Pipeline{
		extractor: e,
		scorer:    s,
		loader:    l,
		profile:   profile,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a reload has persisted data, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no reload has completed yet")
	}
	return nil
}

// Reload runs the pipeline once. Missing or malformed sources degrade the
// run; only a run with no data at all fails with ErrNoData.
func (p *Pipeline) Reload(ctx context.Context) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString()}
	log := p.logger.With("job", "reload", "run_id", sum.RunID)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	defer func() { p.metrics.RunDuration.WithLabelValues("reload").Observe(time.Since(start).Seconds()) }()

	res, err := p.extractor.Read(ctx)
	if err != nil {
		p.metrics.Runs.WithLabelValues("reload", "error").Inc()
		return sum, fmt.Errorf("read sources: %w", err)
	}
	sum.Skipped = res.Skipped
	sum.Variables = res.Variables()
	if res.Empty() {
		p.metrics.Runs.WithLabelValues("reload", "no_data").Inc()
		return sum, ErrNoData
	}
	log.Info("sources read", "variables", sum.Variables, "skipped", len(res.Skipped))

	records := p.Fuse(res)
	statuses := make([]domain.Status, len(records))
	for i := range records {
		a := p.scorer.Score(&records[i])
		if a.Fallback {
			sum.Fallback, sum.Reason = true, a.FallbackReason
		}
		statuses[i] = domain.NewStatus(records[i], a)
	}
	sum.Days = len(statuses)
	sum.Latest = statuses[len(statuses)-1]

	if err := p.loader.ReplaceAll(ctx, statuses); err != nil {
		p.metrics.Runs.WithLabelValues("reload", "error").Inc()
		return sum, fmt.Errorf("replace history: %w", err)
	}
	p.metrics.RecordsPersisted.Add(float64(len(statuses)))
	p.metrics.LatestRiskScore.Set(sum.Latest.RiskScore)
	p.ready.Store(true)

	p.publish(ctx, log, statuses)
	p.alert(ctx, log, sum.Latest)

	outcome := "success"
	if sum.Fallback || len(sum.Skipped) > 0 {
		outcome = "degraded"
	}
	p.metrics.Runs.WithLabelValues("reload", outcome).Inc()
	log.Info("run complete",
		"date", sum.Latest.Date.Format(dateLayout),
		"days", sum.Days,
		"risk_score", sum.Latest.RiskScore,
		"alert_level", sum.Latest.AlertLevel,
		"strategy", sum.Latest.Strategy,
		"origin", sum.Latest.Origin,
		"duration", time.Since(start),
	)
	return sum, nil
}

// Fuse aligns every variable to days, fuses them into one table, and fills
// the derived features.
func (p *Pipeline) Fuse(res source.Result) []domain.FusedRecord {
	var series []domain.Series
	for _, v := range domain.Variables {
		s := timeseries.Align(v, res.Observations(v), timeseries.Day)
		if len(s.Points) > 0 {
			series = append(series, s)
		}
	}
	table := timeseries.Fuse(series, timeseries.FuseOptions{
		InterpolationLimit: p.profile.InterpolationLimit,
		Seasonal:           p.profile.SeasonalVariables,
	})
	records := table.Records()
	domain.Derive(records, p.profile)
	return records
}

func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, statuses []domain.Status) {
	if p.opts.Publisher == nil {
		return
	}
	if err := p.opts.Publisher.Publish(ctx, statuses); err != nil {
		log.Error("publish failed", "error", err, "days", len(statuses))
	}
}

func (p *Pipeline) alert(ctx context.Context, log *slog.Logger, st domain.Status) {
	if p.opts.Notifier == nil || st.AlertLevel.Rank() < p.opts.AlertMin.Rank() {
		return
	}
	if err := p.opts.Notifier.Notify(ctx, st); err != nil {
		log.Error("alert failed", "error", err, "alert_level", st.AlertLevel)
	}
}
