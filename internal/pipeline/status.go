package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
	"github.com/couchcryptid/coral-risk-etl/internal/observability"
)

// SnapshotSource fetches the remote heat-stress snapshot for one day.
type SnapshotSource interface {
	Snapshot(ctx context.Context, day time.Time) (domain.Snapshot, error)
}

// CovariateSource supplies wind speed and turbidity for one day.
type CovariateSource interface {
	Covariates(ctx context.Context, day time.Time) (domain.Covariates, error)
}

// StatusStore upserts one day.
type StatusStore interface {
	Upsert(ctx context.Context, status domain.Status) error
}

// defaultCovariates stand in when the covariate source fails.
var defaultCovariates = domain.Covariates{WindSpeed: 6.5, Turbidity: 0.05, Origin: domain.OriginSimulated}

// StatusJob refreshes the most recent day from the remote provider. It tries
// yesterday, then earlier days up to Lookback, and substitutes a simulated
// snapshot tagged as such when every attempt fails.
type StatusJob struct {
	snapshots  SnapshotSource
	covariates CovariateSource
	store      StatusStore
	profile    domain.Profile
	opts       Options
	logger     *slog.Logger
	metrics    *observability.Metrics

	// Lookback is how many days back the job searches, starting at yesterday.
	Lookback int
}

// NewStatusJob creates a StatusJob. covariates may be nil.
func NewStatusJob(snapshots SnapshotSource, covariates CovariateSource, store StatusStore, profile domain.Profile, opts Options, logger *slog.Logger, metrics *observability.Metrics) *StatusJob {
	if opts.AlertMin == "" {
		opts.AlertMin = domain.Alert1
	}
	return &StatusJob{
		snapshots:  snapshots,
		covariates: covariates,
		store:      store,
		profile:    profile,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
		Lookback:   2,
	}
}

// Run fetches, classifies by DHW, and upserts the latest day. It only fails
// when the store write fails or ctx is cancelled.
func (j *StatusJob) Run(ctx context.Context) (domain.Status, error) {
	start := time.Now()
	log := j.logger.With("job", "status", "run_id", uuid.NewString())
	j.metrics.PipelineRunning.Set(1)
	defer j.metrics.PipelineRunning.Set(0)
	defer func() { j.metrics.RunDuration.WithLabelValues("status").Observe(time.Since(start).Seconds()) }()

	snap, err := j.latestSnapshot(ctx, log)
	if err != nil {
		j.metrics.Runs.WithLabelValues("status", "error").Inc()
		return domain.Status{}, err
	}
	cov := j.fetchCovariates(ctx, log, snap.Date)

	r := domain.FusedRecord{
		Date:             snap.Date,
		SST:              snap.SST,
		DHW:              snap.DHW,
		ThermalThreshold: snap.MMM,
		HeatExcess:       domain.HeatExcess(snap.SST, snap.MMM),
		Anomaly:          snap.SST - snap.MMM,
		DHWFinal:         snap.DHW,
		WindSpeed:        cov.WindSpeed,
		Turbidity:        cov.Turbidity,
		Origin:           snap.Origin,
	}
	a := AssessDHW(snap.DHW)
	j.metrics.ScorerStrategy.WithLabelValues(string(a.Strategy)).Inc()
	st := domain.NewStatus(r, a)

	if err := j.store.Upsert(ctx, st); err != nil {
		j.metrics.Runs.WithLabelValues("status", "error").Inc()
		return st, err
	}
	j.metrics.RecordsPersisted.Inc()

	if j.opts.Publisher != nil {
		if err := j.opts.Publisher.Publish(ctx, []domain.Status{st}); err != nil {
			log.Error("publish failed", "error", err)
		}
	}
	if j.opts.Notifier != nil && st.AlertLevel.Rank() >= j.opts.AlertMin.Rank() {
		if err := j.opts.Notifier.Notify(ctx, st); err != nil {
			log.Error("alert failed", "error", err, "alert_level", st.AlertLevel)
		}
	}

	outcome := "success"
	if st.Origin == domain.OriginSimulated {
		outcome = "degraded"
	}
	j.metrics.Runs.WithLabelValues("status", outcome).Inc()
	log.Info("run complete",
		"date", st.Date.Format(dateLayout),
		"sst", st.SST,
		"dhw", st.DHW,
		"alert_level", st.AlertLevel,
		"origin", st.Origin,
		"covariates_origin", cov.Origin,
	)
	return st, nil
}

func (j *StatusJob) latestSnapshot(ctx context.Context, log *slog.Logger) (domain.Snapshot, error) {
	lookback := max(j.Lookback, 1)
	for n := 1; n <= lookback; n++ {
		day := domain.DaysAgo(n)
		snap, err := j.snapshots.Snapshot(ctx, day)
		if err == nil {
			if snap.Origin == "" {
				snap.Origin = domain.OriginObserved
			}
			return snap, nil
		}
		// per-request timeouts also wrap DeadlineExceeded; only the job's own ctx aborts
		if ctx.Err() != nil {
			return domain.Snapshot{}, ctx.Err()
		}
		log.Warn("snapshot unavailable", "date", day.Format(dateLayout), "error", err)
	}
	log.Warn("remote provider exhausted, substituting simulated snapshot", "days_tried", lookback)
	return domain.SimulatedSnapshot(domain.DaysAgo(1), j.profile.ThermalThreshold), nil
}

func (j *StatusJob) fetchCovariates(ctx context.Context, log *slog.Logger, day time.Time) domain.Covariates {
	if j.covariates == nil {
		return defaultCovariates
	}
	cov, err := j.covariates.Covariates(ctx, day)
	if err != nil {
		log.Warn("covariates unavailable, using defaults", "error", err)
		return defaultCovariates
	}
	return cov
}
