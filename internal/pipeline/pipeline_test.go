package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
	"github.com/couchcryptid/coral-risk-etl/internal/model"
	"github.com/couchcryptid/coral-risk-etl/internal/observability"
	"github.com/couchcryptid/coral-risk-etl/internal/pipeline"
	"github.com/couchcryptid/coral-risk-etl/internal/source"
)

// --- mocks ---

type mockExtractor struct {
	result source.Result
	err    error
}

func (m *mockExtractor) Read(_ context.Context) (source.Result, error) {
	return m.result, m.err
}

type mockLoader struct {
	calls    int
	statuses []domain.Status
	err      error
}

func (m *mockLoader) ReplaceAll(_ context.Context, statuses []domain.Status) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.statuses = statuses
	return nil
}

type mockPublisher struct {
	published []domain.Status
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, statuses []domain.Status) error {
	m.published = append(m.published, statuses...)
	return m.err
}

type mockNotifier struct {
	notified []domain.Status
}

func (m *mockNotifier) Notify(_ context.Context, st domain.Status) error {
	m.notified = append(m.notified, st)
	return nil
}

type mockEstimator struct {
	score     float64
	err       error
	schemaErr error
	got       [][]float64
}

func (m *mockEstimator) Predict(x []float64) (float64, error) {
	m.got = append(m.got, x)
	return m.score, m.err
}

func (m *mockEstimator) CheckSchema(_ []string) error { return m.schemaErr }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func formulaScorer() *pipeline.Scorer {
	return pipeline.NewScorer(nil, domain.DefaultFeatures, discardLogger(), newTestMetrics())
}

// --- fixtures ---

var refDay = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func dataset(v domain.Variable, values ...float64) source.Dataset {
	ds := source.Dataset{Variable: v, Path: string(v) + ".csv"}
	for i, x := range values {
		ds.Observations = append(ds.Observations, domain.RawObservation{
			Time:     refDay.AddDate(0, 0, i).Add(12 * time.Hour),
			Variable: v,
			Value:    x,
		})
	}
	return ds
}

// referenceResult is one day with sst 29, irradiance 50, chlorophyll 0.5 and
// pH 8.1, and no oxygen data.
func referenceResult() source.Result {
	return source.Result{Datasets: []source.Dataset{
		dataset(domain.SST, 29.0),
		dataset(domain.Irradiance, 50),
		dataset(domain.Chlorophyll, 0.5),
		dataset(domain.PH, 8.1),
	}}
}

// --- tests ---

func TestPipeline_Reload_ReferenceScenario(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{result: referenceResult()}, formulaScorer(), ldr,
		domain.DefaultProfile(), pipeline.Options{}, discardLogger(), newTestMetrics())

	sum, err := p.Reload(context.Background())
	require.NoError(t, err)

	require.Len(t, ldr.statuses, 1)
	st := ldr.statuses[0]
	assert.Equal(t, refDay, st.Date)
	assert.InDelta(t, 52.5, st.RiskScore, 1e-9)
	assert.Equal(t, domain.Watch, st.AlertLevel)
	assert.Equal(t, domain.StrategyFormula, st.Strategy)
	assert.InDelta(t, 27.0, st.ThermalThreshold, 1e-12)
	assert.InDelta(t, 2.0/7, st.DHW, 1e-12)
	assert.InDelta(t, 50.0, st.Irradiance, 1e-12, "no turbidity means no attenuation")
	assert.Equal(t, domain.OriginObserved, st.Origin)

	assert.True(t, sum.Fallback)
	assert.Equal(t, 1, sum.Days)
	assert.NotEmpty(t, sum.RunID)
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.Contains(t, sum.StatusLine(), "score 52.5")
	assert.Contains(t, sum.StatusLine(), "level watch")
	assert.Contains(t, sum.StatusLine(), "origin observed")
}

func TestPipeline_Reload_NoData(t *testing.T) {
	ldr := &mockLoader{}
	empty := source.Result{
		Datasets: []source.Dataset{dataset(domain.Salinity, math.NaN())},
		Skipped:  []*source.FileError{{Path: "sst.csv", Variable: domain.SST, Err: source.ErrNoTimeColumn}},
	}
	p := pipeline.New(&mockExtractor{result: empty}, formulaScorer(), ldr,
		domain.DefaultProfile(), pipeline.Options{}, discardLogger(), newTestMetrics())

	sum, err := p.Reload(context.Background())

	require.ErrorIs(t, err, pipeline.ErrNoData)
	assert.Zero(t, ldr.calls)
	assert.Len(t, sum.Skipped, 1)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Reload_MalformedSalinityDefaultsToZero(t *testing.T) {
	res := referenceResult()
	res.Datasets = append(res.Datasets, dataset(domain.Salinity, math.NaN()))
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{result: res}, formulaScorer(), ldr,
		domain.DefaultProfile(), pipeline.Options{}, discardLogger(), newTestMetrics())

	_, err := p.Reload(context.Background())
	require.NoError(t, err)

	require.Len(t, ldr.statuses, 1)
	assert.Equal(t, 0.0, ldr.statuses[0].Salinity)
	assert.InDelta(t, 52.5, ldr.statuses[0].RiskScore, 1e-9)
}

func TestPipeline_Reload_HypoxiaLowersThreshold(t *testing.T) {
	res := referenceResult()
	res.Datasets = append(res.Datasets, dataset(domain.Oxygen, 50))
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{result: res}, formulaScorer(), ldr,
		domain.DefaultProfile(), pipeline.Options{}, discardLogger(), newTestMetrics())

	_, err := p.Reload(context.Background())
	require.NoError(t, err)

	st := ldr.statuses[0]
	assert.InDelta(t, 26.0, st.ThermalThreshold, 1e-12)
	assert.InDelta(t, 3.0, st.Anomaly, 1e-12)
	assert.Equal(t, 100.0, st.RiskScore)
	assert.Equal(t, domain.Alert2, st.AlertLevel)
}

func TestPipeline_Reload_ModelStrategy(t *testing.T) {
	est := &mockEstimator{score: 90}
	scorer := pipeline.NewScorer(est, domain.DefaultFeatures, discardLogger(), newTestMetrics())
	ldr := &mockLoader{}
	notifier := &mockNotifier{}
	publisher := &mockPublisher{}
	p := pipeline.New(&mockExtractor{result: referenceResult()}, scorer, ldr, domain.DefaultProfile(),
		pipeline.Options{Publisher: publisher, Notifier: notifier, AlertMin: domain.Alert1},
		discardLogger(), newTestMetrics())

	sum, err := p.Reload(context.Background())
	require.NoError(t, err)

	assert.False(t, sum.Fallback)
	assert.Equal(t, domain.StrategyModel, ldr.statuses[0].Strategy)
	assert.Equal(t, domain.Alert2, ldr.statuses[0].AlertLevel)

	// sst, irradiance, salinity, chlorophyll, ph, nitrate, interaction, pollution, oxygen
	want := []float64{29, 50, 0, 0.5, 8.1, 0, 29 * 50, 0, 0}
	require.Len(t, est.got, 1)
	if diff := cmp.Diff(want, est.got[0]); diff != "" {
		t.Errorf("feature vector mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, publisher.published, 1)
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, refDay, notifier.notified[0].Date)
}

func TestPipeline_Reload_NoAlertBelowMinimum(t *testing.T) {
	notifier := &mockNotifier{}
	p := pipeline.New(&mockExtractor{result: referenceResult()}, formulaScorer(), &mockLoader{},
		domain.DefaultProfile(), pipeline.Options{Notifier: notifier, AlertMin: domain.Alert1},
		discardLogger(), newTestMetrics())

	_, err := p.Reload(context.Background())
	require.NoError(t, err)
	assert.Empty(t, notifier.notified)
}

func TestPipeline_Reload_PublishErrorIsNotFatal(t *testing.T) {
	publisher := &mockPublisher{err: errors.New("broker down")}
	p := pipeline.New(&mockExtractor{result: referenceResult()}, formulaScorer(), &mockLoader{},
		domain.DefaultProfile(), pipeline.Options{Publisher: publisher}, discardLogger(), newTestMetrics())

	_, err := p.Reload(context.Background())
	assert.NoError(t, err)
}

func TestPipeline_Reload_LoaderError(t *testing.T) {
	ldr := &mockLoader{err: errors.New("disk full")}
	p := pipeline.New(&mockExtractor{result: referenceResult()}, formulaScorer(), ldr,
		domain.DefaultProfile(), pipeline.Options{}, discardLogger(), newTestMetrics())

	_, err := p.Reload(context.Background())
	require.ErrorContains(t, err, "disk full")
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Reload_ExtractorError(t *testing.T) {
	p := pipeline.New(&mockExtractor{err: context.Canceled}, formulaScorer(), &mockLoader{},
		domain.DefaultProfile(), pipeline.Options{}, discardLogger(), newTestMetrics())

	_, err := p.Reload(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Reload_Idempotent(t *testing.T) {
	res := referenceResult()
	res.Datasets = append(res.Datasets, dataset(domain.SST, 29.0, 28.5, math.NaN(), 30.1))
	first, second := &mockLoader{}, &mockLoader{}

	for _, ldr := range []*mockLoader{first, second} {
		p := pipeline.New(&mockExtractor{result: res}, formulaScorer(), ldr,
			domain.DefaultProfile(), pipeline.Options{}, discardLogger(), newTestMetrics())
		_, err := p.Reload(context.Background())
		require.NoError(t, err)
	}

	if diff := cmp.Diff(first.statuses, second.statuses); diff != "" {
		t.Errorf("reload not idempotent (-first +second):\n%s", diff)
	}
}

func TestScorer_FallbackOnMissingArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coral_rf.json")
	scorer := pipeline.LoadScorer(context.Background(), model.NewLoader(nil), path,
		domain.DefaultFeatures, discardLogger(), newTestMetrics())

	assert.Equal(t, domain.StrategyFormula, scorer.Strategy())

	r := domain.FusedRecord{SST: 29, ThermalThreshold: 27, Irradiance: 50, Chlorophyll: 0.5}
	a := scorer.Score(&r)
	assert.True(t, a.Fallback)
	assert.Contains(t, a.FallbackReason, "artifact missing")
	assert.GreaterOrEqual(t, a.Score, 0.0)
	assert.LessOrEqual(t, a.Score, 100.0)
}

func TestScorer_SchemaMismatchFallsBack(t *testing.T) {
	est := &mockEstimator{score: 90, schemaErr: model.ErrSchemaMismatch}
	scorer := pipeline.NewScorer(est, domain.DefaultFeatures, discardLogger(), newTestMetrics())

	a := scorer.Score(&domain.FusedRecord{SST: 26, ThermalThreshold: 27})

	assert.Equal(t, domain.StrategyFormula, a.Strategy)
	assert.True(t, a.Fallback)
	assert.Empty(t, est.got)
}

func TestScorer_PredictErrorFallsBack(t *testing.T) {
	est := &mockEstimator{err: model.ErrSchemaMismatch}
	scorer := pipeline.NewScorer(est, domain.DefaultFeatures, discardLogger(), newTestMetrics())

	a := scorer.Score(&domain.FusedRecord{SST: 29, ThermalThreshold: 27})

	assert.Equal(t, domain.StrategyFormula, a.Strategy)
	assert.InDelta(t, 60.0, a.Score, 1e-9)
	assert.Equal(t, domain.Alert1, a.Level)
}

func TestScorer_UnknownFeatureFallsBack(t *testing.T) {
	est := &mockEstimator{score: 10}
	scorer := pipeline.NewScorer(est, []string{"sst", "moon_phase"}, discardLogger(), newTestMetrics())

	a := scorer.Score(&domain.FusedRecord{SST: 26, ThermalThreshold: 27})

	assert.True(t, a.Fallback)
	assert.Empty(t, est.got)
}

func TestAssessDHW(t *testing.T) {
	a := pipeline.AssessDHW(4.2)
	assert.Equal(t, domain.Alert1, a.Level)
	assert.Equal(t, domain.BasisDHW, a.Basis)
	assert.Equal(t, domain.StrategyDHW, a.Strategy)
	assert.Zero(t, a.Score)
}
