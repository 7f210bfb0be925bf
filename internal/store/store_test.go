package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
	"github.com/couchcryptid/coral-risk-etl/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.SQLite, filepath.Join(t.TempDir(), "data", "coral.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func day(d int) time.Time {
	return time.Date(2024, time.February, d, 0, 0, 0, 0, time.UTC)
}

func testStatus(d int, score float64) domain.Status {
	return domain.Status{
		Date:             day(d),
		SST:              29.4,
		ThermalThreshold: 27.0,
		Anomaly:          2.4,
		DHW:              4.4,
		WindSpeed:        5,
		Irradiance:       37.04,
		Turbidity:        0.2,
		Salinity:         35.1,
		PH:               8.05,
		Oxygen:           6.4,
		Nitrate:          0.01,
		Chlorophyll:      0.5,
		RiskScore:        score,
		AlertLevel:       domain.ClassifyScore(score),
		AlertBasis:       domain.BasisScore,
		Strategy:         domain.StrategyFormula,
		Origin:           domain.OriginObserved,
	}
}

func TestUpsert_InsertThenOverwrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testStatus(1, 10)))
	updated := testStatus(1, 52.5)
	require.NoError(t, s.Upsert(ctx, updated))

	all, err := s.List(ctx, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	if diff := cmp.Diff(updated, all[0]); diff != "" {
		t.Errorf("stored row mismatch (-want +got):\n%s", diff)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	st := testStatus(3, 52.5)

	require.NoError(t, s.Upsert(ctx, st))
	first, err := s.Get(ctx, day(3))
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, st))
	second, err := s.Get(ctx, day(3))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	all, err := s.List(ctx, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsert_TruncatesToDay(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	st := testStatus(5, 20)
	st.Date = day(5).Add(13 * time.Hour)

	require.NoError(t, s.Upsert(ctx, st))
	got, err := s.Get(ctx, day(5).Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, day(5), got.Date)
}

func TestReplaceAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, testStatus(28, 90)))

	history := []domain.Status{testStatus(1, 10), testStatus(2, 30), testStatus(3, 60)}
	require.NoError(t, s.ReplaceAll(ctx, history))

	all, err := s.List(ctx, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, day(3), all[0].Date, "most recent first")
	assert.Equal(t, day(1), all[2].Date)

	_, err = s.Get(ctx, day(28))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReplaceAll_DuplicateDatesKeepLast(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceAll(ctx, []domain.Status{testStatus(1, 10), testStatus(1, 70)}))
	got, err := s.Get(ctx, day(1))
	require.NoError(t, err)
	assert.Equal(t, 70.0, got.RiskScore)
}

func TestReplaceAll_CancelledContextKeepsHistory(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Upsert(context.Background(), testStatus(1, 10)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.ReplaceAll(ctx, []domain.Status{testStatus(2, 20)}))

	all, err := s.List(context.Background(), time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, day(1), all[0].Date)
}

func TestList_SinceAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	var history []domain.Status
	for d := 1; d <= 10; d++ {
		history = append(history, testStatus(d, float64(d)))
	}
	require.NoError(t, s.ReplaceAll(ctx, history))

	recent, err := s.List(ctx, day(8), 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, day(10), recent[0].Date)

	top, err := s.List(ctx, time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, day(9), top[1].Date)
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), day(1))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := store.Open(context.Background(), store.Driver("oracle"), "")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestCheckReadiness(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.CheckReadiness(context.Background()))
}
