package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
	"github.com/couchcryptid/coral-risk-etl/internal/observability"
	"github.com/couchcryptid/coral-risk-etl/internal/source"
)

func generate(t *testing.T, seed uint64) string {
	t.Helper()
	dir := t.TempDir()
	g := newGenerator(seed, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 120, domain.DefaultProfile())
	for _, d := range g.files() {
		_, err := g.write(filepath.Join(dir, d.name), d)
		require.NoError(t, err)
	}
	return dir
}

func TestGeneratedFilesAreReadable(t *testing.T) {
	dir := generate(t, 7)
	r := source.NewReader(dir, domain.DefaultProfile(), slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

	res, err := r.Read(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.Skipped)
	for _, v := range domain.Variables {
		assert.NotEmpty(t, res.Observations(v), "variable %s", v)
	}
	assert.Len(t, res.Observations(domain.SST), 120)
	assert.Len(t, res.Observations(domain.Irradiance), 15, "8-day composites")
}

func TestGenerationIsDeterministic(t *testing.T) {
	a, err := os.ReadFile(filepath.Join(generate(t, 42), "dhw.csv"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(generate(t, 42), "dhw.csv"))
	require.NoError(t, err)
	c, err := os.ReadFile(filepath.Join(generate(t, 43), "dhw.csv"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
