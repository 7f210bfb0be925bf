package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./dados", cfg.DataDir)
	assert.Equal(t, "ml_models/coral_rf.json", cfg.ModelPath)
	assert.Empty(t, cfg.SiteProfile)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "coral.db", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.ERDDAPTimeout)
	assert.Equal(t, 3, cfg.ERDDAPMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.ERDDAPRetryDelay)
	assert.Equal(t, "memory", cfg.CacheDriver)
	assert.Equal(t, 256, cfg.CacheSize)
	assert.Equal(t, 6*time.Hour, cfg.CacheTTL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled())
	assert.False(t, cfg.TelegramEnabled())
	assert.Equal(t, domain.Alert1, cfg.AlertMinLevel)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.S3PathStyle)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("DATA_DIR", "/data")
	t.Setenv("MODEL_PATH", "s3://models/coral_rf.json")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://coral@localhost/coral")
	t.Setenv("ERDDAP_MAX_ATTEMPTS", "5")
	t.Setenv("ERDDAP_RETRY_DELAY", "0s")
	t.Setenv("CACHE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-topic")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200300")
	t.Setenv("ALERT_MIN_LEVEL", "watch")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("AWS_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("AWS_S3_PATH_STYLE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, "s3://models/coral_rf.json", cfg.ModelPath)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 5, cfg.ERDDAPMaxAttempts)
	assert.Zero(t, cfg.ERDDAPRetryDelay)
	assert.Equal(t, "redis", cfg.CacheDriver)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "custom-topic", cfg.KafkaTopic)
	assert.True(t, cfg.TelegramEnabled())
	assert.Equal(t, int64(-100200300), cfg.TelegramChatID)
	assert.Equal(t, domain.Watch, cfg.AlertMinLevel)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://minio:9000", cfg.S3Endpoint)
	assert.True(t, cfg.S3PathStyle)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"shutdown timeout", "SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"negative shutdown timeout", "SHUTDOWN_TIMEOUT", "-1s"},
		{"erddap timeout", "ERDDAP_TIMEOUT", "0s"},
		{"retry delay", "ERDDAP_RETRY_DELAY", "soon"},
		{"max attempts", "ERDDAP_MAX_ATTEMPTS", "0"},
		{"cache size", "CACHE_SIZE", "-5"},
		{"cache driver", "CACHE_DRIVER", "memcached"},
		{"database driver", "DATABASE_DRIVER", "oracle"},
		{"alert level", "ALERT_MIN_LEVEL", "severe"},
		{"chat id", "TELEGRAM_CHAT_ID", "general"},
		{"path style", "AWS_S3_PATH_STYLE", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_TelegramTokenWithoutChat(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_CHAT_ID")
}

func TestLoadProfile_Defaults(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultProfile(), p)
}

func TestLoadProfile_OverlayYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
site: recife
thermal_threshold: 28.5
bbox:
  lat_min: -8.5
  lat_max: -7.9
sources:
  - variable: sst
    patterns: ["sst*.csv"]
    columns: ["analysed_sst"]
seasonal_variables: []
`), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)

	def := domain.DefaultProfile()
	assert.Equal(t, "recife", p.Site)
	assert.Equal(t, 28.5, p.ThermalThreshold)
	assert.Equal(t, -8.5, p.BBox.LatMin)
	assert.Equal(t, -7.9, p.BBox.LatMax)
	assert.Equal(t, def.BBox.LonMin, p.BBox.LonMin, "unset keys keep defaults")
	assert.Equal(t, def.Depth, p.Depth)
	require.Len(t, p.Sources, 1, "lists replace the default")
	assert.Equal(t, domain.SST, p.Sources[0].Variable)
	assert.Equal(t, []string{"analysed_sst"}, p.Sources[0].Columns)
	assert.Empty(t, p.SeasonalVariables)
	assert.Equal(t, def.Features, p.Features)
}

func TestLoadProfile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"depth": 12, "dhw_window_days": 60}`), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 12.0, p.Depth)
	assert.Equal(t, 60, p.DHWWindowDays)
}

func TestLoadProfile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte("features: [sst, moon_phase]\n"), 0o600))

	_, err := LoadProfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moon_phase")
}

func TestLoadProfile_MissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read site profile")
}
