package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{}
	require.NoError(t, env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}}))
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := defaults(t)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Decision.SampleSize)
	assert.False(t, cfg.Decision.ScoreAll)
	assert.Equal(t, 5*time.Minute, cfg.Decision.ExpirySweepInterval)
	assert.Equal(t, "nba.audit", cfg.Events.Subject)
	assert.NoError(t, Validate(cfg))
}

func TestParseFromEnvironment(t *testing.T) {
	cfg := &Config{}
	err := env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{
		"DB_HOST":              "db.internal",
		"DB_PORT":              "6432",
		"CACHE_ENABLED":        "true",
		"CACHE_TTL":            "90s",
		"DECISION_SAMPLE_SIZE": "5",
		"DECISION_SCORE_ALL":   "true",
		"SCORING_PROFILE_FILE": "/etc/nba/scoring.toml",
	}})
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6432, cfg.Database.Port)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 5, cfg.Decision.SampleSize)
	assert.True(t, cfg.Decision.ScoreAll)
	assert.Equal(t, "/etc/nba/scoring.toml", cfg.Scoring.ProfileFile)
	assert.Equal(t, "postgres://postgres:@db.internal:6432/nba?sslmode=disable", cfg.Database.URL())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{
			name:   "missing host and bad port",
			mutate: func(c *Config) { c.Database.Host = ""; c.Database.Port = 0 },
			want:   []string{"DB_HOST is required", "DB_PORT must be between 1 and 65535"},
		},
		{
			name:   "idle above open",
			mutate: func(c *Config) { c.Database.MaxIdleConns = 50 },
			want:   []string{"DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS"},
		},
		{
			name:   "export without bucket",
			mutate: func(c *Config) { c.Export.Enabled = true },
			want:   []string{"EXPORT_S3_BUCKET is required"},
		},
		{
			name:   "events without subject",
			mutate: func(c *Config) { c.Events.Enabled = true; c.Events.Subject = "" },
			want:   []string{"NATS_AUDIT_SUBJECT is required"},
		},
		{
			name:   "sample size out of range",
			mutate: func(c *Config) { c.Decision.SampleSize = 0 },
			want:   []string{"DECISION_SAMPLE_SIZE must be between 1 and 1000"},
		},
		{
			name:   "negative sweep interval",
			mutate: func(c *Config) { c.Decision.ExpirySweepInterval = -time.Second },
			want:   []string{"DECISION_EXPIRY_SWEEP_INTERVAL cannot be negative"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults(t)
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}
