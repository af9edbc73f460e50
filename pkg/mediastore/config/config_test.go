package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavecms/mediastore/pkg/mediastore/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, "memory", cfg.StorageBackend.Type)
	assert.Equal(t, "inproc", cfg.QueueType)
	assert.Zero(t, cfg.RecomputeInterval)
	assert.Zero(t, cfg.CleanupInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.ServerConfig)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *config.ServerConfig) {},
		},
		{
			name:    "missing port",
			mutate:  func(cfg *config.ServerConfig) { cfg.Port = "" },
			wantErr: "port",
		},
		{
			name:    "unknown database type",
			mutate:  func(cfg *config.ServerConfig) { cfg.DatabaseType = "oracle" },
			wantErr: "database_type",
		},
		{
			name:    "postgres without url",
			mutate:  func(cfg *config.ServerConfig) { cfg.DatabaseType = "postgres" },
			wantErr: "database_url",
		},
		{
			name:    "unknown storage backend",
			mutate:  func(cfg *config.ServerConfig) { cfg.StorageBackend.Type = "tape" },
			wantErr: "storage backend",
		},
		{
			name:    "redis queue without addr",
			mutate:  func(cfg *config.ServerConfig) { cfg.QueueType = "redis" },
			wantErr: "redis_addr",
		},
		{
			name:    "unknown queue type",
			mutate:  func(cfg *config.ServerConfig) { cfg.QueueType = "sqs" },
			wantErr: "queue_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(func(cfg *config.ServerConfig) error {
				tt.mutate(cfg)
				return nil
			})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromEnv(t *testing.T) {
	env := config.EnvConfig{
		Port:              "9090",
		Environment:       "production",
		DatabaseType:      "memory",
		StorageBackend:    "fs",
		StorageBaseDir:    "/var/lib/mediastore",
		PublicBaseURL:     "https://cdn.example.com/media",
		QueueType:         "inproc",
		RecomputeInterval: 6 * time.Hour,
		CleanupInterval:   24 * time.Hour,
	}

	cfg, err := config.Load(config.FromEnv(env))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "fs", cfg.StorageBackend.Type)
	assert.Equal(t, "/var/lib/mediastore", cfg.StorageBackend.Config["base_dir"])
	assert.Equal(t, "https://cdn.example.com/media", cfg.StorageBackend.Config["url_prefix"])
	assert.Equal(t, 6*time.Hour, cfg.RecomputeInterval)
	assert.Equal(t, 24*time.Hour, cfg.CleanupInterval)
}

func TestFromEnvRejectsUnknownStorage(t *testing.T) {
	_, err := config.Load(config.FromEnv(config.EnvConfig{
		Port:           "8080",
		DatabaseType:   "memory",
		StorageBackend: "tape",
		QueueType:      "inproc",
	}))
	assert.Error(t, err)
}

func TestBuildMemoryComponents(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	repo, err := cfg.BuildRepository()
	require.NoError(t, err)
	assert.NotNil(t, repo)

	store, err := cfg.BuildStorage()
	require.NoError(t, err)
	assert.NotNil(t, store)

	registry, err := cfg.BuildRegistry()
	require.NoError(t, err)
	assert.Empty(t, registry.Types())

	source, err := cfg.BuildSchemaSource(registry)
	require.NoError(t, err)
	assert.NotNil(t, source)
}
