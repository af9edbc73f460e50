// Package config builds mediastore components from declarative server
// configuration.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wavecms/mediastore/pkg/mediastore"
	"github.com/wavecms/mediastore/pkg/mediastore/dispatch"
	repomemory "github.com/wavecms/mediastore/pkg/mediastore/repo/memory"
	repopg "github.com/wavecms/mediastore/pkg/mediastore/repo/postgres"
	"github.com/wavecms/mediastore/pkg/mediastore/schema"
	schemamemory "github.com/wavecms/mediastore/pkg/mediastore/schema/memory"
	schemapg "github.com/wavecms/mediastore/pkg/mediastore/schema/postgres"
	fsstorage "github.com/wavecms/mediastore/pkg/mediastore/storage/fs"
	memorystorage "github.com/wavecms/mediastore/pkg/mediastore/storage/memory"
	miniostorage "github.com/wavecms/mediastore/pkg/mediastore/storage/minio"
	s3storage "github.com/wavecms/mediastore/pkg/mediastore/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top
// of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		StorageBackend: StorageBackendConfig{
			Type:   "memory",
			Config: map[string]interface{}{},
		},
		QueueType: "inproc",
	}
}

// ServerConfig represents server configuration for the mediastore
// service.
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration. Both the media catalog and the postgres
	// schema source share this connection.
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"

	// Storage configuration
	StorageBackend StorageBackendConfig

	// SchemaFile points at the YAML description of content entity types.
	// Empty means an empty registry (no reference scanning targets).
	SchemaFile string

	// Queue configuration
	QueueType string // "inproc", "redis"
	RedisAddr string
	RedisKey  string

	// Periodic maintenance. Zero disables a schedule.
	RecomputeInterval time.Duration
	CleanupInterval   time.Duration
}

// StorageBackendConfig represents configuration for a storage backend.
type StorageBackendConfig struct {
	Type   string // "memory", "fs", "s3", "minio"
	Config map[string]interface{}
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.StorageBackend.Type {
	case "memory", "fs", "s3", "minio":
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.StorageBackend.Type)
	}

	switch c.QueueType {
	case "inproc":
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("redis_addr is required when using the redis queue")
		}
	default:
		return errors.New("queue_type must be 'inproc' or 'redis'")
	}

	return nil
}

// BuildRepository creates the media catalog repository.
func (c *ServerConfig) BuildRepository() (mediastore.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return repomemory.New(), nil
	case "postgres":
		pool, err := c.pgPool()
		if err != nil {
			return nil, err
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// BuildStorage creates the blob store backend.
func (c *ServerConfig) BuildStorage() (mediastore.BlobStore, error) {
	cfg := c.StorageBackend.Config
	switch c.StorageBackend.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir:   getString(cfg, "base_dir", "./data/storage"),
			URLPrefix: getString(cfg, "url_prefix", "/media"),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(cfg, "region", "us-east-1"),
			Bucket:                 getString(cfg, "bucket", ""),
			AccessKeyID:            getString(cfg, "access_key_id", ""),
			SecretAccessKey:        getString(cfg, "secret_access_key", ""),
			Endpoint:               getString(cfg, "endpoint", ""),
			UsePathStyle:           getBool(cfg, "use_path_style", false),
			PublicBaseURL:          getString(cfg, "public_base_url", ""),
			EnableSSE:              getBool(cfg, "enable_sse", false),
			SSEAlgorithm:           getString(cfg, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(cfg, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(cfg, "create_bucket_if_not_exist", false),
		})

	case "minio":
		return miniostorage.New(miniostorage.Config{
			Endpoint:               getString(cfg, "endpoint", "localhost:9000"),
			AccessKeyID:            getString(cfg, "access_key_id", ""),
			SecretAccessKey:        getString(cfg, "secret_access_key", ""),
			Bucket:                 getString(cfg, "bucket", ""),
			UseSSL:                 getBool(cfg, "use_ssl", false),
			PublicBaseURL:          getString(cfg, "public_base_url", ""),
			CreateBucketIfNotExist: getBool(cfg, "create_bucket_if_not_exist", false),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.StorageBackend.Type)
	}
}

// BuildRegistry loads the entity type registry from the schema file.
func (c *ServerConfig) BuildRegistry() (*schema.Registry, error) {
	if c.SchemaFile == "" {
		return schema.NewRegistry(), nil
	}
	return schema.LoadFile(c.SchemaFile)
}

// BuildSchemaSource creates the entity data source matching the database
// type. The memory source also returns the mutable store so examples and
// tests can seed entities.
func (c *ServerConfig) BuildSchemaSource(registry *schema.Registry) (schema.Source, error) {
	switch c.DatabaseType {
	case "memory":
		return schemamemory.New(registry), nil
	case "postgres":
		pool, err := c.pgPool()
		if err != nil {
			return nil, err
		}
		return schemapg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// BuildQueue creates the job queue.
func (c *ServerConfig) BuildQueue(logger *slog.Logger) (dispatch.Queue, error) {
	switch c.QueueType {
	case "inproc":
		return dispatch.NewGoChannelQueue(logger), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		return dispatch.NewRedisQueue(client, c.RedisKey), nil
	default:
		return nil, fmt.Errorf("unsupported queue type: %s", c.QueueType)
	}
}

// PingPostgres verifies connectivity to Postgres.
func PingPostgres(databaseURL string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (c *ServerConfig) pgPool() (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
