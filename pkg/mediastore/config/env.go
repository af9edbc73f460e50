package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// EnvConfig is the environment surface shared by the server and the CLI.
type EnvConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	DatabaseType string `env:"DATABASE_TYPE" env-default:"memory"`
	DatabaseURL  string `env:"DATABASE_URL" env-default:""`

	StorageBackend string `env:"STORAGE_BACKEND" env-default:"memory"`
	StorageBaseDir string `env:"STORAGE_BASE_DIR" env-default:"./data/storage"`
	PublicBaseURL  string `env:"PUBLIC_BASE_URL" env-default:"/media"`

	S3Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	S3Bucket          string `env:"AWS_S3_BUCKET" env-default:""`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-default:""`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-default:""`
	S3Endpoint        string `env:"AWS_S3_ENDPOINT" env-default:""`
	S3UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`

	MinioEndpoint string `env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	MinioUseSSL   bool   `env:"MINIO_USE_SSL" env-default:"false"`

	SchemaFile string `env:"SCHEMA_FILE" env-default:""`

	QueueType string `env:"QUEUE_TYPE" env-default:"inproc"`
	RedisAddr string `env:"REDIS_ADDR" env-default:""`
	RedisKey  string `env:"REDIS_QUEUE_KEY" env-default:""`

	RecomputeInterval time.Duration `env:"USAGE_RECOMPUTE_INTERVAL" env-default:"0"`
	CleanupInterval   time.Duration `env:"CLEANUP_INTERVAL" env-default:"0"`
}

// ReadEnv loads the environment surface.
func ReadEnv() (EnvConfig, error) {
	var env EnvConfig
	if err := cleanenv.ReadEnv(&env); err != nil {
		return EnvConfig{}, fmt.Errorf("failed to read environment: %w", err)
	}
	return env, nil
}

// FromEnv maps the environment surface onto a ServerConfig.
func FromEnv(env EnvConfig) Option {
	return func(cfg *ServerConfig) error {
		cfg.Port = env.Port
		cfg.Environment = env.Environment
		cfg.DatabaseType = env.DatabaseType
		cfg.DatabaseURL = env.DatabaseURL
		cfg.SchemaFile = env.SchemaFile
		cfg.QueueType = env.QueueType
		cfg.RedisAddr = env.RedisAddr
		cfg.RedisKey = env.RedisKey
		cfg.RecomputeInterval = env.RecomputeInterval
		cfg.CleanupInterval = env.CleanupInterval

		switch env.StorageBackend {
		case "memory":
			cfg.StorageBackend = StorageBackendConfig{Type: "memory", Config: map[string]interface{}{}}
		case "fs":
			cfg.StorageBackend = StorageBackendConfig{
				Type: "fs",
				Config: map[string]interface{}{
					"base_dir":   env.StorageBaseDir,
					"url_prefix": env.PublicBaseURL,
				},
			}
		case "s3":
			cfg.StorageBackend = StorageBackendConfig{
				Type: "s3",
				Config: map[string]interface{}{
					"region":            env.S3Region,
					"bucket":            env.S3Bucket,
					"access_key_id":     env.S3AccessKeyID,
					"secret_access_key": env.S3SecretAccessKey,
					"endpoint":          env.S3Endpoint,
					"use_path_style":    env.S3UsePathStyle,
					"public_base_url":   env.PublicBaseURL,
				},
			}
		case "minio":
			cfg.StorageBackend = StorageBackendConfig{
				Type: "minio",
				Config: map[string]interface{}{
					"endpoint":          env.MinioEndpoint,
					"access_key_id":     env.S3AccessKeyID,
					"secret_access_key": env.S3SecretAccessKey,
					"bucket":            env.S3Bucket,
					"use_ssl":           env.MinioUseSSL,
					"public_base_url":   env.PublicBaseURL,
				},
			}
		default:
			return fmt.Errorf("unsupported storage backend: %s", env.StorageBackend)
		}
		return nil
	}
}
