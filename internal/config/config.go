package config

import (
	"fmt"
	"os"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
	Records    RecordsConfig    `mapstructure:"records"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Query      QueryConfig      `mapstructure:"query"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr               string `mapstructure:"addr"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`
	ReadTimeoutSec     int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec    int    `mapstructure:"write_timeout_sec"`
	PresignExpiryMin   int    `mapstructure:"presign_expiry_min"`
}

type DatabaseConfig struct {
	DSN                  string `mapstructure:"dsn"`
	Slaves               string `mapstructure:"slaves"`
	MaxOpenConns         int    `mapstructure:"max_open_conns"`
	MaxIdleConns         int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSec   int    `mapstructure:"conn_max_lifetime_sec"`
	ConnectRetries       int    `mapstructure:"connect_retries"`
	ConnectRetryDelaySec int    `mapstructure:"connect_retry_delay_sec"`
}

type MigrationsConfig struct {
	Path string `mapstructure:"path"`
}

// RecordsConfig selects the metadata record store backend.
type RecordsConfig struct {
	Type string `mapstructure:"type"` // postgres | memory
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // local | s3
	LocalPath string `mapstructure:"local_path"`
	BlobDir   string `mapstructure:"blob_dir"`

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl"`
}

type UploadConfig struct {
	MaxSizeMB      int      `mapstructure:"max_size_mb"`
	AllowedFormats []string `mapstructure:"allowed_formats"`
}

type QueryConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func Load(path string) (*Config, error) {
	cfg := config.New()

	configPath := path
	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		} else if _, err := os.Stat("/app/config.yaml"); err == nil {
			configPath = "/app/config.yaml"
		} else {
			return nil, fmt.Errorf("config.yaml not found")
		}
	}

	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = ""
	}

	if err := cfg.Load(configPath, envPath, "APP"); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appConfig := &Config{}
	if err := cfg.Unmarshal(appConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(appConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	zlog.Logger.Info().
		Str("records", appConfig.Records.Type).
		Str("storage", appConfig.Storage.Type).
		Int("max_upload_size_mb", appConfig.Upload.MaxSizeMB).
		Int("query_max_limit", appConfig.Query.MaxLimit).
		Msg("Config loaded successfully")

	return appConfig, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Server.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("server.shutdown_timeout_sec must be positive")
	}
	if cfg.Server.ReadTimeoutSec <= 0 {
		return fmt.Errorf("server.read_timeout_sec must be positive")
	}
	if cfg.Server.WriteTimeoutSec <= 0 {
		return fmt.Errorf("server.write_timeout_sec must be positive")
	}
	if cfg.Server.PresignExpiryMin <= 0 {
		return fmt.Errorf("server.presign_expiry_min must be positive")
	}

	switch cfg.Records.Type {
	case "postgres":
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres records")
		}
		if cfg.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be positive")
		}
		if cfg.Database.MaxIdleConns < 0 {
			return fmt.Errorf("database.max_idle_conns must be non-negative")
		}
		if cfg.Migrations.Path == "" {
			return fmt.Errorf("migrations.path is required for postgres records")
		}
	case "memory":
	default:
		return fmt.Errorf("records.type must be 'postgres' or 'memory'")
	}

	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must contain at least one broker")
	}
	if cfg.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required")
	}
	if cfg.Kafka.GroupID == "" {
		return fmt.Errorf("kafka.group_id is required")
	}

	switch cfg.Storage.Type {
	case "local":
		if cfg.Storage.LocalPath == "" {
			return fmt.Errorf("storage.local_path is required for local storage")
		}
	case "s3":
		if cfg.Storage.S3Endpoint == "" {
			return fmt.Errorf("storage.s3_endpoint is required for s3 storage")
		}
		if cfg.Storage.S3Bucket == "" {
			return fmt.Errorf("storage.s3_bucket is required for s3 storage")
		}
		if cfg.Storage.S3AccessKey == "" || cfg.Storage.S3SecretKey == "" {
			return fmt.Errorf("storage.s3_access_key and storage.s3_secret_key are required for s3 storage")
		}
	default:
		return fmt.Errorf("storage.type must be 'local' or 's3'")
	}

	if cfg.Upload.MaxSizeMB <= 0 {
		return fmt.Errorf("upload.max_size_mb must be positive")
	}
	if len(cfg.Upload.AllowedFormats) == 0 {
		return fmt.Errorf("upload.allowed_formats must contain at least one format")
	}
	if cfg.Query.DefaultLimit <= 0 {
		return fmt.Errorf("query.default_limit must be positive")
	}
	if cfg.Query.MaxLimit < cfg.Query.DefaultLimit {
		return fmt.Errorf("query.max_limit must be >= query.default_limit")
	}
	if cfg.Logging.Level == "" {
		return fmt.Errorf("logging.level is required")
	}

	return nil
}
