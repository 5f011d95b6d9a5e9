package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Blob     BlobConfig
	Log      LogConfig
	Backups  BackupConfig
}

// DatabaseConfig points at the local SQLite file backing the entity store.
type DatabaseConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// BlobConfig locates the auxiliary byte store for backup payloads.
type BlobConfig struct {
	Dir string
}

type LogConfig struct {
	Level  string
	Format string
}

// BackupConfig tunes snapshot creation and import behaviour.
type BackupConfig struct {
	SnapshotVersion  string
	ImportNamePrefix string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Path:        v.GetString("DB_PATH"),
		BusyTimeout: parseDuration(v.GetString("DB_BUSY_TIMEOUT"), 5*time.Second),
	}

	cfg.Blob = BlobConfig{
		Dir: v.GetString("BLOB_DIR"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Backups = BackupConfig{
		SnapshotVersion:  v.GetString("BACKUP_SNAPSHOT_VERSION"),
		ImportNamePrefix: v.GetString("BACKUP_IMPORT_PREFIX"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_PATH", "./timegrid.db")
	v.SetDefault("DB_BUSY_TIMEOUT", "5s")

	v.SetDefault("BLOB_DIR", "./backups")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BACKUP_SNAPSHOT_VERSION", "2.0")
	v.SetDefault("BACKUP_IMPORT_PREFIX", "导入: ")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
