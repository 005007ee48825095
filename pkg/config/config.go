package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Persistence drivers.
const (
	DriverCSV      = "csv"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// GPA semester modes.
const (
	GPASemesterCalendar = "calendar"
	GPASemesterLatest   = "latest"
)

type Config struct {
	Env string

	Log         LogConfig
	Storage     StorageConfig
	Persistence PersistenceConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Cache       CacheConfig
	Policy      PolicyConfig
	Backup      BackupConfig
	Autosave    AutosaveConfig
	Metrics     MetricsConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig locates the working directories of the application.
type StorageConfig struct {
	DataDir   string
	BackupDir string
	ExportDir string
}

// PersistenceConfig selects where records are loaded from and saved to.
type PersistenceConfig struct {
	Driver     string
	SQLitePath string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig governs caching of reports and transcripts.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// PolicyConfig carries the institutional rules enforced by the engine.
type PolicyConfig struct {
	MaxCreditsPerSemester int
	MinGPA                float64
	MaxGPA                float64
	MinCourseCredits      int
	MaxCourseCredits      int
	GPASemesterMode       string
}

// BackupConfig controls backup signing and retention.
type BackupConfig struct {
	SigningSecret string
	RetentionDays int
}

// AutosaveConfig toggles background saves after mutations.
type AutosaveConfig struct {
	Enabled bool
	Workers int
	Retries int
}

// MetricsConfig locates the Prometheus textfile written at shutdown.
type MetricsConfig struct {
	TextfilePath string
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
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		DataDir:   v.GetString("DATA_DIR"),
		BackupDir: v.GetString("BACKUP_DIR"),
		ExportDir: v.GetString("EXPORT_DIR"),
	}

	cfg.Persistence = PersistenceConfig{
		Driver:     strings.ToLower(v.GetString("PERSISTENCE_DRIVER")),
		SQLitePath: v.GetString("SQLITE_PATH"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 10*time.Minute),
	}

	mode := strings.ToLower(v.GetString("GPA_SEMESTER_MODE"))
	if mode != GPASemesterLatest {
		mode = GPASemesterCalendar
	}
	cfg.Policy = PolicyConfig{
		MaxCreditsPerSemester: v.GetInt("MAX_CREDITS_PER_SEMESTER"),
		MinGPA:                v.GetFloat64("MIN_GPA"),
		MaxGPA:                v.GetFloat64("MAX_GPA"),
		MinCourseCredits:      v.GetInt("MIN_COURSE_CREDITS"),
		MaxCourseCredits:      v.GetInt("MAX_COURSE_CREDITS"),
		GPASemesterMode:       mode,
	}

	retention := v.GetInt("BACKUP_RETENTION_DAYS")
	if retention <= 0 {
		retention = 30
	}
	cfg.Backup = BackupConfig{
		SigningSecret: v.GetString("BACKUP_SIGNING_SECRET"),
		RetentionDays: retention,
	}

	cfg.Autosave = AutosaveConfig{
		Enabled: v.GetBool("ENABLE_AUTOSAVE"),
		Workers: v.GetInt("AUTOSAVE_WORKERS"),
		Retries: v.GetInt("AUTOSAVE_RETRIES"),
	}

	cfg.Metrics = MetricsConfig{
		TextfilePath: v.GetString("METRICS_TEXTFILE"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("BACKUP_DIR", "./backups")
	v.SetDefault("EXPORT_DIR", "./exports")

	v.SetDefault("PERSISTENCE_DRIVER", DriverCSV)
	v.SetDefault("SQLITE_PATH", "./data/ccrm.db")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campus_records")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "10m")

	v.SetDefault("MAX_CREDITS_PER_SEMESTER", 21)
	v.SetDefault("MIN_GPA", 0.0)
	v.SetDefault("MAX_GPA", 4.0)
	v.SetDefault("MIN_COURSE_CREDITS", 1)
	v.SetDefault("MAX_COURSE_CREDITS", 6)
	v.SetDefault("GPA_SEMESTER_MODE", GPASemesterCalendar)

	v.SetDefault("BACKUP_SIGNING_SECRET", "dev_backup_secret")
	v.SetDefault("BACKUP_RETENTION_DAYS", 30)

	v.SetDefault("ENABLE_AUTOSAVE", false)
	v.SetDefault("AUTOSAVE_WORKERS", 1)
	v.SetDefault("AUTOSAVE_RETRIES", 3)

	v.SetDefault("METRICS_TEXTFILE", "")
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
