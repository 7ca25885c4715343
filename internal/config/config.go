package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"stayhub/internal/models"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	OTP        OTPConfig        `yaml:"otp"`
	Mail       MailConfig       `yaml:"mail"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Search     SearchConfig     `yaml:"search"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port        int      `yaml:"port"`
	StaticDir   string   `yaml:"static_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	JWTSecret    string         `yaml:"jwt_secret"`
	TokenTTL     time.Duration  `yaml:"token_ttl"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// APIClientKey authorizes a partner integration on the gRPC surface.
type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BookingConfig struct {
	LockTTL        time.Duration `yaml:"lock_ttl"`
	LockRetries    int           `yaml:"lock_retries"`
	MaxStayNights  int           `yaml:"max_stay_nights"`
	MaxAdvanceDays int           `yaml:"max_advance_days"`
}

type OTPConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	ResendLimit  int           `yaml:"resend_limit"`
	ResendWindow time.Duration `yaml:"resend_window"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type TelegramConfig struct {
	BotToken    string        `yaml:"bot_token"`
	Debug       bool          `yaml:"debug"`
	SendTimeout time.Duration `yaml:"send_timeout"`
	QueueSize   int           `yaml:"queue_size"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type SearchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	APIKey  string `yaml:"api_key"`
	Index   string `yaml:"index"`
}

type ExportConfig struct {
	MaxRangeDays int `yaml:"max_range_days"`
}

type SchedulerConfig struct {
	OTPPurge string `yaml:"otp_purge"`
	Reindex  string `yaml:"reindex"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile     string `yaml:"credentials_file"`
	ReservationsSpreadSheetID string `yaml:"reservations_spreadsheet_id"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional outside of development
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.API.Auth.JWTSecret == "" || c.API.Auth.JWTSecret == "CHANGE_ME" {
		return errors.New("api.auth.jwt_secret is required")
	}

	if c.API.RateLimit.RPS < 0 || c.API.RateLimit.Burst < 0 {
		return errors.New("rate limit values must not be negative")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}

	if c.Search.Enabled && c.Search.Host == "" {
		return errors.New("search.host is required when search is enabled")
	}

	if c.Backup.Enabled {
		if c.Backup.StoragePath == "" {
			return errors.New("backup.storage_path is required when backup is enabled")
		}
		if err := validateCron(c.Backup.Schedule); err != nil {
			return fmt.Errorf("backup.schedule: %w", err)
		}
	}

	if err := validateCron(c.Scheduler.OTPPurge); err != nil {
		return fmt.Errorf("scheduler.otp_purge: %w", err)
	}
	if err := validateCron(c.Scheduler.Reindex); err != nil {
		return fmt.Errorf("scheduler.reindex: %w", err)
	}

	return ValidateAPIKeys(c.API.Auth.APIKeys)
}

func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func validateCron(spec string) error {
	if spec == "" {
		return nil
	}
	_, err := cron.ParseStandard(spec)
	return err
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "stayhub"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.TokenTTL == 0 {
		c.API.Auth.TokenTTL = models.DefaultTokenTTL
	}

	// Booking defaults
	if c.Booking.LockTTL == 0 {
		c.Booking.LockTTL = models.DefaultLockTTL
	}
	if c.Booking.LockRetries == 0 {
		c.Booking.LockRetries = models.DefaultLockRetries
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = 365
	}

	// OTP defaults
	if c.OTP.TTL == 0 {
		c.OTP.TTL = models.DefaultOTPTTL
	}
	if c.OTP.ResendLimit == 0 {
		c.OTP.ResendLimit = models.DefaultOTPResendLimit
	}
	if c.OTP.ResendWindow == 0 {
		c.OTP.ResendWindow = models.DefaultOTPResendWindow
	}

	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Telegram.SendTimeout == 0 {
		c.Telegram.SendTimeout = 10 * time.Second
	}
	if c.Telegram.QueueSize == 0 {
		c.Telegram.QueueSize = 64
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "stayhub.events"
	}
	if c.Search.Index == "" {
		c.Search.Index = "properties"
	}
	if c.Exports.MaxRangeDays == 0 {
		c.Exports.MaxRangeDays = 366
	}
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 3 * * *"
	}
	if c.Scheduler.OTPPurge == "" {
		c.Scheduler.OTPPurge = "*/15 * * * *"
	}
	if c.Scheduler.Reindex == "" {
		c.Scheduler.Reindex = "30 3 * * *"
	}
}
