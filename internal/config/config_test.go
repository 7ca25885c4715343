package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"stayhub/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("STAYHUB_TEST_SECRET", "s3cret")

	yamlContent := `
database:
  path: "test.db"
api:
  auth:
    jwt_secret: "${STAYHUB_TEST_SECRET}"
    api_keys:
      - key: "k1"
        name: "partner"
booking:
  lock_ttl: 5s
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.API.Auth.JWTSecret != "s3cret" {
		t.Errorf("expected expanded jwt secret, got %q", cfg.API.Auth.JWTSecret)
	}
	if cfg.Booking.LockTTL != 5*time.Second {
		t.Errorf("expected lock ttl 5s, got %s", cfg.Booking.LockTTL)
	}
	if len(cfg.API.Auth.APIKeys) != 1 || cfg.API.Auth.APIKeys[0].Name != "partner" {
		t.Errorf("expected 1 api key for partner")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Path: "path"},
			API:      APIConfig{Auth: APIAuthConfig{JWTSecret: "secret"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "missing secret", mutate: func(c *Config) { c.API.Auth.JWTSecret = "" }, wantErr: true},
		{name: "placeholder secret", mutate: func(c *Config) { c.API.Auth.JWTSecret = "CHANGE_ME" }, wantErr: true},
		{name: "negative rps", mutate: func(c *Config) { c.API.RateLimit.RPS = -1 }, wantErr: true},
		{name: "kafka without brokers", mutate: func(c *Config) { c.Kafka.Enabled = true }, wantErr: true},
		{name: "search without host", mutate: func(c *Config) { c.Search.Enabled = true }, wantErr: true},
		{
			name: "bad backup schedule",
			mutate: func(c *Config) {
				c.Backup = BackupConfig{Enabled: true, StoragePath: "/tmp", Schedule: "every day"}
			},
			wantErr: true,
		},
		{
			name:    "duplicate api key",
			mutate:  func(c *Config) { c.API.Auth.APIKeys = []APIClientKey{{Key: "a"}, {Key: "a"}} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.API.GRPC.Port != 8081 {
		t.Errorf("expected default gRPC port 8081, got %d", cfg.API.GRPC.Port)
	}
	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.API.Auth.TokenTTL != models.DefaultTokenTTL {
		t.Errorf("expected default token ttl %s, got %s", models.DefaultTokenTTL, cfg.API.Auth.TokenTTL)
	}
	if cfg.OTP.TTL != models.DefaultOTPTTL {
		t.Errorf("expected default otp ttl %s, got %s", models.DefaultOTPTTL, cfg.OTP.TTL)
	}
	if cfg.Booking.LockRetries != models.DefaultLockRetries {
		t.Errorf("expected default lock retries %d, got %d", models.DefaultLockRetries, cfg.Booking.LockRetries)
	}
	if cfg.Scheduler.OTPPurge == "" || cfg.Backup.Schedule == "" {
		t.Errorf("expected default cron schedules")
	}
	if cfg.Telegram.SendTimeout != 10*time.Second || cfg.Telegram.QueueSize != 64 {
		t.Errorf("expected telegram defaults, got %s/%d", cfg.Telegram.SendTimeout, cfg.Telegram.QueueSize)
	}
}

func TestValidateAPIKeys(t *testing.T) {
	tests := []struct {
		name    string
		keys    []APIClientKey
		wantErr bool
	}{
		{name: "Valid keys", keys: []APIClientKey{{Key: "a", Name: "A"}, {Key: "b", Name: "B"}}},
		{name: "Duplicate key", keys: []APIClientKey{{Key: "a"}, {Key: "a"}}, wantErr: true},
		{name: "Empty key", keys: []APIClientKey{{Name: "broken"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKeys(tt.keys)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKeys() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
