// Package config loads the control plane's configuration from a YAML
// file with environment-variable overrides, following the same
// Load/overrideWithEnv shape the platform has always used.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"dialerctl/pkg/logging"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Auth        AuthConfig        `yaml:"auth"`
	Telephony   TelephonyConfig   `yaml:"telephony"`
	Dialer      DialerConfig      `yaml:"dialer"`
	EventFabric EventFabricConfig `yaml:"event_fabric"`
	Log         logging.Config    `yaml:"log"`
}

type ServerConfig struct {
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port"`
	PublicBaseURL string   `yaml:"public_base_url"`
	CORSOrigins   []string `yaml:"cors_origins"`
}

func (s ServerConfig) Address() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	SecretKey                string           `yaml:"secret_key"`
	Algorithm                string           `yaml:"algorithm"`
	AccessTokenExpireMinutes int              `yaml:"access_token_expire_minutes"`
	RefreshTokenExpireDays   int              `yaml:"refresh_token_expire_days"`
	Principals               []PrincipalConfig `yaml:"principals"`
}

// PrincipalConfig seeds one login-capable principal. Token issuance
// internals (beyond identifying a principal and its role) are out of
// scope (spec §1), so the API façade resolves credentials against this
// static list rather than a users table — the persisted schema (spec
// §6) has none.
type PrincipalConfig struct {
	ID           string `yaml:"id"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"` // "operator" | "supervisor"
}

// AMIConfig configures the optional AMI/PBX Telephony Port adapter.
type AMIConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	Username          string `yaml:"username"`
	Secret            string `yaml:"secret"`
	ReconnectInterval int    `yaml:"reconnect_interval"`
}

func (a AMIConfig) Address() string { return fmt.Sprintf("%s:%d", a.Host, a.Port) }

// TelephonyConfig covers both a cloud-provider REST backend and the
// AMI/PBX backend; UseMock selects the deterministic mock instead of
// either at runtime.
type TelephonyConfig struct {
	AccountSID        string `yaml:"account_sid"`
	AuthToken         string `yaml:"auth_token"`
	PhoneNumber       string `yaml:"phone_number"`
	AppSID            string `yaml:"app_sid"`
	APIKeySID         string `yaml:"api_key_sid"`
	APIKeySecret      string `yaml:"api_key_secret"`
	UseMock           bool   `yaml:"use_mock"`
	ValidateSignature bool   `yaml:"validate_signature"`
	AMDTimeoutSeconds int    `yaml:"amd_timeout_seconds"`

	AMI AMIConfig `yaml:"ami"`
}

type DialerConfig struct {
	DefaultDialRatio float64 `yaml:"default_dial_ratio"`
	MinDialRatio     float64 `yaml:"min_dial_ratio"`
	MaxDialRatio     float64 `yaml:"max_dial_ratio"`
	MaxAbandonRate   float64 `yaml:"max_abandon_rate"`
	TickInterval     string  `yaml:"tick_interval"`
	MaxIdleSeconds   int     `yaml:"max_idle_seconds"`
}

type EventFabricConfig struct {
	IdleTimeoutSeconds  int `yaml:"idle_timeout_seconds"`
	PingIntervalSeconds int `yaml:"ping_interval_seconds"`
}

// Defaults returns the configuration defaults named in spec.md §6.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Auth: AuthConfig{
			Algorithm:                "HS256",
			AccessTokenExpireMinutes: 30,
			RefreshTokenExpireDays:   7,
		},
		Telephony: TelephonyConfig{
			AMDTimeoutSeconds: 30,
		},
		Dialer: DialerConfig{
			DefaultDialRatio: 3.0,
			MinDialRatio:     1.0,
			MaxDialRatio:     5.0,
			MaxAbandonRate:   0.03,
			TickInterval:     "1s",
			MaxIdleSeconds:   300,
		},
		EventFabric: EventFabricConfig{
			IdleTimeoutSeconds:  60,
			PingIntervalSeconds: 30,
		},
		Log: logging.Config{Level: "info", Format: "text"},
	}
}

// Load reads YAML from path, applying Defaults first and environment
// overrides last. An empty path yields defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	overrideWithEnv(&cfg)
	return &cfg, nil
}

// overrideWithEnv lets deployment environments override secrets and
// connection strings without editing the YAML file on disk.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("database_url"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("redis_url"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("secret_key"); v != "" {
		cfg.Auth.SecretKey = v
	}
	if v := os.Getenv("algorithm"); v != "" {
		cfg.Auth.Algorithm = v
	}
	if v := os.Getenv("public_base_url"); v != "" {
		cfg.Server.PublicBaseURL = v
	}
	if v := os.Getenv("default_dial_ratio"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Dialer.DefaultDialRatio = f
		}
	}
	if v := os.Getenv("max_abandon_rate"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Dialer.MaxAbandonRate = f
		}
	}
	if v := os.Getenv("amd_timeout_seconds"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Telephony.AMDTimeoutSeconds = n
		}
	}
	if v := os.Getenv("telephony_use_mock"); v != "" {
		cfg.Telephony.UseMock = v == "true" || v == "1"
	}
	if v := os.Getenv("telephony_validate_signature"); v != "" {
		cfg.Telephony.ValidateSignature = v == "true" || v == "1"
	}
	if v := os.Getenv("telephony_account_sid"); v != "" {
		cfg.Telephony.AccountSID = v
	}
	if v := os.Getenv("telephony_auth_token"); v != "" {
		cfg.Telephony.AuthToken = v
	}
	if v := os.Getenv("telephony_phone_number"); v != "" {
		cfg.Telephony.PhoneNumber = v
	}
}

// RepositoryKind reports which repository.Port backend should be built
// for this configuration, so callers don't special-case empty database
// URLs in more than one place.
func (c Config) RepositoryKind() string {
	if c.Database.URL == "" {
		return "memory"
	}
	return "mysql"
}
