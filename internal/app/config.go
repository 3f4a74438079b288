package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/hllvc/domaindoctor/internal/fingerprint"
	"github.com/hllvc/domaindoctor/internal/observability"
	"github.com/hllvc/domaindoctor/internal/pipeline"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
	LogFormatOTLP LogFormat = "otlp"
)

// FingerprintStorageType represents the storage backends supported for
// persisted token fingerprints.
type FingerprintStorageType string

const (
	FingerprintStorageMemory  FingerprintStorageType = "memory"
	FingerprintStorageFile    FingerprintStorageType = "file"
	FingerprintStorageKeyring FingerprintStorageType = "keyring"
	FingerprintStorageRedis   FingerprintStorageType = "redis"
)

// BackendAuthMethod represents how the channel to the diagnostics backend is
// authenticated. Independent of the anti-forgery token, which is always sent
// on mutating requests.
type BackendAuthMethod string

const (
	BackendAuthNone   BackendAuthMethod = "none"
	BackendAuthBearer BackendAuthMethod = "bearer"
	BackendAuthOAuth  BackendAuthMethod = "oauth2"
)

// Default configuration values
const (
	DefaultConfigServerHost         = "127.0.0.1"
	DefaultConfigServerPort         = 4100
	DefaultConfigShutdownTimeout    = 5 * time.Second
	DefaultConfigBackendTokenPath   = "/api/security/token"
	DefaultConfigBackendCheckPath   = "/api/checks"
	DefaultConfigFingerprintStorage = FingerprintStorageMemory
	DefaultConfigRefreshInterval    = time.Minute
	DefaultConfigRedisAddr          = "127.0.0.1:6379"
)

// ServerConfig holds local server configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// BackendAuthConfig describes channel authentication towards the backend.
type BackendAuthConfig struct {
	Method BackendAuthMethod `json:"method" validate:"required,oneof=none bearer oauth2"`

	// Method-specific settings (mutually exclusive based on Method)
	TokenEnv     string   `json:"token_env,omitempty"`     // For bearer: environment variable holding the token
	TokenURL     string   `json:"token_url,omitempty"`     // For oauth2: client-credentials token endpoint
	ClientID     string   `json:"client_id,omitempty"`     // For oauth2
	ClientSecret string   `json:"client_secret,omitempty"` // For oauth2
	Scopes       []string `json:"scopes,omitempty"`        // For oauth2
}

// BackendConfig holds diagnostics backend configuration.
type BackendConfig struct {
	BaseURL     string            `json:"base_url" validate:"required,url"`
	TokenPath   string            `json:"token_path"`
	CheckPath   string            `json:"check_path"`
	TokenHeader string            `json:"token_header"`
	Auth        BackendAuthConfig `json:"auth"`
}

// FingerprintConfig describes where persisted token fingerprints live.
// Only the one-way hash and expiry are ever stored, never the token.
type FingerprintConfig struct {
	Storage FingerprintStorageType `json:"storage" validate:"required,oneof=memory file keyring redis"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File           string `json:"file,omitempty"`            // For file storage: path to record file
	KeyringService string `json:"keyring_service,omitempty"` // For keyring storage: service identifier
	RedisAddr      string `json:"redis_addr,omitempty"`      // For redis storage
	RedisDB        int    `json:"redis_db,omitempty"`        // For redis storage
}

// NewStore creates a fingerprint.Store from the configuration.
func (f *FingerprintConfig) NewStore() (fingerprint.Store, error) {
	switch f.Storage {
	case FingerprintStorageMemory:
		return fingerprint.NewMemoryStore(), nil
	case FingerprintStorageFile:
		return fingerprint.NewFileStore(f.File)
	case FingerprintStorageKeyring:
		return fingerprint.NewKeyringStore(f.KeyringService)
	case FingerprintStorageRedis:
		client := redis.NewClient(&redis.Options{Addr: f.RedisAddr, DB: f.RedisDB})
		return fingerprint.NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", f.Storage)
	}
}

// RefreshConfig controls the proactive background token refresh.
type RefreshConfig struct {
	// Interval between background checks of the token's remaining lifetime.
	Interval time.Duration `json:"interval"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel    slog.Level        `json:"log_level"`
	LogFormat   LogFormat         `json:"log_format" validate:"oneof=text json otlp"`
	Server      ServerConfig      `json:"server"`
	Shutdown    ShutdownConfig    `json:"shutdown"`
	Backend     BackendConfig     `json:"backend"`
	Fingerprint FingerprintConfig `json:"fingerprint"`
	Refresh     RefreshConfig     `json:"refresh"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormat(observability.DefaultFormat())
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Backend.TokenPath == "" {
		c.Backend.TokenPath = DefaultConfigBackendTokenPath
	}
	if c.Backend.CheckPath == "" {
		c.Backend.CheckPath = DefaultConfigBackendCheckPath
	}
	if c.Backend.TokenHeader == "" {
		c.Backend.TokenHeader = pipeline.DefaultTokenHeader
	}
	if c.Backend.Auth.Method == "" {
		c.Backend.Auth.Method = BackendAuthNone
	}
	if c.Fingerprint.Storage == "" {
		c.Fingerprint.Storage = DefaultConfigFingerprintStorage
	}
	if c.Refresh.Interval == 0 {
		c.Refresh.Interval = DefaultConfigRefreshInterval
	}

	// Dynamic defaults based on storage type
	switch c.Fingerprint.Storage {
	case FingerprintStorageFile:
		if c.Fingerprint.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("fingerprint.file required (auto-detect failed: %w)", err)
			}
			c.Fingerprint.File = filepath.Join(configDir, "domaindoctor", "fingerprints.json")
		}
	case FingerprintStorageKeyring:
		if c.Fingerprint.KeyringService == "" {
			c.Fingerprint.KeyringService = "domaindoctor-fingerprint"
		}
	case FingerprintStorageRedis:
		if c.Fingerprint.RedisAddr == "" {
			c.Fingerprint.RedisAddr = DefaultConfigRedisAddr
		}
	case FingerprintStorageMemory:
		// nothing to configure
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Backend.Auth.Method {
	case BackendAuthBearer:
		if c.Backend.Auth.TokenEnv == "" {
			return errors.New("token_env required for bearer authentication")
		}
	case BackendAuthOAuth:
		if c.Backend.Auth.TokenURL == "" || c.Backend.Auth.ClientID == "" || c.Backend.Auth.ClientSecret == "" {
			return errors.New("token_url, client_id and client_secret required for oauth2 authentication")
		}
	case BackendAuthNone:
	}

	switch c.Fingerprint.Storage {
	case FingerprintStorageFile:
		if c.Fingerprint.File == "" {
			return errors.New("file path required for file storage")
		}
	case FingerprintStorageKeyring:
		if c.Fingerprint.KeyringService == "" {
			return errors.New("keyring_service required for keyring storage")
		}
	case FingerprintStorageRedis:
		if c.Fingerprint.RedisAddr == "" {
			return errors.New("redis_addr required for redis storage")
		}
	case FingerprintStorageMemory:
	}

	return nil
}
