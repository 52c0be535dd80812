package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	AES         AESConfig         `mapstructure:"aes"`
	Log         LogConfig         `mapstructure:"log"`
	Fingerprint FingerprintConfig `mapstructure:"fingerprint"`
	Dedup       DedupConfig       `mapstructure:"dedup"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Withdrawal  WithdrawalConfig  `mapstructure:"withdrawal"`
	Video       VideoConfig       `mapstructure:"video"`
	Rewards     RewardsConfig     `mapstructure:"rewards"`
	Realtime    RealtimeConfig    `mapstructure:"realtime"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"` // false falls back to in-process claims and cache
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig configures validation of bearer tokens issued by the auth service.
type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key sealing bank details
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type FingerprintConfig struct {
	Algorithm     string        `mapstructure:"algorithm"` // phash, ahash
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes"`
	MaxPixels     int64         `mapstructure:"max_pixels"`
	// AllowedHosts restricts screenshot URLs to these hosts and their
	// subdomains. Empty admits any public host.
	AllowedHosts []string `mapstructure:"allowed_hosts"`
	// AllowPrivateNetworks lets fetches reach loopback, private and
	// link-local addresses. Local development only.
	AllowPrivateNetworks bool `mapstructure:"allow_private_networks"`
}

type DedupConfig struct {
	Threshold int           `mapstructure:"threshold"` // max Hamming distance still counted as duplicate
	Lookback  int           `mapstructure:"lookback"`  // most recent N fingerprints compared
	Window    time.Duration `mapstructure:"window"`    // recency bound on compared submissions
	ClaimTTL  time.Duration `mapstructure:"claim_ttl"` // in-flight guard lifetime
}

type RateLimitConfig struct {
	MaxPerWindow int           `mapstructure:"max_per_window"`
	Window       time.Duration `mapstructure:"window"`
}

type WithdrawalConfig struct {
	Minimum string `mapstructure:"minimum"` // decimal string, e.g. "500.00"
}

type VideoConfig struct {
	CompletionRatio float64 `mapstructure:"completion_ratio"`
}

// PlatformConfig is one row of the reward policy table.
type PlatformConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Amount      string `mapstructure:"amount"`     // fixed reward per submission
	MaxAmount   string `mapstructure:"max_amount"` // cap for variable rewards (video)
	AutoApprove bool   `mapstructure:"auto_approve"`
	Dedup       bool   `mapstructure:"dedup"`
}

type RewardsConfig struct {
	Platforms map[string]PlatformConfig `mapstructure:"platforms"`
}

type RealtimeConfig struct {
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	MaxConnsPerUser int           `mapstructure:"max_conns_per_user"`
}

func defaultPlatforms() map[string]interface{} {
	screenshot := func(amount string, autoApprove bool) map[string]interface{} {
		return map[string]interface{}{
			"enabled":      true,
			"amount":       amount,
			"auto_approve": autoApprove,
			"dedup":        true,
		}
	}
	return map[string]interface{}{
		"facebook":  screenshot("30.00", true),
		"youtube":   screenshot("2.00", true),
		"google":    screenshot("5.00", false),
		"tiktok":    screenshot("2.00", true),
		"instagram": screenshot("2.00", true),
		"video": map[string]interface{}{
			"enabled":      true,
			"max_amount":   "50.00",
			"auto_approve": true,
			"dedup":        false,
		},
	}
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: ER_ (Engagement Rewards).
// Nested keys use underscore: ER_DATABASE_HOST, ER_RATE_LIMIT_WINDOW, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "engagement_rewards")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "engagement-rewards")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("fingerprint.algorithm", "phash")
	v.SetDefault("fingerprint.fetch_timeout", "10s")
	v.SetDefault("fingerprint.max_image_bytes", 5<<20)
	v.SetDefault("fingerprint.max_pixels", 40_000_000)
	v.SetDefault("fingerprint.allowed_hosts", []string{})
	v.SetDefault("fingerprint.allow_private_networks", false)
	v.SetDefault("dedup.threshold", 5)
	v.SetDefault("dedup.lookback", 20)
	v.SetDefault("dedup.window", "720h")
	v.SetDefault("dedup.claim_ttl", "30s")
	v.SetDefault("rate_limit.max_per_window", 20)
	v.SetDefault("rate_limit.window", "24h")
	v.SetDefault("withdrawal.minimum", "500.00")
	v.SetDefault("video.completion_ratio", 0.95)
	v.SetDefault("rewards.platforms", defaultPlatforms())
	v.SetDefault("realtime.write_timeout", "5s")
	v.SetDefault("realtime.ping_interval", "30s")
	v.SetDefault("realtime.max_conns_per_user", 5)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: ER_DATABASE_HOST -> database.host
	v.SetEnvPrefix("ER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the ledger cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver must be postgres or memory, got %q", c.Storage.Driver)
	}
	switch c.Fingerprint.Algorithm {
	case "phash", "ahash":
	default:
		return fmt.Errorf("fingerprint.algorithm must be phash or ahash, got %q", c.Fingerprint.Algorithm)
	}
	if c.Fingerprint.MaxPixels <= 0 {
		return fmt.Errorf("fingerprint.max_pixels must be positive")
	}
	if c.Dedup.Threshold < 0 {
		return fmt.Errorf("dedup.threshold must not be negative")
	}
	if c.RateLimit.MaxPerWindow <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.max_per_window and rate_limit.window must be positive")
	}
	if c.Video.CompletionRatio <= 0 || c.Video.CompletionRatio > 1 {
		return fmt.Errorf("video.completion_ratio must be in (0, 1]")
	}
	return nil
}
