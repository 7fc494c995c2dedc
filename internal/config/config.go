package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address                string `mapstructure:"address"`
	Port                   int    `mapstructure:"port"`
	Mode                   string `mapstructure:"mode"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

type DatabaseConfig struct {
	Path          string `mapstructure:"path"`
	LogMode       bool   `mapstructure:"log_mode"`
	MaxOpenConns  int    `mapstructure:"max_open_conns"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// SecurityConfig covers password hashing and login throttling.
type SecurityConfig struct {
	BcryptCost             int `mapstructure:"bcrypt_cost"`
	LoginFailThreshold     int `mapstructure:"login_fail_threshold"`
	LoginFailWindowMinutes int `mapstructure:"login_fail_window_minutes"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	File        string `mapstructure:"file"`
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type AppSubConfig struct {
	PageSize        int    `mapstructure:"page_size"`
	Domain          string `mapstructure:"domain"`
	DefaultCurrency string `mapstructure:"default_currency"`
	BalanceRetries  int    `mapstructure:"balance_retries"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Security SecurityConfig `mapstructure:"security"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	App      AppSubConfig   `mapstructure:"app"`
}

var (
	appConfig *Config
	mu        sync.RWMutex
)

// Load loads configuration from given file path (e.g. "config.yaml").
// If path is empty, it looks for config.yaml in the current working directory;
// a missing file is not an error when path is empty, defaults and environment apply.
func Load(path string) (*Config, error) {
	// .env is optional, real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	// environment overrides, e.g. LEDGER_SERVER_PORT=9000
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	mu.Lock()
	appConfig = &c
	mu.Unlock()
	return &c, nil
}

// Get returns the loaded global configuration.
// Call Load() once at application startup.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 48080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("database.path", "data/ledger.db")
	v.SetDefault("database.log_mode", false)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.busy_timeout_ms", 5000)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "mamoji")
	v.SetDefault("jwt.expire_hours", 24)

	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.login_fail_threshold", 5)
	v.SetDefault("security.login_fail_window_minutes", 15)

	v.SetDefault("redis.address", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("app.page_size", 20)
	v.SetDefault("app.domain", "http://localhost:43000")
	v.SetDefault("app.default_currency", "CNY")
	v.SetDefault("app.balance_retries", 3)
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt.secret is required")
	}
	if c.Security.LoginFailThreshold <= 0 {
		return fmt.Errorf("config: security.login_fail_threshold must be positive, got %d", c.Security.LoginFailThreshold)
	}
	if c.App.BalanceRetries <= 0 {
		c.App.BalanceRetries = 1
	}
	return nil
}
