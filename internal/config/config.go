package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the runtime configuration of the popcorn server.
type Config struct {
	HTTPPort string `yaml:"http_port"`
	GRPCPort string `yaml:"grpc_port"`

	Store struct {
		Driver        string `yaml:"driver"`
		DatabaseURL   string `yaml:"database_url"`
		RunMigrations bool   `yaml:"run_migrations"`
	} `yaml:"store"`

	Auth struct {
		JWTSecret     string        `yaml:"jwt_secret"`
		TokenDuration time.Duration `yaml:"token_duration"`
		AdminEmail    string        `yaml:"admin_email"`
		AdminUsername string        `yaml:"admin_username"`
		AdminPassword string        `yaml:"admin_password"`
		BcryptCost    int           `yaml:"bcrypt_cost"`
	} `yaml:"auth"`

	LogLevel string `yaml:"log_level"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	GRPCCallTimeout time.Duration `yaml:"grpc_call_timeout"`
}

// Default returns the configuration used when neither a file nor the environment says otherwise.
func Default() Config {
	var c Config
	c.HTTPPort = "8081"
	c.GRPCPort = "9092"
	c.Store.Driver = DriverMemory
	c.Store.RunMigrations = true
	c.Auth.TokenDuration = 24 * time.Hour
	c.Auth.AdminUsername = "admin"
	c.Auth.BcryptCost = 10
	c.LogLevel = "info"
	c.ReadTimeout = 5 * time.Second
	c.WriteTimeout = 10 * time.Second
	c.IdleTimeout = 120 * time.Second
	c.ShutdownTimeout = 10 * time.Second
	c.GRPCCallTimeout = 3 * time.Second
	return c
}

// Load reads the YAML file named by POPCORN_CONFIG, if any, over the defaults and then applies
// POPCORN_* environment variables. The result is validated for running the server.
func Load() (Config, error) {
	cfg, err := read()
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadClient reads the configuration like Load but only checks what a gRPC client command needs.
func LoadClient() (Config, error) {
	cfg, err := read()
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.ValidateClient()
}

func read() (Config, error) {
	cfg := Default()
	if path := os.Getenv("POPCORN_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv(NewLoader("POPCORN"))
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(l Loader) {
	c.HTTPPort = l.String("HTTP_PORT", c.HTTPPort)
	c.GRPCPort = l.String("GRPC_PORT", c.GRPCPort)
	c.Store.Driver = l.String("STORE_DRIVER", c.Store.Driver)
	c.Store.DatabaseURL = l.String("DATABASE_URL", c.Store.DatabaseURL)
	c.Store.RunMigrations = l.Bool("RUN_MIGRATIONS", c.Store.RunMigrations)
	c.Auth.JWTSecret = l.String("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.TokenDuration = l.Duration("TOKEN_DURATION", c.Auth.TokenDuration)
	c.Auth.AdminEmail = l.String("ADMIN_EMAIL", c.Auth.AdminEmail)
	c.Auth.AdminUsername = l.String("ADMIN_USERNAME", c.Auth.AdminUsername)
	c.Auth.AdminPassword = l.String("ADMIN_PASSWORD", c.Auth.AdminPassword)
	c.Auth.BcryptCost = l.Int("BCRYPT_COST", c.Auth.BcryptCost)
	c.LogLevel = l.String("LOG_LEVEL", c.LogLevel)
	c.ReadTimeout = l.Duration("READ_TIMEOUT", c.ReadTimeout)
	c.WriteTimeout = l.Duration("WRITE_TIMEOUT", c.WriteTimeout)
	c.IdleTimeout = l.Duration("IDLE_TIMEOUT", c.IdleTimeout)
	c.ShutdownTimeout = l.Duration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.GRPCCallTimeout = l.Duration("GRPC_CALL_TIMEOUT", c.GRPCCallTimeout)
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Auth.TokenDuration <= 0 {
		errs = append(errs, errors.New("auth.token_duration must be positive"))
	}
	if (c.Auth.AdminEmail == "") != (c.Auth.AdminPassword == "") {
		errs = append(errs, errors.New("auth.admin_email and auth.admin_password must be set together"))
	}
	if c.Auth.BcryptCost < minBcryptCost || c.Auth.BcryptCost > maxBcryptCost {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost must be between %d and %d", minBcryptCost, maxBcryptCost))
	}
	if c.HTTPPort == "" {
		errs = append(errs, errors.New("http_port is required"))
	}
	if err := c.ValidateClient(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// bcrypt's own limits; pkg/auth enforces them again when building the hasher.
const (
	minBcryptCost = 4
	maxBcryptCost = 31
)

// ValidateClient reports settings a command talking to a running server over gRPC cannot work with.
func (c Config) ValidateClient() error {
	var errs []error
	if c.GRPCPort == "" {
		errs = append(errs, errors.New("grpc_port is required"))
	}
	if c.GRPCCallTimeout <= 0 {
		errs = append(errs, errors.New("grpc_call_timeout must be positive"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps debug, info, warn or error to a slog level.
func ParseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
	return level, nil
}

// MaskedDatabaseURL returns the database URL with its password replaced, for logging.
func (c Config) MaskedDatabaseURL() string {
	u, err := url.Parse(c.Store.DatabaseURL)
	if err != nil || u.User == nil {
		return c.Store.DatabaseURL
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// Loader reads environment variables sharing a prefix such as POPCORN_.
type Loader struct {
	Prefix string
}

// NewLoader appends the underscore to prefix when it is missing.
func NewLoader(prefix string) Loader {
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return Loader{Prefix: prefix}
}

func (l Loader) String(key, def string) string {
	if val := os.Getenv(l.Prefix + key); val != "" {
		return val
	}
	return def
}

func (l Loader) Bool(key string, def bool) bool {
	if val := os.Getenv(l.Prefix + key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}

func (l Loader) Int(key string, def int) int {
	if val := os.Getenv(l.Prefix + key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// Duration accepts Go durations ("90s", "24h") or a plain number of seconds.
func (l Loader) Duration(key string, def time.Duration) time.Duration {
	val := os.Getenv(l.Prefix + key)
	if val == "" {
		return def
	}
	if parsed, err := time.ParseDuration(val); err == nil {
		return parsed
	}
	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}
