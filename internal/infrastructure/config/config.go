package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Security SecurityConfig `mapstructure:"security"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment string `mapstructure:"environment"`
	// Debug forces the debug log level.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GeminiConfig holds Gemini capsule configuration
type GeminiConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
	// Hostname is the only domain the capsule answers for. Certificates
	// are not generated automatically.
	Hostname string `mapstructure:"hostname"`
	// CertsDir holds cert.pem and key.pem.
	CertsDir string `mapstructure:"certs_dir"`
}

// AssetsConfig holds static asset configuration
type AssetsConfig struct {
	// Dir serves the site tree from disk instead of the embedded copy.
	Dir string `mapstructure:"dir"`
	// NotFoundFromDisk re-reads 404.html from Dir on every miss.
	NotFoundFromDisk bool `mapstructure:"not_found_from_disk"`
	Compress         bool `mapstructure:"compress"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"host":             "server.host",
	"port":             "server.port",
	"gemini":           "gemini.enabled",
	"gemini-port":      "gemini.port",
	"gemini-hostname":  "gemini.hostname",
	"gemini-certs-dir": "gemini.certs_dir",
	"assets-dir":       "assets.dir",
	"log-level":        "logger.level",
	"log-format":       "logger.format",
}

// Load loads configuration from defaults, an optional site.yaml, the
// environment and .env
func Load() (*Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags is Load with command line flags taking precedence over
// the environment
func LoadWithFlags(flags *pflag.FlagSet) (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindEnvVars(v)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	v.SetConfigName("site")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvironment(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvironment fills in the logger settings the environment implies.
// Development logs to the console, everything else as JSON, unless a
// format was chosen explicitly.
func applyEnvironment(cfg *Config) {
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
		if cfg.App.IsDevelopment() {
			cfg.Logger.Format = "console"
		}
	}
	if cfg.App.Debug {
		cfg.Logger.Level = "debug"
	}
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.environment", "production")
	v.SetDefault("app.debug", false)

	// Server defaults
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Gemini defaults
	v.SetDefault("gemini.enabled", true)
	v.SetDefault("gemini.port", 1965)
	v.SetDefault("gemini.hostname", "average.name")
	v.SetDefault("gemini.certs_dir", ".certs")

	// Assets defaults
	v.SetDefault("assets.dir", "")
	v.SetDefault("assets.not_found_from_disk", false)
	v.SetDefault("assets.compress", true)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.filename", "")

	// Security defaults
	v.SetDefault("security.rate_limit_requests", 0)
	v.SetDefault("security.rate_limit_window", "1m")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.environment", "APP_ENVIRONMENT")
	v.BindEnv("app.debug", "APP_DEBUG")

	// Server
	v.BindEnv("server.port", "HTTP_PORT")
	v.BindEnv("server.host", "HTTP_HOSTNAME")
	v.BindEnv("server.read_timeout", "HTTP_READ_TIMEOUT")
	v.BindEnv("server.write_timeout", "HTTP_WRITE_TIMEOUT")
	v.BindEnv("server.idle_timeout", "HTTP_IDLE_TIMEOUT")
	v.BindEnv("server.shutdown_timeout", "HTTP_SHUTDOWN_TIMEOUT")

	// Gemini
	v.BindEnv("gemini.enabled", "GEMINI_ENABLED")
	v.BindEnv("gemini.port", "GEMINI_PORT")
	v.BindEnv("gemini.hostname", "GEMINI_HOSTNAME")
	v.BindEnv("gemini.certs_dir", "GEMINI_CERTS_DIR")

	// Assets
	v.BindEnv("assets.dir", "ASSETS_DIR")
	v.BindEnv("assets.not_found_from_disk", "ASSETS_NOT_FOUND_FROM_DISK")
	v.BindEnv("assets.compress", "ASSETS_COMPRESS")

	// Logger
	v.BindEnv("logger.level", "LOG_LEVEL")
	v.BindEnv("logger.format", "LOG_FORMAT")
	v.BindEnv("logger.output", "LOG_OUTPUT")
	v.BindEnv("logger.filename", "LOG_FILE")

	// Security
	v.BindEnv("security.rate_limit_requests", "RATE_LIMIT_REQUESTS")
	v.BindEnv("security.rate_limit_window", "RATE_LIMIT_WINDOW")

	// Metrics
	v.BindEnv("metrics.enabled", "ENABLE_METRICS")
	v.BindEnv("metrics.path", "METRICS_PATH")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if cfg.Gemini.Enabled {
		if cfg.Gemini.Port <= 0 || cfg.Gemini.Port > 65535 {
			return fmt.Errorf("gemini port must be between 1 and 65535")
		}
		if cfg.Gemini.Hostname == "" {
			return fmt.Errorf("gemini hostname is required")
		}
		if cfg.Gemini.CertsDir == "" {
			return fmt.Errorf("gemini certs directory is required")
		}
	}

	if cfg.Assets.NotFoundFromDisk && cfg.Assets.Dir == "" {
		return fmt.Errorf("assets.not_found_from_disk requires assets.dir")
	}

	if cfg.Security.RateLimitRequests < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}

	return nil
}

// GetHTTPAddr returns the HTTP listen address
func (cfg *ServerConfig) GetHTTPAddr() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// GetGeminiAddr returns the Gemini listen address on every interface
func (cfg *GeminiConfig) GetGeminiAddr() string {
	return net.JoinHostPort("::", strconv.Itoa(cfg.Port))
}

// IsDevelopment returns true if the environment is development
func (cfg *AppConfig) IsDevelopment() bool {
	return cfg.Environment == "development"
}
