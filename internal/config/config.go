package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Version is reported by /health and the CLI.
const Version = "1.0.0"

type Config struct {
	Server   ServerConfig
	Mining   MiningConfig
	Upload   UploadConfig
	Logger   LoggerConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// MiningConfig holds the thresholds of the analysis pipeline.
type MiningConfig struct {
	MinSupport   float64
	Metric       string
	MinThreshold float64
	MaxLen       int
	Workers      int
	// AnalysisTimeout bounds one pipeline run; 0 disables the limit.
	AnalysisTimeout time.Duration
}

type UploadConfig struct {
	MaxBytes   int64
	SheetName  string
	SheetIndex int
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

// Metrics accepted by Mining.Metric.
var validMetrics = []string{
	"support", "confidence", "lift", "leverage", "conviction",
	"zhangs_metric", "jaccard", "certainty", "kulczynski",
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"server.host":               "SERVER_HOST",
	"server.port":               "SERVER_PORT",
	"server.read_timeout":       "SERVER_READ_TIMEOUT",
	"server.write_timeout":      "SERVER_WRITE_TIMEOUT",
	"server.idle_timeout":       "SERVER_IDLE_TIMEOUT",
	"server.shutdown_timeout":   "SERVER_SHUTDOWN_TIMEOUT",
	"mining.min_support":        "MINING_MIN_SUPPORT",
	"mining.metric":             "MINING_METRIC",
	"mining.min_threshold":      "MINING_MIN_THRESHOLD",
	"mining.max_len":            "MINING_MAX_LEN",
	"mining.workers":            "MINING_WORKERS",
	"mining.analysis_timeout":   "MINING_ANALYSIS_TIMEOUT",
	"upload.max_bytes":          "UPLOAD_MAX_BYTES",
	"upload.sheet_name":         "UPLOAD_SHEET_NAME",
	"upload.sheet_index":        "UPLOAD_SHEET_INDEX",
	"logger.level":              "LOG_LEVEL",
	"logger.format":             "LOG_FORMAT",
	"security.rate_limit":       "SECURITY_RATE_LIMIT_ENABLED",
	"security.rate_limit_rps":   "SECURITY_RATE_LIMIT_RPS",
	"security.rate_limit_burst": "SECURITY_RATE_LIMIT_BURST",
	"security.allowed_origins":  "SECURITY_ALLOWED_ORIGINS",
	"security.trusted_proxies":  "SECURITY_TRUSTED_PROXIES",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8084)
	v.SetDefault("server.read_timeout", 30*time.Second)
	// Analysis runs inside the request, so writes get more room than reads.
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("mining.min_support", 0.02)
	v.SetDefault("mining.metric", "lift")
	v.SetDefault("mining.min_threshold", 1.0)
	v.SetDefault("mining.max_len", 0)
	v.SetDefault("mining.workers", 0)
	v.SetDefault("mining.analysis_timeout", 90*time.Second)

	v.SetDefault("upload.max_bytes", int64(32<<20))
	v.SetDefault("upload.sheet_name", "")
	v.SetDefault("upload.sheet_index", 1)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("security.rate_limit", true)
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 10)
	v.SetDefault("security.allowed_origins", []string{"http://localhost:8084"})
	v.SetDefault("security.trusted_proxies", []string{"127.0.0.1"})
}

// Load reads configuration from defaults, an optional YAML file at path and
// the environment. Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := decode(v)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// stringSlice accepts both YAML lists and comma-separated environment values.
func stringSlice(v *viper.Viper, key string) []string {
	var out []string
	for _, s := range v.GetStringSlice(key) {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Default returns the configuration Load produces with no file and a clean
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Mining: MiningConfig{
			MinSupport:      v.GetFloat64("mining.min_support"),
			Metric:          strings.ToLower(v.GetString("mining.metric")),
			MinThreshold:    v.GetFloat64("mining.min_threshold"),
			MaxLen:          v.GetInt("mining.max_len"),
			Workers:         v.GetInt("mining.workers"),
			AnalysisTimeout: v.GetDuration("mining.analysis_timeout"),
		},
		Upload: UploadConfig{
			MaxBytes:   v.GetInt64("upload.max_bytes"),
			SheetName:  v.GetString("upload.sheet_name"),
			SheetIndex: v.GetInt("upload.sheet_index"),
		},
		Logger: LoggerConfig{
			Level:  strings.ToLower(v.GetString("logger.level")),
			Format: strings.ToLower(v.GetString("logger.format")),
		},
		Security: SecurityConfig{
			EnableRateLimit: v.GetBool("security.rate_limit"),
			RateLimitRPS:    v.GetInt("security.rate_limit_rps"),
			RateLimitBurst:  v.GetInt("security.rate_limit_burst"),
			AllowedOrigins:  stringSlice(v, "security.allowed_origins"),
			TrustedProxies:  stringSlice(v, "security.trusted_proxies"),
		},
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return errors.New("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return errors.New("server write timeout must be positive")
	}

	if err := c.Mining.Validate(); err != nil {
		return err
	}

	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload max bytes must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return errors.New("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return errors.New("rate limit burst must be positive")
	}

	return nil
}

// Validate checks the mining thresholds; the CLI calls it after applying flags.
func (m MiningConfig) Validate() error {
	if m.MinSupport <= 0 || m.MinSupport > 1 {
		return fmt.Errorf("mining min support must be in (0, 1], got %v", m.MinSupport)
	}
	if !slices.Contains(validMetrics, m.Metric) {
		return fmt.Errorf("invalid mining metric %q, must be one of: %s", m.Metric, strings.Join(validMetrics, ", "))
	}
	if m.MaxLen < 0 {
		return errors.New("mining max len cannot be negative")
	}
	if m.Workers < 0 {
		return errors.New("mining workers cannot be negative")
	}
	if m.AnalysisTimeout < 0 {
		return errors.New("mining analysis timeout cannot be negative")
	}
	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
