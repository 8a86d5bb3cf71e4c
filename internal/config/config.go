package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

type Config struct {
	Server   ServerConfig
	Data     DataConfig
	Pipeline PipelineConfig
	Export   ExportConfig
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

type DataConfig struct {
	Dir       string
	Synthetic bool
	CacheDir  string
}

// PipelineConfig holds every knob of the analytics pipeline. Seed is threaded
// explicitly through splits and model construction.
type PipelineConfig struct {
	Seed               uint64
	TestFraction       float64
	RollingWindow      int
	SmoothingAlpha     float64
	ForecastHorizon    int
	TopProducts        int
	TopRoutes          int
	ForestTrees        int
	ForestDepth        int
	Workers            int
	ClampNegativeDelay bool
	// GridRouteHistory feeds fitted per-route mean delays to the evaluation
	// grid instead of the constant fallback.
	GridRouteHistory bool
	// Classifier picks the failure model: "forest" (seeded, in-house) or
	// "vote" (github.com/malaschitz/randomForest, not reproducible).
	Classifier string
}

type ExportConfig struct {
	InfluxURL    string
	InfluxOrg    string
	InfluxBucket string
	InfluxToken  string
	KafkaBrokers []string
	KafkaTopic   string
}

func (e ExportConfig) InfluxEnabled() bool { return e.InfluxURL != "" }

func (e ExportConfig) KafkaEnabled() bool { return len(e.KafkaBrokers) > 0 && e.KafkaTopic != "" }

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

// Load reads configuration from the environment, falling back to defaults
// for unset or unparseable values.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            envString("SERVER_HOST", "localhost"),
			Port:            env("SERVER_PORT", 8084, strconv.Atoi),
			ReadTimeout:     env("SERVER_READ_TIMEOUT", 10*time.Second, time.ParseDuration),
			WriteTimeout:    env("SERVER_WRITE_TIMEOUT", 30*time.Second, time.ParseDuration),
			IdleTimeout:     env("SERVER_IDLE_TIMEOUT", time.Minute, time.ParseDuration),
			ShutdownTimeout: env("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second, time.ParseDuration),
		},
		Data: DataConfig{
			Dir:       envString("DATA_DIR", "data/raw"),
			Synthetic: env("DATA_SYNTHETIC", true, strconv.ParseBool),
			CacheDir:  envString("DATA_CACHE_DIR", ".cache"),
		},
		Pipeline: DefaultPipeline(),
		Export: ExportConfig{
			InfluxURL:    envString("EXPORT_INFLUX_URL", ""),
			InfluxOrg:    envString("EXPORT_INFLUX_ORG", "novacorp"),
			InfluxBucket: envString("EXPORT_INFLUX_BUCKET", "udip"),
			InfluxToken:  envString("EXPORT_INFLUX_TOKEN", ""),
			KafkaBrokers: envList("EXPORT_KAFKA_BROKERS", nil),
			KafkaTopic:   envString("EXPORT_KAFKA_TOPIC", "udip-alerts"),
		},
		Logger: LoggerConfig{
			Level:  strings.ToLower(envString("LOG_LEVEL", "info")),
			Format: strings.ToLower(envString("LOG_FORMAT", "json")),
		},
		Security: SecurityConfig{
			EnableRateLimit: env("SECURITY_RATE_LIMIT_ENABLED", true, strconv.ParseBool),
			RateLimitRPS:    env("SECURITY_RATE_LIMIT_RPS", 100, strconv.Atoi),
			RateLimitBurst:  env("SECURITY_RATE_LIMIT_BURST", 10, strconv.Atoi),
			AllowedOrigins:  envList("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8084"}),
			TrustedProxies:  envList("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1", "::1"}),
		},
	}

	p := &cfg.Pipeline
	p.Seed = env("PIPELINE_SEED", p.Seed, parseUint)
	p.TestFraction = env("PIPELINE_TEST_FRACTION", p.TestFraction, parseFloat)
	p.RollingWindow = env("PIPELINE_ROLLING_WINDOW", p.RollingWindow, strconv.Atoi)
	p.SmoothingAlpha = env("PIPELINE_SMOOTHING_ALPHA", p.SmoothingAlpha, parseFloat)
	p.TopProducts = env("PIPELINE_TOP_PRODUCTS", p.TopProducts, strconv.Atoi)
	p.TopRoutes = env("PIPELINE_TOP_ROUTES", p.TopRoutes, strconv.Atoi)
	p.ForestTrees = env("PIPELINE_FOREST_TREES", p.ForestTrees, strconv.Atoi)
	p.ForestDepth = env("PIPELINE_FOREST_DEPTH", p.ForestDepth, strconv.Atoi)
	p.Workers = env("PIPELINE_WORKERS", p.Workers, strconv.Atoi)
	p.ClampNegativeDelay = env("PIPELINE_CLAMP_NEGATIVE_DELAY", p.ClampNegativeDelay, strconv.ParseBool)
	p.GridRouteHistory = env("PIPELINE_GRID_ROUTE_HISTORY", p.GridRouteHistory, strconv.ParseBool)
	p.Classifier = strings.ToLower(envString("PIPELINE_CLASSIFIER", p.Classifier))

	if v := os.Getenv("PIPELINE_FORECAST_HORIZON"); v != "" {
		days, err := parseDays(v)
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: PIPELINE_FORECAST_HORIZON: %w", err)
		}
		p.ForecastHorizon = days
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		Seed:               42,
		TestFraction:       0.2,
		RollingWindow:      24,
		SmoothingAlpha:     0.3,
		ForecastHorizon:    30,
		TopProducts:        10,
		TopRoutes:          15,
		ForestTrees:        100,
		ForestDepth:        10,
		Workers:            4,
		ClampNegativeDelay: true,
		Classifier:         ClassifierForest,
	}
}

const (
	ClassifierForest = "forest"
	ClassifierVote   = "vote"
)

var (
	logLevels   = []string{"debug", "info", "warn", "error"}
	logFormats  = []string{"json", "text"}
	classifiers = []string{ClassifierForest, ClassifierVote}
)

// validate reports every problem at once.
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port >= 1 && c.Server.Port <= 65535, "server port must be between 1 and 65535, got %d", c.Server.Port)
	check(c.Server.ReadTimeout > 0, "server read timeout must be positive")
	check(c.Server.WriteTimeout > 0, "server write timeout must be positive")
	check(c.Data.Dir != "" || c.Data.Synthetic, "data directory cannot be empty unless synthetic data is enabled")
	check(slices.Contains(logLevels, c.Logger.Level), "invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(logLevels, ", "))
	check(slices.Contains(logFormats, c.Logger.Format), "invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(logFormats, ", "))
	check(c.Security.RateLimitRPS > 0, "rate limit RPS must be positive")
	check(c.Security.RateLimitBurst > 0, "rate limit burst must be positive")

	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p PipelineConfig) Validate() error {
	if p.TestFraction <= 0 || p.TestFraction >= 1 {
		return fmt.Errorf("pipeline test fraction must be in (0, 1), got %v", p.TestFraction)
	}
	if p.RollingWindow < 1 {
		return fmt.Errorf("pipeline rolling window must be at least 1, got %d", p.RollingWindow)
	}
	if p.SmoothingAlpha <= 0 || p.SmoothingAlpha > 1 {
		return fmt.Errorf("pipeline smoothing alpha must be in (0, 1], got %v", p.SmoothingAlpha)
	}
	if p.ForecastHorizon < 1 {
		return fmt.Errorf("pipeline forecast horizon must be at least one day")
	}
	if p.TopProducts < 1 || p.TopRoutes < 1 {
		return fmt.Errorf("pipeline top-N limits must be positive")
	}
	if p.ForestTrees < 1 || p.ForestDepth < 1 {
		return fmt.Errorf("pipeline forest needs at least one tree of depth one")
	}
	if p.Workers < 1 {
		return fmt.Errorf("pipeline workers must be positive")
	}
	if !slices.Contains(classifiers, p.Classifier) {
		return fmt.Errorf("pipeline classifier %q must be one of: %s", p.Classifier, strings.Join(classifiers, ", "))
	}
	return nil
}

// Fingerprint identifies the parameters that influence pipeline output.
func (p PipelineConfig) Fingerprint() string {
	return fmt.Sprintf("s%d-t%g-w%d-a%g-h%d-p%d-r%d-f%dx%d-c%t-g%t-%s",
		p.Seed, p.TestFraction, p.RollingWindow, p.SmoothingAlpha, p.ForecastHorizon,
		p.TopProducts, p.TopRoutes, p.ForestTrees, p.ForestDepth, p.ClampNegativeDelay,
		p.GridRouteHistory, p.Classifier)
}

// env parses the variable key, keeping def when it is unset or malformed.
func env[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func envString(key, def string) string {
	return env(key, def, func(s string) (string, error) { return s, nil })
}

// envList splits a comma separated variable, dropping empty entries.
func envList(key string, def []string) []string {
	return env(key, def, func(s string) ([]string, error) {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	})
}

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

func parseUint(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }

// parseDays accepts a plain day count ("30") or an ISO 8601 duration ("P30D", "P4W").
func parseDays(s string) (int, error) {
	if days, err := strconv.Atoi(s); err == nil {
		return days, nil
	}
	d, err := duration.Parse(s)
	if err != nil {
		return 0, err
	}
	return int(d.ToTimeDuration() / (24 * time.Hour)), nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
