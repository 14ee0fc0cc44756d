package config

import (
	"fmt"
	"os"
	"time"

	"abrflow/internal/core/domain"
	"abrflow/internal/core/services"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	// Ladder is the default quality ladder, ascending by bitrate. Hosts may
	// override it per session at creation time.
	Ladder []struct {
		Bitrate int    `yaml:"bitrate"`
		Width   int    `yaml:"width"`
		Height  int    `yaml:"height"`
		Codec   string `yaml:"codec"`
	} `yaml:"ladder"`

	ABR struct {
		BandwidthWindow     time.Duration `yaml:"bandwidth_window"`
		SafetyFactor        float64       `yaml:"safety_factor"`
		PanicThreshold      time.Duration `yaml:"panic_threshold"`
		SeekThreshold       time.Duration `yaml:"seek_threshold"`
		MinBandwidthSamples int           `yaml:"min_bandwidth_samples"`
		TargetBufferLevel   time.Duration `yaml:"target_buffer_level"`
		MaxBufferLevel      time.Duration `yaml:"max_buffer_level"`
		MinBufferLevel      time.Duration `yaml:"min_buffer_level"`
	} `yaml:"abr"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		MaxConcurrent     int     `yaml:"max_concurrent"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Ladder
	if len(c.Ladder) == 0 {
		return fmt.Errorf("ladder must contain at least one quality level")
	}
	for i, q := range c.Ladder {
		if q.Bitrate <= 0 {
			return fmt.Errorf("ladder[%d].bitrate must be > 0", i)
		}
		if q.Width <= 0 || q.Height <= 0 {
			return fmt.Errorf("ladder[%d] width and height must be > 0", i)
		}
		if i > 0 && q.Bitrate < c.Ladder[i-1].Bitrate {
			return fmt.Errorf("ladder must be ordered by ascending bitrate (ladder[%d])", i)
		}
	}

	// ABR
	if c.ABR.BandwidthWindow <= 0 {
		return fmt.Errorf("abr.bandwidth_window must be > 0")
	}
	if c.ABR.SafetyFactor <= 0 || c.ABR.SafetyFactor > 1 {
		return fmt.Errorf("abr.safety_factor must be in (0, 1]")
	}
	if c.ABR.MinBandwidthSamples < 1 {
		return fmt.Errorf("abr.min_bandwidth_samples must be >= 1")
	}
	// The buffer factor is only monotonic when the thresholds are ordered
	// min <= panic < target < seek <= max.
	if c.ABR.MinBufferLevel < 0 {
		return fmt.Errorf("abr.min_buffer_level must be >= 0")
	}
	if c.ABR.PanicThreshold < c.ABR.MinBufferLevel {
		return fmt.Errorf("abr.panic_threshold must be >= abr.min_buffer_level")
	}
	if c.ABR.TargetBufferLevel <= c.ABR.PanicThreshold {
		return fmt.Errorf("abr.target_buffer_level must be > abr.panic_threshold")
	}
	if c.ABR.SeekThreshold <= c.ABR.TargetBufferLevel {
		return fmt.Errorf("abr.seek_threshold must be > abr.target_buffer_level")
	}
	if c.ABR.MaxBufferLevel < c.ABR.SeekThreshold {
		return fmt.Errorf("abr.max_buffer_level must be >= abr.seek_threshold")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Tracing
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be in [0, 1]")
	}
	if c.Tracing.Enabled && c.Tracing.JaegerURL == "" {
		return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults, including the demo
// quality ladder.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Ladder = []struct {
		Bitrate int    `yaml:"bitrate"`
		Width   int    `yaml:"width"`
		Height  int    `yaml:"height"`
		Codec   string `yaml:"codec"`
	}{
		{Bitrate: 500_000, Width: 640, Height: 360, Codec: "h264"},
		{Bitrate: 1_000_000, Width: 1280, Height: 720, Codec: "h264"},
		{Bitrate: 2_500_000, Width: 1920, Height: 1080, Codec: "h264"},
		{Bitrate: 5_000_000, Width: 3840, Height: 2160, Codec: "h264"},
	}

	cfg.ABR.BandwidthWindow = 10 * time.Second
	cfg.ABR.SafetyFactor = 0.8
	cfg.ABR.PanicThreshold = 3 * time.Second
	cfg.ABR.SeekThreshold = 45 * time.Second
	cfg.ABR.MinBandwidthSamples = 3
	cfg.ABR.TargetBufferLevel = 30 * time.Second
	cfg.ABR.MaxBufferLevel = 60 * time.Second
	cfg.ABR.MinBufferLevel = 5 * time.Second

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "abrflow"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 50
	cfg.RateLimiting.Burst = 100
	cfg.RateLimiting.MaxConcurrent = 0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("ABRFLOW_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("ABRFLOW_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if url := os.Getenv("ABRFLOW_JAEGER_URL"); url != "" {
		c.Tracing.JaegerURL = url
	}
}

// QualityLadder converts the configured ladder into domain levels.
func (c *Config) QualityLadder() []domain.QualityLevel {
	ladder := make([]domain.QualityLevel, len(c.Ladder))
	for i, q := range c.Ladder {
		ladder[i] = domain.QualityLevel{
			Bitrate: q.Bitrate,
			Width:   q.Width,
			Height:  q.Height,
			Codec:   q.Codec,
		}
	}
	return ladder
}

// StreamerParams converts the ABR section into engine tunables.
func (c *Config) StreamerParams() services.StreamerParams {
	return services.StreamerParams{
		BandwidthWindow:     c.ABR.BandwidthWindow,
		SafetyFactor:        c.ABR.SafetyFactor,
		PanicThreshold:      c.ABR.PanicThreshold,
		SeekThreshold:       c.ABR.SeekThreshold,
		MinBandwidthSamples: c.ABR.MinBandwidthSamples,
		TargetBufferLevel:   c.ABR.TargetBufferLevel,
		MaxBufferLevel:      c.ABR.MaxBufferLevel,
		MinBufferLevel:      c.ABR.MinBufferLevel,
	}
}
