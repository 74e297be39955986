// Package config loads proximity CLI configuration from file and environment
// and initialises the global zap logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/colthorp/proximity-cli/internal/core"
)

// Config holds the full application configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Nearby   NearbyConfig   `yaml:"nearby" mapstructure:"nearby"`
	Distance DistanceConfig `yaml:"distance" mapstructure:"distance"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ProviderConfig configures the mapping provider HTTP client.
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Language    string        `yaml:"language" mapstructure:"language"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RateLimit   float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// CacheConfig selects and configures the snapshot backend.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocodeConfig configures the geocode resolver.
type GeocodeConfig struct {
	CityCenter  string `yaml:"city_center" mapstructure:"city_center"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// NearbyConfig configures the nearby-place paginator.
type NearbyConfig struct {
	RadiusMeters    int           `yaml:"radius_meters" mapstructure:"radius_meters"`
	MaxPages        int           `yaml:"max_pages" mapstructure:"max_pages"`
	PageTokenDelay  time.Duration `yaml:"page_token_delay" mapstructure:"page_token_delay"`
	CheckpointPages bool          `yaml:"checkpoint_pages" mapstructure:"checkpoint_pages"`
}

// DistanceConfig configures the distance resolver.
type DistanceConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL:     core.APIBaseURL,
			Timeout:     30 * time.Second,
			RateLimit:   10,
			MaxAttempts: 3,
		},
		Cache: CacheConfig{
			Driver: core.CacheDriverFile,
			Dir:    core.CacheRoot(),
		},
		Geocode: GeocodeConfig{
			CityCenter:  core.DefaultCityCenter,
			Concurrency: 4,
		},
		Nearby: NearbyConfig{
			RadiusMeters:   core.DefaultRadiusMeters,
			MaxPages:       core.DefaultMaxPages,
			PageTokenDelay: core.DefaultPageTokenDelay,
		},
		Distance: DistanceConfig{Mode: core.DefaultTravelMode},
		Log:      LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads configuration from file and environment.
// An empty path searches for config.yaml in the working directory and ~/.proximity.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(core.ConfigDir())
	}

	v.SetEnvPrefix(core.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The key has historically been read from GOOGLE_MAPS_API_KEY.
	if err := v.BindEnv("provider.api_key", core.EnvPrefix+"_PROVIDER_API_KEY", core.APIKeyEnvVar); err != nil {
		return nil, eris.Wrap(err, "config: bind api key env")
	}

	d := Default()
	v.SetDefault("provider.base_url", d.Provider.BaseURL)
	v.SetDefault("provider.timeout", d.Provider.Timeout)
	v.SetDefault("provider.rate_limit", d.Provider.RateLimit)
	v.SetDefault("provider.max_attempts", d.Provider.MaxAttempts)
	v.SetDefault("cache.driver", d.Cache.Driver)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("geocode.city_center", d.Geocode.CityCenter)
	v.SetDefault("geocode.concurrency", d.Geocode.Concurrency)
	v.SetDefault("nearby.radius_meters", d.Nearby.RadiusMeters)
	v.SetDefault("nearby.max_pages", d.Nearby.MaxPages)
	v.SetDefault("nearby.page_token_delay", d.Nearby.PageTokenDelay)
	v.SetDefault("nearby.checkpoint_pages", d.Nearby.CheckpointPages)
	v.SetDefault("distance.mode", d.Distance.Mode)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	// Read config file (optional unless an explicit path was given)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late inside a resolver.
func (c *Config) Validate() error {
	if c.Nearby.RadiusMeters <= 0 {
		return eris.Errorf("config: nearby.radius_meters must be positive, got %d", c.Nearby.RadiusMeters)
	}
	if c.Nearby.MaxPages <= 0 {
		return eris.Errorf("config: nearby.max_pages must be positive, got %d", c.Nearby.MaxPages)
	}
	if c.Nearby.PageTokenDelay < 0 {
		return eris.New("config: nearby.page_token_delay must not be negative")
	}
	switch c.Cache.Driver {
	case core.CacheDriverFile, core.CacheDriverSQLite, core.CacheDriverPostgres, core.CacheDriverMemory:
	default:
		return eris.Errorf("config: unknown cache.driver %q", c.Cache.Driver)
	}
	if c.Cache.Driver == core.CacheDriverPostgres && c.Cache.DatabaseURL == "" {
		return eris.New("config: cache.database_url is required for the postgres driver")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
