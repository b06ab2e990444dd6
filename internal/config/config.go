package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/newthinker/quantlens/internal/core"
	"github.com/newthinker/quantlens/internal/table"
	"github.com/spf13/viper"
)

// Result source types.
const (
	SourceHTTP    = "http"
	SourceArchive = "archive"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	API      APIConfig      `mapstructure:"api"`
	Source   SourceConfig   `mapstructure:"source"`
	Table    TableConfig    `mapstructure:"table"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Mode        string        `mapstructure:"mode"`
	APIKey      string        `mapstructure:"api_key"`
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
	MaxSessions int           `mapstructure:"max_sessions"`
	// WaitTimeout bounds how long a form submission waits for its result
	// before the page is rendered in the pending state.
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
}

// APIConfig points at the backtest service.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SourceConfig selects where the read-only dashboard gets its results.
type SourceConfig struct {
	Type    string        `mapstructure:"type"` // "http" or "archive"
	Archive ArchiveConfig `mapstructure:"archive"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
	// Prefix is the key prefix of the result files within the archive.
	Prefix string `mapstructure:"prefix"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// TableConfig holds trade table settings.
type TableConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// BacktestConfig holds the values pre-filled in the backtest form.
type BacktestConfig struct {
	TopK           int     `mapstructure:"top_k"`
	InitialCapital float64 `mapstructure:"initial_capital"`
	SellThreshold  float64 `mapstructure:"sell_threshold"`
	StartPeriod    string  `mapstructure:"start_period"`
	EndPeriod      string  `mapstructure:"end_period"`
	RandomSeed     int     `mapstructure:"random_seed"`
	ModelStrategy  string  `mapstructure:"model_strategy"`
}

// Parameters converts the defaults into backtest parameters.
func (b BacktestConfig) Parameters() backtest.Parameters {
	return backtest.Parameters{
		TopK:           b.TopK,
		InitialCapital: b.InitialCapital,
		SellThreshold:  b.SellThreshold,
		StartPeriod:    b.StartPeriod,
		EndPeriod:      b.EndPeriod,
		RandomSeed:     b.RandomSeed,
		ModelStrategy:  b.ModelStrategy,
	}
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file. Keys absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix("QUANTLENS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Mode:        "release",
			SessionTTL:  time.Hour,
			MaxSessions: 100,
			WaitTimeout: 2 * time.Second,
		},
		API: APIConfig{
			BaseURL: "http://127.0.0.1:8000",
			Timeout: 30 * time.Second,
		},
		Source: SourceConfig{
			Type: SourceHTTP,
			Archive: ArchiveConfig{
				Type: "localfs",
			},
		},
		Table: TableConfig{
			PageSize: 10,
		},
		Backtest: BacktestConfig{
			TopK:           42,
			InitialCapital: 100000,
			SellThreshold:  0.3,
			StartPeriod:    "2021_Q1",
			EndPeriod:      "2024_Q4",
			RandomSeed:     42,
			ModelStrategy:  "Random Forest",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxSessions < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_sessions must be positive, got %d", c.Server.MaxSessions))
	}
	if c.Server.SessionTTL <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("session_ttl must be positive, got %s", c.Server.SessionTTL))
	}
	if c.Server.WaitTimeout < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("wait_timeout cannot be negative, got %s", c.Server.WaitTimeout))
	}

	// The backtest form always talks to the service, so base_url is required
	// even when the dashboard reads from an archive.
	if c.API.BaseURL == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("api.base_url required"))
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout))
	}

	// Source validation
	switch c.Source.Type {
	case SourceHTTP:
	case SourceArchive:
		switch c.Source.Archive.Type {
		case "localfs":
			if c.Source.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("source.archive.path required when archive type is localfs"))
			}
		case "s3":
			if c.Source.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("source.archive.s3.bucket required when archive type is s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown archive type %q", c.Source.Archive.Type))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("source.type must be %q or %q, got %q", SourceHTTP, SourceArchive, c.Source.Type))
	}

	if !slices.Contains(table.PageSizes, c.Table.PageSize) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("table.page_size must be 10, 25 or 50, got %d", c.Table.PageSize))
	}

	if err := c.Backtest.Parameters().Validate(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("backtest defaults: %w", err))
	}

	return nil
}
