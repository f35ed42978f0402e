// Package config resolves fuelscope settings from defaults, an optional YAML
// file, a .env file and FUELSCOPE_* environment variables, in increasing
// order of precedence. CLI flags bound to the same viper keys win over all.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/spektr-org/fuelscope/dataset"
	"github.com/spektr-org/fuelscope/fetch"
	"github.com/spektr-org/fuelscope/filterstate"
	"github.com/spektr-org/fuelscope/schema"
)

// EnvPrefix prefixes every environment variable, e.g. FUELSCOPE_DATA_PATH.
const EnvPrefix = "FUELSCOPE"

// Config is the resolved configuration.
type Config struct {
	Addr      string          `mapstructure:"addr"`
	Data      DataConfig      `mapstructure:"data"`
	Kaggle    KaggleConfig    `mapstructure:"kaggle"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

// DataConfig locates the CSV. An empty Path means "download from Kaggle".
type DataConfig struct {
	Path      string `mapstructure:"path"`
	Delimiter string `mapstructure:"delimiter"`
	Latin1    bool   `mapstructure:"latin1"`
}

// KaggleConfig identifies the dataset and the API credentials.
type KaggleConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Owner    string `mapstructure:"owner"`
	Dataset  string `mapstructure:"dataset"`
	File     string `mapstructure:"file"`
	Username string `mapstructure:"username"`
	Key      string `mapstructure:"key"`
}

type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// DefaultsConfig holds the landing selections of the sidebar.
type DefaultsConfig struct {
	Year         []string `mapstructure:"year"`
	Product      []string `mapstructure:"product"`
	Region       []string `mapstructure:"region"`
	State        []string `mapstructure:"state"`
	Municipality []string `mapstructure:"municipality"`
}

type DashboardConfig struct {
	RecordLimit int           `mapstructure:"record_limit"`
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// SetDefaults registers the built-in values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("data.path", "")
	v.SetDefault("data.delimiter", ",")
	v.SetDefault("data.latin1", false)
	v.SetDefault("kaggle.base_url", fetch.DefaultBaseURL)
	v.SetDefault("kaggle.owner", "paulobosco")
	v.SetDefault("kaggle.dataset", "dataset-combustiveis-2020-a-2025")
	v.SetDefault("kaggle.file", "consolidada_tratada.csv")
	v.SetDefault("kaggle.username", "")
	v.SetDefault("kaggle.key", "")
	v.SetDefault("cache.dir", defaultCacheDir())

	d := filterstate.FuelDefaults()
	v.SetDefault("defaults.year", d.Selected[schema.Year])
	v.SetDefault("defaults.product", d.Selected[schema.Product])
	v.SetDefault("defaults.region", d.Selected[schema.Region])
	v.SetDefault("defaults.state", d.Selected[schema.State])
	v.SetDefault("defaults.municipality", d.Selected[schema.Municipality])

	v.SetDefault("dashboard.record_limit", 500)
	v.SetDefault("dashboard.session_ttl", "12h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "fuelscope")
	}
	return ".fuelscope-cache"
}

// Load resolves the configuration. file may be empty, in which case
// fuelscope.yaml is looked up in the working directory and is optional.
func Load(v *viper.Viper, file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrap(err, "load .env")
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The Kaggle CLI's own variables work too.
	_ = v.BindEnv("kaggle.username", EnvPrefix+"_KAGGLE_USERNAME", "KAGGLE_USERNAME")
	_ = v.BindEnv("kaggle.key", EnvPrefix+"_KAGGLE_KEY", "KAGGLE_KEY")

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	} else {
		v.SetConfigName("fuelscope")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return &cfg, nil
}

// ============================================================================
// DERIVED SETTINGS
// ============================================================================

// DelimiterRune returns the CSV field separator; "tab" and `\t` mean a tab.
func (d DataConfig) DelimiterRune() rune {
	switch d.Delimiter {
	case "", ",":
		return ','
	case "tab", `\t`:
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(d.Delimiter)
	return r
}

// LoadOptions are the dataset options matching this configuration.
func (d DataConfig) LoadOptions() []dataset.Option {
	return []dataset.Option{
		dataset.WithDelimiter(d.DelimiterRune()),
		dataset.WithLatin1(d.Latin1),
	}
}

// Fetch is the download configuration for the Kaggle dataset.
func (c *Config) Fetch(progress io.Writer) fetch.Config {
	return fetch.Config{
		BaseURL:  c.Kaggle.BaseURL,
		Owner:    c.Kaggle.Owner,
		Dataset:  c.Kaggle.Dataset,
		File:     c.Kaggle.File,
		Username: c.Kaggle.Username,
		Key:      c.Kaggle.Key,
		CacheDir: c.Cache.Dir,
		Progress: progress,
	}
}

// CascadeDefaults converts the configured landing selections.
func (c *Config) CascadeDefaults() filterstate.Defaults {
	return filterstate.Defaults{
		Selected: map[string][]string{
			schema.Year:         c.Defaults.Year,
			schema.Product:      c.Defaults.Product,
			schema.Region:       c.Defaults.Region,
			schema.State:        c.Defaults.State,
			schema.Municipality: c.Defaults.Municipality,
		},
	}
}

// Logger builds the process logger writing to w: a human-readable console
// writer by default, one JSON object per line with format "json".
func (l LogConfig) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(l.Level))
	if err != nil || l.Level == "" {
		level = zerolog.InfoLevel
	}
	if l.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
