// Package config resolves client settings from defaults, an optional YAML file, CARDTRADER_*
// environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/and161185/cardtrader/internal/apiclient"
	"github.com/and161185/cardtrader/internal/model"
)

// Storage backends for the persisted session.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

const envPrefix = "CARDTRADER_"

// Config is the resolved client configuration.
type Config struct {
	APIURL    string        `yaml:"api_url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 disables
	Burst     int           `yaml:"burst"`

	Storage    string `yaml:"storage"`
	StateDir   string `yaml:"state_dir"`
	Passphrase string `yaml:"passphrase"`
	DSN        string `yaml:"dsn"`

	PageSize int    `yaml:"page_size"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIURL:   "http://localhost:8080",
		Timeout:  10 * time.Second,
		Burst:    1,
		Storage:  StorageFile,
		PageSize: model.DefaultRPP,
		LogLevel: "info",
	}
}

// Load starts from Default, overlays the YAML file at path when path is non-empty and then
// the environment. lookup is os.LookupEnv outside tests.
func Load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		if v, ok := lookup(envPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("API_URL", &c.APIURL)
	str("STORAGE", &c.Storage)
	str("STATE_DIR", &c.StateDir)
	str("PASSPHRASE", &c.Passphrase)
	str("DSN", &c.DSN)
	str("LOG_LEVEL", &c.LogLevel)
	num("BURST", &c.Burst)
	num("PAGE_SIZE", &c.PageSize)

	if v, ok := lookup(envPrefix + "TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", envPrefix, err))
		} else {
			c.Timeout = d
		}
	}
	if v, ok := lookup(envPrefix + "RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRATE_LIMIT: %w", envPrefix, err))
		} else {
			c.RateLimit = f
		}
	}
	return errors.Join(errs...)
}

// RegisterFlags binds the overridable settings to fs. Only flags the user actually sets are
// applied by ApplyFlags.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.apiURL, "api", "", "API base URL")
	fs.StringVar(&f.storage, "storage", "", "session storage: memory|file|postgres")
	fs.StringVar(&f.stateDir, "state-dir", "", "directory for the session file")
	fs.StringVar(&f.dsn, "dsn", "", "PostgreSQL DSN for postgres storage")
	fs.DurationVar(&f.timeout, "timeout", 0, "per-request timeout")
	return f
}

// Flags holds the values bound by RegisterFlags.
type Flags struct {
	fs       *flag.FlagSet
	apiURL   string
	storage  string
	stateDir string
	dsn      string
	timeout  time.Duration
}

// ApplyFlags overlays every flag that was set on the command line.
func (f *Flags) ApplyFlags(c *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "api":
			c.APIURL = f.apiURL
		case "storage":
			c.Storage = f.storage
		case "state-dir":
			c.StateDir = f.stateDir
		case "dsn":
			c.DSN = f.dsn
		case "timeout":
			c.Timeout = f.timeout
		}
	})
}

// Validate checks the resolved configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return errors.New("config: api url is required")
	}
	if c.Timeout < 0 || c.Timeout > apiclient.MaxTimeout {
		return fmt.Errorf("config: timeout must be within 0..%s", apiclient.MaxTimeout)
	}
	if c.RateLimit < 0 || c.Burst < 0 {
		return errors.New("config: rate limit and burst must not be negative")
	}
	if c.PageSize < 1 || c.PageSize > model.MaxRPP {
		return fmt.Errorf("config: page size must be within 1..%d", model.MaxRPP)
	}
	switch c.Storage {
	case StorageMemory, StorageFile:
	case StoragePostgres:
		if c.DSN == "" {
			return errors.New("config: postgres storage needs a dsn")
		}
	default:
		return fmt.Errorf("config: unknown storage %q", c.Storage)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (zapcore.Level, error) {
	l, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return l, fmt.Errorf("config: %w", err)
	}
	return l, nil
}

// Client returns the request pipeline settings.
func (c Config) Client() apiclient.Config {
	return apiclient.Config{BaseURL: c.APIURL, Timeout: c.Timeout, RateLimit: c.RateLimit, Burst: c.Burst}
}
