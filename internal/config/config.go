// Package config loads tasks settings from defaults, TOML files, the
// environment and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Makepad-fr/tasks/internal/logging"
)

const (
	DefaultAPIURL   = "http://localhost:3002"
	DefaultTimeout  = 10 * time.Second
	DefaultLogLevel = "info"
	DefaultTheme    = "classic"
	DefaultListen   = ":3002"
	DefaultDataFile = "tasks.json"

	projectFileName = "tasks.toml"
)

// Themes lists the accepted theme names.
var Themes = []string{"classic", "neon", "mono"}

type Config struct {
	APIURL   string        `toml:"api_url"`
	Timeout  time.Duration `toml:"timeout"`
	LogLevel string        `toml:"log_level"`
	Theme    string        `toml:"theme"`
	Server   ServerConfig  `toml:"server"`

	// Files lists the config files that were read, lowest priority first.
	Files []string `toml:"-"`
}

// ServerConfig configures `tasks serve`.
type ServerConfig struct {
	Listen   string `toml:"listen"`
	DataFile string `toml:"data_file"`
	Token    string `toml:"token"`
}

func setDefaults(cfg *Config) {
	cfg.APIURL = DefaultAPIURL
	cfg.Timeout = DefaultTimeout
	cfg.LogLevel = DefaultLogLevel
	cfg.Theme = DefaultTheme
	cfg.Server.Listen = DefaultListen
	cfg.Server.DataFile = DefaultDataFile
}

// flagValues holds what the flag set parsed before it is layered on top.
type flagValues struct {
	configFile string
	apiURL     string
	timeout    time.Duration
	logLevel   string
	theme      string
}

func registerFlags(fs *flag.FlagSet) *flagValues {
	v := &flagValues{}
	fs.StringVar(&v.configFile, "config", "", "read settings from this TOML file only")
	fs.StringVar(&v.apiURL, "api", "", "base URL of the task API (default "+DefaultAPIURL+")")
	fs.DurationVar(&v.timeout, "timeout", 0, "per-request timeout")
	fs.StringVar(&v.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&v.theme, "theme", "", "classic, neon or mono")
	return v
}

// Load parses args with fs and returns the layered config plus the
// remaining positional arguments:
// 1. Defaults
// 2. User config file (<user config dir>/tasks/config.toml)
// 3. Project config file (./tasks.toml)
// 4. Environment variables (TASKS_*)
// 5. CLI flags
// An explicit -config file replaces steps 2 and 3.
func Load(fs *flag.FlagSet, args []string) (*Config, []string, error) {
	fv := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg := &Config{}
	setDefaults(cfg)

	files := []string{fv.configFile}
	if fv.configFile == "" {
		files = []string{findUserConfigFile(), findProjectConfigFile()}
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := loadConfigFile(cfg, f); err != nil {
			return nil, nil, fmt.Errorf("loading config file %s: %w", f, err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api":
			cfg.APIURL = fv.apiURL
		case "timeout":
			cfg.Timeout = fv.timeout
		case "log-level":
			cfg.LogLevel = fv.logLevel
		case "theme":
			cfg.Theme = fv.theme
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, fs.Args(), nil
}

func loadConfigFile(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	cfg.Files = append(cfg.Files, path)
	return nil
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("TASKS_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("TASKS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TASKS_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("TASKS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TASKS_THEME"); v != "" {
		cfg.Theme = v
	}
	if v := os.Getenv("TASKS_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("TASKS_DATA_FILE"); v != "" {
		cfg.Server.DataFile = v
	}
	return nil
}

// Validate rejects values the rest of the program cannot use.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIURL) == "" {
		errs = append(errs, errors.New("api_url is empty"))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %s is negative", c.Timeout))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if !validTheme(c.Theme) {
		errs = append(errs, fmt.Errorf("theme %q: want one of %s", c.Theme, strings.Join(Themes, ", ")))
	}
	return errors.Join(errs...)
}

func validTheme(name string) bool {
	for _, t := range Themes {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

func findUserConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return existing(filepath.Join(dir, "tasks", "config.toml"))
}

func findProjectConfigFile() string {
	return existing(projectFileName)
}

func existing(path string) string {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return ""
}
