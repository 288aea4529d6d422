// Package config provides configuration management for proxylint.
// Config file location: ~/.proxylint/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/OpenMined/proxylint/internal/bundle"
)

// Default configuration values.
const (
	DefaultProxiesDir    = "proxies"
	DefaultOutputDir     = "output"
	DefaultTempDir       = "temp_proxies"
	DefaultJobs          = 1
	DefaultLogLevel      = "info"
	DefaultWatchDebounce = 2
)

// Environment variables that override the config file.
const (
	EnvProxiesDir = "PROXYLINT_PROXIES_DIR"
	EnvOutputDir  = "PROXYLINT_OUTPUT_DIR"
	EnvTempDir    = "PROXYLINT_TEMP_DIR"
	EnvJobs       = "PROXYLINT_JOBS"
	EnvLogLevel   = "PROXYLINT_LOG_LEVEL"
)

var (
	// ConfigDir is the directory containing config files.
	ConfigDir = filepath.Join(os.Getenv("HOME"), ".proxylint")
	// ConfigFile is the path to the main config file.
	ConfigFile = filepath.Join(ConfigDir, "config.yaml")
	// HistoryFile is the default run history location.
	HistoryFile = filepath.Join(ConfigDir, "history.jsonl")
)

// Config is the proxylint configuration.
type Config struct {
	// Locations
	ProxiesDir  string `yaml:"proxies_dir" json:"proxies_dir"`
	OutputDir   string `yaml:"output_dir" json:"output_dir"`
	TempDir     string `yaml:"temp_dir" json:"temp_dir"`
	HistoryFile string `yaml:"history_file" json:"history_file"`

	// Execution
	Jobs          int    `yaml:"jobs" json:"jobs"`
	LogLevel      string `yaml:"log_level" json:"log_level"`
	WatchDebounce int    `yaml:"watch_debounce" json:"watch_debounce"`

	// Bundle analysis
	ResourceTypes []string `yaml:"resource_types" json:"resource_types"`
	ResourceKinds []string `yaml:"resource_kinds" json:"resource_kinds"`
	ScriptKind    string   `yaml:"script_kind" json:"script_kind"`
}

// configMutex protects concurrent access to config file.
var configMutex sync.Mutex

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	opts := bundle.DefaultOptions()
	return &Config{
		ProxiesDir:    DefaultProxiesDir,
		OutputDir:     DefaultOutputDir,
		TempDir:       DefaultTempDir,
		HistoryFile:   HistoryFile,
		Jobs:          DefaultJobs,
		LogLevel:      DefaultLogLevel,
		WatchDebounce: DefaultWatchDebounce,
		ResourceTypes: opts.ResourceTypes,
		ResourceKinds: opts.ResourceKinds,
		ScriptKind:    opts.ScriptKind,
	}
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir, 0755)
}

// Load loads configuration from file.
// Returns default config if file doesn't exist or is corrupted.
func Load() *Config {
	return LoadFrom(ConfigFile)
}

// LoadFrom loads configuration from a specific path.
func LoadFrom(path string) *Config {
	configMutex.Lock()
	defer configMutex.Unlock()

	config := NewConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return NewConfig()
	}

	config.fillDefaults()
	return config
}

// fillDefaults restores defaults for keys a file set to zero values.
func (c *Config) fillDefaults() {
	d := NewConfig()
	if c.ProxiesDir == "" {
		c.ProxiesDir = d.ProxiesDir
	}
	if c.OutputDir == "" {
		c.OutputDir = d.OutputDir
	}
	if c.TempDir == "" {
		c.TempDir = d.TempDir
	}
	if c.HistoryFile == "" {
		c.HistoryFile = d.HistoryFile
	}
	if c.Jobs < 1 {
		c.Jobs = d.Jobs
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.WatchDebounce < 1 {
		c.WatchDebounce = d.WatchDebounce
	}
	if len(c.ResourceTypes) == 0 {
		c.ResourceTypes = d.ResourceTypes
	}
	if len(c.ResourceKinds) == 0 {
		c.ResourceKinds = d.ResourceKinds
	}
	if c.ScriptKind == "" {
		c.ScriptKind = d.ScriptKind
	}
}

// Save saves configuration to file.
func (c *Config) Save() error {
	return c.SaveTo(ConfigFile)
}

// SaveTo saves configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// LoadEnvFile loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnv overrides config values from PROXYLINT_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvProxiesDir); v != "" {
		c.ProxiesDir = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv(EnvTempDir); v != "" {
		c.TempDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvJobs); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid %s %q: must be a positive integer", EnvJobs, v)
		}
		c.Jobs = n
	}
	return nil
}

// BundleOptions returns the bundle analysis options from the config.
func (c *Config) BundleOptions() bundle.Options {
	return bundle.Options{
		ScriptKind:    c.ScriptKind,
		ResourceKinds: c.ResourceKinds,
		ResourceTypes: c.ResourceTypes,
	}
}

// Keys returns the settable config keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a config value by key, formatted for display.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "proxies_dir":
		return c.ProxiesDir, nil
	case "output_dir":
		return c.OutputDir, nil
	case "temp_dir":
		return c.TempDir, nil
	case "history_file":
		return c.HistoryFile, nil
	case "jobs":
		return strconv.Itoa(c.Jobs), nil
	case "log_level":
		return c.LogLevel, nil
	case "watch_debounce":
		return strconv.Itoa(c.WatchDebounce), nil
	case "resource_types":
		return strings.Join(c.ResourceTypes, ","), nil
	case "resource_kinds":
		return strings.Join(c.ResourceKinds, ","), nil
	case "script_kind":
		return c.ScriptKind, nil
	}
	return "", unknownKey(key)
}

// Set updates a config value by key. List values are comma-separated.
func (c *Config) Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return unknownKey(key)
	}
	return set(c, strings.TrimSpace(value))
}

var setters = map[string]func(*Config, string) error{
	"proxies_dir":    func(c *Config, v string) error { return setString(&c.ProxiesDir, v) },
	"output_dir":     func(c *Config, v string) error { return setString(&c.OutputDir, v) },
	"temp_dir":       func(c *Config, v string) error { return setString(&c.TempDir, v) },
	"history_file":   func(c *Config, v string) error { return setString(&c.HistoryFile, v) },
	"log_level":      func(c *Config, v string) error { return setString(&c.LogLevel, v) },
	"script_kind":    func(c *Config, v string) error { return setString(&c.ScriptKind, v) },
	"jobs":           func(c *Config, v string) error { return setPositive(&c.Jobs, v) },
	"watch_debounce": func(c *Config, v string) error { return setPositive(&c.WatchDebounce, v) },
	"resource_types": func(c *Config, v string) error { return setList(&c.ResourceTypes, v) },
	"resource_kinds": func(c *Config, v string) error { return setList(&c.ResourceKinds, v) },
}

func setString(dst *string, v string) error {
	if v == "" {
		return fmt.Errorf("value cannot be empty")
	}
	*dst = v
	return nil
}

func setPositive(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fmt.Errorf("invalid value %q: must be a positive integer", v)
	}
	*dst = n
	return nil
}

func setList(dst *[]string, v string) error {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fmt.Errorf("value cannot be empty")
	}
	*dst = out
	return nil
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(Keys(), ", "))
}
