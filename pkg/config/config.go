// Package config holds the fixserve server configuration and its YAML loader.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration. Zero values are filled in by
// ApplyDefaults, so a partial YAML file or flag set is enough.
type Config struct {
	// Host is the bind address.
	Host string `yaml:"host"`

	// Port is the listen port. 0 picks a free port at startup.
	Port int `yaml:"port"`

	// DocRoot is the directory the convention handlers serve from.
	DocRoot string `yaml:"docRoot"`

	// Domains maps alias names to hostnames, exposed to substitution
	// templates as domains["alias"].
	Domains map[string]string `yaml:"domains"`

	// ScriptExtension selects which files route to the script handler.
	ScriptExtension string `yaml:"scriptExtension"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`

	// LogFormat is text or json.
	LogFormat string `yaml:"logFormat"`
}

// Default returns the configuration used when nothing else is given.
func Default() *Config {
	return &Config{
		Host:            "localhost",
		Port:            8000,
		DocRoot:         ".",
		Domains:         map[string]string{"": "localhost"},
		ScriptExtension: ".go",
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// ApplyDefaults fills unset fields from Default.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.DocRoot == "" {
		c.DocRoot = d.DocRoot
	}
	if c.Domains == nil {
		c.Domains = map[string]string{"": c.Host}
	}
	if c.ScriptExtension == "" {
		c.ScriptExtension = d.ScriptExtension
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
}

// Load reads a YAML configuration file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Validate checks the configuration for values the engine cannot start with.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DocRoot == "" {
		return fmt.Errorf("docRoot must not be empty")
	}
	info, err := os.Stat(c.DocRoot)
	if err != nil {
		return fmt.Errorf("docRoot: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("docRoot %s is not a directory", c.DocRoot)
	}
	return nil
}
