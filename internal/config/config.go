package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// output formats
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Config holds the tool settings. Every field has a default, so an
// empty or missing configuration file is valid.
type Config struct {
	LogLevel  string `yaml:"log-level,omitempty"`
	Format    string `yaml:"format,omitempty"`
	Recover   bool   `yaml:"recover,omitempty"`
	Timing    bool   `yaml:"timing,omitempty"`
	Extension string `yaml:"extension,omitempty"`

	Server struct {
		Address         string `yaml:"address,omitempty"`
		ShutdownTimeout string `yaml:"shutdown-timeout,omitempty"`
	} `yaml:"server,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := new(Config)
	cfg.LogLevel = "warning"
	cfg.Format = FormatText
	cfg.Extension = ".cpl"
	cfg.Server.Address = ":8765"
	cfg.Server.ShutdownTimeout = "5s"
	return cfg
}

// Load reads a YAML file over the defaults. An empty name means no file.
func Load(fileName string) (*Config, error) {
	cfg := Default()
	if len(fileName) == 0 {
		return cfg, nil // OK
	}

	// read full file content
	buf, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration from %q: %s", fileName, err)
	}

	if err := cfg.Parse(buf); err != nil {
		return nil, fmt.Errorf("failed to parse configuration from %q: %s", fileName, err)
	}

	return cfg, nil // OK
}

// Parse merges YAML data into cfg and validates the result.
func (cfg *Config) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate checks the values that are not free-form.
func (cfg *Config) Validate() error {
	switch strings.ToLower(cfg.Format) {
	case FormatText, FormatJSON, FormatMsgpack:
		cfg.Format = strings.ToLower(cfg.Format)
	default:
		return fmt.Errorf("unknown output format %q", cfg.Format)
	}

	if len(cfg.Extension) == 0 {
		return fmt.Errorf("source extension cannot be empty")
	}
	if !strings.HasPrefix(cfg.Extension, ".") {
		cfg.Extension = "." + cfg.Extension
	}

	if _, err := cfg.ShutdownTimeout(); err != nil {
		return fmt.Errorf("failed to parse server shutdown timeout: %s", err)
	}

	return nil // OK
}

// ShutdownTimeout returns how long the server waits for open requests on stop.
func (cfg *Config) ShutdownTimeout() (time.Duration, error) {
	if len(cfg.Server.ShutdownTimeout) == 0 {
		return 5 * time.Second, nil // default
	}
	return time.ParseDuration(cfg.Server.ShutdownTimeout)
}

// String renders the configuration as YAML.
func (cfg *Config) String() string {
	buf, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Sprintf("<invalid configuration: %s>", err)
	}
	return string(buf)
}
