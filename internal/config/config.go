// ABOUTME: Configuration for the time service and sync client
// ABOUTME: YAML file loading layered over defaults and environment overrides
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPort is the fixed UDP port the time service binds and clients target
const DefaultPort = 5678

// Config is the root of the YAML document
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds time service settings
type ServerConfig struct {
	Listen    string `yaml:"listen"`
	Port      int    `yaml:"port"`
	Name      string `yaml:"name"`
	FaultMode string `yaml:"fault_mode"`
	MDNS      bool   `yaml:"mdns"`
}

// ClientConfig holds sync client settings
type ClientConfig struct {
	Target      string        `yaml:"target"`
	Port        int           `yaml:"port"`
	Timeout     time.Duration `yaml:"timeout"`
	Discover    bool          `yaml:"discover"`
	MonitorAddr string        `yaml:"monitor_addr"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns a Config matching the out-of-the-box deployment
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:    "0.0.0.0",
			Port:      DefaultPort,
			FaultMode: "drop",
			MDNS:      true,
		},
		Client: ClientConfig{
			Target:  "127.0.0.1",
			Port:    DefaultPort,
			Timeout: 2 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ServerAddr returns the host:port the time service binds
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Listen, c.Server.Port)
}

// TargetAddr returns the host:port the client sends to
func (c *Config) TargetAddr() string {
	return fmt.Sprintf("%s:%d", c.Client.Target, c.Client.Port)
}
