// ABOUTME: Environment variable overrides for configuration
// ABOUTME: Mirrors the container wiring where the target host comes from SERVER_IP
package config

import (
	"os"
	"strconv"
)

// Environment variables read by ApplyEnv
const (
	EnvServerIP = "SERVER_IP"
	EnvPort     = "TIMESYNC_PORT"
	EnvLogLevel = "TIMESYNC_LOG_LEVEL"
)

// ApplyEnv overrides file values with environment variables when set.
// Unparseable numbers are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvServerIP); v != "" {
		c.Client.Target = v
	}
	overrideFromEnvInt(&c.Server.Port, EnvPort)
	overrideFromEnvInt(&c.Client.Port, EnvPort)
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
