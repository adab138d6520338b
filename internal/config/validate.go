// ABOUTME: Configuration validation
// ABOUTME: Rejects ports, fault modes and timeouts the programs cannot run with
package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if err := validatePort("server.port", c.Server.Port); err != nil {
		return err
	}
	switch strings.ToLower(c.Server.FaultMode) {
	case "drop", "refuse":
	default:
		return fmt.Errorf("server.fault_mode must be drop or refuse, got %q", c.Server.FaultMode)
	}

	if err := validatePort("client.port", c.Client.Port); err != nil {
		return err
	}
	if c.Client.Target == "" && !c.Client.Discover {
		return fmt.Errorf("client.target must be set unless client.discover is enabled")
	}
	// non-positive timeouts are a caller error
	if c.Client.Timeout <= 0 {
		return fmt.Errorf("client.timeout must be positive, got %v", c.Client.Timeout)
	}

	return nil
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be in 1..65535, got %d", field, port)
	}
	return nil
}
