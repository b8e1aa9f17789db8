// Package config loads the emulator configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/mockcloud/blobmock/rest"
	"github.com/mockcloud/blobmock/types/spool"
)

const (
	// DefaultPort matches the port the real service exposes its emulated surface on.
	DefaultPort = 10000

	// DefaultBurst is the limiter burst size used when a rate limit omits one.
	DefaultBurst = 64 * 1024
)

// RateLimit bounds the payload throughput of a single direction of transfer. A zero limit means unbounded.
type RateLimit struct {
	BytesPerSecond float64 `yaml:"bytesPerSecond"`
	Burst          int     `yaml:"burst"`
}

// Limiter returns the limiter enforcing the configured limit, or <nil> when the transfer direction is unbounded.
func (r RateLimit) Limiter() *rate.Limiter {
	if r.BytesPerSecond <= 0 {
		return nil
	}

	burst := r.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}

	return rate.NewLimiter(rate.Limit(r.BytesPerSecond), burst)
}

// Config is the full emulator configuration.
type Config struct {
	Port      uint16 `yaml:"port"`
	LocalOnly bool   `yaml:"localOnly"`
	IPv4      string `yaml:"ipv4"`
	IPv6      string `yaml:"ipv6"`

	// ServiceDomain is the domain accounts are expected to be addressed under.
	ServiceDomain string `yaml:"serviceDomain"`

	// DisableContainerAutoCreate makes uploads into unknown containers fail instead of creating them.
	DisableContainerAutoCreate bool `yaml:"disableContainerAutoCreate"`

	// SpoolThreshold is the blob size, in bytes, beyond which payloads are spooled to disk.
	SpoolThreshold int `yaml:"spoolThreshold"`

	Upload   RateLimit `yaml:"upload"`
	Download RateLimit `yaml:"download"`
}

// DefaultConfig returns the configuration used when no config file is supplied.
func DefaultConfig() *Config {
	return &Config{
		Port:           DefaultPort,
		LocalOnly:      true,
		IPv4:           "must",
		IPv6:           "try",
		ServiceDomain:  rest.DefaultServiceDomain,
		SpoolThreshold: spool.DefaultThreshold,
	}
}

// Load reads and validates the configuration at the given path, filling unset fields with the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// Validate sanity checks the configuration.
func (c *Config) Validate() error {
	if _, err := ParseListenerMode(c.IPv4); err != nil {
		return fmt.Errorf("invalid ipv4 mode: %w", err)
	}

	if _, err := ParseListenerMode(c.IPv6); err != nil {
		return fmt.Errorf("invalid ipv6 mode: %w", err)
	}

	if c.ServiceDomain == "" {
		return fmt.Errorf("serviceDomain must not be empty")
	}

	if c.Upload.BytesPerSecond < 0 || c.Download.BytesPerSecond < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}

	return nil
}

// ParseListenerMode converts the textual listener mode used in the config file into a 'rest.ListenerMode'.
func ParseListenerMode(mode string) (rest.ListenerMode, error) {
	switch mode {
	case "skip":
		return rest.ListenerModeSkip, nil
	case "try":
		return rest.ListenerModeTry, nil
	case "must":
		return rest.ListenerModeMust, nil
	}

	return 0, fmt.Errorf("unknown listener mode '%s'", mode)
}
