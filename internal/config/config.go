package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFetchTimeout   = 15 * time.Second
	DefaultSendRate       = 5.0
	DefaultSendBurst      = 10
	DefaultSendBufferSize = 256
)

type Config struct {
	WSEndpoint     string        `yaml:"ws_endpoint"`
	APIBaseURL     string        `yaml:"api_base_url"`
	DebugAddr      string        `yaml:"debug_addr"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	SendRate       float64       `yaml:"send_rate"`
	SendBurst      int           `yaml:"send_burst"`
	SendBufferSize int           `yaml:"send_buffer_size"`
}

func NewConfig(wsEndpoint, apiBaseURL, debugAddr string) (*Config, error) {
	cfg := &Config{
		WSEndpoint:     wsEndpoint,
		APIBaseURL:     apiBaseURL,
		DebugAddr:      debugAddr,
		FetchTimeout:   DefaultFetchTimeout,
		SendRate:       DefaultSendRate,
		SendBurst:      DefaultSendBurst,
		SendBufferSize: DefaultSendBufferSize,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile overlays the values set in a YAML file onto c. Keys missing from
// the file keep their current value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	return c.Validate()
}

func (c *Config) Validate() error {
	if c.WSEndpoint == "" {
		return fmt.Errorf("websocket endpoint cannot be empty")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("api base url cannot be empty")
	}
	if err := validateURL(c.WSEndpoint, "ws", "wss", "http", "https"); err != nil {
		return fmt.Errorf("websocket endpoint: %w", err)
	}
	if err := validateURL(c.APIBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("api base url: %w", err)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.SendRate <= 0 || c.SendBurst <= 0 {
		return fmt.Errorf("send rate and burst must be positive")
	}
	if c.SendBufferSize <= 0 {
		return fmt.Errorf("send buffer size must be positive")
	}

	return nil
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}

	return fmt.Errorf("unsupported scheme %q", u.Scheme)
}
