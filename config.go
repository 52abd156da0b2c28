package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/zerotouch/cardiag/discovery"
)

// Config holds the application configuration
type Config struct {
	// Transport selects the dialer: "serial", "tcp" or "ble"
	Transport string `yaml:"transport"`
	// Address is the adapter to connect to (e.g. "/dev/rfcomm0", "192.168.0.10:35000")
	Address string `yaml:"address"`
	// BaudRate is the baud rate for serial adapters (e.g. 38400)
	BaudRate int `yaml:"baud_rate"`
	// Timeout bounds a single command exchange
	Timeout time.Duration `yaml:"timeout"`
	// Retries is how many times connecting is attempted
	Retries uint `yaml:"retries"`
	// ScanWindow bounds discovery
	ScanWindow time.Duration `yaml:"scan_window"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
	// LogFormat is "text" or "json"
	LogFormat string `yaml:"log_format"`
	// Output is how results are printed: "text", "json" or "yaml"
	Output string `yaml:"output"`
	// Devices are known adapters, listed alongside the ones the host reports
	Devices []discovery.Device `yaml:"devices"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, config.validate()
}

func (c *Config) validate() error {
	switch c.Transport {
	case "serial", "tcp", "ble":
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	switch c.Output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", c.Output)
	}
	if c.Retries == 0 {
		return errors.New("retries must be at least 1")
	}
	return nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.Transport = "serial"
		c.BaudRate = 38400
		c.Timeout = 1500 * time.Millisecond
		c.Retries = 3
		c.ScanWindow = discovery.DefaultScanWindow
		c.LogLevel = "info"
		c.LogFormat = "text"
		c.Output = "text"
		return nil
	}
}

// WithFile loads configuration from a YAML file. An empty path is a no-op.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from CARDIAG_* environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if transport := os.Getenv("CARDIAG_TRANSPORT"); transport != "" {
			c.Transport = strings.ToLower(transport)
		}

		if addr := os.Getenv("CARDIAG_ADDRESS"); addr != "" {
			c.Address = addr
		}

		if baud := os.Getenv("CARDIAG_BAUD_RATE"); baud != "" {
			b, err := strconv.Atoi(baud)
			if err != nil {
				return fmt.Errorf("CARDIAG_BAUD_RATE: %w", err)
			}
			c.BaudRate = b
		}

		if timeout := os.Getenv("CARDIAG_TIMEOUT"); timeout != "" {
			d, err := time.ParseDuration(timeout)
			if err != nil {
				return fmt.Errorf("CARDIAG_TIMEOUT: %w", err)
			}
			c.Timeout = d
		}

		if retries := os.Getenv("CARDIAG_RETRIES"); retries != "" {
			r, err := strconv.ParseUint(retries, 10, 0)
			if err != nil {
				return fmt.Errorf("CARDIAG_RETRIES: %w", err)
			}
			c.Retries = uint(r)
		}

		if window := os.Getenv("CARDIAG_SCAN_WINDOW"); window != "" {
			d, err := time.ParseDuration(window)
			if err != nil {
				return fmt.Errorf("CARDIAG_SCAN_WINDOW: %w", err)
			}
			c.ScanWindow = d
		}

		if level := os.Getenv("CARDIAG_LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if format := os.Getenv("CARDIAG_LOG_FORMAT"); format != "" {
			c.LogFormat = format
		}

		if output := os.Getenv("CARDIAG_OUTPUT"); output != "" {
			c.Output = strings.ToLower(output)
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags the user set
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *pflag.Flag) {
			switch f.Name {
			case flagTransport:
				c.Transport = strings.ToLower(f.Value.String())
			case flagAddress:
				c.Address = f.Value.String()
			case flagBaudRate:
				if b, convErr := strconv.Atoi(f.Value.String()); convErr == nil {
					c.BaudRate = b
				}
			case flagTimeout:
				d, parseErr := time.ParseDuration(f.Value.String())
				if parseErr != nil {
					err = fmt.Errorf("--%s: %w", flagTimeout, parseErr)
					return
				}
				c.Timeout = d
			case flagRetries:
				if r, convErr := strconv.ParseUint(f.Value.String(), 10, 0); convErr == nil {
					c.Retries = uint(r)
				}
			case flagLogLevel:
				c.LogLevel = f.Value.String()
			case flagLogFormat:
				c.LogFormat = f.Value.String()
			case flagOutput:
				c.Output = f.Value.String()
			}
		})
		return err
	}
}
