package obd

import (
	"log/slog"
	"time"
)

const (
	// DefaultTimeout bounds a single command, measured from the end of the
	// write.
	DefaultTimeout = 1500 * time.Millisecond
	// DefaultPollInterval is the pause between reads while the adapter has
	// nothing to say.
	DefaultPollInterval = 50 * time.Millisecond
	// DefaultReadChunk is the largest read issued to the transport.
	DefaultReadChunk = 1024
)

// Config holds the settings of a Conn. Use NewConfigBuilder to create one.
type Config struct {
	dialer       Dialer
	timeout      time.Duration
	pollInterval time.Duration
	readChunk    int
	logger       *slog.Logger
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.readChunk <= 0 {
		c.readChunk = DefaultReadChunk
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
}

// Timeout returns the default per-command timeout.
func (c Config) Timeout() time.Duration { return c.timeout }

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithTimeout sets the default per-command timeout used by SendCommand,
// Ping and the initialization sequence.
func (b *ConfigBuilder) WithTimeout(d time.Duration) *ConfigBuilder {
	b.config.timeout = d
	return b
}

func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.config.pollInterval = d
	return b
}

func (b *ConfigBuilder) WithReadChunk(n int) *ConfigBuilder {
	b.config.readChunk = n
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build applies defaults and validates the configuration.
func (b *ConfigBuilder) Build() (Config, error) {
	config := b.config
	config.setDefaults()
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}
