package config

import "time"

// Config holds client configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	BackendURL        string        `mapstructure:"backend_url" yaml:"backend_url"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	Nickname          string        `mapstructure:"nickname" yaml:"nickname"`
	Icon              string        `mapstructure:"icon" yaml:"icon"`
	TypingIdleTimeout time.Duration `mapstructure:"typing_idle_timeout" yaml:"typing_idle_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval" yaml:"keep_alive_interval"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              "127.0.0.1:8090",
		BackendURL:        "ws://localhost:8080/ws",
		LogLevel:          "info",
		TypingIdleTimeout: 2 * time.Second,
		RequestTimeout:    10 * time.Second,
		DialTimeout:       10 * time.Second,
		KeepAliveInterval: 30 * time.Second,
		MaxMessageBytes:   1 << 20,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.BackendURL != "" {
		c.BackendURL = other.BackendURL
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Nickname != "" {
		c.Nickname = other.Nickname
	}
	if other.Icon != "" {
		c.Icon = other.Icon
	}
	if other.TypingIdleTimeout != 0 {
		c.TypingIdleTimeout = other.TypingIdleTimeout
	}
	if other.RequestTimeout != 0 {
		c.RequestTimeout = other.RequestTimeout
	}
	if other.DialTimeout != 0 {
		c.DialTimeout = other.DialTimeout
	}
	if other.KeepAliveInterval != 0 {
		c.KeepAliveInterval = other.KeepAliveInterval
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}
