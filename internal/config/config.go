package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration for a gateway instance.
type Config struct {
	Redis   RedisConfig   `yaml:"redis"`
	HTTP    HTTPConfig    `yaml:"http"`
	Workers WorkersConfig `yaml:"workers"`
	Log     LogConfig     `yaml:"log"`
}

// RedisConfig holds the backend connection settings.
type RedisConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Database int           `yaml:"database"`
	Auth     *AuthConfig   `yaml:"auth"`
	// KeepAlive enables TCP keep-alive probes on backend connections
	// at the given interval. Zero disables them.
	KeepAlive time.Duration `yaml:"keep_alive"`
	// DialTimeout bounds connection establishment. Zero means the
	// operating system default applies.
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// AuthConfig holds backend authentication credentials. An empty Username
// selects the legacy password-only AUTH form.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Legacy reports whether the password-only AUTH form should be used.
func (a *AuthConfig) Legacy() bool {
	return a.Username == ""
}

// HTTPConfig holds the HTTP listener settings.
type HTTPConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxRequestSize int64  `yaml:"max_request_size"`
	WebSockets     bool   `yaml:"websockets"`
}

// WorkersConfig sizes the worker threads and their connection pools.
type WorkersConfig struct {
	// Count is the number of workers, each owning one pool.
	Count int `yaml:"count"`
	// PoolSize is the number of backend connections per worker.
	PoolSize int `yaml:"pool_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	// MaxLineLen bounds a single diagnostic line. Values below 64 are
	// rejected by Validate.
	MaxLineLen int `yaml:"max_line_len"`
}

// Addr returns the backend host:port dial address.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Addr returns the HTTP listen address.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}
