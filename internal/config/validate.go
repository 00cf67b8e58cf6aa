package config

import (
	"errors"
	"fmt"

	"github.com/mkarls/redisgw/internal/logging"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Redis.Host == "" {
		return errors.New("redis.host is required")
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("redis.port must be between 1 and 65535, got %d", c.Redis.Port)
	}
	if c.Redis.Database < 0 {
		return errors.New("redis.database must be >= 0")
	}
	if c.Redis.Auth != nil && c.Redis.Auth.Password == "" {
		return errors.New("redis.auth.password is required when auth is set")
	}
	if c.Redis.KeepAlive < 0 {
		return errors.New("redis.keep_alive must be >= 0")
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.MaxRequestSize < 1 {
		return errors.New("http.max_request_size must be >= 1")
	}

	if c.Workers.Count < 1 {
		return errors.New("workers.count must be >= 1")
	}
	if c.Workers.PoolSize < 1 {
		return errors.New("workers.pool_size must be >= 1")
	}

	if c.Log.MaxLineLen < logging.MinLineLen {
		return fmt.Errorf("log.max_line_len must be >= %d, got %d", logging.MinLineLen, c.Log.MaxLineLen)
	}

	return nil
}
