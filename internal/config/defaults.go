package config

// Default values for optional configuration fields.
const (
	DefaultRedisHost      = "127.0.0.1"
	DefaultRedisPort      = 6379
	DefaultHTTPHost       = "0.0.0.0"
	DefaultHTTPPort       = 7379
	DefaultMaxRequestSize = 128 * 1024 * 1024
	DefaultWorkerCount    = 4
	DefaultPoolSize       = 2
	DefaultLogLevel       = "info"
	DefaultMaxLineLen     = 4096
)

func (c *Config) applyDefaults() {
	// Backend defaults
	if c.Redis.Host == "" {
		c.Redis.Host = DefaultRedisHost
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = DefaultRedisPort
	}

	// HTTP defaults
	if c.HTTP.Host == "" {
		c.HTTP.Host = DefaultHTTPHost
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}
	if c.HTTP.MaxRequestSize == 0 {
		c.HTTP.MaxRequestSize = DefaultMaxRequestSize
	}

	// Worker defaults
	if c.Workers.Count == 0 {
		c.Workers.Count = DefaultWorkerCount
	}
	if c.Workers.PoolSize == 0 {
		c.Workers.PoolSize = DefaultPoolSize
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.MaxLineLen == 0 {
		c.Log.MaxLineLen = DefaultMaxLineLen
	}
}
