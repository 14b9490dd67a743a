package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultServerURL          = "ws://localhost:8080/socket"
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultKeepAliveInterval  = 5 * time.Second
	DefaultRequestTimeout     = 10 * time.Second
	DefaultMaxAttempts        = 3
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 5 * time.Second
	DefaultJoinGrace          = 100 * time.Millisecond
	DefaultRejoinGrace        = 500 * time.Millisecond
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 4
	DefaultMinConns           = 1
	DefaultBatchSize          = 100
	DefaultFlushInterval      = 1 * time.Second
	DefaultBufferSize         = 1000
	DefaultStatusHost         = "127.0.0.1"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "console"
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.URL == "" {
		c.Server.URL = DefaultServerURL
	}
	if c.Server.HandshakeTimeout == 0 {
		c.Server.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.PingTimeout == 0 {
		c.Server.PingTimeout = DefaultPingTimeout
	}
	if c.Server.KeepAliveInterval == 0 {
		c.Server.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = DefaultRequestTimeout
	}

	// Session defaults
	if c.Session.MaxAttempts == 0 {
		c.Session.MaxAttempts = DefaultMaxAttempts
	}
	if c.Session.ReconnectBaseDelay == 0 {
		c.Session.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Session.ReconnectMaxDelay == 0 {
		c.Session.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Session.JoinGrace == 0 {
		c.Session.JoinGrace = DefaultJoinGrace
	}
	if c.Session.RejoinGrace == 0 {
		c.Session.RejoinGrace = DefaultRejoinGrace
	}

	// Profile defaults
	if c.Profile.DataPath == "" {
		c.Profile.DataPath = defaultDataPath()
	}

	// Transcript defaults
	applyDBDefaults(&c.Transcript.Database)
	if c.Transcript.BatchSize == 0 {
		c.Transcript.BatchSize = DefaultBatchSize
	}
	if c.Transcript.FlushInterval == 0 {
		c.Transcript.FlushInterval = DefaultFlushInterval
	}
	if c.Transcript.BufferSize == 0 {
		c.Transcript.BufferSize = DefaultBufferSize
	}

	// Status defaults
	if c.Status.Host == "" {
		c.Status.Host = DefaultStatusHost
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// defaultDataPath is the profile store under the user config dir, falling
// back to the working directory.
func defaultDataPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".partychat", "profile")
	}
	return filepath.Join(dir, "partychat", "profile")
}
