package config

import "time"

// Config is the root configuration for the partychat client.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Session    SessionConfig    `yaml:"session"`
	Profile    ProfileConfig    `yaml:"profile"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Status     StatusConfig     `yaml:"status"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds chat service connection settings.
type ServerConfig struct {
	URL               string        `yaml:"url"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	PingTimeout       time.Duration `yaml:"ping_timeout"`
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
}

// SessionConfig holds reconnect and rejoin settings.
type SessionConfig struct {
	MaxAttempts        int           `yaml:"max_attempts"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	JoinGrace          time.Duration `yaml:"join_grace"`
	RejoinGrace        time.Duration `yaml:"rejoin_grace"`
}

// ProfileConfig locates the saved display name and icon.
type ProfileConfig struct {
	DataPath string `yaml:"data_path"`
}

// TranscriptConfig holds the optional message archive.
type TranscriptConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// StatusConfig holds the local status server. Port 0 disables it.
type StatusConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}
