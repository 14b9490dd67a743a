package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
server:
  url: wss://chat.example.com/socket
  request_timeout: 3s
session:
  max_attempts: 5
  reconnect_max_delay: 8s
profile:
  data_path: /tmp/partychat
transcript:
  enabled: true
  database:
    host: localhost
    port: 5432
    name: chat
    user: chatuser
    password: chatpass
status:
  port: 9191
log:
  level: debug
  format: json
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.URL != "wss://chat.example.com/socket" {
		t.Errorf("Server.URL = %q, want %q", cfg.Server.URL, "wss://chat.example.com/socket")
	}
	if cfg.Server.RequestTimeout != 3*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want 3s", cfg.Server.RequestTimeout)
	}
	if cfg.Session.MaxAttempts != 5 {
		t.Errorf("Session.MaxAttempts = %d, want 5", cfg.Session.MaxAttempts)
	}
	if !cfg.Transcript.Enabled || cfg.Transcript.Database.Name != "chat" {
		t.Errorf("Transcript = %+v", cfg.Transcript)
	}
	if cfg.Status.Port != 9191 {
		t.Errorf("Status.Port = %d, want 9191", cfg.Status.Port)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_CHAT_URL", "wss://env.example.com/ws")

	yaml := `
server:
  url: ${TEST_CHAT_URL}
transcript:
  database:
    host: localhost
    name: chat
    user: chatuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Transcript.Database.Password != "secret123" {
		t.Errorf("Transcript.Database.Password = %q, want %q", cfg.Transcript.Database.Password, "secret123")
	}
	if cfg.Server.URL != "wss://env.example.com/ws" {
		t.Errorf("Server.URL = %q, want %q", cfg.Server.URL, "wss://env.example.com/ws")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "log:\n  level: warn\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Server.URL != DefaultServerURL {
		t.Errorf("Server.URL = %q, want default %q", cfg.Server.URL, DefaultServerURL)
	}
	if cfg.Session.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("Session.MaxAttempts = %d, want default %d", cfg.Session.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.Session.ReconnectBaseDelay != DefaultReconnectBaseDelay {
		t.Errorf("Session.ReconnectBaseDelay = %v, want default %v", cfg.Session.ReconnectBaseDelay, DefaultReconnectBaseDelay)
	}
	if cfg.Session.ReconnectMaxDelay != DefaultReconnectMaxDelay {
		t.Errorf("Session.ReconnectMaxDelay = %v, want default %v", cfg.Session.ReconnectMaxDelay, DefaultReconnectMaxDelay)
	}
	if cfg.Session.RejoinGrace != DefaultRejoinGrace {
		t.Errorf("Session.RejoinGrace = %v, want default %v", cfg.Session.RejoinGrace, DefaultRejoinGrace)
	}
	if cfg.Transcript.Database.Port != DefaultDBPort {
		t.Errorf("Transcript.Database.Port = %d, want default %d", cfg.Transcript.Database.Port, DefaultDBPort)
	}
	if cfg.Profile.DataPath == "" {
		t.Error("Profile.DataPath not defaulted")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want explicit warn", cfg.Log.Level)
	}
	if cfg.Status.Port != 0 {
		t.Errorf("Status.Port = %d, want 0 (disabled)", cfg.Status.Port)
	}
}

func TestLoadAndValidate_EmptyPath(t *testing.T) {
	cfg, err := LoadAndValidate("")
	if err != nil {
		t.Fatalf("LoadAndValidate(\"\") failed: %v", err)
	}
	if cfg.Server.URL != DefaultServerURL {
		t.Errorf("Server.URL = %q, want default", cfg.Server.URL)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeTempFile(t, "server: [unclosed")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config yaml") {
		t.Errorf("Load error = %v, want parse error", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return *Default()
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "http url",
			mutate:  func(c *Config) { c.Server.URL = "http://example.com" },
			wantErr: `server.url must be a ws:// or wss:// URL, got "http://example.com"`,
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Session.MaxAttempts = -1 },
			wantErr: "session.max_attempts must be >= 1",
		},
		{
			name: "max delay below base",
			mutate: func(c *Config) {
				c.Session.ReconnectBaseDelay = 2 * time.Second
				c.Session.ReconnectMaxDelay = time.Second
			},
			wantErr: "session.reconnect_max_delay (1s) cannot be below reconnect_base_delay (2s)",
		},
		{
			name:    "transcript without host",
			mutate:  func(c *Config) { c.Transcript.Enabled = true },
			wantErr: "transcript.database.host is required",
		},
		{
			name: "transcript min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Transcript.Enabled = true
				c.Transcript.Database = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 2, MinConns: 5}
			},
			wantErr: "transcript.database.min_conns (5) cannot exceed max_conns (2)",
		},
		{
			name:    "disabled transcript ignores database",
			mutate:  func(c *Config) { c.Transcript.Database = DBConfig{} },
			wantErr: "",
		},
		{
			name:    "status port out of range",
			mutate:  func(c *Config) { c.Status.Port = 70000 },
			wantErr: "status.port must be between 0 and 65535, got 70000",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: `log.level must be one of debug, info, warn, error, got "loud"`,
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: `log.format must be console or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadAndValidate_ExampleFile(t *testing.T) {
	t.Setenv("PARTYCHAT_HOST", "chat.example.com")
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadAndValidate(filepath.Join("..", "..", "configs", "partychat.example.yaml"))
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}
	if cfg.Server.URL != "wss://chat.example.com/socket" {
		t.Errorf("Server.URL = %q, want wss://chat.example.com/socket", cfg.Server.URL)
	}
	if cfg.Transcript.Enabled {
		t.Error("Transcript.Enabled = true, want false")
	}
	if cfg.Status.Port != 0 {
		t.Errorf("Status.Port = %d, want 0", cfg.Status.Port)
	}
}
