package database

import (
	"fmt"
	"net/url"

	"github.com/vaitul/partychat/internal/config"
)

// BuildConnString builds a PostgreSQL connection string from config.
// An empty password is left out so libpq fallbacks (.pgpass, PGPASSWORD) apply.
func BuildConnString(cfg config.DBConfig) string {
	userInfo := url.QueryEscape(cfg.User)
	if cfg.Password != "" {
		// URL-encode password to handle special characters
		userInfo += ":" + url.QueryEscape(cfg.Password)
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	return fmt.Sprintf(
		"postgres://%s@%s:%d/%s?sslmode=%s",
		userInfo,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}
