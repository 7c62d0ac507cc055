package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/position-relay/internal/config"
)

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	// URL-encode credentials to handle special characters
	user := url.QueryEscape(cfg.User)
	password := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s&application_name=position-relay",
		user,
		password,
		hostPort(cfg.Host, cfg.Port),
		cfg.Name,
		sslMode,
	)
}

func hostPort(host string, port int) string {
	if port == 0 {
		port = config.DefaultDBPort
	}
	return fmt.Sprintf("%s:%d", host, port)
}
