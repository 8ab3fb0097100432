package timescale

import (
	"fmt"
	"net/url"
)

type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
}

// BuildConnString builds a PostgreSQL connection string from options.
func BuildConnString(opts Options) string {
	escapedPassword := url.QueryEscape(opts.Password)

	sslMode := opts.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	port := opts.Port
	if port == 0 {
		port = 5432
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		opts.User,
		escapedPassword,
		opts.Host,
		port,
		opts.Name,
		sslMode,
	)
}
