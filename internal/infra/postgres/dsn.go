package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"invoice2pdf/internal/config"
)

const defaultPort = 5432

// DSN builds the pgx connection URL of the conversion journal. A host given
// as a full postgres:// URL is used verbatim; otherwise host and port are
// joined, with port 5432 when unset.
func DSN(cfg config.PostgresConfig) (string, error) {
	if strings.HasPrefix(cfg.Host, "postgres://") || strings.HasPrefix(cfg.Host, "postgresql://") {
		return cfg.Host, nil
	}
	switch {
	case cfg.Host == "":
		return "", fmt.Errorf("journal: postgres host is empty")
	case cfg.Database == "":
		return "", fmt.Errorf("journal: postgres database is empty")
	case cfg.User == "":
		return "", fmt.Errorf("journal: postgres user is empty")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   journalHost(cfg),
		Path:   "/" + cfg.Database,
		User:   url.User(cfg.User),
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String(), nil
}

// journalHost keeps an explicit host:port and brackets bare IPv6 hosts.
func journalHost(cfg config.PostgresConfig) string {
	if _, _, err := net.SplitHostPort(cfg.Host); err == nil {
		return cfg.Host
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(strings.Trim(cfg.Host, "[]"), strconv.Itoa(port))
}
