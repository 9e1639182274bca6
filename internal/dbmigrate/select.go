package dbmigrate

import (
	"errors"
	"strings"

	"github.com/fdg312/diet-hub/internal/config"
)

const DefaultMigrationsDir = "migrations"

// ErrNoDatabaseURL возвращается, когда ни одна переменная с URL базы не задана.
var ErrNoDatabaseURL = errors.New("no database URL configured (set DATABASE_URL_DIRECT or DATABASE_URL)")

// ErrDirectURLRequired возвращается при requireDirect без DATABASE_URL_DIRECT.
var ErrDirectURLRequired = errors.New("DATABASE_URL_DIRECT is required for DDL/migrations")

const pooledDDLWarning = "using pooled connection for DDL is not recommended; set DATABASE_URL_DIRECT"

// Target — выбранное подключение для goose.
type Target struct {
	URL     string
	Source  string // имя переменной окружения
	Warning string
}

// ResolveTarget выбирает подключение для миграций: DIRECT > DATABASE_URL > POOLED.
// Для POOLED заполняется Warning.
func ResolveTarget(cfg *config.Config, requireDirect bool) (Target, error) {
	candidates := []Target{
		{URL: cfg.DatabaseURLDirect, Source: "DATABASE_URL_DIRECT"},
		{URL: cfg.DatabaseURLRaw, Source: "DATABASE_URL"},
		{URL: cfg.DatabaseURLPooled, Source: "DATABASE_URL_POOLED", Warning: pooledDDLWarning},
	}
	if requireDirect {
		candidates = candidates[:1]
	}

	for _, c := range candidates {
		if strings.TrimSpace(c.URL) != "" {
			return c, nil
		}
	}

	if requireDirect {
		return Target{}, ErrDirectURLRequired
	}
	return Target{}, ErrNoDatabaseURL
}
