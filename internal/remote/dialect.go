package remote

import (
	"fmt"
	"net/url"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cms-go/internal/cms"
)

// Dialector turns a remote URL into a gorm dialector. postgres:// and
// postgresql:// URLs connect to PostgreSQL; accessKey becomes the password
// when the URL carries none. sqlite:///path (or sqlite://relative/path)
// opens a SQLite file.
func Dialector(rawURL, accessKey string) (gorm.Dialector, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parsing remote url: %v: %w", err, cms.ErrConfig)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		if u.Host == "" {
			return nil, fmt.Errorf("remote url %q has no host: %w", u.Redacted(), cms.ErrConfig)
		}
		if _, hasPassword := u.User.Password(); !hasPassword && accessKey != "" {
			user := "postgres"
			if u.User != nil && u.User.Username() != "" {
				user = u.User.Username()
			}
			u.User = url.UserPassword(user, accessKey)
		}
		return postgres.Open(u.String()), nil

	case "sqlite":
		path := u.Opaque
		if path == "" {
			path = u.Host + u.Path
		}
		if path == "" {
			return nil, fmt.Errorf("remote url %q has no database path: %w", rawURL, cms.ErrConfig)
		}
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
		return sqlite.Open(path), nil

	case "":
		return nil, fmt.Errorf("remote url %q has no scheme: %w", rawURL, cms.ErrConfig)
	default:
		return nil, fmt.Errorf("unsupported remote url scheme %q: %w", u.Scheme, cms.ErrConfig)
	}
}
