// internal/store/open.go
package store

import "fmt"

// DBConfig selects and configures a backend.
type DBConfig struct {
	Driver   string
	Path     string
	Postgres PostgresConfig
}

// Open returns the store for the configured driver. On failure the returned
// interface is nil, never a typed-nil backend pointer.
func Open(cfg DBConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		p, err := NewPostgres(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "sqlite", "":
		s, err := NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
