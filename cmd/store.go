package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/raumwerk/standort-cli/internal/store"
)

// initStore opens the run history backend selected in the config. Callers
// own the returned store and must Close it.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "standort.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
