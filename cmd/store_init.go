package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/stock-researcher/internal/config"
	"github.com/sells-group/stock-researcher/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	return openStore(ctx, cfg.Store)
}

// openStore opens and migrates the run history backend.
func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch sc.Driver {
	case "sqlite", "":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "stock-researcher.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, sc.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
