package cli

import (
	"context"
	"fmt"

	"github.com/roach88/nxcoord/internal/claim"
	"github.com/roach88/nxcoord/internal/config"
	"github.com/roach88/nxcoord/internal/memstore"
	"github.com/roach88/nxcoord/internal/pgstore"
	"github.com/roach88/nxcoord/internal/store"
)

// OpenStore opens the backend named by cfg.Driver. Any failure is a
// configuration error: the coordinator cannot serve without its store.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (claim.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if cfg.Path == "" {
			return nil, claim.NewConfigurationError("store.path is required for the sqlite driver", nil)
		}
		st, err := store.Open(cfg.Path)
		if err != nil {
			return nil, claim.NewConfigurationError("open sqlite store", err)
		}
		return st, nil

	case config.DriverPostgres:
		if cfg.URL == "" {
			return nil, claim.NewConfigurationError("store.url is required for the postgres driver", nil)
		}
		st, err := pgstore.Open(ctx, cfg.URL)
		if err != nil {
			return nil, claim.NewConfigurationError("open postgres store", err)
		}
		return st, nil

	case config.DriverMemory:
		return memstore.New(), nil

	default:
		return nil, claim.NewConfigurationError(fmt.Sprintf("unknown store driver %q", cfg.Driver), nil)
	}
}
