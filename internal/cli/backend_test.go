package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nxcoord/internal/claim"
	"github.com/roach88/nxcoord/internal/config"
	"github.com/roach88/nxcoord/internal/memstore"
	"github.com/roach88/nxcoord/internal/store"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite", func(t *testing.T) {
		st, err := OpenStore(ctx, config.StoreConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "x.db")})
		require.NoError(t, err)
		defer st.Close()
		assert.IsType(t, &store.Store{}, st)
		assert.NoError(t, st.Ping(ctx))
	})

	t.Run("memory", func(t *testing.T) {
		st, err := OpenStore(ctx, config.StoreConfig{Driver: config.DriverMemory})
		require.NoError(t, err)
		defer st.Close()
		assert.IsType(t, &memstore.Store{}, st)
	})

	failures := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{"unknown driver", config.StoreConfig{Driver: "mysql"}},
		{"sqlite without path", config.StoreConfig{Driver: config.DriverSQLite}},
		{"sqlite bad dir", config.StoreConfig{Driver: config.DriverSQLite, Path: "/nonexistent/dir/x.db"}},
		{"postgres without url", config.StoreConfig{Driver: config.DriverPostgres}},
		{"postgres malformed url", config.StoreConfig{Driver: config.DriverPostgres, URL: "postgres://%zz"}},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			st, err := OpenStore(ctx, tt.cfg)
			require.Error(t, err)
			assert.Nil(t, st)
			assert.True(t, claim.IsConfiguration(err), "got %v", err)
		})
	}
}
