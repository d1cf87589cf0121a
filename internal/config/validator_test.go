package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{"defaults", func(*Config) {}, nil},
		{"memory needs nothing", func(c *Config) { c.Store.Driver = DriverMemory; c.Store.Path = "" }, nil},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, []string{"store.driver"}},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }, []string{"store.path"}},
		{"postgres without url", func(c *Config) { c.Store.Driver = DriverPostgres }, []string{"store.url"}},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, []string{"server.addr"}},
		{"negative timeout", func(c *Config) { c.Server.ShutdownTimeoutSeconds = -1 }, []string{"server.shutdown_timeout_seconds"}},
		{"lowercase level ok", func(c *Config) { c.Logging.Level = "debug" }, nil},
		{"bad level", func(c *Config) { c.Logging.Level = "TRACE" }, []string{"logging.level"}},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, []string{"logging.format"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			var got []string
			for _, e := range cfg.Validate() {
				got = append(got, e.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	assert.Empty(t, ValidationErrors(nil).Error())

	one := ValidationErrors{{Field: "store.driver", Value: "x", Message: "bad"}}
	assert.Equal(t, "store.driver: bad (got: x)", one.Error())

	two := append(one, ValidationError{Field: "server.addr", Value: "", Message: "must not be empty"})
	assert.Equal(t, "2 validation errors:\n  1. store.driver: bad (got: x)\n  2. server.addr: must not be empty (got: )\n", two.Error())
}
