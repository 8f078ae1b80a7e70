package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "America/Sao_Paulo", cfg.Roster.Timezone)
	require.Equal(t, 22, cfg.Roster.ActiveCapacity)
	require.Equal(t, 50, cfg.Roster.WaitingCapacity)
	require.Equal(t, "12:00", cfg.Roster.OpensAt)
	require.Equal(t, "23:59", cfg.Roster.ClosesAt)
	require.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	require.Equal(t, "volei_list.db", cfg.Store.DSN)
	require.Equal(t, 2*time.Second, cfg.Cache.ListTTL)
	require.False(t, cfg.NATSEnabled())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
roster:
  active_capacity: 12
  waiting_capacity: 6
store:
  dsn: /tmp/roster.db
cache:
  list_ttl: 500ms
nats:
  url: nats://localhost:4222
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("ROSTER_ROSTER_WAITING_CAPACITY", "8")
	t.Setenv("ROSTER_SERVER_HTTP_ADDR", ":9090")

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, 12, cfg.Roster.ActiveCapacity)
	require.Equal(t, 8, cfg.Roster.WaitingCapacity)
	require.Equal(t, "/tmp/roster.db", cfg.Store.DSN)
	require.Equal(t, ":9090", cfg.Server.HTTPAddr)
	require.Equal(t, 500*time.Millisecond, cfg.Cache.ListTTL)
	require.True(t, cfg.NATSEnabled())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Roster: RosterConfig{Timezone: "America/Sao_Paulo", ActiveCapacity: 22, WaitingCapacity: 50},
			Store:  StoreConfig{Driver: StoreDriverSQLite, DSN: "roster.db"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid sqlite", func(c *Config) {}, ""},
		{"zero active capacity", func(c *Config) { c.Roster.ActiveCapacity = 0 }, "active_capacity"},
		{"negative waiting capacity", func(c *Config) { c.Roster.WaitingCapacity = -1 }, "waiting_capacity"},
		{"unknown timezone", func(c *Config) { c.Roster.Timezone = "Mars/Olympus" }, "timezone"},
		{"empty dsn", func(c *Config) { c.Store.DSN = " " }, "store.dsn"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }, "unknown store.driver"},
		{"dynamodb without table", func(c *Config) { c.Store.Driver = StoreDriverDynamoDB }, "table_name"},
		{"dynamodb roster too large", func(c *Config) {
			c.Store.Driver = StoreDriverDynamoDB
			c.DynamoDB.TableName = "roster"
			c.Roster.WaitingCapacity = 90
		}, "at most 99"},
		{"dynamodb default roster", func(c *Config) {
			c.Store.Driver = StoreDriverDynamoDB
			c.DynamoDB.TableName = "roster"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
