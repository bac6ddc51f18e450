package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgulliver/imagegate/internal/analytics"
	"github.com/lgulliver/imagegate/internal/common"
	"github.com/lgulliver/imagegate/pkg/config"
)

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	assert.True(t, names["serve"])
	assert.True(t, names["seed"])
	assert.True(t, names["prune"])
}

func TestSeedCommand_RequiresDirectory(t *testing.T) {
	assert.Error(t, seedCmd.Args(seedCmd, nil))
	assert.Error(t, seedCmd.Args(seedCmd, []string{"a", "b"}))
	assert.NoError(t, seedCmd.Args(seedCmd, []string{"./images"}))
}

func TestBindFlags(t *testing.T) {
	fv := config.New()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)

	require.NoError(t, bindFlags(fv, flags))
	require.NoError(t, flags.Parse([]string{"--port", "9191", "--storage", "redis", "--log-level", "debug"}))

	assert.Equal(t, 9191, fv.GetInt("server.port"))
	assert.Equal(t, "redis", fv.GetString("storage.type"))
	assert.Equal(t, "debug", fv.GetString("logging.level"))
}

func TestFlagsBoundToConfig(t *testing.T) {
	flags := rootCmd.PersistentFlags()
	require.NoError(t, flags.Set("port", "9191"))
	require.NoError(t, flags.Set("storage", "local"))
	t.Cleanup(func() {
		_ = flags.Set("port", "8080")
	})

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Storage.Type)
}

func TestPruneCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gateway.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", dbPath)

	db, err := common.NewDatabase(&config.DatabaseConfig{Driver: "sqlite", SQLitePath: dbPath})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	service := analytics.NewService(db.DB)
	now := time.Now().UTC()
	for _, age := range []time.Duration{time.Hour, 72 * time.Hour, 96 * time.Hour} {
		require.NoError(t, service.Record(context.Background(), &analytics.FetchEvent{
			Route:         "def",
			RequestedPath: "a.jpg",
			Step:          "exact",
			StatusCode:    200,
			FetchedAt:     now.Add(-age),
		}))
	}
	require.NoError(t, db.Close())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"prune", "--older-than", "48h"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "pruned 2 fetch events older than 48h0m0s")

	db, err = common.NewDatabase(&config.DatabaseConfig{Driver: "sqlite", SQLitePath: dbPath})
	require.NoError(t, err)
	defer db.Close()

	stats, err := analytics.NewService(db.DB).GetStats(context.Background(), now.Add(-365*24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestPruneCommand_RejectsNonPositiveCutoff(t *testing.T) {
	rootCmd.SetArgs([]string{"prune", "--older-than", "0s"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		_ = pruneCmd.Flags().Set("older-than", "720h")
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--older-than must be positive")
}
