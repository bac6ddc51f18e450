package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lgulliver/imagegate/internal/analytics"
	"github.com/lgulliver/imagegate/internal/common"
	"github.com/lgulliver/imagegate/internal/images"
	"github.com/lgulliver/imagegate/internal/storage"
	"github.com/lgulliver/imagegate/pkg/config"
	"github.com/lgulliver/imagegate/pkg/utils"
)

var (
	cfgFile string
	v       = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "image-gateway",
	Short: "HTTP edge for images stored in a blob bucket",
	Long: `image-gateway serves images from local disk, S3-compatible storage or Redis.

/images/<path> serves an object directly; /def/<default>/<path> walks a
fallback chain ending at def/default.webp.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var seedCmd = &cobra.Command{
	Use:   "seed <dir>",
	Short: "Upload a directory tree into the configured store",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete recorded fetch events older than a cutoff",
	Args:  cobra.NoArgs,
	RunE:  runPrune,
}

func init() {
	cobra.CheckErr(bindFlags(v, rootCmd.PersistentFlags()))

	seedCmd.Flags().String("prefix", "", "Key prefix prepended to every uploaded file")
	seedCmd.Flags().Bool("dry-run", false, "List what would be uploaded or deleted without writing")
	seedCmd.Flags().Bool("skip-existing", false, "Skip files already stored with the same size")
	seedCmd.Flags().Bool("prune", false, "Delete stored keys under the prefix that have no local file")

	pruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "Delete events recorded before now minus this duration")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(pruneCmd)
}

// bindFlags defines the persistent flags and binds them onto config keys in v
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	flags.StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	flags.Int("port", 8080, "HTTP listen port")
	flags.String("storage", "local", "Blob store backend (local, s3, redis)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	for key, name := range map[string]string{
		"server.port":   "port",
		"storage.type":  "storage",
		"logging.level": "log-level",
	} {
		flag := flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("flag --%s is not defined", name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind --%s to %s: %w", name, key, err)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.Logging.SetupLogging()
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	log.Info().Str("storage", cfg.Storage.Type).Msg("Starting image gateway")

	ctx := context.Background()

	store, err := storage.NewStorageFactory(&cfg.Storage, &cfg.Redis).CreateStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	gateway := &Gateway{
		Resolver: images.NewResolver(store, images.Options{
			DefaultDir:    cfg.Images.DefaultDir,
			GlobalDefault: cfg.Images.GlobalDefault,
			DefaultExt:    cfg.Images.DefaultExt,
		}),
		Store:       store,
		Recorder:    analytics.NopRecorder{},
		CacheMaxAge: cfg.Images.CacheMaxAge,
	}

	if cfg.Analytics.Enabled {
		db, err := common.NewDatabase(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		service := analytics.NewService(db.DB)
		gateway.Recorder = service
		gateway.Stats = service
		log.Info().Str("driver", cfg.Database.Driver).Msg("Fetch analytics enabled")
	}

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      newHandler(gateway),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}
	log.Info().Msg("Server shutdown complete")
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	var opts seedOptions
	opts.Prefix, _ = cmd.Flags().GetString("prefix")
	opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
	opts.SkipExisting, _ = cmd.Flags().GetBool("skip-existing")
	opts.Prune, _ = cmd.Flags().GetBool("prune")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStorageFactory(&cfg.Storage, &cfg.Redis).CreateStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	if s3Store, ok := store.(*storage.S3Storage); ok && !opts.DryRun {
		if err := s3Store.EnsureBucket(ctx); err != nil {
			return err
		}
	}

	summary, err := seedDirectory(ctx, store, args[0], opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d files (%s), skipped %d, pruned %d\n",
		summary.Uploaded, utils.FormatBytes(summary.Bytes), summary.Skipped, summary.Pruned)
	return nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	olderThan, err := cmd.Flags().GetDuration("older-than")
	if err != nil {
		return err
	}
	if olderThan <= 0 {
		return fmt.Errorf("--older-than must be positive, got %s", olderThan)
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	db, err := common.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	removed, err := analytics.NewService(db.DB).Prune(cmd.Context(), cutoff)
	if err != nil {
		return err
	}

	log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("Pruned fetch events")
	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d fetch events older than %s\n", removed, olderThan)
	return nil
}
