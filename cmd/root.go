package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/classmark/classmark/internal/config"
	"github.com/classmark/classmark/internal/logger"
	"github.com/classmark/classmark/internal/roster"
	"github.com/classmark/classmark/internal/store"
	_ "github.com/classmark/classmark/internal/store/mariadb"
	_ "github.com/classmark/classmark/internal/store/postgres"
	_ "github.com/classmark/classmark/internal/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "classmark",
	Short: "Face-recognition attendance for classrooms",
	Long: `Classmark marks classroom attendance automatically. It watches a
camera stream, matches detected faces against a roster of enrolled
students and records who showed up, one event per student per session.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// setupLogger builds the process logger from config.
func setupLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: cfg.Log.Console,
		Pretty:  cfg.Log.Pretty,
	})
}

// openStore opens the configured attendance store backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	return store.Open(ctx, store.Config{
		Backend:      cfg.Store.Backend,
		SQLitePath:   cfg.Store.SQLitePath,
		PostgresURL:  cfg.Store.PostgresURL,
		MariaDBURL:   cfg.Store.MariaDBURL,
		MaxOpenConns: cfg.Store.MaxOpenConns,
		MaxIdleConns: cfg.Store.MaxIdleConns,
	})
}

// newRosterStore builds the roster store over the configured images
// directory and embedding service.
func newRosterStore(cfg *config.Config, withProgress bool) *roster.Store {
	encoder := roster.NewClient(cfg.Encoder.URL)
	opts := []roster.StoreOption{}
	if cfg.Roster.CacheFile != "" {
		opts = append(opts, roster.WithCacheFile(cfg.Roster.CacheFile))
	}
	if withProgress {
		opts = append(opts, roster.WithProgress())
	}
	return roster.NewStore(cfg.Roster.ImagesDir, cfg.Engine.RecognitionModel, encoder, opts...)
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
