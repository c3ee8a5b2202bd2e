package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/classmark/classmark/internal/ai"
	"github.com/classmark/classmark/internal/chatbot"
	"github.com/classmark/classmark/internal/config"
	"github.com/classmark/classmark/internal/logger"
	"github.com/classmark/classmark/internal/metrics"
	"github.com/classmark/classmark/internal/roster"
	"github.com/classmark/classmark/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Classmark web server. It exposes session listings, reports,
daily events, the FAQ chatbot and a live attendance feed over HTTP. The
roster directory is watched for changes and old attendance rows are
cleaned up nightly when retention is configured.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().StringSlice("origin", nil, "Additional allowed CORS origins")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	lg, err := setupLogger(cfg)
	if err != nil {
		return fmt.Errorf("could not set up logger: %w", err)
	}
	defer func() { _ = lg.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("could not open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	rosterStore := newRosterStore(cfg, false)
	if _, err := rosterStore.Get(ctx); err != nil {
		return fmt.Errorf("could not load roster: %w", err)
	}

	watcher, err := roster.NewWatcher(rosterStore, lg.Logger)
	if err != nil {
		lg.Warn().Err(err).Msg("roster watcher unavailable, edits need a restart")
	} else {
		go func() {
			if err := watcher.Run(ctx); err != nil {
				lg.Error().Err(err).Msg("roster watcher stopped")
			}
		}()
	}

	bot, err := buildBot(ctx, cfg, lg)
	if err != nil {
		return err
	}

	if cfg.Store.RetainDays > 0 {
		scheduler := cron.New()
		_, err := scheduler.AddFunc("@daily", func() {
			deleted, err := db.Cleanup(context.Background(), cfg.Store.RetainDays)
			if err != nil {
				lg.Error().Err(err).Msg("attendance cleanup failed")
				return
			}
			lg.Info().Int64("deleted", deleted).Msg("attendance cleanup done")
		})
		if err != nil {
			return fmt.Errorf("could not schedule cleanup: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")
	origins, _ := cmd.Flags().GetStringSlice("origin")

	feed := web.NewFeed()
	go web.NewTailer(db, feed, 2*time.Second, lg.Logger).Run(ctx)

	server := web.NewServer(web.Config{
		Host:           host,
		Port:           port,
		AllowedOrigins: origins,
		Store:          db,
		Roster:         rosterStore,
		Bot:            bot,
		Metrics:        metrics.New(),
		Feed:           feed,
		Logger:         &lg.Logger,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error().Err(err).Msg("error during shutdown")
		}
	}()

	fmt.Printf("Starting Classmark on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

func buildBot(ctx context.Context, cfg *config.Config, lg *logger.Logger) (*chatbot.Bot, error) {
	entries, err := chatbot.LoadCorpus(cfg.Chatbot.FAQFile)
	if err != nil {
		return nil, fmt.Errorf("could not load FAQ corpus: %w", err)
	}

	opts := []chatbot.Option{chatbot.WithLogger(lg.Logger)}
	provider, err := ai.New(ctx, ai.Config{
		Provider:     cfg.AI.Provider,
		OpenAIToken:  cfg.AI.OpenAIToken,
		GeminiAPIKey: cfg.AI.GeminiAPIKey,
		AnthropicKey: cfg.AI.AnthropicKey,
	})
	if err != nil {
		return nil, fmt.Errorf("could not build AI provider: %w", err)
	}
	if provider != nil {
		opts = append(opts, chatbot.WithFallback(provider))
	}

	return chatbot.New(entries, cfg.Chatbot.MinConfidence, opts...), nil
}
