package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jakeminator123/kurs/internal/config"
	"github.com/Jakeminator123/kurs/internal/database"
	"github.com/Jakeminator123/kurs/internal/mailer"
	"github.com/Jakeminator123/kurs/internal/metrics"
	"github.com/Jakeminator123/kurs/internal/openaiservice"
	"github.com/Jakeminator123/kurs/internal/pages"
	"github.com/Jakeminator123/kurs/internal/report"
	"github.com/Jakeminator123/kurs/internal/server"
	"github.com/Jakeminator123/kurs/internal/wizard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var envFile string

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	config.SetupLogging(cfg, os.Stdout)
	return cfg, nil
}

func newGateway(cfg *config.Config, m *metrics.Metrics) *openaiservice.Client {
	gw := openaiservice.New(openaiservice.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		ChatModel:  cfg.OpenAIChatModel,
		ImageModel: cfg.OpenAIImageModel,
		MaxTokens:  cfg.OpenAIMaxTokens,
		Timeout:    cfg.OpenAITimeout,
	}, openaiservice.NewBuilder(cfg.CoachName).Persona(), m)
	if !gw.HasCredential() {
		log.Warn().Msg("OPENAI_API_KEY is not set; generation calls will fail")
	}
	return gw
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m := metrics.MustNewMetrics(prometheus.DefaultRegisterer)
	deps := server.Deps{
		Config:   cfg,
		Gateway:  newGateway(cfg, m),
		Metrics:  m,
		Gatherer: prometheus.DefaultGatherer,
	}

	if cfg.DatabaseURL != "" {
		dbService, err := database.NewService(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer dbService.Close() // Ensure the database connection is closed on exit.
		deps.DB = dbService
	}

	if cfg.SMTPHost != "" {
		deps.Mailer = mailer.New(mailer.Config{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		})
	}

	srv, err := server.NewServer(deps)
	if err != nil {
		return err
	}

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(srv, done)

	log.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("server listening")
	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info().Msg("Graceful shutdown complete.")
	return nil
}

func newReportCmd() *cobra.Command {
	var snapshotPath, outDir string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a PDF health plan from a saved progress snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(snapshotPath)
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			snap, err := wizard.DecodeSnapshot(data)
			if err != nil {
				return err
			}

			sess := wizard.NewSession()
			sess.Restore(snap, true)

			if outDir == "" {
				outDir = cfg.OutputDir
			}
			assembler := &report.Assembler{
				OutputDir:    outDir,
				Coach:        cfg.CoachName,
				ContactURL:   cfg.ContactURL,
				ContactPhone: cfg.ContactPhone,
				CourseStart:  cfg.CourseStart,
				Fetcher:      newGateway(cfg, nil),
			}
			rep, err := assembler.Write(cmd.Context(), pages.ReportInput(sess, time.Now()), sess.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rep.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "progress snapshot JSON file")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default OUTPUT_DIR)")
	_ = cmd.MarkFlagRequired("snapshot")
	return cmd
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kurs",
		Short:         "Functional Food & Longevity wizard",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the wizard HTTP API",
		RunE:  runServe,
	})
	root.AddCommand(newReportCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
