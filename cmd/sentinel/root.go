package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/config"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/logging"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/recorder"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/scanner"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/scheduler"
	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/server"
)

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "sentinel",
		Short:        "Scan press releases for unusual trading volume",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default $CONFIG_PATH or "+config.DefaultPath+")")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newRunCmd(opts), newDaemonCmd(opts))
	return cmd
}

// resolveConfigPath picks the flag, then CONFIG_PATH, then the default.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return config.DefaultPath
}

func loadConfig(opts *rootOptions) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(resolveConfigPath(opts.configPath))
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("config validation: %w", err)
	}

	lc := logging.DefaultConfig()
	lc.Level = cfg.Log.Level
	lc.FilePath = cfg.Log.File
	if opts.debug {
		lc.Level = "debug"
	}
	return cfg, logging.New(lc), nil
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		label  string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single scan and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.scanner.Run(ctx, normalizeLabel(label), dryRun)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), recorder.FormatMarkdown(report, a.scanner.Location()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&label, "label", "l", scanner.LabelManual, "run label: Morning, Evening or Manual")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "record the report but send no notifications")
	return cmd
}

// normalizeLabel maps any casing of a known label to its canonical form.
func normalizeLabel(label string) string {
	for _, l := range []string{scanner.LabelMorning, scanner.LabelEvening, scanner.LabelManual} {
		if strings.EqualFold(label, l) {
			return l
		}
	}
	return label
}

func newDaemonCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run scheduled scans, chat commands and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg, logger)
		},
	}
}

func runDaemon(parent context.Context, cfg *config.Config, logger zerolog.Logger) error {
	logger.Info().Str("mode", cfg.Universe.Mode).Str("provider", cfg.DataSource.Provider).Msg("PR spike sentinel starting")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.NewScheduler(ctx, a.scanner, a.scanner.Location(), logging.Component(logger, "scheduler"))
	if err := sched.RegisterAll(cfg.Schedule.MorningCron, cfg.Schedule.EveningCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if a.telegram != nil {
		go a.telegram.StartPolling(ctx, sched.HandleCommand)
		logger.Info().Msg("telegram polling started")
	}

	handler := server.NewHandler(a.scanner, a.breakers, logging.Component(logger, "server"))
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.NewRouter(handler, a.registry, a.metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	if os.Getenv("RUN_ON_START") == "true" {
		logger.Info().Msg("RUN_ON_START enabled, running evening scan now")
		go sched.RunNow(scanner.LabelEvening)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received, stopping")
	case err := <-srvErr:
		logger.Error().Err(err).Msg("http server failed")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}
	cancel()
	logger.Info().Msg("PR spike sentinel stopped")
	return nil
}
