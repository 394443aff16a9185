package main

import (
	"context"
	"elmah/config"
	"elmah/handlers"
	"elmah/service"
	"elmah/version"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	v       *viper.Viper
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v = viper.New()
	cfgFile = ""

	root := &cobra.Command{
		Use:   "elmah",
		Short: "Application error log",
		Long: `elmah records application errors in a pluggable store (memory, XML files,
SQLite or PostgreSQL) and serves them over a small JSON API.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./elmah.yaml when present)")
	flags.String("log-level", "", "override logging level (debug, info, warn, error)")
	flags.String("log-format", "", "override logging format (text, json, dev)")
	flags.String("log-file", "", "write logs to this file, keeping one rotated copy")

	// Bind flags to viper
	v.BindPFlag("log.level", flags.Lookup("log-level"))
	v.BindPFlag("log.format", flags.Lookup("log-format"))
	v.BindPFlag("log.file", flags.Lookup("log-file"))

	root.AddCommand(
		newServeCmd(),
		newListCmd(),
		newShowCmd(),
		newLogCmd(),
		newExportCmd(),
		newPurgeCmd(),
		newConsoleCmd(),
		newVersionCmd(),
	)
	return root
}

// runtimeEnv is what every local command needs: config, logger and opened stores.
type runtimeEnv struct {
	cfg      *config.Config
	logger   *slog.Logger
	services *service.Services
	logClose io.Closer
}

func loadConfig() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closer, err := setupLogging(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, closer, nil
}

func openRuntime(ctx context.Context) (*runtimeEnv, error) {
	cfg, logger, closer, err := loadConfig()
	if err != nil {
		return nil, err
	}

	services, err := service.InitServices(ctx, cfg, logger)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return &runtimeEnv{cfg: cfg, logger: logger, services: services, logClose: closer}, nil
}

func (e *runtimeEnv) Close() {
	if err := e.services.Close(); err != nil {
		e.logger.Error("error closing stores", "error", err)
	}
	if e.logClose != nil {
		e.logClose.Close()
	}
}

func newServeCmd() *cobra.Command {
	var printConfig bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if printConfig {
				cfg, err := config.Load(v, cfgFile)
				if err != nil {
					return err
				}
				out, err := cfg.YAML()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return serve(cmd.Context())
		},
	}

	cmd.Flags().String("addr", "", "listen address (default 127.0.0.1:8080)")
	cmd.Flags().String("base-url", "", "public base URL used for links in CSV exports")
	cmd.Flags().Int("retention-days", 0, "purge errors older than this many days (0 disables)")
	cmd.Flags().BoolVar(&printConfig, "print-config", false, "print the effective configuration and exit")
	v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	v.BindPFlag("server.baseUrl", cmd.Flags().Lookup("base-url"))
	v.BindPFlag("retention.days", cmd.Flags().Lookup("retention-days"))
	return cmd
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	cfg, logger := env.cfg, env.logger
	logger.Info("System starting up...", "version", version.GetFullVersion(), "applications", env.services.Errors.Applications())

	// Set Gin mode
	if parseLevel(cfg.Log.Level) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DisableConsoleColor()

	h := handlers.NewHandler(env.services.Errors, cfg.Server.BaseURL, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handlers.NewRouter(h, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if env.services.Retention != nil {
		env.services.Retention.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for OS interrupt or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("Received signal", "signal", sig.String())
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	logger.Info("System shutting down...")

	// Gracefully shut down HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetBuildInfo())
		},
	}
}
