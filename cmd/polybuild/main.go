package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Artur-/polymer-build/internal/build"
	"github.com/Artur-/polymer-build/internal/config"
	"github.com/Artur-/polymer-build/internal/devserver"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgFile string
		log     *slog.Logger
		cfg     config.Config
	)

	root := &cobra.Command{
		Use:           "polybuild",
		Short:         "Web build pipeline that splits inline scripts into per-language pseudo-files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel(cfg.LogLevel),
			}))
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to a polybuild.yaml project file")

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the source tree into the output directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := build.New(cfg, log)
			if err := b.Run(cmd.Context()); err != nil {
				log.Error("build failed", "error", err)
				return err
			}
			return nil
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the build output for local preview",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      devserver.New(cfg.OutDir, log),
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("serving build output", "dir", cfg.OutDir, "port", cfg.Port)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
				log.Info("shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	root.AddCommand(buildCmd, serveCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		if log == nil {
			log = slog.New(slog.NewJSONHandler(os.Stderr, nil))
		}
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
