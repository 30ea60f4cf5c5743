package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vlmd/internal/config"
	"vlmd/internal/engine"
	"vlmd/internal/engine/stub"
	"vlmd/internal/httpapi"
	"vlmd/internal/manager"
	"vlmd/internal/media"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vlmd",
		Short:         "Multimodal vision-language inference daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var cfgPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP serving daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, cfgPath)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
	serve.Flags().StringVar(&cfgPath, "config", "", "Config file (.yaml/.json/.toml)")
	serve.Flags().String("addr", "", "HTTP listen address (default :8899)")
	serve.Flags().StringP("model-dir", "m", "", "Model directory containing the .bmodel weights")
	serve.Flags().String("model-id", "", "Served model id (default qwen3-vl-instruct)")
	serve.Flags().String("engine", "", "Engine kind: stub|bmodel (default stub)")
	serve.Flags().IntP("workers", "c", 0, "Max concurrent requests / resident sessions (default 10)")
	serve.Flags().IntP("device-id", "d", 0, "Accelerator device id")
	serve.Flags().Float64P("video-ratio", "v", 0, "Video frame sampling ratio (default 0.5)")
	serve.Flags().String("api-key", "", "API key; empty disables auth")
	serve.Flags().String("api-key-header", "", "Header carrying the API key (default Authorization)")
	serve.Flags().String("api-key-prefix", "", "API key prefix (default Bearer)")
	serve.Flags().Int("fetch-timeout", 0, "Remote media fetch timeout in seconds (default 15)")
	serve.Flags().StringP("log-level", "l", "", "Log level: debug|info|warn|error (default info)")

	root.AddCommand(serve)
	return root
}

// resolveConfig loads the optional config file, then overlays any flags the
// user actually set.
func resolveConfig(cmd *cobra.Command, cfgPath string) (config.Config, error) {
	var cfg config.Config
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Addr, _ = f.GetString("addr")
	}
	if f.Changed("model-dir") {
		cfg.ModelDir, _ = f.GetString("model-dir")
	}
	if f.Changed("model-id") {
		cfg.ModelID, _ = f.GetString("model-id")
	}
	if f.Changed("engine") {
		cfg.Engine, _ = f.GetString("engine")
	}
	if f.Changed("workers") {
		cfg.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("device-id") {
		cfg.DeviceID, _ = f.GetInt("device-id")
	}
	if f.Changed("video-ratio") {
		cfg.VideoRatio, _ = f.GetFloat64("video-ratio")
	}
	if f.Changed("api-key") {
		cfg.APIKey, _ = f.GetString("api-key")
	}
	if f.Changed("api-key-header") {
		cfg.APIKeyHeader, _ = f.GetString("api-key-header")
	}
	if f.Changed("api-key-prefix") {
		cfg.APIKeyPrefix, _ = f.GetString("api-key-prefix")
	}
	if f.Changed("fetch-timeout") {
		cfg.FetchTimeoutSec, _ = f.GetInt("fetch-timeout")
	}
	if f.Changed("log-level") {
		cfg.LogLevel, _ = f.GetString("log-level")
	}
	cfg.Defaults()
	return cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
}

// newEngine builds the configured engine. The accelerator runtime is an
// external dependency; this binary ships only the stub.
func newEngine(cfg config.Config, log zerolog.Logger) (engine.Engine, error) {
	switch cfg.Engine {
	case "stub":
		log.Warn().Msg("using the deterministic stub engine; generation output is an echo")
		return stub.New(stub.Config{VideoRatio: cfg.VideoRatio}), nil
	case "bmodel":
		paths, err := engine.Locate(cfg.ModelDir)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("model %s: this build does not include the accelerator runtime bindings", paths.Weights)
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Engine)
	}
}

func runServe(cfg config.Config) error {
	log := newLogger(cfg.LogLevel)

	eng, err := newEngine(cfg, log)
	if err != nil {
		return err
	}
	mgr, err := manager.New(manager.Config{
		Engine:  eng,
		Workers: cfg.Workers,
		Logger:  log,
	})
	if err != nil {
		return err
	}
	defer mgr.Close()

	resolver := media.NewResolver(time.Duration(cfg.FetchTimeoutSec)*time.Second, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(int64(cfg.MaxBodyMB) << 20)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins)

	mux := httpapi.NewMux(mgr, resolver, httpapi.Options{
		Model:        cfg.ModelID,
		ModelDir:     cfg.ModelDir,
		APIKey:       cfg.APIKey,
		APIKeyHeader: cfg.APIKeyHeader,
		APIKeyPrefix: cfg.APIKeyPrefix,
	})

	// Pay the first session's cold-start cost at boot.
	go func() {
		if err := mgr.Warmup(ctx); err != nil {
			log.Error().Err(err).Msg("engine preload failed")
			return
		}
		log.Info().Msg("engine preloaded")
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model_dir", cfg.ModelDir).
			Str("engine", cfg.Engine).Int("workers", cfg.Workers).
			Bool("auth", cfg.APIKey != "").Msg("vlmd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	log.Info().Msg("vlmd stopped")
	return nil
}
