package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/codepacceproduct/clausify/internal/api"
	"github.com/codepacceproduct/clausify/internal/auth"
	"github.com/codepacceproduct/clausify/internal/config"
	"github.com/codepacceproduct/clausify/internal/log"
	"github.com/codepacceproduct/clausify/internal/redis"
	"github.com/codepacceproduct/clausify/internal/service/voice"
	"github.com/codepacceproduct/clausify/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ctx, cfg, flushLog, err := loadConfig(ctx)
		defer flushLog()
		if err != nil {
			return err
		}
		return serve(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := log.FromCtx(ctx)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	dispatcher, err := newDispatcher(ctx, cfg, st)
	if err != nil {
		return err
	}

	// the replay guard is optional; without redis signatures are still checked
	var guard auth.ReplayGuard
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, replay guard disabled")
		} else {
			defer rdb.Close()
			guard = rdb
		}
	}
	if cfg.Security.SharedSecret == "" {
		logger.Warn().Msg("no shared secret configured, request signatures are not verified")
	}
	verifier := auth.NewVerifier(cfg.Security, guard)

	pool := worker.NewPool(cfg.BasicConfig.MaxWorkers, cfg.BasicConfig.QueueTimeout())
	runner := api.Pooled(pool, dispatcher)

	store, err := voice.NewAudioStore(cfg.BasicConfig.AudioDir, "/audio", cfg.BasicConfig.PublicBaseURL)
	if err != nil {
		return err
	}
	opts := api.Options{AudioDir: store.Dir(), MaxUploadBytes: cfg.Voice.MaxUploadBytes()}
	speech, err := voice.NewOpenAIClient(cfg.Voice)
	switch {
	case errors.Is(err, voice.ErrNotConfigured):
		logger.Warn().Msg("voice provider not configured, voice routes disabled")
	case err != nil:
		return err
	default:
		opts.Voice = voice.NewPipeline(speech, speech, runner, store)
	}

	cleaner := voice.NewCleaner(store.Dir(), cfg.BasicConfig.AudioTTL())
	if err := cleaner.Start(ctx, cfg.BasicConfig.AudioCleanSchedule); err != nil {
		return err
	}

	if !debug && !cfg.BasicConfig.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger))
	api.NewHandler(runner, verifier, opts).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("harvey has been shut down gracefully")
	return nil
}
