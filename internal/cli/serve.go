package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"txfilter/internal/amqp"
	"txfilter/internal/cache"
	apphttp "txfilter/internal/http"
	applog "txfilter/internal/log"
	"txfilter/internal/middleware/ratelimit"
	"txfilter/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	cleanupInterval = 5 * time.Minute
)

func serveCmd(a *app) *cobra.Command {
	var ingest bool

	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the transaction filter page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a, ingest)
		},
	}
	c.Flags().BoolVar(&ingest, "ingest", false, "also consume AMQP_QUEUE in this process")
	return c
}

func runServe(ctx context.Context, a *app, ingest bool) error {
	cfg, logger := a.cfg, a.logger
	window, err := cfg.Window()
	if err != nil {
		return err
	}

	manager := cache.NewManager(logger)
	res, err := OpenBackend(ctx, cfg, logger, manager)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	srv, err := apphttp.NewServer(res.Source, apphttp.Options{
		Addr:     ":" + cfg.Port,
		Window:   window,
		Currency: cfg.Currency,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		Ready:  res.Ready,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	for _, c := range srv.Cleaners() {
		manager.Register(c)
	}

	// consume runs the in-process ingest consumer when --ingest is set.
	var consume func(ctx context.Context) error
	if ingest {
		if cfg.AMQPURL == "" {
			return errors.New("--ingest requires AMQP_URL")
		}
		if res.Writer == nil {
			return fmt.Errorf("backend %s is read-only, cannot ingest", res.Type)
		}
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		w := worker.NewIngestWorker(res.Writer, res.Invalidator, logger)
		consume = func(ctx context.Context) error {
			return client.ConsumeTransactions(ctx, w.HandleBatch)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	manager.StartCleanup(ctx, cleanupInterval)
	defer manager.Stop()

	g.Go(func() error {
		logger.Info("Starting txfilter server",
			applog.FieldOperation, applog.OpStartup,
			"port", cfg.Port,
			applog.FieldBackend, string(res.Type),
			"window", window.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if consume != nil {
		g.Go(func() error {
			if err := consume(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("ingest consumer: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	logger.Info("Server stopped", applog.FieldOperation, applog.OpShutdown)
	return err
}
